package services

import "time"

// TriggerGate 判断会话是否满足自动生成的门槛：标签页打开时长与累计播放时长均达到下限。
type TriggerGate struct {
	cfg GateConfig
}

// NewTriggerGate 构造 TriggerGate。
func NewTriggerGate(cfg GateConfig) TriggerGate {
	normalized := PipelineConfig{Gate: cfg}.Normalize().Gate
	return TriggerGate{cfg: normalized}
}

// Ready 报告门槛是否满足。
func (g TriggerGate) Ready(tabOpen, playback time.Duration) bool {
	return tabOpen >= g.cfg.MinTabOpen && playback >= g.cfg.MinPlayback
}

// PlaybackDelta 返回一次播放上报可计入累计时长的增量。
// 只有向前且不超过 MaxTickGap 的增量才计入；后退、拖动与暂停都记为 0。
func (g TriggerGate) PlaybackDelta(previous, current float64) time.Duration {
	delta := current - previous
	if delta <= 0 {
		return 0
	}
	d := time.Duration(delta * float64(time.Second))
	if d > g.cfg.MaxTickGap {
		return 0
	}
	return d
}
