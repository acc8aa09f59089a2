package services

import "time"

// 默认配置；与缓存键相关的值变更后旧条目自然失效。
const (
	DefaultPromptVersion       = 1
	DefaultTakeawaysModel      = "gemini-2.0-flash"
	DefaultClassificationModel = "gemini-2.0-flash-lite"
	DefaultMinTabOpen          = 3 * time.Second
	DefaultMinPlayback         = 3 * time.Second
	DefaultMaxTickGap          = 2 * time.Second
	DefaultSampleSize          = 10
	DefaultSessionIdleTTL      = 30 * time.Minute
)

// PipelineConfig 汇总流水线的模型与版本设置。
type PipelineConfig struct {
	TakeawaysModel      string
	ClassificationModel string
	PromptVersion       int
	DefaultAPIKey       string
	// SessionIdleTTL 之内无任何访问且无订阅者的会话会被回收。
	SessionIdleTTL time.Duration
	Gate           GateConfig
}

// GateConfig 控制自动触发生成的门槛。
type GateConfig struct {
	MinTabOpen  time.Duration
	MinPlayback time.Duration
	// MaxTickGap 是单次播放上报可计入累计播放时长的最大增量，超出视为拖动。
	MaxTickGap time.Duration
}

// Normalize 填充缺省值。
func (c PipelineConfig) Normalize() PipelineConfig {
	if c.TakeawaysModel == "" {
		c.TakeawaysModel = DefaultTakeawaysModel
	}
	if c.ClassificationModel == "" {
		c.ClassificationModel = DefaultClassificationModel
	}
	if c.PromptVersion <= 0 {
		c.PromptVersion = DefaultPromptVersion
	}
	if c.SessionIdleTTL <= 0 {
		c.SessionIdleTTL = DefaultSessionIdleTTL
	}
	if c.Gate.MinTabOpen <= 0 {
		c.Gate.MinTabOpen = DefaultMinTabOpen
	}
	if c.Gate.MinPlayback <= 0 {
		c.Gate.MinPlayback = DefaultMinPlayback
	}
	if c.Gate.MaxTickGap <= 0 {
		c.Gate.MaxTickGap = DefaultMaxTickGap
	}
	return c
}
