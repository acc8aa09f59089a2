// Package vo 定义视图对象（View Objects），承载向会话与接口层暴露的状态、事件与展示数据。
package vo

import (
	"encoding/json"
	"fmt"
)

// ProcessingStatus 是流水线对外可见的处理阶段。
type ProcessingStatus string

// 处理状态常量定义
const (
	StatusIdle                ProcessingStatus = ""                      // 尚未开始或已完成
	StatusLoadingVideoDetails ProcessingStatus = "LOADING_VIDEO_DETAILS" // 正在抓取元数据与字幕
	StatusCheckingRelevance   ProcessingStatus = "CHECKING_RELEVANCE"    // 正在判定内容类型
	StatusGeneratingTakeaways ProcessingStatus = "GENERATING_TAKEAWAYS"  // 正在调用生成模型
	StatusNotRelevant         ProcessingStatus = "NOT_RELEVANT"          // 终态：内容不适用
	StatusError               ProcessingStatus = "ERROR"                 // 终态：流水线失败
)

// transitions 是唯一的状态迁移表。
// 任意状态都可以回到 Idle（导航或成功）以及重新进入 LoadingVideoDetails（重试）。
var transitions = map[ProcessingStatus][]ProcessingStatus{
	StatusIdle:                {StatusLoadingVideoDetails},
	StatusLoadingVideoDetails: {StatusCheckingRelevance, StatusError},
	StatusCheckingRelevance:   {StatusGeneratingTakeaways, StatusNotRelevant, StatusError},
	StatusGeneratingTakeaways: {StatusError},
	StatusNotRelevant:         {StatusLoadingVideoDetails},
	StatusError:               {StatusLoadingVideoDetails},
}

// ParseProcessingStatus 校验外部输入的状态字符串。
func ParseProcessingStatus(raw string) (ProcessingStatus, error) {
	status := ProcessingStatus(raw)
	if _, ok := transitions[status]; !ok || status == StatusIdle {
		return StatusIdle, fmt.Errorf("unknown processing status %q", raw)
	}
	return status, nil
}

// IsTerminal 报告状态是否为失败终态。
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusNotRelevant || s == StatusError
}

// IsBusy 报告流水线是否仍在执行。
func (s ProcessingStatus) IsBusy() bool {
	switch s {
	case StatusLoadingVideoDetails, StatusCheckingRelevance, StatusGeneratingTakeaways:
		return true
	default:
		return false
	}
}

// String 实现 fmt.Stringer。
func (s ProcessingStatus) String() string {
	if s == StatusIdle {
		return "IDLE"
	}
	return string(s)
}

// CanTransition 查表判断 from → to 是否合法。
func CanTransition(from, to ProcessingStatus) bool {
	if to == StatusIdle || to == StatusLoadingVideoDetails {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// MarshalJSON 保持线上格式为纯字符串。
func (s ProcessingStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON 拒绝未知状态。
func (s *ProcessingStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		*s = StatusIdle
		return nil
	}
	parsed, err := ParseProcessingStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
