package vo

import (
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
)

// EventType 区分会话通道上的消息种类。
type EventType string

// 会话消息类型
const (
	EventNewVideo         EventType = "NEW_VIDEO"
	EventProcessingStatus EventType = "PROCESSING_STATUS"
	EventVideoTakeaways   EventType = "VIDEO_TAKEAWAYS"
	EventProcessingError  EventType = "PROCESSING_ERROR"
)

// 面向用户的错误文案。
const (
	ErrorNoCaptions         = "No captions available"
	ErrorNotSuitable        = "Content not suitable for takeaways"
	ErrorGenerationFailed   = "Failed to generate takeaways"
	ErrorUnexpected         = "An unexpected error occurred"
	ErrorMissingCredentials = "API key not configured"
)

// ErrInvalidEvent 表示事件缺少必填字段。
var ErrInvalidEvent = errors.New("vo: invalid session event")

// SessionEvent 是四种会话消息的标签联合体，Type 决定哪些字段有效。
type SessionEvent struct {
	Type            EventType        `json:"type"`
	VideoID         string           `json:"videoId,omitempty"`
	ForceRegenerate bool             `json:"forceRegenerate,omitempty"`
	Status          ProcessingStatus `json:"status,omitempty"`
	Takeaways       *po.TakeawaySet  `json:"takeaways,omitempty"`
	FromCache       bool             `json:"fromCache,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// NewVideoEvent 请求对 videoID 执行流水线。
func NewVideoEvent(videoID string, forceRegenerate bool) SessionEvent {
	return SessionEvent{Type: EventNewVideo, VideoID: videoID, ForceRegenerate: forceRegenerate}
}

// StatusEvent 报告阶段切换。
func StatusEvent(videoID string, status ProcessingStatus) SessionEvent {
	return SessionEvent{Type: EventProcessingStatus, VideoID: videoID, Status: status}
}

// TakeawaysEvent 投递最终结果。
func TakeawaysEvent(videoID string, set *po.TakeawaySet, fromCache bool) SessionEvent {
	return SessionEvent{Type: EventVideoTakeaways, VideoID: videoID, Takeaways: set, FromCache: fromCache}
}

// ErrorEvent 投递用户可读的失败原因。
func ErrorEvent(videoID, message string) SessionEvent {
	return SessionEvent{Type: EventProcessingError, VideoID: videoID, Error: message}
}

// Validate 按 Type 检查必填字段。
func (e SessionEvent) Validate() error {
	switch e.Type {
	case EventNewVideo:
		if e.VideoID == "" {
			return fmt.Errorf("%w: NEW_VIDEO requires videoId", ErrInvalidEvent)
		}
	case EventProcessingStatus:
		if e.Status == StatusIdle {
			return fmt.Errorf("%w: PROCESSING_STATUS requires status", ErrInvalidEvent)
		}
	case EventVideoTakeaways:
		if e.Takeaways == nil {
			return fmt.Errorf("%w: VIDEO_TAKEAWAYS requires takeaways", ErrInvalidEvent)
		}
	case EventProcessingError:
		if e.Error == "" {
			return fmt.Errorf("%w: PROCESSING_ERROR requires error", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}
