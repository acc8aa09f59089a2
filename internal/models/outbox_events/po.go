package outboxevents

import (
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/google/uuid"
)

// Kind 标识领域事件类型。
type Kind int

// 领域事件类型常量。
const (
	// KindUnknown 表示未识别的事件类型。
	KindUnknown Kind = iota
	// KindVideoRequested 表示收到 NEW_VIDEO 请求。
	KindVideoRequested
	// KindStatusChanged 表示流水线阶段切换。
	KindStatusChanged
	// KindTakeawaysReady 表示要点已可展示（新生成或命中缓存）。
	KindTakeawaysReady
	// KindProcessingFailed 表示流水线以用户可读错误结束。
	KindProcessingFailed
)

func (k Kind) String() string {
	switch k {
	case KindVideoRequested:
		return "takeaways.video.requested"
	case KindStatusChanged:
		return "takeaways.processing.status_changed"
	case KindTakeawaysReady:
		return "takeaways.video.ready"
	case KindProcessingFailed:
		return "takeaways.processing.failed"
	default:
		return "takeaways.event.unknown"
	}
}

// KindFromEventType 把会话消息类型映射为领域事件类型。
func KindFromEventType(t vo.EventType) Kind {
	switch t {
	case vo.EventNewVideo:
		return KindVideoRequested
	case vo.EventProcessingStatus:
		return KindStatusChanged
	case vo.EventVideoTakeaways:
		return KindTakeawaysReady
	case vo.EventProcessingError:
		return KindProcessingFailed
	default:
		return KindUnknown
	}
}

// ParseKind 根据 event_type 属性反解事件类型。
func ParseKind(raw string) Kind {
	for _, k := range []Kind{KindVideoRequested, KindStatusChanged, KindTakeawaysReady, KindProcessingFailed} {
		if k.String() == raw {
			return k
		}
	}
	return KindUnknown
}

// DomainEvent 表示领域层生成的标准事件。
type DomainEvent struct {
	EventID       uuid.UUID
	Kind          Kind
	AggregateID   uuid.UUID
	AggregateType string
	Version       int64
	OccurredAt    time.Time
	Payload       any
}

// SessionEventPayload 是会话消息在事件总线上的载荷。
type SessionEventPayload struct {
	SessionID string
	VideoID   string
	Event     vo.SessionEvent
}

const (
	// AggregateTypeVideo 标识以视频为聚合根的事件。
	AggregateTypeVideo = "takeaways.video"
	// SchemaVersionV1 描述事件载荷的当前 schema 版本。
	SchemaVersionV1 = "v1"
)

// videoNamespace 用于把 YouTube 视频 ID 映射为稳定的聚合 UUID。
var videoNamespace = uuid.MustParse("6f1c1c52-4c1e-4d63-9a5e-0c7a8b1e2f30")

// AggregateIDForVideo 为视频 ID 派生确定性的聚合 ID。
func AggregateIDForVideo(videoID string) uuid.UUID {
	return uuid.NewSHA1(videoNamespace, []byte(videoID))
}

var (
	// ErrInvalidEventID 表示未提供合法的事件 ID。
	ErrInvalidEventID = fmt.Errorf("event builder: event id is required")
	// ErrUnknownEventKind 表示未识别的事件类型。
	ErrUnknownEventKind = fmt.Errorf("event builder: unknown event kind")
)
