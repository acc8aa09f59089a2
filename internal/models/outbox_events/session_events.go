package outboxevents

import (
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/google/uuid"
)

// NewSessionEvent 将一条会话消息包装为领域事件。
func NewSessionEvent(sessionID string, evt vo.SessionEvent, eventID uuid.UUID, occurredAt time.Time) (*DomainEvent, error) {
	if eventID == uuid.Nil {
		return nil, ErrInvalidEventID
	}
	kind := KindFromEventType(evt.Type)
	if kind == KindUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventKind, evt.Type)
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	if evt.VideoID == "" {
		return nil, fmt.Errorf("session event: video_id required")
	}
	occurredAt = occurredAt.UTC()
	return &DomainEvent{
		EventID:       eventID,
		Kind:          kind,
		AggregateID:   AggregateIDForVideo(evt.VideoID),
		AggregateType: AggregateTypeVideo,
		Version:       VersionFromTime(occurredAt),
		OccurredAt:    occurredAt,
		Payload: &SessionEventPayload{
			SessionID: sessionID,
			VideoID:   evt.VideoID,
			Event:     evt,
		},
	}, nil
}
