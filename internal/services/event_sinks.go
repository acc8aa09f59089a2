package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	outboxevents "github.com/bionicotaku/lingo-services-takeaways/internal/models/outbox_events"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// CollectingSink 按顺序收集事件，供同步接口与任务层使用。
type CollectingSink struct {
	mu     sync.Mutex
	events []vo.SessionEvent
}

// Emit 实现 EventSink。
func (s *CollectingSink) Emit(_ context.Context, evt vo.SessionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

// Events 返回已收集事件的副本。
func (s *CollectingSink) Events() []vo.SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]vo.SessionEvent, len(s.events))
	copy(out, s.events)
	return out
}

// FanoutSink 依次投递到多个 sink，遇到首个错误即返回。
type FanoutSink []EventSink

// Emit 实现 EventSink。
func (f FanoutSink) Emit(ctx context.Context, evt vo.SessionEvent) error {
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Emit(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// OutboxSink 把会话消息写入 Outbox，与调用方的事务共用同一 Session。
type OutboxSink struct {
	sessionID string
	sess      txmanager.Session
	outbox    OutboxEnqueuer
	log       *log.Helper
	metrics   *outboxMetrics
	now       func() time.Time
}

// NewOutboxSink 构造 OutboxSink。sess 为空时由仓储在自身连接上执行。
func NewOutboxSink(sessionID string, sess txmanager.Session, outbox OutboxEnqueuer, logger log.Logger) *OutboxSink {
	return &OutboxSink{
		sessionID: sessionID,
		sess:      sess,
		outbox:    outbox,
		log:       log.NewHelper(logger),
		metrics:   newOutboxMetrics("session_events"),
		now:       time.Now,
	}
}

// Emit 实现 EventSink。
func (s *OutboxSink) Emit(ctx context.Context, evt vo.SessionEvent) error {
	event, err := outboxevents.NewSessionEvent(s.sessionID, evt, uuid.New(), s.now())
	if err != nil {
		return fmt.Errorf("build session event: %w", err)
	}
	msg, err := buildOutboxMessage(ctx, event)
	if err != nil {
		s.metrics.recordFailure(ctx, event.Kind.String(), err)
		return err
	}
	if err := s.outbox.Enqueue(ctx, s.sess, msg); err != nil {
		s.metrics.recordFailure(ctx, event.Kind.String(), err)
		s.log.WithContext(ctx).Errorw("msg", "enqueue session event failed", "event_type", event.Kind.String(), "video_id", evt.VideoID, "error", err)
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	s.metrics.recordSuccess(ctx, event.Kind.String(), event.OccurredAt)
	return nil
}

func buildOutboxMessage(ctx context.Context, evt *outboxevents.DomainEvent) (repositories.OutboxMessage, error) {
	data, err := outboxevents.EncodePayload(evt)
	if err != nil {
		return repositories.OutboxMessage{}, fmt.Errorf("encode event payload: %w", err)
	}
	return repositories.OutboxMessage{
		EventID:       evt.EventID,
		AggregateType: evt.AggregateType,
		AggregateID:   evt.AggregateID,
		EventType:     outboxevents.FormatEventType(evt.Kind),
		Payload:       data,
		Headers:       outboxevents.BuildAttributes(evt, outboxevents.SchemaVersionV1, outboxevents.TraceIDFromContext(ctx)),
		AvailableAt:   evt.OccurredAt,
	}, nil
}
