package videorequests

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	outboxevents "github.com/bionicotaku/lingo-services-takeaways/internal/models/outbox_events"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	"github.com/bionicotaku/lingo-utils/outbox/store"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
)

type eventHandler struct {
	pipeline services.PipelineRunner
	outbox   services.OutboxEnqueuer
	logger   log.Logger
	log      *log.Helper
	metrics  *inboxMetrics
	clock    func() time.Time
}

func newEventHandler(pipeline services.PipelineRunner, outbox services.OutboxEnqueuer, logger log.Logger, metrics *inboxMetrics) *eventHandler {
	return &eventHandler{
		pipeline: pipeline,
		outbox:   outbox,
		logger:   logger,
		log:      log.NewHelper(logger),
		metrics:  metrics,
		clock:    time.Now,
	}
}

// Handle 在 Inbox 事务内执行流水线，结果事件与 Inbox 记录一同提交。
func (h *eventHandler) Handle(ctx context.Context, sess txmanager.Session, env *outboxevents.Envelope, _ *store.InboxEvent) error {
	if env == nil {
		return fmt.Errorf("video requests: nil envelope")
	}
	if env.Event.Type != vo.EventNewVideo {
		h.log.WithContext(ctx).Debugw("msg", "video requests: skip unsupported event", "event_type", string(env.Event.Type), "event_id", env.EventID)
		return nil
	}

	videoID, err := services.ExtractVideoID(strings.TrimSpace(env.VideoID))
	if err != nil {
		// 无法识别的视频 ID 重试也无意义，直接确认。
		h.log.WithContext(ctx).Warnw("msg", "video requests: drop invalid video id", "video_id", env.VideoID, "event_id", env.EventID)
		h.metrics.recordFailure(ctx, string(env.Event.Type), err)
		return nil
	}

	occurredAt, _ := parseRFC3339(env.OccurredAt)
	sink := services.NewOutboxSink(env.SessionID, sess, h.outbox, h.logger)
	cmd := services.NewVideoCommand{
		SessionID:       env.SessionID,
		VideoID:         videoID,
		ForceRegenerate: env.Event.ForceRegenerate,
	}

	result, err := h.pipeline.Process(ctx, cmd, sink)
	if err != nil {
		h.metrics.recordFailure(ctx, string(env.Event.Type), err)
		if errors.Is(err, services.ErrVideoInFlight) {
			// 同一视频正在处理；返回错误让消息稍后重投，届时通常命中缓存。
			return fmt.Errorf("video requests: %s: %w", videoID, err)
		}
		return fmt.Errorf("video requests: process %s: %w", videoID, err)
	}

	h.metrics.recordSuccess(ctx, outcomeLabel(result), occurredAt, h.clock())
	return nil
}

func outcomeLabel(result *services.PipelineResult) string {
	switch {
	case result == nil:
		return "unknown"
	case result.FromCache:
		return "cache_hit"
	case result.Set != nil:
		return "generated"
	case result.FinalStatus == vo.StatusNotRelevant:
		return "not_relevant"
	default:
		return "failed"
	}
}

func parseRFC3339(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
