package videorequests

import (
	"context"
	"time"

	outboxevents "github.com/bionicotaku/lingo-services-takeaways/internal/models/outbox_events"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	"github.com/bionicotaku/lingo-utils/gcpubsub"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/bionicotaku/lingo-utils/outbox/inbox"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
)

// Task 封装 NEW_VIDEO 命令的消费循环。
type Task struct {
	runner  *inbox.Runner[outboxevents.Envelope]
	handler *eventHandler
}

// NewTask 构造 Inbox Runner，任一依赖缺失时返回 nil。
func NewTask(
	subscriber gcpubsub.Subscriber,
	inboxRepo *repositories.InboxRepository,
	pipeline services.PipelineRunner,
	outbox services.OutboxEnqueuer,
	tx txmanager.Manager,
	logger log.Logger,
	cfg outboxcfg.InboxConfig,
) *Task {
	if subscriber == nil || inboxRepo == nil || pipeline == nil || outbox == nil || tx == nil {
		return nil
	}

	handler := newEventHandler(pipeline, outbox, logger, newInboxMetrics())
	runner, err := inbox.NewRunner[outboxevents.Envelope](inbox.RunnerParams[outboxevents.Envelope]{
		Store:      inboxRepo.Shared(),
		Subscriber: subscriber,
		TxManager:  tx,
		Decoder:    newDecoder(),
		Handler:    handler,
		Config:     cfg.Normalize(),
		Logger:     logger,
	})
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "video requests: init runner failed", "error", err)
		return nil
	}

	task := &Task{runner: runner, handler: handler}
	task.runner.WithClock(time.Now)
	return task
}

// Run 启动消费循环，直到 ctx 取消或订阅返回。
func (t *Task) Run(ctx context.Context) error {
	if t == nil || t.runner == nil {
		return nil
	}
	return t.runner.Run(ctx)
}

// WithClock 提供测试替换时间。
func (t *Task) WithClock(fn func() time.Time) {
	if t == nil || t.runner == nil || fn == nil {
		return
	}
	t.runner.WithClock(fn)
	t.handler.clock = fn
}
