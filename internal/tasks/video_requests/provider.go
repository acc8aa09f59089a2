package videorequests

import (
	"github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/configloader"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
)

// ProvideTask 根据配置和依赖构造 NEW_VIDEO 消费任务；未配置订阅或来源服务时返回 nil。
func ProvideTask(
	subscriber configloader.RequestsSubscriber,
	inboxRepo *repositories.InboxRepository,
	pipeline services.PipelineRunner,
	outbox services.OutboxEnqueuer,
	tx txmanager.Manager,
	cfg outboxcfg.Config,
	logger log.Logger,
) *Task {
	helper := log.NewHelper(logger)
	if subscriber == nil {
		helper.Warn("video requests: skip initialization, requests subscription not configured")
		return nil
	}
	normalized := cfg.Normalize()
	if normalized.Inbox.SourceService == "" {
		helper.Warn("video requests: skip initialization, source_service not configured")
		return nil
	}
	return NewTask(subscriber, inboxRepo, pipeline, outbox, tx, logger, normalized.Inbox)
}
