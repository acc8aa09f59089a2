//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

//go:generate go run github.com/google/wire/cmd/wire

package main

import (
	"context"

	"github.com/bionicotaku/lingo-services-takeaways/internal/clients"
	"github.com/bionicotaku/lingo-services-takeaways/internal/controllers"
	configloader "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/configloader"
	httpserver "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/http_server"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	outboxtasks "github.com/bionicotaku/lingo-services-takeaways/internal/tasks/outbox"
	videorequests "github.com/bionicotaku/lingo-services-takeaways/internal/tasks/video_requests"

	"github.com/bionicotaku/lingo-utils/gclog"
	"github.com/bionicotaku/lingo-utils/gcpubsub"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	"github.com/bionicotaku/lingo-utils/pgxpoolx"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2"
	"github.com/google/wire"
)

// wireApp 构建整个 Kratos 应用，分阶段装配依赖。
//
// 依赖注入顺序:
//  1. 配置加载: configloader.ProviderSet 解析配置并派生组件配置
//  2. 基础设施: gclog → observability → pgxpoolx → txmanager → gcpubsub
//  3. 业务层: repositories / clients → services → controllers
//  4. 服务器: http_server.ProviderSet 组装 HTTP Server
//  5. 后台任务: outbox 发布 Runner、NEW_VIDEO 消费任务
//  6. 应用: newApp 创建 Kratos App
func wireApp(context.Context, configloader.Params) (*kratos.App, func(), error) {
	panic(wire.Build(
		configloader.ProviderSet, // 配置加载与解析
		gclog.ProviderSet,        // 结构化日志
		obswire.ProviderSet,      // OpenTelemetry 追踪和指标
		pgxpoolx.ProviderSet,     // PostgreSQL 连接池
		txmanager.ProviderSet,    // 事务管理器
		gcpubsub.ProviderSet,     // 会话事件发布
		repositories.ProviderSet, // 键值存储与 Outbox/Inbox
		clients.ProviderSet,      // YouTube 与生成式模型客户端
		services.ProviderSet,     // 流水线与会话
		controllers.ProviderSet,  // HTTP / WebSocket handlers
		httpserver.ProviderSet,   // HTTP Server
		outboxtasks.ProvideRunner,
		videorequests.ProvideTask,
		newApp,
	))
}

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// 依赖注入详细文档
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
//
//   - configloader.LoadRuntimeConfig(configloader.Params) (configloader.RuntimeConfig, error)
//       读取 YAML 与环境变量覆盖，归一化为 RuntimeConfig。
//
//   - configloader.ProvideKVConfig(RuntimeConfig) repositories.KVConfig
//       选择键值后端：postgres / redis / cassandra / memory。
//
//   - configloader.ProvideRequestsSubscriber(context.Context, MessagingConfig, gcpubsub.Dependencies)
//                                            (RequestsSubscriber, func(), error)
//       NEW_VIDEO 命令订阅独立于事件发布组件，未配置时返回 nil。
//
//   - repositories.NewKeyValueRepository(KVConfig, *pgxpool.Pool, log.Logger)
//       按后端构造键值存储，返回 cleanup。
//
//   - clients.NewYouTubeClient / clients.NewGeminiClient(cfg, *observability.MetricsConfig, log.Logger)
//       Kratos HTTP 客户端，带熔断与 otelhttp 指标。
//
//   - services.NewPipelineService(CaptionSource, RelevanceChecker, TakeawayProducer, TakeawayStore,
//                                 PipelineConfig, log.Logger) *services.PipelineService
//       抽取 → 判定 → 生成 → 缓存 → 投递，按视频去重。
//
//   - services.NewSessionService(PipelineRunner, *SessionBroadcaster, PipelineConfig, log.Logger)
//       触发门槛、每视频一次提交与过期响应丢弃。
//
//   - httpserver.NewHTTPServer(ServerConfig, *observability.MetricsConfig, *controllers.TakeawayHandler,
//                              *controllers.CredentialHandler, *controllers.SessionHandler,
//                              *controllers.SessionHub, log.Logger) *khttp.Server
//
//   - outboxtasks.ProvideRunner(*repositories.OutboxRepository, gcpubsub.Publisher, gcpubsub.Config,
//                               outboxcfg.Config, log.Logger) *outboxpublisher.Runner
//
//   - videorequests.ProvideTask(RequestsSubscriber, *repositories.InboxRepository, PipelineRunner,
//                               OutboxEnqueuer, txmanager.Manager, outboxcfg.Config, log.Logger) *videorequests.Task
