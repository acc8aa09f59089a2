package configloader

import (
	"context"
	"strings"

	"github.com/bionicotaku/lingo-services-takeaways/internal/clients"
	"github.com/bionicotaku/lingo-services-takeaways/internal/controllers"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"

	"github.com/bionicotaku/lingo-utils/gclog"
	"github.com/bionicotaku/lingo-utils/gcpubsub"
	obswire "github.com/bionicotaku/lingo-utils/observability"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/bionicotaku/lingo-utils/pgxpoolx"
	txconfig "github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// ProviderSet 暴露配置加载相关的依赖注入入口。
var ProviderSet = wire.NewSet(
	LoadRuntimeConfig,
	ProvideServiceInfo,
	ProvideLoggerConfig,
	ProvideObservabilityConfig,
	ProvideObservabilityInfo,
	ProvideServerConfig,
	ProvideDatabaseConfig,
	ProvidePgxConfig,
	ProvideTxConfig,
	ProvideKVConfig,
	ProvideYouTubeConfig,
	ProvideGeminiConfig,
	ProvidePipelineConfig,
	ProvideMessagingConfig,
	ProvidePubSubConfig,
	ProvidePubSubDependencies,
	ProvideRequestsSubscriber,
	ProvideOutboxConfig,
	ProvideHandlerTimeouts,
	ProvideSessionHubConfig,
)

// RequestsSubscriber 订阅 NEW_VIDEO 命令。与事件发布使用各自独立的 Pub/Sub 组件。
type RequestsSubscriber gcpubsub.Subscriber

// LoadRuntimeConfig 调用 Load 并供 Wire 使用。
func LoadRuntimeConfig(params Params) (RuntimeConfig, error) {
	return Load(params)
}

// ProvideServiceInfo 返回服务元信息。
func ProvideServiceInfo(cfg RuntimeConfig) ServiceInfo {
	return cfg.Service
}

// ProvideLoggerConfig 构造 gclog.Config。
func ProvideLoggerConfig(info ServiceInfo) gclog.Config {
	return gclog.Config{
		Service:              info.Name,
		Version:              info.Version,
		Environment:          info.Environment,
		InstanceID:           info.InstanceID,
		EnableSourceLocation: true,
		StaticLabels: map[string]string{
			"service.id": info.InstanceID,
		},
	}
}

// ProvideObservabilityConfig 转换为 obswire.ObservabilityConfig；未配置的部分保持为 nil。
func ProvideObservabilityConfig(cfg RuntimeConfig) obswire.ObservabilityConfig {
	tracing := cfg.Observability.Tracing
	metrics := cfg.Observability.Metrics

	var tracingCfg *obswire.TracingConfig
	if tracing.Enabled || tracing.Endpoint != "" || tracing.Exporter != "" {
		tracingCfg = &obswire.TracingConfig{
			Enabled:            tracing.Enabled,
			Exporter:           tracing.Exporter,
			Endpoint:           tracing.Endpoint,
			Headers:            tracing.Headers,
			Insecure:           tracing.Insecure,
			SamplingRatio:      tracing.SamplingRatio,
			Attributes:         tracing.Attributes,
			BatchTimeout:       tracing.BatchTimeout,
			ExportTimeout:      tracing.ExportTimeout,
			MaxQueueSize:       tracing.MaxQueueSize,
			MaxExportBatchSize: tracing.MaxExportBatchSize,
			Required:           tracing.Required,
		}
	}

	var metricsCfg *obswire.MetricsConfig
	if metrics.Enabled || metrics.Exporter != "" || metrics.Endpoint != "" {
		metricsCfg = &obswire.MetricsConfig{
			Enabled:             metrics.Enabled,
			Exporter:            metrics.Exporter,
			Endpoint:            metrics.Endpoint,
			Headers:             metrics.Headers,
			Insecure:            metrics.Insecure,
			Interval:            metrics.Interval,
			ResourceAttributes:  metrics.ResourceAttributes,
			DisableRuntimeStats: metrics.DisableRuntimeStats,
			Required:            metrics.Required,
		}
	}

	return obswire.ObservabilityConfig{
		Tracing:          tracingCfg,
		Metrics:          metricsCfg,
		GlobalAttributes: cfg.Observability.GlobalAttributes,
	}
}

// ProvideObservabilityInfo 转换为 obswire.ServiceInfo。
func ProvideObservabilityInfo(info ServiceInfo) obswire.ServiceInfo {
	return obswire.ServiceInfo{
		Name:        info.Name,
		Version:     info.Version,
		Environment: info.Environment,
	}
}

// ProvideServerConfig 返回 HTTP 服务配置。
func ProvideServerConfig(cfg RuntimeConfig) ServerConfig {
	return cfg.Server
}

// ProvideDatabaseConfig 返回数据库配置。
func ProvideDatabaseConfig(cfg RuntimeConfig) DatabaseConfig {
	return cfg.Database
}

// ProvidePgxConfig 将 DatabaseConfig 转换为 pgxpoolx.Config。
func ProvidePgxConfig(dbCfg DatabaseConfig) pgxpoolx.Config {
	return pgxpoolx.Config{
		DSN:                dbCfg.DSN,
		MaxConns:           int32(dbCfg.MaxOpenConns),
		MinConns:           int32(dbCfg.MinOpenConns),
		MaxConnLifetime:    dbCfg.MaxConnLifetime,
		MaxConnIdleTime:    dbCfg.MaxConnIdleTime,
		HealthCheckPeriod:  dbCfg.HealthCheckPeriod,
		Schema:             dbCfg.Schema,
		EnablePreparedStmt: boolPtr(dbCfg.PreparedStmts),
		MetricsEnabled:     boolPtr(dbCfg.PoolMetrics),
	}
}

// ProvideTxConfig 构造 txmanager.Config。
func ProvideTxConfig(cfg RuntimeConfig) txconfig.Config {
	tx := cfg.Database.Transaction
	return txconfig.Config{
		DefaultIsolation: tx.DefaultIsolation,
		DefaultTimeout:   tx.DefaultTimeout,
		LockTimeout:      tx.LockTimeout,
		MaxRetries:       tx.MaxRetries,
		MetricsEnabled:   boolPtr(tx.MetricsEnabled),
	}
}

// ProvideKVConfig 构造键值存储后端配置。
func ProvideKVConfig(cfg RuntimeConfig) repositories.KVConfig {
	kv := cfg.KV
	return repositories.KVConfig{
		Backend: repositories.KVBackend(kv.Backend),
		Redis: repositories.RedisConfig{
			Addr:        kv.Redis.Addr,
			Password:    kv.Redis.Password,
			DB:          kv.Redis.DB,
			KeyPrefix:   kv.Redis.KeyPrefix,
			DialTimeout: kv.Redis.DialTimeout,
		},
		Cassandra: repositories.CassandraConfig{
			Hosts:    kv.Cassandra.Hosts,
			Keyspace: kv.Cassandra.Keyspace,
			Table:    kv.Cassandra.Table,
			Timeout:  kv.Cassandra.Timeout,
		},
	}.Normalize()
}

// ProvideYouTubeConfig 返回播放页抓取配置。
func ProvideYouTubeConfig(cfg RuntimeConfig) clients.YouTubeConfig {
	yt := cfg.Takeaways.YouTube
	return clients.YouTubeConfig{
		Endpoint:       yt.Endpoint,
		Timeout:        yt.Timeout,
		UserAgent:      yt.UserAgent,
		AcceptLanguage: yt.AcceptLanguage,
	}
}

// ProvideGeminiConfig 返回生成式模型客户端配置。
func ProvideGeminiConfig(cfg RuntimeConfig) clients.GeminiConfig {
	g := cfg.Takeaways.Gemini
	return clients.GeminiConfig{
		Endpoint:   g.Endpoint,
		APIVersion: g.APIVersion,
		Timeout:    g.Timeout,
	}
}

// ProvidePipelineConfig 返回流水线配置。
func ProvidePipelineConfig(cfg RuntimeConfig) services.PipelineConfig {
	t := cfg.Takeaways
	return services.PipelineConfig{
		TakeawaysModel:      t.TakeawaysModel,
		ClassificationModel: t.ClassificationModel,
		PromptVersion:       t.PromptVersion,
		DefaultAPIKey:       strings.TrimSpace(t.Gemini.APIKey),
		SessionIdleTTL:      t.SessionIdleTTL,
		Gate: services.GateConfig{
			MinTabOpen:  t.Gate.MinTabOpen,
			MinPlayback: t.Gate.MinPlayback,
			MaxTickGap:  t.Gate.MaxTickGap,
		},
	}.Normalize()
}

// ProvideHandlerTimeouts 将 Server 层配置映射为控制层使用的超时策略。
func ProvideHandlerTimeouts(cfg RuntimeConfig) controllers.HandlerTimeouts {
	handlers := cfg.Server.Handlers
	return controllers.HandlerTimeouts{
		Default: handlers.Default,
		Command: handlers.Command,
		Query:   handlers.Query,
	}
}

// ProvideMessagingConfig 返回消息相关配置。
func ProvideMessagingConfig(cfg RuntimeConfig) MessagingConfig {
	return cfg.Messaging
}

// ProvidePubSubConfig 返回会话事件发布主题的 gcpubsub.Config。
func ProvidePubSubConfig(msg MessagingConfig) gcpubsub.Config {
	return toGCPubSubConfig(msg.Events)
}

// ProvideRequestsSubscriber 为 NEW_VIDEO 命令订阅构造独立组件；未配置订阅时返回 nil。
func ProvideRequestsSubscriber(ctx context.Context, msg MessagingConfig, deps gcpubsub.Dependencies) (RequestsSubscriber, func(), error) {
	cfg := toGCPubSubConfig(msg.Requests)
	if cfg.ProjectID == "" || cfg.SubscriptionID == "" {
		return nil, func() {}, nil
	}
	component, cleanup, err := gcpubsub.NewComponent(ctx, cfg, deps)
	if err != nil {
		return nil, nil, err
	}
	return gcpubsub.ProvideSubscriber(component), cleanup, nil
}

func toGCPubSubConfig(cfg PubSubConfig) gcpubsub.Config {
	if cfg.ProjectID == "" {
		return gcpubsub.Config{}
	}
	result := gcpubsub.Config{
		ProjectID:           cfg.ProjectID,
		TopicID:             cfg.TopicID,
		SubscriptionID:      cfg.SubscriptionID,
		PublishTimeout:      cfg.PublishTimeout,
		OrderingKeyEnabled:  boolPtr(cfg.OrderingKeyEnabled),
		EnableLogging:       boolPtr(cfg.LoggingEnabled),
		EnableMetrics:       boolPtr(cfg.MetricsEnabled),
		EmulatorEndpoint:    cfg.EmulatorEndpoint,
		ExactlyOnceDelivery: cfg.ExactlyOnceDelivery,
		Receive: gcpubsub.ReceiveConfig{
			NumGoroutines:          cfg.Receive.NumGoroutines,
			MaxOutstandingMessages: cfg.Receive.MaxOutstandingMessages,
			MaxOutstandingBytes:    cfg.Receive.MaxOutstandingBytes,
			MaxExtension:           cfg.Receive.MaxExtension,
			MaxExtensionPeriod:     cfg.Receive.MaxExtensionPeriod,
		},
	}
	return result.Normalize()
}

// ProvidePubSubDependencies 注入 Pub/Sub 依赖。
func ProvidePubSubDependencies(logger log.Logger) gcpubsub.Dependencies {
	return gcpubsub.Dependencies{Logger: logger}
}

// ProvideOutboxConfig 构造 outboxcfg.Config。配置非法时返回错误，阻止启动。
func ProvideOutboxConfig(msg MessagingConfig) (outboxcfg.Config, error) {
	cfg := outboxcfg.Config{
		Schema: msg.Schema,
		Publisher: outboxcfg.PublisherConfig{
			BatchSize:      msg.Outbox.BatchSize,
			TickInterval:   msg.Outbox.TickInterval,
			InitialBackoff: msg.Outbox.InitialBackoff,
			MaxBackoff:     msg.Outbox.MaxBackoff,
			MaxAttempts:    msg.Outbox.MaxAttempts,
			PublishTimeout: msg.Outbox.PublishTimeout,
			Workers:        msg.Outbox.Workers,
			LockTTL:        msg.Outbox.LockTTL,
			LoggingEnabled: msg.Outbox.LoggingEnabled,
			MetricsEnabled: msg.Outbox.MetricsEnabled,
		},
		Inbox: outboxcfg.InboxConfig{
			SourceService:  msg.Inbox.SourceService,
			MaxConcurrency: msg.Inbox.MaxConcurrency,
			LoggingEnabled: msg.Inbox.LoggingEnabled,
			MetricsEnabled: msg.Inbox.MetricsEnabled,
		},
	}
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return outboxcfg.Config{}, err
	}
	return cfg, nil
}

func boolPtr(v bool) *bool {
	return &v
}

// ProvideSessionHubConfig 暴露 WebSocket 握手允许的来源。
func ProvideSessionHubConfig(cfg RuntimeConfig) controllers.SessionHubConfig {
	return controllers.SessionHubConfig{AllowedOrigins: append([]string(nil), cfg.Server.AllowedOrigins...)}
}
