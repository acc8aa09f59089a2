package configloader

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultHTTPAddr       = ":8080"
	defaultHandlerTimeout = 10 * time.Second
	defaultCommandTimeout = 90 * time.Second
	defaultQueryTimeout   = 5 * time.Second
	defaultSchema         = "takeaways"
)

var supportedKVBackends = map[string]struct{}{
	"postgres":  {},
	"redis":     {},
	"cassandra": {},
}

func fromBootstrap(b *bootstrap) RuntimeConfig {
	if b == nil {
		return RuntimeConfig{}
	}
	return RuntimeConfig{
		Server:        serverFromFile(b.Server),
		Database:      databaseFromFile(b.Data.Postgres),
		KV:            kvFromFile(b.Data),
		Takeaways:     takeawaysFromFile(b.Takeaways),
		Observability: observabilityFromFile(b.Observability),
		Messaging:     messagingFromFile(b.Messaging, b.Data.Postgres),
	}
}

func serverFromFile(s serverFile) ServerConfig {
	return ServerConfig{
		Network: s.HTTP.Network,
		Address: s.HTTP.Addr,
		Timeout: s.HTTP.Timeout.Std(),
		Handlers: HandlerTimeoutConfig{
			Default: s.Handlers.DefaultTimeout.Std(),
			Command: s.Handlers.CommandTimeout.Std(),
			Query:   s.Handlers.QueryTimeout.Std(),
		},
		MetadataKeys:   append([]string(nil), s.MetadataKeys...),
		AllowedOrigins: append([]string(nil), s.AllowedOrigins...),
	}
}

func databaseFromFile(pg postgresFile) DatabaseConfig {
	return DatabaseConfig{
		DSN:               pg.DSN,
		MaxOpenConns:      pg.MaxOpenConns,
		MinOpenConns:      pg.MinOpenConns,
		MaxConnLifetime:   pg.MaxConnLifetime.Std(),
		MaxConnIdleTime:   pg.MaxConnIdleTime.Std(),
		HealthCheckPeriod: pg.HealthCheckPeriod.Std(),
		Schema:            pg.Schema,
		PreparedStmts:     pg.PreparedStatementsEnabled,
		PoolMetrics:       pg.PoolMetricsEnabled,
		Transaction: TransactionConfig{
			DefaultIsolation: pg.Transaction.DefaultIsolation,
			DefaultTimeout:   pg.Transaction.DefaultTimeout.Std(),
			LockTimeout:      pg.Transaction.LockTimeout.Std(),
			MaxRetries:       pg.Transaction.MaxRetries,
			MetricsEnabled:   pg.Transaction.MetricsEnabled,
		},
	}
}

func kvFromFile(d dataFile) KVStoreConfig {
	return KVStoreConfig{
		Backend: d.KVBackend,
		Redis: RedisConfig{
			Addr:        d.Redis.Addr,
			Password:    d.Redis.Password,
			DB:          d.Redis.DB,
			KeyPrefix:   d.Redis.KeyPrefix,
			DialTimeout: d.Redis.DialTimeout.Std(),
		},
		Cassandra: CassandraConfig{
			Hosts:    append([]string(nil), d.Cassandra.Hosts...),
			Keyspace: d.Cassandra.Keyspace,
			Table:    d.Cassandra.Table,
			Timeout:  d.Cassandra.Timeout.Std(),
		},
	}
}

func takeawaysFromFile(t takeawaysFile) TakeawaysConfig {
	return TakeawaysConfig{
		YouTube: YouTubeConfig{
			Endpoint:       t.YouTube.Endpoint,
			Timeout:        t.YouTube.Timeout.Std(),
			UserAgent:      t.YouTube.UserAgent,
			AcceptLanguage: t.YouTube.AcceptLanguage,
		},
		Gemini: GeminiConfig{
			Endpoint:   t.Gemini.Endpoint,
			APIVersion: t.Gemini.APIVersion,
			Timeout:    t.Gemini.Timeout.Std(),
			APIKey:     t.Gemini.APIKey,
		},
		TakeawaysModel:      t.TakeawaysModel,
		ClassificationModel: t.ClassificationModel,
		PromptVersion:       t.PromptVersion,
		SessionIdleTTL:      t.SessionIdleTTL.Std(),
		Gate: GateConfig{
			MinTabOpen:  t.Gate.MinTabOpen.Std(),
			MinPlayback: t.Gate.MinPlayback.Std(),
			MaxTickGap:  t.Gate.MaxTickGap.Std(),
		},
	}
}

func observabilityFromFile(obs observabilityFile) ObservabilityConfig {
	return ObservabilityConfig{
		GlobalAttributes: mapCopy(obs.GlobalAttributes),
		Tracing: TracingConfig{
			Enabled:            obs.Tracing.Enabled,
			Exporter:           obs.Tracing.Exporter,
			Endpoint:           obs.Tracing.Endpoint,
			Headers:            mapCopy(obs.Tracing.Headers),
			Insecure:           obs.Tracing.Insecure,
			SamplingRatio:      obs.Tracing.SamplingRatio,
			BatchTimeout:       obs.Tracing.BatchTimeout.Std(),
			ExportTimeout:      obs.Tracing.ExportTimeout.Std(),
			MaxQueueSize:       obs.Tracing.MaxQueueSize,
			MaxExportBatchSize: obs.Tracing.MaxExportBatchSize,
			Required:           obs.Tracing.Required,
			Attributes:         mapCopy(obs.Tracing.Attributes),
		},
		Metrics: MetricsConfig{
			Enabled:             obs.Metrics.Enabled,
			Exporter:            obs.Metrics.Exporter,
			Endpoint:            obs.Metrics.Endpoint,
			Headers:             mapCopy(obs.Metrics.Headers),
			Insecure:            obs.Metrics.Insecure,
			Interval:            obs.Metrics.Interval.Std(),
			DisableRuntimeStats: obs.Metrics.DisableRuntimeStats,
			Required:            obs.Metrics.Required,
			ResourceAttributes:  mapCopy(obs.Metrics.ResourceAttributes),
		},
	}
}

func messagingFromFile(msg messagingFile, pg postgresFile) MessagingConfig {
	return MessagingConfig{
		Schema:   pg.Schema,
		Events:   pubsubFromFile(msg.Events),
		Requests: pubsubFromFile(msg.Requests),
		Outbox: OutboxPublisherConfig{
			BatchSize:      msg.Outbox.BatchSize,
			TickInterval:   msg.Outbox.TickInterval.Std(),
			InitialBackoff: msg.Outbox.InitialBackoff.Std(),
			MaxBackoff:     msg.Outbox.MaxBackoff.Std(),
			MaxAttempts:    msg.Outbox.MaxAttempts,
			PublishTimeout: msg.Outbox.PublishTimeout.Std(),
			Workers:        msg.Outbox.Workers,
			LockTTL:        msg.Outbox.LockTTL.Std(),
			LoggingEnabled: msg.Outbox.LoggingEnabled,
			MetricsEnabled: msg.Outbox.MetricsEnabled,
		},
		Inbox: InboxConfig{
			SourceService:  msg.Inbox.SourceService,
			MaxConcurrency: msg.Inbox.MaxConcurrency,
			LoggingEnabled: msg.Inbox.LoggingEnabled,
			MetricsEnabled: msg.Inbox.MetricsEnabled,
		},
	}
}

func pubsubFromFile(pb *pubsubFile) PubSubConfig {
	if pb == nil {
		return PubSubConfig{}
	}
	return PubSubConfig{
		ProjectID:           pb.ProjectID,
		TopicID:             pb.TopicID,
		SubscriptionID:      pb.SubscriptionID,
		OrderingKeyEnabled:  pb.OrderingKeyEnabled,
		LoggingEnabled:      pb.LoggingEnabled,
		MetricsEnabled:      pb.MetricsEnabled,
		EmulatorEndpoint:    pb.EmulatorEndpoint,
		PublishTimeout:      pb.PublishTimeout.Std(),
		ExactlyOnceDelivery: pb.ExactlyOnceDelivery,
		DeadLetterTopicID:   pb.DeadLetterTopicID,
		Receive: PubSubReceiveConfig{
			NumGoroutines:          pb.Receive.NumGoroutines,
			MaxOutstandingMessages: pb.Receive.MaxOutstandingMessages,
			MaxOutstandingBytes:    pb.Receive.MaxOutstandingBytes,
			MaxExtension:           pb.Receive.MaxExtension.Std(),
			MaxExtensionPeriod:     pb.Receive.MaxExtensionPeriod.Std(),
		},
	}
}

func fillDefaults(cfg *RuntimeConfig) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = defaultHTTPAddr
	}
	h := &cfg.Server.Handlers
	if h.Default <= 0 {
		h.Default = defaultHandlerTimeout
	}
	if h.Command <= 0 {
		h.Command = defaultCommandTimeout
	}
	if h.Query <= 0 {
		h.Query = firstNonZero(defaultQueryTimeout, h.Default)
	}
	if len(cfg.Server.MetadataKeys) == 0 {
		cfg.Server.MetadataKeys = []string{
			"x-takeaways-session",
			"x-md-",
			"x-md-idempotency-key",
		}
	}
	if cfg.Database.Schema == "" {
		cfg.Database.Schema = defaultSchema
	}
	if cfg.Messaging.Schema == "" {
		cfg.Messaging.Schema = cfg.Database.Schema
	}
	cfg.KV.Backend = strings.ToLower(strings.TrimSpace(cfg.KV.Backend))
	if cfg.KV.Backend == "" {
		cfg.KV.Backend = "postgres"
	}
}

// validate 检查无法通过默认值补齐的必填项。
func validate(cfg RuntimeConfig) error {
	var problems []string
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		problems = append(problems, "data.postgres.dsn is required")
	}
	if cfg.Database.MaxOpenConns < 0 || cfg.Database.MinOpenConns < 0 {
		problems = append(problems, "data.postgres connection limits must be non-negative")
	}
	if cfg.Database.MaxOpenConns > 0 && cfg.Database.MinOpenConns > cfg.Database.MaxOpenConns {
		problems = append(problems, "data.postgres.min_open_conns exceeds max_open_conns")
	}
	if _, ok := supportedKVBackends[cfg.KV.Backend]; !ok {
		problems = append(problems, fmt.Sprintf("data.kv_backend %q is not supported", cfg.KV.Backend))
	}
	if cfg.Takeaways.PromptVersion < 0 {
		problems = append(problems, "takeaways.prompt_version must be non-negative")
	}
	if cfg.Messaging.Requests.ProjectID != "" && cfg.Messaging.Requests.SubscriptionID == "" {
		problems = append(problems, "messaging.requests.subscription_id is required when project_id is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("validate config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func mapCopy(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func firstNonZero(durations ...time.Duration) time.Duration {
	for _, d := range durations {
		if d > 0 {
			return d
		}
	}
	return 0
}
