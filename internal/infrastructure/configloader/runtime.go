// Package configloader 提供配置加载与归一化能力，供 Wire 装配使用。
package configloader

import "time"

// RuntimeConfig 聚合应用在运行期所需的配置片段。
type RuntimeConfig struct {
	Service       ServiceInfo
	Server        ServerConfig
	Database      DatabaseConfig
	KV            KVStoreConfig
	Takeaways     TakeawaysConfig
	Observability ObservabilityConfig
	Messaging     MessagingConfig
}

// ServiceInfo 描述服务标识与运行环境。
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
	InstanceID  string
}

// ServerConfig 收敛入站 HTTP 服务的网络与超时配置。
type ServerConfig struct {
	Network        string
	Address        string
	Timeout        time.Duration
	Handlers       HandlerTimeoutConfig
	MetadataKeys   []string
	AllowedOrigins []string
}

// HandlerTimeoutConfig 定义不同类型 Handler 的超时策略。
// Command 覆盖同步执行整条流水线的请求，通常远大于 Query。
type HandlerTimeoutConfig struct {
	Default time.Duration
	Command time.Duration
	Query   time.Duration
}

// DatabaseConfig 包含 PostgreSQL 连接池及事务默认值。
type DatabaseConfig struct {
	DSN               string
	MaxOpenConns      int
	MinOpenConns      int
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	Schema            string
	PreparedStmts     bool
	PoolMetrics       bool
	Transaction       TransactionConfig
}

// TransactionConfig 指定事务默认隔离级别与超时策略。
type TransactionConfig struct {
	DefaultIsolation string
	DefaultTimeout   time.Duration
	LockTimeout      time.Duration
	MaxRetries       int
	MetricsEnabled   bool
}

// KVStoreConfig 选择要点缓存与凭证的存储后端。
type KVStoreConfig struct {
	Backend   string
	Redis     RedisConfig
	Cassandra CassandraConfig
}

// RedisConfig 是 Redis 后端参数。
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// CassandraConfig 是 Cassandra 后端参数。
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Table    string
	Timeout  time.Duration
}

// TakeawaysConfig 汇总上游客户端与流水线参数。
type TakeawaysConfig struct {
	YouTube             YouTubeConfig
	Gemini              GeminiConfig
	TakeawaysModel      string
	ClassificationModel string
	PromptVersion       int
	SessionIdleTTL      time.Duration
	Gate                GateConfig
}

// YouTubeConfig 描述播放页抓取参数。
type YouTubeConfig struct {
	Endpoint       string
	Timeout        time.Duration
	UserAgent      string
	AcceptLanguage string
}

// GeminiConfig 描述生成式模型 REST 接口参数。APIKey 为未持久化凭证时的默认值。
type GeminiConfig struct {
	Endpoint   string
	APIVersion string
	Timeout    time.Duration
	APIKey     string
}

// GateConfig 是自动触发生成的观看门槛。
type GateConfig struct {
	MinTabOpen  time.Duration
	MinPlayback time.Duration
	MaxTickGap  time.Duration
}

// ObservabilityConfig 聚合 tracing 与 metrics 的配置。
type ObservabilityConfig struct {
	GlobalAttributes map[string]string
	Tracing          TracingConfig
	Metrics          MetricsConfig
}

// TracingConfig 描述 OpenTelemetry 追踪导出的行为。
type TracingConfig struct {
	Enabled            bool
	Exporter           string
	Endpoint           string
	Headers            map[string]string
	Insecure           bool
	SamplingRatio      float64
	BatchTimeout       time.Duration
	ExportTimeout      time.Duration
	MaxQueueSize       int
	MaxExportBatchSize int
	Required           bool
	Attributes         map[string]string
}

// MetricsConfig 描述 OpenTelemetry 指标导出的行为。
type MetricsConfig struct {
	Enabled             bool
	Exporter            string
	Endpoint            string
	Headers             map[string]string
	Insecure            bool
	Interval            time.Duration
	DisableRuntimeStats bool
	Required            bool
	ResourceAttributes  map[string]string
}

// MessagingConfig 汇总消息系统相关配置。
// Events 为会话事件的发布主题，Requests 为 NEW_VIDEO 命令的订阅。
type MessagingConfig struct {
	Schema   string
	Events   PubSubConfig
	Requests PubSubConfig
	Outbox   OutboxPublisherConfig
	Inbox    InboxConfig
}

// PubSubConfig 提供与 GCP Pub/Sub 兼容的设置。
type PubSubConfig struct {
	ProjectID           string
	TopicID             string
	SubscriptionID      string
	OrderingKeyEnabled  bool
	LoggingEnabled      bool
	MetricsEnabled      bool
	EmulatorEndpoint    string
	PublishTimeout      time.Duration
	ExactlyOnceDelivery bool
	DeadLetterTopicID   string
	Receive             PubSubReceiveConfig
}

// PubSubReceiveConfig 控制订阅者拉取行为。
type PubSubReceiveConfig struct {
	NumGoroutines          int
	MaxOutstandingMessages int
	MaxOutstandingBytes    int
	MaxExtension           time.Duration
	MaxExtensionPeriod     time.Duration
}

// OutboxPublisherConfig 配置 Outbox 发布器的运行参数。
type OutboxPublisherConfig struct {
	BatchSize      int
	TickInterval   time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int
	PublishTimeout time.Duration
	Workers        int
	LockTTL        time.Duration
	LoggingEnabled *bool
	MetricsEnabled *bool
}

// InboxConfig 配置 Inbox 消费者的行为。
type InboxConfig struct {
	SourceService  string
	MaxConcurrency int
	LoggingEnabled *bool
	MetricsEnabled *bool
}
