package configloader

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Duration 接受 "5s"、"1m30s" 形式的字符串或以秒为单位的数字。
type Duration time.Duration

// UnmarshalJSON 实现 json.Unmarshaler。
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*d = 0
	case float64:
		*d = Duration(v * float64(time.Second))
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %v", raw)
	}
	return nil
}

// Std 返回 time.Duration。
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// bootstrap 对应 configs/config.yaml 的结构。
type bootstrap struct {
	Server        serverFile        `json:"server"`
	Data          dataFile          `json:"data"`
	Takeaways     takeawaysFile     `json:"takeaways"`
	Observability observabilityFile `json:"observability"`
	Messaging     messagingFile     `json:"messaging"`
}

type serverFile struct {
	HTTP struct {
		Network string   `json:"network"`
		Addr    string   `json:"addr"`
		Timeout Duration `json:"timeout"`
	} `json:"http"`
	Handlers struct {
		DefaultTimeout Duration `json:"default_timeout"`
		CommandTimeout Duration `json:"command_timeout"`
		QueryTimeout   Duration `json:"query_timeout"`
	} `json:"handlers"`
	MetadataKeys   []string `json:"metadata_keys"`
	AllowedOrigins []string `json:"allowed_origins"`
}

type dataFile struct {
	Postgres  postgresFile  `json:"postgres"`
	KVBackend string        `json:"kv_backend"`
	Redis     redisFile     `json:"redis"`
	Cassandra cassandraFile `json:"cassandra"`
}

type postgresFile struct {
	DSN                       string   `json:"dsn"`
	MaxOpenConns              int      `json:"max_open_conns"`
	MinOpenConns              int      `json:"min_open_conns"`
	MaxConnLifetime           Duration `json:"max_conn_lifetime"`
	MaxConnIdleTime           Duration `json:"max_conn_idle_time"`
	HealthCheckPeriod         Duration `json:"health_check_period"`
	Schema                    string   `json:"schema"`
	PreparedStatementsEnabled bool     `json:"prepared_statements_enabled"`
	PoolMetricsEnabled        bool     `json:"pool_metrics_enabled"`
	Transaction               struct {
		DefaultIsolation string   `json:"default_isolation"`
		DefaultTimeout   Duration `json:"default_timeout"`
		LockTimeout      Duration `json:"lock_timeout"`
		MaxRetries       int      `json:"max_retries"`
		MetricsEnabled   bool     `json:"metrics_enabled"`
	} `json:"transaction"`
}

type redisFile struct {
	Addr        string   `json:"addr"`
	Password    string   `json:"password"`
	DB          int      `json:"db"`
	KeyPrefix   string   `json:"key_prefix"`
	DialTimeout Duration `json:"dial_timeout"`
}

type cassandraFile struct {
	Hosts    []string `json:"hosts"`
	Keyspace string   `json:"keyspace"`
	Table    string   `json:"table"`
	Timeout  Duration `json:"timeout"`
}

type takeawaysFile struct {
	YouTube struct {
		Endpoint       string   `json:"endpoint"`
		Timeout        Duration `json:"timeout"`
		UserAgent      string   `json:"user_agent"`
		AcceptLanguage string   `json:"accept_language"`
	} `json:"youtube"`
	Gemini struct {
		Endpoint   string   `json:"endpoint"`
		APIVersion string   `json:"api_version"`
		Timeout    Duration `json:"timeout"`
		APIKey     string   `json:"api_key"`
	} `json:"gemini"`
	TakeawaysModel      string   `json:"takeaways_model"`
	ClassificationModel string   `json:"classification_model"`
	PromptVersion       int      `json:"prompt_version"`
	SessionIdleTTL      Duration `json:"session_idle_ttl"`
	Gate                struct {
		MinTabOpen  Duration `json:"min_tab_open"`
		MinPlayback Duration `json:"min_playback"`
		MaxTickGap  Duration `json:"max_tick_gap"`
	} `json:"gate"`
}

type observabilityFile struct {
	GlobalAttributes map[string]string `json:"global_attributes"`
	Tracing          struct {
		Enabled            bool              `json:"enabled"`
		Exporter           string            `json:"exporter"`
		Endpoint           string            `json:"endpoint"`
		Headers            map[string]string `json:"headers"`
		Insecure           bool              `json:"insecure"`
		SamplingRatio      float64           `json:"sampling_ratio"`
		BatchTimeout       Duration          `json:"batch_timeout"`
		ExportTimeout      Duration          `json:"export_timeout"`
		MaxQueueSize       int               `json:"max_queue_size"`
		MaxExportBatchSize int               `json:"max_export_batch_size"`
		Required           bool              `json:"required"`
		Attributes         map[string]string `json:"attributes"`
	} `json:"tracing"`
	Metrics struct {
		Enabled             bool              `json:"enabled"`
		Exporter            string            `json:"exporter"`
		Endpoint            string            `json:"endpoint"`
		Headers             map[string]string `json:"headers"`
		Insecure            bool              `json:"insecure"`
		Interval            Duration          `json:"interval"`
		DisableRuntimeStats bool              `json:"disable_runtime_stats"`
		Required            bool              `json:"required"`
		ResourceAttributes  map[string]string `json:"resource_attributes"`
	} `json:"metrics"`
}

type messagingFile struct {
	Events   *pubsubFile `json:"events"`
	Requests *pubsubFile `json:"requests"`
	Outbox   struct {
		BatchSize      int      `json:"batch_size"`
		TickInterval   Duration `json:"tick_interval"`
		InitialBackoff Duration `json:"initial_backoff"`
		MaxBackoff     Duration `json:"max_backoff"`
		MaxAttempts    int      `json:"max_attempts"`
		PublishTimeout Duration `json:"publish_timeout"`
		Workers        int      `json:"workers"`
		LockTTL        Duration `json:"lock_ttl"`
		LoggingEnabled *bool    `json:"logging_enabled"`
		MetricsEnabled *bool    `json:"metrics_enabled"`
	} `json:"outbox"`
	Inbox struct {
		SourceService  string `json:"source_service"`
		MaxConcurrency int    `json:"max_concurrency"`
		LoggingEnabled *bool  `json:"logging_enabled"`
		MetricsEnabled *bool  `json:"metrics_enabled"`
	} `json:"inbox"`
}

type pubsubFile struct {
	ProjectID           string   `json:"project_id"`
	TopicID             string   `json:"topic_id"`
	SubscriptionID      string   `json:"subscription_id"`
	OrderingKeyEnabled  bool     `json:"ordering_key_enabled"`
	LoggingEnabled      bool     `json:"logging_enabled"`
	MetricsEnabled      bool     `json:"metrics_enabled"`
	EmulatorEndpoint    string   `json:"emulator_endpoint"`
	PublishTimeout      Duration `json:"publish_timeout"`
	ExactlyOnceDelivery bool     `json:"exactly_once_delivery"`
	DeadLetterTopicID   string   `json:"dead_letter_topic_id"`
	Receive             struct {
		NumGoroutines          int      `json:"num_goroutines"`
		MaxOutstandingMessages int      `json:"max_outstanding_messages"`
		MaxOutstandingBytes    int      `json:"max_outstanding_bytes"`
		MaxExtension           Duration `json:"max_extension"`
		MaxExtensionPeriod     Duration `json:"max_extension_period"`
	} `json:"receive"`
}
