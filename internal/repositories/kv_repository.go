package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KVBackend 标识键值存储的后端实现。
type KVBackend string

const (
	KVBackendPostgres  KVBackend = "postgres"
	KVBackendRedis     KVBackend = "redis"
	KVBackendCassandra KVBackend = "cassandra"
)

var (
	// ErrEmptyKey 表示键为空。
	ErrEmptyKey = errors.New("kv: empty key")
	// ErrUnsupportedKVBackend 表示配置了未知的后端。
	ErrUnsupportedKVBackend = errors.New("kv: unsupported backend")
)

// KVConfig 描述键值存储的后端选择与连接参数。
type KVConfig struct {
	Backend   KVBackend
	Redis     RedisConfig
	Cassandra CassandraConfig
}

// RedisConfig 是 Redis 后端的连接参数。
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

// CassandraConfig 是 Cassandra 后端的连接参数。
type CassandraConfig struct {
	Hosts    []string
	Keyspace string
	Table    string
	Timeout  time.Duration
}

// Normalize 填充默认值。
func (c KVConfig) Normalize() KVConfig {
	c.Backend = KVBackend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if c.Backend == "" {
		c.Backend = KVBackendPostgres
	}
	if strings.TrimSpace(c.Redis.Addr) == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.DialTimeout <= 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if len(c.Cassandra.Hosts) == 0 {
		c.Cassandra.Hosts = []string{"localhost"}
	}
	if strings.TrimSpace(c.Cassandra.Keyspace) == "" {
		c.Cassandra.Keyspace = "takeaways"
	}
	if strings.TrimSpace(c.Cassandra.Table) == "" {
		c.Cassandra.Table = "kv_entries"
	}
	if c.Cassandra.Timeout <= 0 {
		c.Cassandra.Timeout = 10 * time.Second
	}
	return c
}

type kvBackendStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

var (
	_ kvBackendStore = (*PostgresKVRepository)(nil)
	_ kvBackendStore = (*RedisKVRepository)(nil)
	_ kvBackendStore = (*CassandraKVRepository)(nil)
)

// KeyValueRepository 是缓存与凭证共用的键值存储入口，按配置委托到具体后端。
type KeyValueRepository struct {
	backend KVBackend
	store   kvBackendStore
	log     *log.Helper
}

// NewKeyValueRepository 根据 cfg.Backend 构造后端。返回的 cleanup 负责关闭后端连接。
// Postgres 后端复用服务的连接池，因此 cleanup 为空操作。
func NewKeyValueRepository(cfg KVConfig, db *pgxpool.Pool, logger log.Logger) (*KeyValueRepository, func(), error) {
	cfg = cfg.Normalize()
	helper := log.NewHelper(logger)

	var (
		store   kvBackendStore
		cleanup = func() {}
		err     error
	)
	switch cfg.Backend {
	case KVBackendPostgres:
		if db == nil {
			return nil, nil, fmt.Errorf("kv: postgres backend requires a database pool")
		}
		store = NewPostgresKVRepository(db, logger)
	case KVBackendRedis:
		store, cleanup, err = NewRedisKVRepository(cfg.Redis, logger)
	case KVBackendCassandra:
		store, cleanup, err = NewCassandraKVRepository(cfg.Cassandra, logger)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedKVBackend, cfg.Backend)
	}
	if err != nil {
		return nil, nil, err
	}
	helper.Infof("kv store ready: backend=%s", cfg.Backend)
	return &KeyValueRepository{backend: cfg.Backend, store: store, log: helper}, cleanup, nil
}

// Backend 返回当前使用的后端。
func (r *KeyValueRepository) Backend() KVBackend {
	return r.backend
}

// Get 读取键值；键不存在时返回 ok=false 且无错误。
func (r *KeyValueRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if strings.TrimSpace(key) == "" {
		return nil, false, ErrEmptyKey
	}
	value, ok, err := r.store.Get(ctx, key)
	if err != nil {
		r.log.WithContext(ctx).Errorw("msg", "kv get failed", "backend", r.backend, "key", key, "error", err)
		return nil, false, err
	}
	return value, ok, nil
}

// Set 写入或覆盖键值。
func (r *KeyValueRepository) Set(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if err := r.store.Set(ctx, key, value); err != nil {
		r.log.WithContext(ctx).Errorw("msg", "kv set failed", "backend", r.backend, "key", key, "error", err)
		return err
	}
	return nil
}

// Remove 删除键值；键不存在不视为错误。
func (r *KeyValueRepository) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if err := r.store.Remove(ctx, key); err != nil {
		r.log.WithContext(ctx).Errorw("msg", "kv remove failed", "backend", r.backend, "key", key, "error", err)
		return err
	}
	return nil
}
