package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

// RedisKVRepository 以 Redis 字符串键实现键值存储，条目不设过期时间。
type RedisKVRepository struct {
	client *redis.Client
	prefix string
	log    *log.Helper
}

// NewRedisKVRepository 建立连接并 Ping 校验可用性。
func NewRedisKVRepository(cfg RedisConfig, logger log.Logger) (*RedisKVRepository, func(), error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	helper := log.NewHelper(logger)
	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Warnf("close redis client: %v", err)
		}
	}
	return NewRedisKVRepositoryWithClient(client, cfg.KeyPrefix, logger), cleanup, nil
}

// NewRedisKVRepositoryWithClient 复用已有客户端，调用方负责关闭。
func NewRedisKVRepositoryWithClient(client *redis.Client, prefix string, logger log.Logger) *RedisKVRepository {
	return &RedisKVRepository{client: client, prefix: prefix, log: log.NewHelper(logger)}
}

// Get 读取键值。
func (r *RedisKVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

// Set 写入或覆盖键值。
func (r *RedisKVRepository) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Remove 删除键值。
func (r *RedisKVRepository) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
