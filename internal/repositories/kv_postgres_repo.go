package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories/kvdb"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresKVRepository 基于 takeaways.kv_entries 表实现键值存储。
type PostgresKVRepository struct {
	db      *pgxpool.Pool
	queries *kvdb.Queries
	log     *log.Helper
}

// NewPostgresKVRepository 构造仓储实例。
func NewPostgresKVRepository(db *pgxpool.Pool, logger log.Logger) *PostgresKVRepository {
	return &PostgresKVRepository{
		db:      db,
		queries: kvdb.New(db),
		log:     log.NewHelper(logger),
	}
}

// Get 读取键值。
func (r *PostgresKVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row, err := r.queries.GetKVEntry(ctx, key)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get kv entry: %w", err)
	}
	return row.Value, true, nil
}

// Set 写入或覆盖键值。
func (r *PostgresKVRepository) Set(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	if err := r.queries.UpsertKVEntry(ctx, kvdb.UpsertKVEntryParams{Key: key, Value: value}); err != nil {
		return fmt.Errorf("upsert kv entry: %w", err)
	}
	return nil
}

// Remove 删除键值。
func (r *PostgresKVRepository) Remove(ctx context.Context, key string) error {
	affected, err := r.queries.DeleteKVEntry(ctx, key)
	if err != nil {
		return fmt.Errorf("delete kv entry: %w", err)
	}
	if affected == 0 {
		r.log.WithContext(ctx).Debugf("kv entry already absent: key=%s", key)
	}
	return nil
}
