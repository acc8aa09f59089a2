package repositories_test

import (
	"context"
	"testing"

	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories/kvdb"
	"github.com/stretchr/testify/require"
)

func TestKeyValueRepository_PostgresLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := newMigratedPool(ctx, t)

	repo, cleanup, err := repositories.NewKeyValueRepository(repositories.KVConfig{}, pool, discardLogger())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	require.Equal(t, repositories.KVBackendPostgres, repo.Backend())

	_, ok, err := repo.Get(ctx, "apiKey")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, repo.Set(ctx, "apiKey", []byte("first")))
	require.NoError(t, repo.Set(ctx, "apiKey", []byte("second")))

	value, ok, err := repo.Get(ctx, "apiKey")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", string(value))

	row, err := kvdb.New(pool).GetKVEntry(ctx, "apiKey")
	require.NoError(t, err)
	require.True(t, row.UpdatedAt.Valid)
	require.False(t, row.UpdatedAt.Time.Before(row.CreatedAt.Time))

	require.NoError(t, repo.Remove(ctx, "apiKey"))
	require.NoError(t, repo.Remove(ctx, "apiKey"), "removing an absent key is not an error")

	_, ok, err = repo.Get(ctx, "apiKey")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKeyValueRepository_PostgresStoresEmptyValue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool := newMigratedPool(ctx, t)

	repo := repositories.NewPostgresKVRepository(pool, discardLogger())
	require.NoError(t, repo.Set(ctx, "takeaways_index_abc", nil))

	value, ok, err := repo.Get(ctx, "takeaways_index_abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Empty(t, value)
}

func TestKeyValueRepository_RedisLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	addr, terminate := startRedis(ctx, t)
	t.Cleanup(terminate)

	cfg := repositories.KVConfig{
		Backend: "Redis",
		Redis:   repositories.RedisConfig{Addr: addr, KeyPrefix: "takeaways:"},
	}
	repo, cleanup, err := repositories.NewKeyValueRepository(cfg, nil, discardLogger())
	require.NoError(t, err)
	t.Cleanup(cleanup)
	require.Equal(t, repositories.KVBackendRedis, repo.Backend())

	_, ok, err := repo.Get(ctx, "takeaways_dQw4w9WgXcQ_gemini-2.0-flash_v1")
	require.NoError(t, err)
	require.False(t, ok)

	payload := []byte(`{"id":"set-1","takeaways":[]}`)
	require.NoError(t, repo.Set(ctx, "takeaways_dQw4w9WgXcQ_gemini-2.0-flash_v1", payload))

	value, ok, err := repo.Get(ctx, "takeaways_dQw4w9WgXcQ_gemini-2.0-flash_v1")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, string(payload), string(value))

	require.NoError(t, repo.Remove(ctx, "takeaways_dQw4w9WgXcQ_gemini-2.0-flash_v1"))
	_, ok, err = repo.Get(ctx, "takeaways_dQw4w9WgXcQ_gemini-2.0-flash_v1")
	require.NoError(t, err)
	require.False(t, ok)
}
