package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/stretchr/testify/require"
)

func TestKVConfig_NormalizeDefaults(t *testing.T) {
	cfg := repositories.KVConfig{Backend: "  CASSANDRA "}.Normalize()

	require.Equal(t, repositories.KVBackendCassandra, cfg.Backend)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	require.Equal(t, []string{"localhost"}, cfg.Cassandra.Hosts)
	require.Equal(t, "takeaways", cfg.Cassandra.Keyspace)
	require.Equal(t, "kv_entries", cfg.Cassandra.Table)
	require.Equal(t, 10*time.Second, cfg.Cassandra.Timeout)

	require.Equal(t, repositories.KVBackendPostgres, repositories.KVConfig{}.Normalize().Backend)
}

func TestNewKeyValueRepository_RejectsUnknownBackend(t *testing.T) {
	_, _, err := repositories.NewKeyValueRepository(repositories.KVConfig{Backend: "memcached"}, nil, discardLogger())
	require.ErrorIs(t, err, repositories.ErrUnsupportedKVBackend)
}

func TestNewKeyValueRepository_PostgresRequiresPool(t *testing.T) {
	_, _, err := repositories.NewKeyValueRepository(repositories.KVConfig{Backend: repositories.KVBackendPostgres}, nil, discardLogger())
	require.Error(t, err)
}

func TestNewCassandraKVRepository_RejectsUnsafeIdentifiers(t *testing.T) {
	cases := []repositories.CassandraConfig{
		{Hosts: []string{"localhost"}, Keyspace: "takeaways; DROP KEYSPACE x", Table: "kv_entries", Timeout: time.Second},
		{Hosts: []string{"localhost"}, Keyspace: "takeaways", Table: "kv entries", Timeout: time.Second},
		{Hosts: []string{"localhost"}, Keyspace: "1takeaways", Table: "kv_entries", Timeout: time.Second},
	}
	for _, cfg := range cases {
		_, _, err := repositories.NewCassandraKVRepository(cfg, discardLogger())
		require.ErrorIs(t, err, repositories.ErrInvalidCassandraIdentifier)
	}
}

func TestKeyValueRepository_RejectsEmptyKey(t *testing.T) {
	ctx := context.Background()
	pool := newMigratedPool(ctx, t)

	repo, cleanup, err := repositories.NewKeyValueRepository(repositories.KVConfig{}, pool, discardLogger())
	require.NoError(t, err)
	t.Cleanup(cleanup)

	_, _, err = repo.Get(ctx, " ")
	require.ErrorIs(t, err, repositories.ErrEmptyKey)
	require.ErrorIs(t, repo.Set(ctx, "", []byte("x")), repositories.ErrEmptyKey)
	require.ErrorIs(t, repo.Remove(ctx, ""), repositories.ErrEmptyKey)
}
