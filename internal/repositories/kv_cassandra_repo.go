package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gocql/gocql"
)

var cqlIdentifier = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,47}$`)

// ErrInvalidCassandraIdentifier 表示 keyspace 或表名不是合法的 CQL 标识符。
var ErrInvalidCassandraIdentifier = errors.New("kv: invalid cassandra identifier")

// CassandraKVRepository 以单表 (key text PRIMARY KEY, value blob) 实现键值存储。
type CassandraKVRepository struct {
	session *gocql.Session
	table   string
	log     *log.Helper

	selectStmt string
	insertStmt string
	deleteStmt string
}

// NewCassandraKVRepository 连接集群并确保表存在。keyspace 需预先创建。
func NewCassandraKVRepository(cfg CassandraConfig, logger log.Logger) (*CassandraKVRepository, func(), error) {
	if !cqlIdentifier.MatchString(cfg.Keyspace) {
		return nil, nil, fmt.Errorf("%w: keyspace %q", ErrInvalidCassandraIdentifier, cfg.Keyspace)
	}
	if !cqlIdentifier.MatchString(cfg.Table) {
		return nil, nil, fmt.Errorf("%w: table %q", ErrInvalidCassandraIdentifier, cfg.Table)
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = cfg.Timeout
	cluster.ConnectTimeout = cfg.Timeout

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, nil, fmt.Errorf("cassandra connect: %w", err)
	}

	repo := newCassandraKVRepository(session, cfg.Table, logger)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := repo.ensureTable(ctx); err != nil {
		session.Close()
		return nil, nil, err
	}
	return repo, session.Close, nil
}

func newCassandraKVRepository(session *gocql.Session, table string, logger log.Logger) *CassandraKVRepository {
	return &CassandraKVRepository{
		session:    session,
		table:      table,
		log:        log.NewHelper(logger),
		selectStmt: fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, table),
		insertStmt: fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES (?, ?, ?)`, table),
		deleteStmt: fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, table),
	}
}

func (r *CassandraKVRepository) ensureTable(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key text PRIMARY KEY,
		value blob,
		updated_at timestamp
	)`, r.table)
	if err := r.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("cassandra create table %s: %w", r.table, err)
	}
	return nil
}

// Get 读取键值。
func (r *CassandraKVRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	if err := r.session.Query(r.selectStmt, key).WithContext(ctx).Scan(&value); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cassandra select: %w", err)
	}
	return value, true, nil
}

// Set 写入或覆盖键值。
func (r *CassandraKVRepository) Set(ctx context.Context, key string, value []byte) error {
	if err := r.session.Query(r.insertStmt, key, value, time.Now().UTC()).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("cassandra insert: %w", err)
	}
	return nil
}

// Remove 删除键值。
func (r *CassandraKVRepository) Remove(ctx context.Context, key string) error {
	if err := r.session.Query(r.deleteStmt, key).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("cassandra delete: %w", err)
	}
	return nil
}
