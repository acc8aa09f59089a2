package repositories

import (
	"context"
	"time"

	outboxpkg "github.com/bionicotaku/lingo-utils/outbox"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/bionicotaku/lingo-utils/outbox/store"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// 会话事件外发与请求接收共用 lingo-utils/outbox 的表结构（takeaways.outbox_events / takeaways.inbox_events）。
type (
	// OutboxMessage 是一条待写入 outbox_events 的会话事件。
	OutboxMessage = store.Message
	// OutboxEvent 是从 outbox_events 认领出的待发布事件。
	OutboxEvent = store.Event
	// InboxMessage 是一条收到的视频请求命令。
	InboxMessage = store.InboxMessage
	// InboxEvent 是已记录的视频请求命令。
	InboxEvent = store.InboxEvent
)

// newMessagingStore 按配置的 schema 构造共享仓储，失败时回退到默认 schema。
func newMessagingStore(db *pgxpool.Pool, logger log.Logger, cfg outboxcfg.Config, role string) *store.Repository {
	repo, err := outboxpkg.NewRepository(db, logger, outboxpkg.RepositoryOptions{Schema: cfg.Schema})
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "init messaging store failed, falling back to default schema", "role", role, "schema", cfg.Schema, "error", err)
		return store.NewRepository(db, logger)
	}
	return repo
}

// OutboxRepository 负责会话事件的持久化与发布状态流转。
type OutboxRepository struct {
	delegate *store.Repository
}

// NewOutboxRepository 构造 Outbox 仓储。
func NewOutboxRepository(db *pgxpool.Pool, logger log.Logger, cfg outboxcfg.Config) *OutboxRepository {
	return &OutboxRepository{delegate: newMessagingStore(db, logger, cfg, "outbox")}
}

// Enqueue 写入一条会话事件；sess 非空时与调用方共用事务。
func (r *OutboxRepository) Enqueue(ctx context.Context, sess txmanager.Session, msg OutboxMessage) error {
	return r.delegate.Enqueue(ctx, sess, msg)
}

// ClaimPending 以 lockToken 认领一批可发布事件，锁早于 staleBefore 的视为过期可重新认领。
func (r *OutboxRepository) ClaimPending(ctx context.Context, availableBefore, staleBefore time.Time, limit int, lockToken string) ([]OutboxEvent, error) {
	return r.delegate.ClaimPending(ctx, availableBefore, staleBefore, limit, lockToken)
}

// MarkPublished 标记事件已发布。
func (r *OutboxRepository) MarkPublished(ctx context.Context, sess txmanager.Session, eventID uuid.UUID, lockToken string, publishedAt time.Time) error {
	return r.delegate.MarkPublished(ctx, sess, eventID, lockToken, publishedAt)
}

// Reschedule 记录失败原因并推迟到 nextAvailable 重试。
func (r *OutboxRepository) Reschedule(ctx context.Context, sess txmanager.Session, eventID uuid.UUID, lockToken string, nextAvailable time.Time, lastErr string) error {
	return r.delegate.Reschedule(ctx, sess, eventID, lockToken, nextAvailable, lastErr)
}

// CountPending 返回尚未发布的事件数。
func (r *OutboxRepository) CountPending(ctx context.Context) (int64, error) {
	return r.delegate.CountPending(ctx)
}

// Shared 返回底层仓储，供发布 runner 使用。
func (r *OutboxRepository) Shared() *store.Repository {
	return r.delegate
}

// InboxRepository 记录收到的视频请求命令，保证同一 event_id 只处理一次。
type InboxRepository struct {
	delegate *store.Repository
}

// NewInboxRepository 构造 Inbox 仓储。
func NewInboxRepository(db *pgxpool.Pool, logger log.Logger, cfg outboxcfg.Config) *InboxRepository {
	return &InboxRepository{delegate: newMessagingStore(db, logger, cfg, "inbox")}
}

// Insert 记录命令。
func (r *InboxRepository) Insert(ctx context.Context, sess txmanager.Session, event InboxMessage) error {
	return r.delegate.RecordInboxEvent(ctx, sess, event)
}

// MarkProcessed 标记命令已处理。
func (r *InboxRepository) MarkProcessed(ctx context.Context, sess txmanager.Session, eventID uuid.UUID, processedAt time.Time) error {
	return r.delegate.MarkInboxProcessed(ctx, sess, eventID, processedAt)
}

// RecordError 记录处理失败原因。
func (r *InboxRepository) RecordError(ctx context.Context, sess txmanager.Session, eventID uuid.UUID, lastErr string) error {
	return r.delegate.RecordInboxError(ctx, sess, eventID, lastErr)
}

// Shared 返回底层仓储，供 inbox runner 使用。
func (r *InboxRepository) Shared() *store.Repository {
	return r.delegate
}
