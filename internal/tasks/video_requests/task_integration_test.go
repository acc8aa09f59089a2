package videorequests_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	outboxevents "github.com/bionicotaku/lingo-services-takeaways/internal/models/outbox_events"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	videorequests "github.com/bionicotaku/lingo-services-takeaways/internal/tasks/video_requests"
	"github.com/bionicotaku/lingo-utils/gcpubsub"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/docker/go-connections/nat"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const testVideoID = "dQw4w9WgXcQ"

func TestVideoRequestsTask_WritesSessionEventsToOutbox(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn, terminate := startPostgres(ctx, t)
	defer terminate()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	applyMigrations(ctx, t, pool)

	logger := log.NewStdLogger(io.Discard)
	cfg := outboxcfg.Config{Schema: "takeaways", Inbox: outboxcfg.InboxConfig{SourceService: "extension-gateway", MaxConcurrency: 1}}
	inboxRepo := repositories.NewInboxRepository(pool, logger, cfg)
	outboxRepo := repositories.NewOutboxRepository(pool, logger, cfg)
	manager, err := txmanager.NewManager(pool, txmanager.Config{}, txmanager.Dependencies{Logger: logger})
	require.NoError(t, err)

	pipeline := &scriptedPipeline{events: func(videoID string) []vo.SessionEvent {
		return []vo.SessionEvent{
			vo.StatusEvent(videoID, vo.StatusLoadingVideoDetails),
			vo.ErrorEvent(videoID, vo.ErrorNoCaptions),
		}
	}}

	request := buildMessage(t, "tab-7", "https://www.youtube.com/watch?v="+testVideoID, vo.EventNewVideo)
	stub := &stubSubscriber{messages: []*gcpubsub.Message{request}}

	task := videorequests.NewTask(stub, inboxRepo, pipeline, outboxRepo, manager, logger, cfg.Inbox)
	require.NotNil(t, task)
	task.WithClock(func() time.Time { return time.Now().UTC() })

	require.NoError(t, task.Run(ctx))

	calls := pipeline.snapshot()
	require.Len(t, calls, 1)
	require.Equal(t, testVideoID, calls[0].VideoID)
	require.Equal(t, "tab-7", calls[0].SessionID)
	require.False(t, calls[0].ForceRegenerate)

	types := loadOutboxEventTypes(ctx, t, pool, testVideoID)
	require.Equal(t, []string{
		outboxevents.FormatEventType(outboxevents.KindStatusChanged),
		outboxevents.FormatEventType(outboxevents.KindProcessingFailed),
	}, types)

	// 重复投递由 Inbox 去重，流水线不再执行。
	stub.messages = []*gcpubsub.Message{request}
	require.NoError(t, task.Run(ctx))
	require.Len(t, pipeline.snapshot(), 1)
	require.Len(t, loadOutboxEventTypes(ctx, t, pool, testVideoID), 2)
}

func TestVideoRequestsTask_SkipsNonRequestEvents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn, terminate := startPostgres(ctx, t)
	defer terminate()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	applyMigrations(ctx, t, pool)

	logger := log.NewStdLogger(io.Discard)
	cfg := outboxcfg.Config{Schema: "takeaways", Inbox: outboxcfg.InboxConfig{SourceService: "extension-gateway", MaxConcurrency: 1}}
	inboxRepo := repositories.NewInboxRepository(pool, logger, cfg)
	outboxRepo := repositories.NewOutboxRepository(pool, logger, cfg)
	manager, err := txmanager.NewManager(pool, txmanager.Config{}, txmanager.Dependencies{Logger: logger})
	require.NoError(t, err)

	pipeline := &scriptedPipeline{}
	stub := &stubSubscriber{messages: []*gcpubsub.Message{
		buildMessage(t, "tab-1", testVideoID, vo.EventProcessingStatus),
		buildMessage(t, "tab-1", "not a video", vo.EventNewVideo),
	}}

	task := videorequests.NewTask(stub, inboxRepo, pipeline, outboxRepo, manager, logger, cfg.Inbox)
	require.NotNil(t, task)
	require.NoError(t, task.Run(ctx))

	require.Empty(t, pipeline.snapshot())
	require.Empty(t, loadOutboxEventTypes(ctx, t, pool, testVideoID))
}

func TestNewTask_RequiresDependencies(t *testing.T) {
	logger := log.NewStdLogger(io.Discard)
	require.Nil(t, videorequests.NewTask(nil, nil, &scriptedPipeline{}, nil, nil, logger, outboxcfg.InboxConfig{}))
	require.Nil(t, videorequests.ProvideTask(nil, nil, &scriptedPipeline{}, nil, nil, outboxcfg.Config{}, logger))
}

// scriptedPipeline 按脚本把事件写入 sink，并记录收到的命令。
type scriptedPipeline struct {
	mu     sync.Mutex
	calls  []services.NewVideoCommand
	events func(videoID string) []vo.SessionEvent
}

func (p *scriptedPipeline) Process(ctx context.Context, cmd services.NewVideoCommand, sink services.EventSink) (*services.PipelineResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, cmd)
	p.mu.Unlock()

	result := &services.PipelineResult{VideoID: cmd.VideoID, FinalStatus: vo.StatusError, ErrorMessage: vo.ErrorNoCaptions}
	if p.events == nil {
		return result, nil
	}
	for _, evt := range p.events(cmd.VideoID) {
		if err := sink.Emit(ctx, evt); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (p *scriptedPipeline) snapshot() []services.NewVideoCommand {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]services.NewVideoCommand, len(p.calls))
	copy(out, p.calls)
	return out
}

// stubSubscriber 同步投递排队的消息。
type stubSubscriber struct {
	messages []*gcpubsub.Message
}

func (s *stubSubscriber) Receive(ctx context.Context, handler func(context.Context, *gcpubsub.Message) error) error {
	for _, msg := range s.messages {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *stubSubscriber) Stop() {}

func buildMessage(t *testing.T, sessionID, videoRef string, eventType vo.EventType) *gcpubsub.Message {
	t.Helper()
	eventID := uuid.NewString()
	env := outboxevents.Envelope{
		EventID:    eventID,
		SessionID:  sessionID,
		VideoID:    videoRef,
		OccurredAt: time.Now().UTC().Format(time.RFC3339Nano),
		Event:      vo.SessionEvent{Type: eventType, VideoID: videoRef},
	}
	if eventType == vo.EventProcessingStatus {
		env.Event.Status = vo.StatusCheckingRelevance
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)
	return &gcpubsub.Message{
		ID:   uuid.NewString(),
		Data: data,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(eventType),
			"aggregate_id":   videoRef,
			"aggregate_type": outboxevents.AggregateTypeVideo,
		},
	}
}

func loadOutboxEventTypes(ctx context.Context, t *testing.T, pool *pgxpool.Pool, videoID string) []string {
	t.Helper()
	rows, err := pool.Query(ctx,
		`SELECT event_type FROM takeaways.outbox_events WHERE aggregate_id = $1 ORDER BY occurred_at, available_at`,
		outboxevents.AggregateIDForVideo(videoID))
	require.NoError(t, err)
	defer rows.Close()

	var types []string
	for rows.Next() {
		var eventType string
		require.NoError(t, rows.Scan(&eventType))
		types = append(types, eventType)
	}
	require.NoError(t, rows.Err())
	return types
}

func startPostgres(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_USER":     "postgres",
			"POSTGRES_DB":       "takeaways",
		},
		WaitingFor: wait.ForSQL("5432/tcp", "postgres", func(host string, port nat.Port) string {
			return fmt.Sprintf("postgres://postgres:postgres@%s:%s/takeaways?sslmode=disable", host, port.Port())
		}).WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("skip video requests tests: cannot start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:postgres@%s:%s/takeaways?sslmode=disable", host, port.Port())
	cleanup := func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(termCtx)
	}
	return dsn, cleanup
}

func applyMigrations(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	migrationsDir := filepath.Join("..", "..", "..", "migrations")
	entries, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	require.NoError(t, err)
	sort.Strings(entries)

	for _, path := range entries {
		content, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		_, execErr := pool.Exec(ctx, string(content))
		require.NoErrorf(t, execErr, "apply migration %s", filepath.Base(path))
	}
}
