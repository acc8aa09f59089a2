package outbox_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"cloud.google.com/go/pubsub/pstest"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	outboxevents "github.com/bionicotaku/lingo-services-takeaways/internal/models/outbox_events"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	outboxtask "github.com/bionicotaku/lingo-services-takeaways/internal/tasks/outbox"
	"github.com/bionicotaku/lingo-utils/gcpubsub"
	outboxcfg "github.com/bionicotaku/lingo-utils/outbox/config"
	outboxpublisher "github.com/bionicotaku/lingo-utils/outbox/publisher"
	"github.com/bionicotaku/lingo-utils/txmanager"
	"github.com/docker/go-connections/nat"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const (
	testProject = "test-project"
	eventsTopic = "takeaways-events"
	testVideoID = "dQw4w9WgXcQ"
)

var defaultOutboxConfig = outboxcfg.Config{
	Schema: "takeaways",
	Inbox: outboxcfg.InboxConfig{
		SourceService:  "extension-gateway",
		MaxConcurrency: 4,
	},
}

// outboxHarness 串起 Postgres Outbox、事务管理器与 pstest，会话消息全部经 OutboxSink 写入。
type outboxHarness struct {
	pool   *pgxpool.Pool
	repo   *repositories.OutboxRepository
	tx     txmanager.Manager
	server *pstest.Server
	logger log.Logger
}

func newOutboxHarness(ctx context.Context, t *testing.T) *outboxHarness {
	t.Helper()

	dsn, terminate := startPostgres(ctx, t)
	t.Cleanup(terminate)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	applyMigrations(ctx, t, pool)

	logger := log.NewStdLogger(io.Discard)
	tx, err := txmanager.NewManager(pool, txmanager.Config{}, txmanager.Dependencies{Logger: logger})
	require.NoError(t, err)

	server := pstest.NewServer()
	t.Cleanup(func() { _ = server.Close() })

	return &outboxHarness{
		pool:   pool,
		repo:   repositories.NewOutboxRepository(pool, logger, defaultOutboxConfig),
		tx:     tx,
		server: server,
		logger: logger,
	}
}

// emit 在同一事务内把一组会话消息写入 Outbox。
func (h *outboxHarness) emit(ctx context.Context, t *testing.T, sessionID string, events ...vo.SessionEvent) {
	t.Helper()
	require.NoError(t, h.tx.WithinTx(ctx, txmanager.TxOptions{}, func(txCtx context.Context, sess txmanager.Session) error {
		sink := services.NewOutboxSink(sessionID, sess, h.repo, h.logger)
		for _, evt := range events {
			if err := sink.Emit(txCtx, evt); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (h *outboxHarness) createTopic(ctx context.Context, t *testing.T) string {
	t.Helper()
	name := fmt.Sprintf("projects/%s/topics/%s", testProject, eventsTopic)
	_, err := h.server.GServer.CreateTopic(ctx, &pubsubpb.Topic{Name: name})
	require.NoError(t, err)
	return name
}

func (h *outboxHarness) pending(ctx context.Context, t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.pool.QueryRow(ctx, `SELECT count(*) FROM takeaways.outbox_events WHERE published_at IS NULL`).Scan(&n))
	return n
}

func (h *outboxHarness) attempts(ctx context.Context) int32 {
	var n int32
	if err := h.pool.QueryRow(ctx, `SELECT coalesce(max(delivery_attempts), 0) FROM takeaways.outbox_events`).Scan(&n); err != nil {
		return -1
	}
	return n
}

// run 启动发布器，返回的函数负责停止并确认退出。
func (h *outboxHarness) run(ctx context.Context, t *testing.T, cfg outboxcfg.PublisherConfig) func() {
	t.Helper()

	_, cleanupPub, publisher := newTestPublisher(ctx, t, h.server, testProject, eventsTopic)
	t.Cleanup(cleanupPub)

	logging := false
	metrics := true
	cfg.LoggingEnabled = &logging
	cfg.MetricsEnabled = &metrics
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader()))

	runner, err := outboxpublisher.NewRunner(outboxpublisher.RunnerParams{
		Store:     h.repo.Shared(),
		Publisher: publisher,
		Config:    cfg,
		Logger:    h.logger,
		Meter:     provider.Meter("lingo-services-takeaways.outbox.test"),
	})
	require.NoError(t, err)

	runCtx, cancel := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- runner.Run(runCtx) }()

	return func() {
		cancel()
		select {
		case err := <-errCh:
			require.True(t, err == nil || errors.Is(err, context.Canceled))
		case <-time.After(time.Second):
			t.Fatal("runner did not stop in time")
		}
	}
}

// decodePublished 把 pstest 消息还原为会话消息，并核对 attributes 与载荷一致。
func decodePublished(t *testing.T, msg *pstest.Message) *outboxevents.Envelope {
	t.Helper()

	env, err := outboxevents.DecodeEnvelope(msg.Data)
	require.NoError(t, err)

	eventID, err := uuid.Parse(env.EventID)
	require.NoError(t, err)
	occurredAt, err := time.Parse(time.RFC3339Nano, env.OccurredAt)
	require.NoError(t, err)

	rebuilt, err := outboxevents.NewSessionEvent(env.SessionID, env.Event, eventID, occurredAt)
	require.NoError(t, err)
	for key, want := range outboxevents.BuildAttributes(rebuilt, outboxevents.SchemaVersionV1, "") {
		require.Equalf(t, want, msg.Attributes[key], "attribute %s", key)
	}
	return env
}

func fastPublisherConfig() outboxcfg.PublisherConfig {
	return outboxcfg.PublisherConfig{
		BatchSize:      4,
		TickInterval:   20 * time.Millisecond,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		MaxAttempts:    5,
		PublishTimeout: 250 * time.Millisecond,
		Workers:        1,
		LockTTL:        time.Second,
	}
}

func TestPublisherRunner_PublishesPipelineRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newOutboxHarness(ctx, t)

	set := &po.TakeawaySet{
		ID:        "0192f0c4-7b7a-7000-8000-000000000001",
		Title:     "Sample",
		Takeaways: []po.Takeaway{{Minute: 0, KeyPoint: "opening"}, {Minute: 3, KeyPoint: "argument"}},
	}
	h.emit(ctx, t, "tab-1",
		vo.StatusEvent(testVideoID, vo.StatusLoadingVideoDetails),
		vo.StatusEvent(testVideoID, vo.StatusCheckingRelevance),
		vo.StatusEvent(testVideoID, vo.StatusGeneratingTakeaways),
		vo.TakeawaysEvent(testVideoID, set, false),
	)
	require.Equal(t, int64(4), h.pending(ctx, t))

	topicName := h.createTopic(ctx, t)
	stop := h.run(ctx, t, fastPublisherConfig())
	defer stop()

	require.Eventually(t, func() bool { return h.pending(ctx, t) == 0 }, 6*time.Second, 50*time.Millisecond)

	msgs := h.server.Messages()
	require.Len(t, msgs, 4)
	var statuses []vo.ProcessingStatus
	var ready *outboxevents.Envelope
	for _, msg := range msgs {
		require.Equal(t, topicName, msg.Topic)
		env := decodePublished(t, msg)
		require.Equal(t, testVideoID, env.VideoID)
		require.Equal(t, "tab-1", env.SessionID)
		switch env.Event.Type {
		case vo.EventProcessingStatus:
			statuses = append(statuses, env.Event.Status)
		case vo.EventVideoTakeaways:
			ready = env
		default:
			t.Fatalf("unexpected event type %s", env.Event.Type)
		}
	}
	require.ElementsMatch(t, []vo.ProcessingStatus{
		vo.StatusLoadingVideoDetails,
		vo.StatusCheckingRelevance,
		vo.StatusGeneratingTakeaways,
	}, statuses)
	require.NotNil(t, ready)
	require.False(t, ready.Event.FromCache)
	require.NotNil(t, ready.Event.Takeaways)
	require.Equal(t, set.ID, ready.Event.Takeaways.ID)
	require.Len(t, ready.Event.Takeaways.Takeaways, 2)
	require.Equal(t, "argument", ready.Event.Takeaways.Takeaways[1].KeyPoint)
}

func TestPublisherRunner_HoldsEventsWhileTopicMissing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newOutboxHarness(ctx, t)
	h.emit(ctx, t, "tab-2", vo.ErrorEvent(testVideoID, vo.ErrorNoCaptions))

	cfg := fastPublisherConfig()
	cfg.MaxAttempts = 2
	cfg.PublishTimeout = 100 * time.Millisecond
	stop := h.run(ctx, t, cfg)
	defer stop()

	require.Eventually(t, func() bool { return h.attempts(ctx) >= 1 }, 3*time.Second, 50*time.Millisecond)
	require.Equal(t, int64(1), h.pending(ctx, t), "failure event must stay pending without a topic")
	require.Empty(t, h.server.Messages())
}

func TestPublisherRunner_DeliversNotRelevantAfterTopicCreated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newOutboxHarness(ctx, t)
	h.emit(ctx, t, "tab-3",
		vo.StatusEvent(testVideoID, vo.StatusNotRelevant),
		vo.ErrorEvent(testVideoID, vo.ErrorNotSuitable),
	)

	stop := h.run(ctx, t, fastPublisherConfig())
	defer stop()

	// 首轮发布因 topic 不存在而失败。
	require.Eventually(t, func() bool { return h.attempts(ctx) >= 1 }, 3*time.Second, 50*time.Millisecond)

	h.createTopic(ctx, t)
	require.Eventually(t, func() bool { return h.pending(ctx, t) == 0 }, 6*time.Second, 100*time.Millisecond)

	byType := make(map[vo.EventType]vo.SessionEvent)
	for _, msg := range h.server.Messages() {
		env := decodePublished(t, msg)
		require.Equal(t, "tab-3", env.SessionID)
		byType[env.Event.Type] = env.Event
	}
	require.Len(t, byType, 2)
	require.Equal(t, vo.StatusNotRelevant, byType[vo.EventProcessingStatus].Status)
	require.Equal(t, vo.ErrorNotSuitable, byType[vo.EventProcessingError].Error)
}

func TestProvideRunner_SkipsWithoutTopic(t *testing.T) {
	ctx := context.Background()
	server := pstest.NewServer()
	t.Cleanup(func() { _ = server.Close() })

	_, cleanup, publisher := newTestPublisher(ctx, t, server, testProject, "skip-topic")
	t.Cleanup(cleanup)

	logger := log.NewStdLogger(io.Discard)
	repo := repositories.NewOutboxRepository(nil, logger, defaultOutboxConfig)
	require.Nil(t, outboxtask.ProvideRunner(repo, publisher, gcpubsub.Config{}, defaultOutboxConfig, logger))
	require.Nil(t, outboxtask.ProvideRunner(nil, publisher, gcpubsub.Config{TopicID: "skip-topic"}, defaultOutboxConfig, logger))
	require.Nil(t, outboxtask.ProvideRunner(repo, nil, gcpubsub.Config{TopicID: "skip-topic"}, defaultOutboxConfig, logger))
}

func newTestPublisher(ctx context.Context, t *testing.T, server *pstest.Server, projectID, topicID string) (*gcpubsub.Component, func(), gcpubsub.Publisher) {
	t.Helper()

	enableLogging := false
	enableMetrics := true
	component, cleanup, err := gcpubsub.NewComponent(ctx, gcpubsub.Config{
		ProjectID:        projectID,
		TopicID:          topicID,
		EnableLogging:    &enableLogging,
		EnableMetrics:    &enableMetrics,
		MeterName:        "lingo-services-takeaways.gcpubsub.test",
		EmulatorEndpoint: server.Addr,
	}, gcpubsub.Dependencies{Logger: log.NewStdLogger(io.Discard)})
	require.NoError(t, err)

	return component, cleanup, gcpubsub.ProvidePublisher(component)
}

func startPostgres(ctx context.Context, t *testing.T) (string, func()) {
	t.Helper()

	dsnFor := func(host, port string) string {
		return fmt.Sprintf("postgres://postgres:postgres@%s:%s/takeaways?sslmode=disable", host, port)
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_PASSWORD": "postgres",
				"POSTGRES_USER":     "postgres",
				"POSTGRES_DB":       "takeaways",
			},
			WaitingFor: wait.ForSQL("5432/tcp", "postgres", func(host string, port nat.Port) string {
				return dsnFor(host, port.Port())
			}).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("skip outbox integration tests: cannot start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return dsnFor(host, port.Port()), func() {
		termCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Terminate(termCtx)
	}
}

func applyMigrations(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	dir := filepath.Join("..", "..", "..", "migrations")
	paths, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	require.NoError(t, err)
	sort.Strings(paths)

	for _, path := range paths {
		sqlBytes, readErr := os.ReadFile(path)
		require.NoError(t, readErr)
		_, execErr := pool.Exec(ctx, string(sqlBytes))
		require.NoErrorf(t, execErr, "apply migration %s", filepath.Base(path))
	}
}
