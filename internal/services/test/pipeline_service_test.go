package services_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/require"
)

// stageRecorder 记录各阶段的调用顺序。
type stageRecorder struct {
	mu     sync.Mutex
	stages []string
}

func (r *stageRecorder) add(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
}

func (r *stageRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.stages...)
}

type stubExtractor struct {
	rec     *stageRecorder
	details *po.VideoDetails
	err     error
}

func (s *stubExtractor) Extract(_ context.Context, videoID string) (*po.VideoDetails, error) {
	s.rec.add("extract")
	if s.err != nil {
		return nil, s.err
	}
	out := *s.details
	out.Video.ID = videoID
	return &out, nil
}

type stubClassifier struct {
	rec      *stageRecorder
	relevant bool
}

func (s *stubClassifier) Classify(context.Context, po.VideoRecord, po.ChannelRecord, []string) bool {
	s.rec.add("classify")
	return s.relevant
}

type stubGenerator struct {
	rec     *stageRecorder
	err     error
	panics  bool
	started chan struct{}
	release chan struct{}
}

func (s *stubGenerator) Generate(_ context.Context, details *po.VideoDetails) (*po.TakeawaySet, error) {
	s.rec.add("generate")
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if s.panics {
		panic("unexpected nil map")
	}
	if s.err != nil {
		return nil, s.err
	}
	return &po.TakeawaySet{
		ID:    "set-" + details.Video.ID,
		Title: details.Video.Title,
		Takeaways: []po.Takeaway{
			{Minute: 0, KeyPoint: "intro"},
			{Minute: 1, KeyPoint: "density"},
		},
	}, nil
}

// recordingStore 包装内存存储并记录写入阶段。
type recordingStore struct {
	*memoryStore
	rec *stageRecorder
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte) error {
	s.rec.add("cache")
	return s.memoryStore.Set(ctx, key, value)
}

// orderedSink 收集事件，同时把投递计入阶段顺序。
type orderedSink struct {
	services.CollectingSink
	rec *stageRecorder
}

func (s *orderedSink) Emit(ctx context.Context, evt vo.SessionEvent) error {
	if evt.Type == vo.EventVideoTakeaways {
		s.rec.add("surface")
	}
	return s.CollectingSink.Emit(ctx, evt)
}

type pipelineFixture struct {
	rec        *stageRecorder
	store      *memoryStore
	extractor  *stubExtractor
	classifier *stubClassifier
	generator  *stubGenerator
	svc        *services.PipelineService
}

func newPipelineFixture() *pipelineFixture {
	rec := &stageRecorder{}
	store := newMemoryStore()
	f := &pipelineFixture{
		rec:        rec,
		store:      store,
		extractor:  &stubExtractor{rec: rec, details: sampleDetails()},
		classifier: &stubClassifier{rec: rec, relevant: true},
		generator:  &stubGenerator{rec: rec},
	}
	cache := services.NewTakeawayCache(&recordingStore{memoryStore: store, rec: rec}, log.NewStdLogger(io.Discard))
	f.svc = services.NewPipelineService(f.extractor, f.classifier, f.generator, cache, services.PipelineConfig{}, log.NewStdLogger(io.Discard))
	return f
}

func TestPipelineService_Process_StrictStageOrder(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	sink := &orderedSink{rec: f.rec}

	result, err := f.svc.Process(context.Background(), services.NewVideoCommand{SessionID: "s1", VideoID: sampleVideoID}, sink)
	require.NoError(t, err)
	require.NotNil(t, result.Set)
	require.False(t, result.FromCache)
	require.Equal(t, vo.StatusIdle, result.FinalStatus)

	// 缓存写入包括条目与索引两次 Set。
	require.Equal(t, []string{"extract", "classify", "generate", "cache", "cache", "surface"}, f.rec.list())
	require.Equal(t, []string{
		"PROCESSING_STATUS:LOADING_VIDEO_DETAILS",
		"PROCESSING_STATUS:CHECKING_RELEVANCE",
		"PROCESSING_STATUS:GENERATING_TAKEAWAYS",
		"VIDEO_TAKEAWAYS:cache=false",
	}, eventLabels(sink.Events()))

	final := sink.Events()[3].Takeaways
	require.NotNil(t, final.CachedAt)
	require.Equal(t, services.DefaultPromptVersion, final.PromptVersion)
}

func TestPipelineService_Process_CacheHitSkipsStages(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	ctx := context.Background()
	first, err := f.svc.Process(ctx, services.NewVideoCommand{VideoID: sampleVideoID}, &services.CollectingSink{})
	require.NoError(t, err)

	f.rec = &stageRecorder{}
	f.extractor.rec, f.classifier.rec, f.generator.rec = f.rec, f.rec, f.rec

	sink := &services.CollectingSink{}
	second, err := f.svc.Process(ctx, services.NewVideoCommand{VideoID: sampleVideoID}, sink)
	require.NoError(t, err)
	require.True(t, second.FromCache)
	require.Equal(t, first.Set.ID, second.Set.ID)
	require.Empty(t, f.rec.list())
	require.Equal(t, []string{"VIDEO_TAKEAWAYS:cache=true"}, eventLabels(sink.Events()))

	cached, ok, err := f.svc.Lookup(ctx, sampleVideoID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first.Set.Takeaways, cached.Takeaways)
}

func TestPipelineService_Process_ForceRegenerateBypassesCache(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	ctx := context.Background()
	_, err := f.svc.Process(ctx, services.NewVideoCommand{VideoID: sampleVideoID}, &services.CollectingSink{})
	require.NoError(t, err)

	sink := &services.CollectingSink{}
	result, err := f.svc.Process(ctx, services.NewVideoCommand{VideoID: sampleVideoID, ForceRegenerate: true}, sink)
	require.NoError(t, err)
	require.False(t, result.FromCache)
	require.Equal(t, "VIDEO_TAKEAWAYS:cache=false", eventLabels(sink.Events())[len(sink.Events())-1])
}

func TestPipelineService_Process_NoCaptions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(f *pipelineFixture)
	}{
		{name: "抽取失败", mutate: func(f *pipelineFixture) { f.extractor.err = services.ErrVideoDetailsUnavailable }},
		{name: "字幕不可用", mutate: func(f *pipelineFixture) {
			details := sampleDetails()
			details.Captions = po.UnavailableCaptions()
			f.extractor.details = details
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newPipelineFixture()
			tc.mutate(f)

			sink := &services.CollectingSink{}
			result, err := f.svc.Process(context.Background(), services.NewVideoCommand{VideoID: sampleVideoID}, sink)
			require.NoError(t, err)
			require.Equal(t, vo.ErrorNoCaptions, result.ErrorMessage)
			require.Equal(t, []string{"extract"}, f.rec.list())
			require.Equal(t, []string{
				"PROCESSING_STATUS:LOADING_VIDEO_DETAILS",
				"PROCESSING_ERROR:No captions available",
			}, eventLabels(sink.Events()))
		})
	}
}

func TestPipelineService_Process_NotRelevant(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.classifier.relevant = false

	sink := &services.CollectingSink{}
	result, err := f.svc.Process(context.Background(), services.NewVideoCommand{VideoID: sampleVideoID}, sink)
	require.NoError(t, err)
	require.Equal(t, vo.StatusNotRelevant, result.FinalStatus)
	require.Equal(t, []string{"extract", "classify"}, f.rec.list())
	require.Equal(t, []string{
		"PROCESSING_STATUS:LOADING_VIDEO_DETAILS",
		"PROCESSING_STATUS:CHECKING_RELEVANCE",
		"PROCESSING_STATUS:NOT_RELEVANT",
		"PROCESSING_ERROR:Content not suitable for takeaways",
	}, eventLabels(sink.Events()))
}

func TestPipelineService_Process_GenerationFailureIsNeverCached(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.generator.err = &services.GenerationError{Stage: services.StageParse, Err: services.ErrUnrecoverableResponse}

	sink := &services.CollectingSink{}
	result, err := f.svc.Process(context.Background(), services.NewVideoCommand{VideoID: sampleVideoID}, sink)
	require.NoError(t, err)
	require.Equal(t, vo.StatusError, result.FinalStatus)
	require.Nil(t, result.Set)
	require.Empty(t, f.store.Keys())
	require.Equal(t, []string{
		"PROCESSING_STATUS:LOADING_VIDEO_DETAILS",
		"PROCESSING_STATUS:CHECKING_RELEVANCE",
		"PROCESSING_STATUS:GENERATING_TAKEAWAYS",
		"PROCESSING_STATUS:ERROR",
		"PROCESSING_ERROR:Failed to generate takeaways",
	}, eventLabels(sink.Events()))
}

func TestPipelineService_Process_PanicBecomesUnexpectedError(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.generator.panics = true

	sink := &services.CollectingSink{}
	result, err := f.svc.Process(context.Background(), services.NewVideoCommand{VideoID: sampleVideoID}, sink)
	require.NoError(t, err)
	require.Equal(t, vo.ErrorUnexpected, result.ErrorMessage)
	events := sink.Events()
	require.Equal(t, "PROCESSING_ERROR:An unexpected error occurred", eventLabels(events)[len(events)-1])
	require.False(t, f.svc.InFlight(sampleVideoID))
}

func TestPipelineService_Process_InFlightGuardIsPerVideo(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	f.generator.started = make(chan struct{}, 2)
	f.generator.release = make(chan struct{})

	ctx := context.Background()
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Process(ctx, services.NewVideoCommand{VideoID: sampleVideoID}, &services.CollectingSink{})
		done <- err
	}()
	<-f.generator.started
	require.True(t, f.svc.InFlight(sampleVideoID))

	_, err := f.svc.Process(ctx, services.NewVideoCommand{VideoID: sampleVideoID}, &services.CollectingSink{})
	require.ErrorIs(t, err, services.ErrVideoInFlight)

	other := make(chan error, 1)
	go func() {
		_, err := f.svc.Process(ctx, services.NewVideoCommand{VideoID: "otherVideo1"}, &services.CollectingSink{})
		other <- err
	}()
	select {
	case <-f.generator.started:
	case <-time.After(2 * time.Second):
		t.Fatal("unrelated video blocked by in-flight guard")
	}

	close(f.generator.release)
	require.NoError(t, <-done)
	require.NoError(t, <-other)
	require.False(t, f.svc.InFlight(sampleVideoID))
}

func TestPipelineService_Process_SinkErrorPropagates(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture()
	_, err := f.svc.Process(context.Background(), services.NewVideoCommand{VideoID: sampleVideoID}, failingSink{})
	require.Error(t, err)
	require.Empty(t, f.rec.list())

	_, err = f.svc.Process(context.Background(), services.NewVideoCommand{}, &services.CollectingSink{})
	require.Error(t, err)
}

type failingSink struct{}

func (failingSink) Emit(context.Context, vo.SessionEvent) error { return errors.New("closed") }
