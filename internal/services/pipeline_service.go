package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/go-kratos/kratos/v2/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrVideoInFlight 表示同一视频已有流水线在执行。
var ErrVideoInFlight = errors.New("video already processing")

const pipelineTracerName = "lingo-services-takeaways.services.pipeline"

// NewVideoCommand 是一次 NEW_VIDEO 请求。
type NewVideoCommand struct {
	SessionID       string
	VideoID         string
	ForceRegenerate bool
}

// PipelineResult 汇总一次执行的结果。Set 仅在成功或命中缓存时非空。
type PipelineResult struct {
	VideoID      string
	Set          *po.TakeawaySet
	FromCache    bool
	FinalStatus  vo.ProcessingStatus
	ErrorMessage string
}

// PipelineService 按 抽取 → 判定 → 生成 → 缓存 → 投递 的顺序编排流水线。
type PipelineService struct {
	extractor  CaptionSource
	classifier RelevanceChecker
	generator  TakeawayProducer
	cache      TakeawayStore
	cfg        PipelineConfig
	log        *log.Helper
	tracer     trace.Tracer
	metrics    *pipelineMetrics

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// NewPipelineService 构造 PipelineService。
func NewPipelineService(
	extractor CaptionSource,
	classifier RelevanceChecker,
	generator TakeawayProducer,
	cache TakeawayStore,
	cfg PipelineConfig,
	logger log.Logger,
) *PipelineService {
	return &PipelineService{
		extractor:  extractor,
		classifier: classifier,
		generator:  generator,
		cache:      cache,
		cfg:        cfg.Normalize(),
		log:        log.NewHelper(logger),
		tracer:     otel.Tracer(pipelineTracerName),
		metrics:    newPipelineMetrics(),
		inflight:   make(map[string]chan struct{}),
	}
}

// Config 返回归一化后的配置。
func (s *PipelineService) Config() PipelineConfig {
	return s.cfg
}

// Lookup 仅查询缓存，不触发生成。
func (s *PipelineService) Lookup(ctx context.Context, videoID string) (*po.TakeawaySet, bool, error) {
	return s.cache.Get(ctx, videoID, s.cfg.TakeawaysModel, s.cfg.PromptVersion)
}

// Invalidate 清除视频的全部缓存条目。
func (s *PipelineService) Invalidate(ctx context.Context, videoID string) error {
	return s.cache.Invalidate(ctx, videoID)
}

func (s *PipelineService) acquire(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inflight[videoID]; ok {
		return false
	}
	s.inflight[videoID] = make(chan struct{})
	return true
}

func (s *PipelineService) release(videoID string) {
	s.mu.Lock()
	done, ok := s.inflight[videoID]
	delete(s.inflight, videoID)
	s.mu.Unlock()
	if ok {
		close(done)
	}
}

// InFlight 报告视频是否正在处理。
func (s *PipelineService) InFlight(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[videoID]
	return ok
}

// WaitIdle 阻塞到该视频当前这次执行结束；没有在途执行时立即返回。
func (s *PipelineService) WaitIdle(ctx context.Context, videoID string) error {
	s.mu.Lock()
	done, ok := s.inflight[videoID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Process 执行一次完整流水线，所有阶段性结果通过 sink 投递。
//
// 返回的 error 仅表示基础设施层面的失败（sink 写入失败、重复请求）；
// 内容层面的失败以 PROCESSING_ERROR 事件体现，并反映在 PipelineResult 中。
func (s *PipelineService) Process(ctx context.Context, cmd NewVideoCommand, sink EventSink) (result *PipelineResult, err error) {
	if cmd.VideoID == "" {
		return nil, fmt.Errorf("pipeline: video id required")
	}
	if !s.acquire(cmd.VideoID) {
		s.log.WithContext(ctx).Infof("pipeline skipped, already in flight: video=%s", cmd.VideoID)
		return nil, ErrVideoInFlight
	}
	defer s.release(cmd.VideoID)

	ctx, span := s.tracer.Start(ctx, "pipeline.process", trace.WithAttributes(
		attribute.String("video.id", cmd.VideoID),
		attribute.Bool("pipeline.force_regenerate", cmd.ForceRegenerate),
	))
	defer span.End()

	started := time.Now()
	result = &PipelineResult{VideoID: cmd.VideoID}
	defer func() {
		if r := recover(); r != nil {
			s.log.WithContext(ctx).Errorw("msg", "pipeline panicked", "video_id", cmd.VideoID, "panic", fmt.Sprint(r))
			span.SetStatus(codes.Error, "panic")
			result = s.fail(ctx, result, vo.StatusError, vo.ErrorUnexpected)
			err = sink.Emit(ctx, vo.ErrorEvent(cmd.VideoID, vo.ErrorUnexpected))
		}
		outcome := outcomeOf(result)
		span.SetAttributes(attribute.String("pipeline.outcome", outcome))
		s.metrics.recordRun(ctx, outcome, time.Since(started))
	}()

	emit := func(evt vo.SessionEvent) error {
		if emitErr := sink.Emit(ctx, evt); emitErr != nil {
			return fmt.Errorf("pipeline emit %s: %w", evt.Type, emitErr)
		}
		return nil
	}

	if cmd.ForceRegenerate {
		if invErr := s.cache.Invalidate(ctx, cmd.VideoID); invErr != nil {
			s.log.WithContext(ctx).Warnf("cache invalidate failed: video=%s err=%v", cmd.VideoID, invErr)
		}
	} else {
		cached, ok, getErr := s.cache.Get(ctx, cmd.VideoID, s.cfg.TakeawaysModel, s.cfg.PromptVersion)
		if getErr != nil {
			s.log.WithContext(ctx).Warnf("cache lookup failed: video=%s err=%v", cmd.VideoID, getErr)
		}
		s.metrics.recordCacheLookup(ctx, ok)
		if ok {
			result.Set = cached
			result.FromCache = true
			return result, emit(vo.TakeawaysEvent(cmd.VideoID, cached, true))
		}
	}

	// 1. 抽取
	if err := emit(vo.StatusEvent(cmd.VideoID, vo.StatusLoadingVideoDetails)); err != nil {
		return result, err
	}
	details, extractErr := s.extractor.Extract(ctx, cmd.VideoID)
	if extractErr != nil || details == nil || !details.Captions.Available {
		if extractErr != nil {
			span.RecordError(extractErr)
		}
		s.fail(ctx, result, vo.StatusError, vo.ErrorNoCaptions)
		return result, emit(vo.ErrorEvent(cmd.VideoID, vo.ErrorNoCaptions))
	}

	// 2. 判定
	if err := emit(vo.StatusEvent(cmd.VideoID, vo.StatusCheckingRelevance)); err != nil {
		return result, err
	}
	sample := SampleCaptions(details.Captions.Items, DefaultSampleSize)
	if !s.classifier.Classify(ctx, details.Video, details.Channel, sample) {
		s.fail(ctx, result, vo.StatusNotRelevant, vo.ErrorNotSuitable)
		if err := emit(vo.StatusEvent(cmd.VideoID, vo.StatusNotRelevant)); err != nil {
			return result, err
		}
		return result, emit(vo.ErrorEvent(cmd.VideoID, vo.ErrorNotSuitable))
	}

	// 3. 生成
	if err := emit(vo.StatusEvent(cmd.VideoID, vo.StatusGeneratingTakeaways)); err != nil {
		return result, err
	}
	genStarted := time.Now()
	set, genErr := s.generator.Generate(ctx, details)
	s.metrics.recordGeneration(ctx, genErr == nil, time.Since(genStarted))
	if genErr != nil || set == nil {
		if genErr != nil {
			span.RecordError(genErr)
		}
		s.log.WithContext(ctx).Errorw("msg", "takeaway generation failed", "video_id", cmd.VideoID, "error", genErr)
		s.fail(ctx, result, vo.StatusError, vo.ErrorGenerationFailed)
		if err := emit(vo.StatusEvent(cmd.VideoID, vo.StatusError)); err != nil {
			return result, err
		}
		return result, emit(vo.ErrorEvent(cmd.VideoID, vo.ErrorGenerationFailed))
	}

	// 4. 缓存；写入失败不影响本次投递
	if putErr := s.cache.Put(ctx, cmd.VideoID, s.cfg.TakeawaysModel, s.cfg.PromptVersion, set); putErr != nil {
		s.log.WithContext(ctx).Errorw("msg", "cache put failed", "video_id", cmd.VideoID, "error", putErr)
	}

	// 5. 投递
	result.Set = set
	result.FinalStatus = vo.StatusIdle
	s.log.WithContext(ctx).Infof("takeaways generated: video=%s count=%d", cmd.VideoID, len(set.Takeaways))
	return result, emit(vo.TakeawaysEvent(cmd.VideoID, set, false))
}

func (s *PipelineService) fail(ctx context.Context, result *PipelineResult, status vo.ProcessingStatus, message string) *PipelineResult {
	if result == nil {
		result = &PipelineResult{}
	}
	result.FinalStatus = status
	result.ErrorMessage = message
	s.log.WithContext(ctx).Infof("pipeline ended without takeaways: video=%s reason=%q", result.VideoID, message)
	return result
}

func outcomeOf(result *PipelineResult) string {
	switch {
	case result == nil:
		return "aborted"
	case result.FromCache:
		return "cache_hit"
	case result.Set != nil:
		return "generated"
	case result.ErrorMessage == vo.ErrorNoCaptions:
		return "no_captions"
	case result.ErrorMessage == vo.ErrorNotSuitable:
		return "not_relevant"
	case result.ErrorMessage == vo.ErrorGenerationFailed:
		return "generation_failed"
	case result.ErrorMessage != "":
		return "unexpected"
	default:
		return "aborted"
	}
}
