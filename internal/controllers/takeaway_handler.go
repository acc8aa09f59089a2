package controllers

import (
	"context"
	"strconv"
	"strings"

	"github.com/bionicotaku/lingo-services-takeaways/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// TakeawayPipeline 是要点接口依赖的流水线能力。
type TakeawayPipeline interface {
	services.PipelineRunner
	Lookup(ctx context.Context, videoID string) (*po.TakeawaySet, bool, error)
	Invalidate(ctx context.Context, videoID string) error
}

var _ TakeawayPipeline = (*services.PipelineService)(nil)

// TakeawayHandler 暴露同步生成、缓存查询、缓存清除与播放同步接口。
type TakeawayHandler struct {
	*BaseHandler
	pipeline TakeawayPipeline
	outbox   services.OutboxEnqueuer
	logger   log.Logger
	log      *log.Helper
}

// NewTakeawayHandler 构造 TakeawayHandler。outbox 为空时同步生成的事件不外发。
func NewTakeawayHandler(pipeline TakeawayPipeline, outbox services.OutboxEnqueuer, base *BaseHandler, logger log.Logger) *TakeawayHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &TakeawayHandler{
		BaseHandler: base,
		pipeline:    pipeline,
		outbox:      outbox,
		logger:      logger,
		log:         log.NewHelper(logger),
	}
}

// RegisterRoutes 注册要点相关路由。
func (h *TakeawayHandler) RegisterRoutes(r *khttp.Router) {
	r.POST("/v1/videos/{video_id}/takeaways", h.generate)
	r.GET("/v1/videos/{video_id}/takeaways", h.get)
	r.DELETE("/v1/videos/{video_id}/takeaways", h.invalidate)
	r.GET("/v1/videos/{video_id}/takeaways/active", h.active)
}

func (h *TakeawayHandler) generate(ctx khttp.Context) error {
	var req dto.GenerateTakeawaysRequest
	if ctx.Request().ContentLength != 0 {
		if err := ctx.Bind(&req); err != nil {
			return kerrors.BadRequest(ReasonInvalidArgument, "malformed request body").WithCause(err)
		}
	}
	req.VideoID = ctx.Vars().Get("video_id")
	return invoke(ctx, "Takeaways/Generate", &req, h.Generate)
}

func (h *TakeawayHandler) get(ctx khttp.Context) error {
	return invoke(ctx, "Takeaways/Get", ctx.Vars().Get("video_id"), h.Get)
}

func (h *TakeawayHandler) invalidate(ctx khttp.Context) error {
	return invoke(ctx, "Takeaways/Invalidate", ctx.Vars().Get("video_id"), h.Invalidate)
}

type activeQuery struct {
	videoID string
	raw     string
}

func (h *TakeawayHandler) active(ctx khttp.Context) error {
	q := activeQuery{videoID: ctx.Vars().Get("video_id"), raw: ctx.Query().Get("t")}
	return invoke(ctx, "Takeaways/Active", q, func(c context.Context, q activeQuery) (*dto.ActiveTakeawaysResponse, error) {
		t := 0.0
		if strings.TrimSpace(q.raw) != "" {
			parsed, err := strconv.ParseFloat(q.raw, 64)
			if err != nil {
				return nil, kerrors.BadRequest(ReasonInvalidArgument, "t must be a number of seconds").WithCause(err)
			}
			t = parsed
		}
		return h.Active(c, q.videoID, t)
	})
}

// Generate 同步执行流水线，返回按序收集的事件与最终结果。
// 事件同时写入 Outbox，供订阅方消费。
func (h *TakeawayHandler) Generate(ctx context.Context, req *dto.GenerateTakeawaysRequest) (*dto.TakeawaysResponse, error) {
	videoID, err := services.ExtractVideoID(req.VideoID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	meta := h.ExtractMetadata(ctx)

	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeCommand)
	defer cancel()
	timeoutCtx = InjectHandlerMetadata(timeoutCtx, meta)

	collector := &services.CollectingSink{}
	sink := services.FanoutSink{collector}
	if h.outbox != nil {
		sink = append(sink, services.NewOutboxSink(meta.SessionID, nil, h.outbox, h.logger))
	}
	result, err := h.pipeline.Process(timeoutCtx, services.NewVideoCommand{
		SessionID:       meta.SessionID,
		VideoID:         videoID,
		ForceRegenerate: req.ForceRegenerate,
	}, sink)
	if err != nil {
		h.log.WithContext(ctx).Warnf("synchronous pipeline failed: video=%s err=%v", videoID, err)
		return nil, mapServiceError(err)
	}
	return dto.ToTakeawaysResponse(result, collector.Events()), nil
}

// Get 仅查询缓存，未命中返回 NotFound。
func (h *TakeawayHandler) Get(ctx context.Context, rawVideoID string) (*dto.TakeawaysResponse, error) {
	videoID, err := services.ExtractVideoID(rawVideoID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
	defer cancel()

	set, ok, err := h.pipeline.Lookup(timeoutCtx, videoID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !ok {
		return nil, kerrors.NotFound(ReasonTakeawaysNotFound, "no cached takeaways for video")
	}
	return dto.ToCachedTakeawaysResponse(videoID, set), nil
}

// Invalidate 清除视频的所有缓存条目。
func (h *TakeawayHandler) Invalidate(ctx context.Context, rawVideoID string) (*dto.InvalidateResponse, error) {
	videoID, err := services.ExtractVideoID(rawVideoID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeDefault)
	defer cancel()

	if err := h.pipeline.Invalidate(timeoutCtx, videoID); err != nil {
		return nil, mapStoreError(err)
	}
	h.log.WithContext(ctx).Infof("takeaway cache invalidated: video=%s", videoID)
	return &dto.InvalidateResponse{VideoID: videoID, Invalidated: true}, nil
}

// Active 返回播放时间 t（秒）对应的当前要点；未缓存时返回 NotFound。
func (h *TakeawayHandler) Active(ctx context.Context, rawVideoID string, t float64) (*dto.ActiveTakeawaysResponse, error) {
	videoID, err := services.ExtractVideoID(rawVideoID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
	defer cancel()

	set, ok, err := h.pipeline.Lookup(timeoutCtx, videoID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	if !ok || set == nil {
		return nil, kerrors.NotFound(ReasonTakeawaysNotFound, "no cached takeaways for video")
	}
	view := vo.NewActiveView(t, set.Takeaways, services.ActiveTakeaways(t, set.Takeaways))
	return &dto.ActiveTakeawaysResponse{VideoID: videoID, ActiveView: view}, nil
}
