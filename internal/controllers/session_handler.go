package controllers

import (
	"context"

	"github.com/bionicotaku/lingo-services-takeaways/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// SessionHandler 暴露标签页会话的导航、播放上报与显式提交接口。
type SessionHandler struct {
	*BaseHandler
	sessions *services.SessionService
	log      *log.Helper
}

// NewSessionHandler 构造 SessionHandler。
func NewSessionHandler(sessions *services.SessionService, base *BaseHandler, logger log.Logger) *SessionHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &SessionHandler{BaseHandler: base, sessions: sessions, log: log.NewHelper(logger)}
}

// RegisterRoutes 注册会话路由。
func (h *SessionHandler) RegisterRoutes(r *khttp.Router) {
	r.GET("/v1/sessions/{session_id}", h.snapshot)
	r.DELETE("/v1/sessions/{session_id}", h.close)
	r.POST("/v1/sessions/{session_id}/navigate", h.navigate)
	r.POST("/v1/sessions/{session_id}/playback", h.playback)
	r.POST("/v1/sessions/{session_id}/videos", h.submit)
}

func bindBody(ctx khttp.Context, out any) error {
	if err := ctx.Bind(out); err != nil {
		return kerrors.BadRequest(ReasonInvalidArgument, "malformed request body").WithCause(err)
	}
	return nil
}

func (h *SessionHandler) snapshot(ctx khttp.Context) error {
	return invoke(ctx, "Sessions/Get", ctx.Vars().Get("session_id"), h.Snapshot)
}

func (h *SessionHandler) close(ctx khttp.Context) error {
	return invoke(ctx, "Sessions/Close", ctx.Vars().Get("session_id"), func(_ context.Context, sessionID string) (*struct{}, error) {
		h.sessions.Close(sessionID)
		return &struct{}{}, nil
	})
}

func (h *SessionHandler) navigate(ctx khttp.Context) error {
	var req dto.NavigateRequest
	if err := bindBody(ctx, &req); err != nil {
		return err
	}
	req.SessionID = ctx.Vars().Get("session_id")
	return invoke(ctx, "Sessions/Navigate", &req, h.Navigate)
}

func (h *SessionHandler) playback(ctx khttp.Context) error {
	var req dto.PlaybackRequest
	if err := bindBody(ctx, &req); err != nil {
		return err
	}
	req.SessionID = ctx.Vars().Get("session_id")
	return invoke(ctx, "Sessions/Playback", &req, h.Playback)
}

func (h *SessionHandler) submit(ctx khttp.Context) error {
	var req dto.NewVideoRequest
	if err := bindBody(ctx, &req); err != nil {
		return err
	}
	req.SessionID = ctx.Vars().Get("session_id")
	return invoke(ctx, "Sessions/Submit", &req, h.Submit)
}

// Snapshot 返回会话当前状态。
func (h *SessionHandler) Snapshot(_ context.Context, sessionID string) (*dto.SessionResponse, error) {
	snap, err := h.sessions.Snapshot(sessionID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &snap, nil
}

// Navigate 切换会话当前视频。
func (h *SessionHandler) Navigate(ctx context.Context, req *dto.NavigateRequest) (*dto.SessionResponse, error) {
	videoID, err := services.ExtractVideoID(req.VideoID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	snap, err := h.sessions.Navigate(ctx, req.SessionID, videoID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return &snap, nil
}

// Playback 上报播放进度；门槛满足时在后台触发一次生成。
func (h *SessionHandler) Playback(ctx context.Context, req *dto.PlaybackRequest) (*dto.PlaybackResponse, error) {
	videoID, err := services.ExtractVideoID(req.VideoID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	outcome, err := h.sessions.RecordPlayback(ctx, req.SessionID, videoID, req.CurrentTime)
	if err != nil {
		return nil, mapServiceError(err)
	}
	return dto.ToPlaybackResponse(req.SessionID, videoID, outcome), nil
}

// Submit 显式发起 NEW_VIDEO；forceRegenerate 为重试语义。
func (h *SessionHandler) Submit(ctx context.Context, req *dto.NewVideoRequest) (*dto.SubmitResponse, error) {
	videoID, err := services.ExtractVideoID(req.VideoID)
	if err != nil {
		return nil, mapServiceError(err)
	}
	if err := h.sessions.RequestVideo(ctx, req.SessionID, videoID, req.ForceRegenerate); err != nil {
		return nil, mapServiceError(err)
	}
	return &dto.SubmitResponse{SessionID: req.SessionID, VideoID: videoID, Accepted: true}, nil
}
