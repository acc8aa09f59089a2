package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/gorilla/websocket"
)

const (
	hubWriteWait      = 10 * time.Second
	hubPongWait       = 60 * time.Second
	hubPingPeriod     = (hubPongWait * 9) / 10
	hubMaxMessageSize = 4 << 10
	hubOutboundBuffer = 16
)

// SessionHubConfig 控制 WebSocket 握手的来源校验。
type SessionHubConfig struct {
	// AllowedOrigins 为空时不校验 Origin；以 * 结尾的条目按前缀匹配。
	AllowedOrigins []string
}

// SessionHub 通过 WebSocket 把会话消息推送给扩展，并接收 NEW_VIDEO / NAVIGATE / PLAYBACK 上行消息。
// 连接断开即关闭会话，之后到达的流水线结果一律视为过期。
type SessionHub struct {
	*BaseHandler
	sessions *services.SessionService
	origins  []string
	upgrader websocket.Upgrader
	log      *log.Helper
}

// NewSessionHub 构造 SessionHub。
func NewSessionHub(sessions *services.SessionService, cfg SessionHubConfig, base *BaseHandler, logger log.Logger) *SessionHub {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	h := &SessionHub{
		BaseHandler: base,
		sessions:    sessions,
		log:         log.NewHelper(logger),
	}
	for _, origin := range cfg.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			h.origins = append(h.origins, origin)
		}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// RegisterRoutes 注册 WebSocket 路由。
func (h *SessionHub) RegisterRoutes(r *khttp.Router) {
	r.GET("/v1/sessions/{session_id}/events", h.serve)
}

func (h *SessionHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if len(h.origins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range h.origins {
		if prefix, ok := strings.CutSuffix(allowed, "*"); ok {
			if strings.HasPrefix(origin, prefix) {
				return true
			}
			continue
		}
		if origin == allowed {
			return true
		}
	}
	return false
}

func (h *SessionHub) serve(ctx khttp.Context) error {
	sessionID := strings.TrimSpace(ctx.Vars().Get("session_id"))
	if sessionID == "" {
		return kerrors.BadRequest(ReasonInvalidSessionID, "session id required")
	}
	r := ctx.Request()
	conn, err := h.upgrader.Upgrade(ctx.Response(), r, nil)
	if err != nil {
		// Upgrade 已写回 HTTP 错误。
		h.log.WithContext(ctx).Warnf("websocket upgrade failed: session=%s err=%v", sessionID, err)
		return nil
	}
	meta := h.ExtractHeaderMetadata(r.Header)
	// 服务端超时只约束普通请求，长连接另起不随请求取消的上下文。
	connCtx := InjectHandlerMetadata(context.WithoutCancel(r.Context()), meta)
	h.run(connCtx, sessionID, conn)
	return nil
}

func (h *SessionHub) run(ctx context.Context, sessionID string, conn *websocket.Conn) {
	events, unsubscribe := h.sessions.Broadcaster().Subscribe(sessionID)
	outbound := make(chan any, hubOutboundBuffer)
	done := make(chan struct{})
	writerDone := make(chan struct{})

	h.log.WithContext(ctx).Infof("session connected: session=%s", sessionID)
	go func() {
		defer close(writerDone)
		h.writeLoop(conn, events, outbound, done)
	}()

	h.readLoop(ctx, sessionID, conn, outbound)

	close(done)
	<-writerDone
	unsubscribe()
	h.sessions.Close(sessionID)
	_ = conn.Close()
	h.log.WithContext(ctx).Infof("session disconnected: session=%s", sessionID)
}

func (h *SessionHub) readLoop(ctx context.Context, sessionID string, conn *websocket.Conn, outbound chan<- any) {
	conn.SetReadLimit(hubMaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(hubPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(hubPongWait))
	})
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.WithContext(ctx).Warnf("session read failed: session=%s err=%v", sessionID, err)
			}
			return
		}
		notice := h.handleMessage(ctx, sessionID, data)
		select {
		case outbound <- notice:
		default:
			h.log.WithContext(ctx).Warnf("session outbound buffer full, dropping notice: session=%s", sessionID)
		}
	}
}

func (h *SessionHub) writeLoop(conn *websocket.Conn, events <-chan vo.SessionEvent, outbound <-chan any, done <-chan struct{}) {
	ticker := time.NewTicker(hubPingPeriod)
	defer ticker.Stop()
	write := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
		if err := conn.WriteJSON(v); err != nil {
			h.log.Debugf("session write failed: %v", err)
			_ = conn.Close()
			return false
		}
		return true
	}
	for {
		select {
		case <-done:
			_ = conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if !write(evt) {
				return
			}
		case notice := <-outbound:
			if !write(notice) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

// handleMessage 处理一条上行消息并返回下行回执。
func (h *SessionHub) handleMessage(ctx context.Context, sessionID string, data []byte) dto.ServerNotice {
	var msg dto.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return dto.ServerNotice{Type: dto.NoticeRejected, Error: "malformed message"}
	}
	videoID, err := services.ExtractVideoID(msg.VideoID)
	if err != nil {
		return rejected(err)
	}
	switch strings.ToUpper(strings.TrimSpace(msg.Type)) {
	case dto.ClientMessageNavigate:
		snap, err := h.sessions.Navigate(ctx, sessionID, videoID)
		if err != nil {
			return rejected(err)
		}
		return dto.ServerNotice{Type: dto.NoticeAck, Session: &snap}
	case dto.ClientMessagePlayback:
		outcome, err := h.sessions.RecordPlayback(ctx, sessionID, videoID, msg.CurrentTime)
		if err != nil {
			return rejected(err)
		}
		return dto.ServerNotice{Type: dto.NoticeAck, Play: dto.ToPlaybackResponse(sessionID, videoID, outcome)}
	case dto.ClientMessageNewVideo:
		if err := h.sessions.RequestVideo(ctx, sessionID, videoID, msg.ForceRegenerate); err != nil {
			return rejected(err)
		}
		return dto.ServerNotice{Type: dto.NoticeAck}
	default:
		return dto.ServerNotice{Type: dto.NoticeRejected, Error: "unsupported message type"}
	}
}

func rejected(err error) dto.ServerNotice {
	mapped := mapServiceError(err)
	if se := new(kerrors.Error); errors.As(mapped, &se) {
		return dto.ServerNotice{Type: dto.NoticeRejected, Error: se.Reason}
	}
	return dto.ServerNotice{Type: dto.NoticeRejected, Error: mapped.Error()}
}
