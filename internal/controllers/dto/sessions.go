package dto

import (
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
)

// NavigateRequest 通知会话已切换到新视频。
type NavigateRequest struct {
	SessionID string `json:"-"`
	VideoID   string `json:"videoId"`
}

// PlaybackRequest 上报一次播放进度。
type PlaybackRequest struct {
	SessionID   string  `json:"-"`
	VideoID     string  `json:"videoId"`
	CurrentTime float64 `json:"currentTime"`
}

// NewVideoRequest 显式提交生成；ForceRegenerate 为重试语义。
type NewVideoRequest struct {
	SessionID       string `json:"-"`
	VideoID         string `json:"videoId"`
	ForceRegenerate bool   `json:"forceRegenerate"`
}

// SubmitResponse 是显式提交的受理结果。
type SubmitResponse struct {
	SessionID string `json:"sessionId"`
	VideoID   string `json:"videoId"`
	Accepted  bool   `json:"accepted"`
}

// PlaybackResponse 返回门槛判定与当前要点。
type PlaybackResponse struct {
	SessionID string              `json:"sessionId"`
	VideoID   string              `json:"videoId"`
	Triggered bool                `json:"triggered"`
	Status    vo.ProcessingStatus `json:"status"`
	Cursor    vo.PlaybackCursor   `json:"cursor"`
	Active    vo.ActiveView       `json:"active"`
}

// 客户端经 WebSocket 上行的消息类型。
const (
	ClientMessageNewVideo = "NEW_VIDEO"
	ClientMessageNavigate = "NAVIGATE"
	ClientMessagePlayback = "PLAYBACK"
)

// ClientMessage 是 WebSocket 上行消息。
type ClientMessage struct {
	Type            string  `json:"type"`
	VideoID         string  `json:"videoId"`
	CurrentTime     float64 `json:"currentTime,omitempty"`
	ForceRegenerate bool    `json:"forceRegenerate,omitempty"`
}

// ServerNotice 是 WebSocket 下行的非会话事件消息，例如上行消息的处理结果。
type ServerNotice struct {
	Type    string            `json:"type"`
	Error   string            `json:"error,omitempty"`
	Session *SessionResponse  `json:"session,omitempty"`
	Play    *PlaybackResponse `json:"playback,omitempty"`
}

// 下行通知类型。
const (
	NoticeAck      = "ACK"
	NoticeRejected = "REJECTED"
)

// SessionResponse 是会话快照。
type SessionResponse = services.SessionSnapshot

// ToPlaybackResponse 转换播放上报结果。
func ToPlaybackResponse(sessionID, videoID string, outcome services.PlaybackOutcome) *PlaybackResponse {
	return &PlaybackResponse{
		SessionID: sessionID,
		VideoID:   videoID,
		Triggered: outcome.Triggered,
		Status:    outcome.Status,
		Cursor:    outcome.Cursor,
		Active:    outcome.Active,
	}
}
