// Package dto 定义 HTTP 接口的请求与响应结构，以及与领域对象之间的转换。
package dto

import (
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
)

// GenerateTakeawaysRequest 是同步生成接口的请求体。
type GenerateTakeawaysRequest struct {
	VideoID         string `json:"-"`
	ForceRegenerate bool   `json:"forceRegenerate"`
}

// TakeawaysResponse 汇总一次同步流水线执行或一次缓存查询。
type TakeawaysResponse struct {
	VideoID   string              `json:"videoId"`
	Status    vo.ProcessingStatus `json:"status"`
	Takeaways *po.TakeawaySet     `json:"takeaways,omitempty"`
	FromCache bool                `json:"fromCache"`
	Error     string              `json:"error,omitempty"`
	Events    []vo.SessionEvent   `json:"events,omitempty"`
}

// ActiveTakeawaysResponse 返回当前播放时间点应展示的要点。
type ActiveTakeawaysResponse struct {
	VideoID string `json:"videoId"`
	vo.ActiveView
}

// InvalidateResponse 是清除缓存的结果。
type InvalidateResponse struct {
	VideoID     string `json:"videoId"`
	Invalidated bool   `json:"invalidated"`
}

// ToTakeawaysResponse 将流水线结果与收集到的事件转换为响应。
func ToTakeawaysResponse(result *services.PipelineResult, events []vo.SessionEvent) *TakeawaysResponse {
	if result == nil {
		return &TakeawaysResponse{Status: vo.StatusIdle, Events: events}
	}
	status := result.FinalStatus
	if status == "" {
		status = vo.StatusIdle
	}
	return &TakeawaysResponse{
		VideoID:   result.VideoID,
		Status:    status,
		Takeaways: result.Set,
		FromCache: result.FromCache,
		Error:     result.ErrorMessage,
		Events:    events,
	}
}

// ToCachedTakeawaysResponse 转换缓存命中结果。
func ToCachedTakeawaysResponse(videoID string, set *po.TakeawaySet) *TakeawaysResponse {
	return &TakeawaysResponse{
		VideoID:   videoID,
		Status:    vo.StatusIdle,
		Takeaways: set,
		FromCache: true,
	}
}
