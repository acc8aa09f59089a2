package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/go-kratos/kratos/v2/log"
)

// ErrVideoDetailsUnavailable 表示元数据抓取或解析失败，流水线按“无字幕”处理。
var ErrVideoDetailsUnavailable = errors.New("video details unavailable")

// CaptionExtractor 依次抓取播放页与字幕轨，并组装 VideoDetails。
type CaptionExtractor struct {
	fetcher PageFetcher
	log     *log.Helper
}

// NewCaptionExtractor 构造 CaptionExtractor。
func NewCaptionExtractor(fetcher PageFetcher, logger log.Logger) *CaptionExtractor {
	return &CaptionExtractor{
		fetcher: fetcher,
		log:     log.NewHelper(logger),
	}
}

// Extract 返回视频元数据与字幕。
//
// 播放页抓取或解析失败时返回 ErrVideoDetailsUnavailable；
// 视频无字幕或字幕轨抓取失败时返回 Captions.Available=false 的结果，不视为错误。
func (e *CaptionExtractor) Extract(ctx context.Context, videoID string) (*po.VideoDetails, error) {
	page, err := e.fetcher.FetchWatchPage(ctx, videoID)
	if err != nil {
		e.log.WithContext(ctx).Warnf("fetch watch page failed: video=%s err=%v", videoID, err)
		return nil, fmt.Errorf("%w: %v", ErrVideoDetailsUnavailable, err)
	}

	details, track, err := ParseWatchPage(page, videoID)
	if err != nil {
		e.log.WithContext(ctx).Warnf("parse watch page failed: video=%s err=%v", videoID, err)
		return nil, fmt.Errorf("%w: %v", ErrVideoDetailsUnavailable, err)
	}
	if track == nil {
		e.log.WithContext(ctx).Infof("video has no caption tracks: video=%s", videoID)
		return details, nil
	}

	raw, err := e.fetcher.FetchCaptionTrack(ctx, track.BaseURL)
	if err != nil {
		e.log.WithContext(ctx).Warnf("fetch caption track failed: video=%s lang=%s err=%v", videoID, track.LanguageCode, err)
		return details, nil
	}

	items := ParseCaptionCues(raw)
	if len(items) == 0 {
		e.log.WithContext(ctx).Warnf("caption track empty: video=%s lang=%s", videoID, track.LanguageCode)
		return details, nil
	}
	details.Captions = po.NewCaptionSet(track.LanguageCode, po.CaptionKindFromTrack(track.Kind), items)
	return details, nil
}
