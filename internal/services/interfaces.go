package services

import (
	"context"

	"github.com/bionicotaku/lingo-services-takeaways/internal/clients"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/vo"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/bionicotaku/lingo-utils/txmanager"
)

// PageFetcher 抓取播放页与字幕轨原文。
type PageFetcher interface {
	FetchWatchPage(ctx context.Context, videoID string) (string, error)
	FetchCaptionTrack(ctx context.Context, baseURL string) (string, error)
}

// TextGenerator 抽象生成式文本接口。
type TextGenerator interface {
	GenerateContent(ctx context.Context, apiKey string, req clients.GenerationRequest) (string, error)
}

// KeyValueStore 是持久化键值存储，承载缓存条目与凭证。
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// APIKeyProvider 为模型调用提供当前 API Key。
type APIKeyProvider interface {
	GetAPIKey(ctx context.Context) (string, bool)
}

// OutboxEnqueuer 抽象 Outbox 写入，供事件外发使用。
type OutboxEnqueuer interface {
	Enqueue(ctx context.Context, sess txmanager.Session, msg repositories.OutboxMessage) error
}

// EventSink 接收流水线产生的会话消息。
type EventSink interface {
	Emit(ctx context.Context, evt vo.SessionEvent) error
}

// CaptionSource 抽象字幕抽取阶段。
type CaptionSource interface {
	Extract(ctx context.Context, videoID string) (*po.VideoDetails, error)
}

// RelevanceChecker 抽象内容类型判定阶段。
type RelevanceChecker interface {
	Classify(ctx context.Context, video po.VideoRecord, channel po.ChannelRecord, sample []string) bool
}

// TakeawayProducer 抽象要点生成阶段。
type TakeawayProducer interface {
	Generate(ctx context.Context, details *po.VideoDetails) (*po.TakeawaySet, error)
}

// TakeawayStore 抽象要点缓存。
type TakeawayStore interface {
	Get(ctx context.Context, videoID, modelID string, promptVersion int) (*po.TakeawaySet, bool, error)
	Put(ctx context.Context, videoID, modelID string, promptVersion int, set *po.TakeawaySet) error
	Invalidate(ctx context.Context, videoID string) error
}

// PipelineRunner 抽象流水线编排，供会话与任务层调用。
type PipelineRunner interface {
	Process(ctx context.Context, cmd NewVideoCommand, sink EventSink) (*PipelineResult, error)
}

// InFlightWaiter 由能够等待同一视频在途执行结束的 PipelineRunner 实现。
type InFlightWaiter interface {
	WaitIdle(ctx context.Context, videoID string) error
}

var (
	_ PageFetcher      = (*clients.YouTubeClient)(nil)
	_ TextGenerator    = (*clients.GeminiClient)(nil)
	_ CaptionSource    = (*CaptionExtractor)(nil)
	_ RelevanceChecker = (*RelevanceClassifier)(nil)
	_ TakeawayProducer = (*TakeawayGenerator)(nil)
	_ TakeawayStore    = (*TakeawayCache)(nil)
	_ PipelineRunner   = (*PipelineService)(nil)
	_ InFlightWaiter   = (*PipelineService)(nil)
	_ APIKeyProvider   = (*CredentialService)(nil)
)

var (
	_ KeyValueStore  = (*repositories.KeyValueRepository)(nil)
	_ OutboxEnqueuer = (*repositories.OutboxRepository)(nil)
)
