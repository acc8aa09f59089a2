// Package services 包含要点流水线的业务编排：字幕抽取、内容判定、要点生成、缓存与会话。
// 该层只依赖 clients 与 repositories 暴露的能力接口，不直接依赖传输层。
package services

import (
	"github.com/bionicotaku/lingo-services-takeaways/internal/clients"
	"github.com/bionicotaku/lingo-services-takeaways/internal/repositories"
	"github.com/google/wire"
)

// ProviderSet 暴露 Services 层的构造函数供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	NewCaptionExtractor,
	NewCredentialService,
	NewRelevanceClassifier,
	NewTakeawayGenerator,
	NewTakeawayCache,
	NewPipelineService,
	NewSessionBroadcaster,
	NewSessionService,
	wire.Bind(new(KeyValueStore), new(*repositories.KeyValueRepository)),
	wire.Bind(new(OutboxEnqueuer), new(*repositories.OutboxRepository)),
	wire.Bind(new(PageFetcher), new(*clients.YouTubeClient)),
	wire.Bind(new(TextGenerator), new(*clients.GeminiClient)),
	wire.Bind(new(APIKeyProvider), new(*CredentialService)),
	wire.Bind(new(CaptionSource), new(*CaptionExtractor)),
	wire.Bind(new(RelevanceChecker), new(*RelevanceClassifier)),
	wire.Bind(new(TakeawayProducer), new(*TakeawayGenerator)),
	wire.Bind(new(TakeawayStore), new(*TakeawayCache)),
	wire.Bind(new(PipelineRunner), new(*PipelineService)),
)
