package services

import (
	"context"
	"strings"

	"github.com/bionicotaku/lingo-services-takeaways/internal/clients"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/go-kratos/kratos/v2/log"
)

// RelevanceClassifier 判断视频是否属于播客、访谈、评论或长篇教育内容。
// 任何失败都按“不相关”处理。
type RelevanceClassifier struct {
	generator TextGenerator
	keys      APIKeyProvider
	model     string
	log       *log.Helper
}

// NewRelevanceClassifier 构造 RelevanceClassifier。
func NewRelevanceClassifier(generator TextGenerator, keys APIKeyProvider, cfg PipelineConfig, logger log.Logger) *RelevanceClassifier {
	cfg = cfg.Normalize()
	return &RelevanceClassifier{
		generator: generator,
		keys:      keys,
		model:     cfg.ClassificationModel,
		log:       log.NewHelper(logger),
	}
}

// Classify 单次调用判定模型，仅当响应去空白、转小写后恰为 "true" 时返回 true。
func (c *RelevanceClassifier) Classify(ctx context.Context, video po.VideoRecord, channel po.ChannelRecord, sample []string) bool {
	apiKey, ok := c.keys.GetAPIKey(ctx)
	if !ok {
		c.log.WithContext(ctx).Warnf("relevance check skipped: api key not configured video=%s", video.ID)
		return false
	}
	text, err := c.generator.GenerateContent(ctx, apiKey, clients.GenerationRequest{
		Model:           c.model,
		Prompt:          BuildRelevancePrompt(video, channel, sample),
		Temperature:     0.1,
		TopK:            1,
		TopP:            0.1,
		MaxOutputTokens: 1,
	})
	if err != nil {
		c.log.WithContext(ctx).Warnf("relevance check failed: video=%s err=%v", video.ID, err)
		return false
	}
	relevant := strings.ToLower(strings.TrimSpace(text)) == "true"
	c.log.WithContext(ctx).Infof("relevance decided: video=%s relevant=%t", video.ID, relevant)
	return relevant
}
