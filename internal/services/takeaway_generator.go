package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/clients"
	"github.com/bionicotaku/lingo-services-takeaways/internal/models/po"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
)

// GenerationStage 标识生成失败发生的环节。
type GenerationStage string

// 生成失败环节
const (
	StageCredentials GenerationStage = "credentials"
	StageRequest     GenerationStage = "request"
	StageParse       GenerationStage = "parse"
	StageValidate    GenerationStage = "validate"
)

// GenerationError 描述一次生成失败，仅用于日志与指标，不直接暴露给用户。
type GenerationError struct {
	Stage GenerationStage
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("takeaway generation failed at %s: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// TakeawayGenerator 调用生成模型并把响应修复、校验为 TakeawaySet。
type TakeawayGenerator struct {
	generator TextGenerator
	keys      APIKeyProvider
	model     string
	log       *log.Helper
	now       func() time.Time
}

// NewTakeawayGenerator 构造 TakeawayGenerator。
func NewTakeawayGenerator(generator TextGenerator, keys APIKeyProvider, cfg PipelineConfig, logger log.Logger) *TakeawayGenerator {
	cfg = cfg.Normalize()
	return &TakeawayGenerator{
		generator: generator,
		keys:      keys,
		model:     cfg.TakeawaysModel,
		log:       log.NewHelper(logger),
		now:       time.Now,
	}
}

// Model 返回生成使用的模型标识，也是缓存键的一部分。
func (g *TakeawayGenerator) Model() string {
	return g.model
}

// Generate 生成要点集合。任何预期内的失败都返回 *GenerationError。
func (g *TakeawayGenerator) Generate(ctx context.Context, details *po.VideoDetails) (*po.TakeawaySet, error) {
	if details == nil || !details.Captions.Available {
		return nil, &GenerationError{Stage: StageRequest, Err: errors.New("captions unavailable")}
	}
	apiKey, ok := g.keys.GetAPIKey(ctx)
	if !ok {
		return nil, &GenerationError{Stage: StageCredentials, Err: clients.ErrMissingAPIKey}
	}

	text, err := g.generator.GenerateContent(ctx, apiKey, clients.GenerationRequest{
		Model:            g.model,
		Prompt:           BuildTakeawayPrompt(details),
		Temperature:      0.4,
		TopK:             40,
		TopP:             0.7,
		MaxOutputTokens:  8192,
		ResponseMIMEType: "application/json",
		ResponseSchema:   takeawayResponseSchema(),
	})
	if err != nil {
		return nil, &GenerationError{Stage: StageRequest, Err: err}
	}

	fields, pass, err := RepairAndDecode(text)
	if err != nil {
		return nil, &GenerationError{Stage: StageParse, Err: err}
	}
	if pass != PassFenceAndDelimiter {
		g.log.WithContext(ctx).Infof("takeaway response repaired: video=%s pass=%s", details.Video.ID, pass)
	}

	set, err := DecodeTakeawaySet(fields)
	if err != nil {
		return nil, &GenerationError{Stage: StageValidate, Err: err}
	}
	set.Takeaways = DeduplicateTakeaways(set.Takeaways)
	if set.ID == "" {
		set.ID = newSetID(g.now())
	}
	if set.Title == "" {
		set.Title = details.Video.Title
	}
	if set.DurationMinutes == 0 {
		set.DurationMinutes = details.Video.DurationMinutes()
	}
	return set, nil
}

// newSetID 生成时间有序的集合 ID；V7 生成失败时退回毫秒时间戳加随机串。
func newSetID(now time.Time) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString())
	}
	return id.String()
}
