package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bionicotaku/lingo-services-takeaways/internal/clients"
	"github.com/go-kratos/kratos/v2/log"
)

// APIKeyStoreKey 是凭证在键值存储中的键名。
const APIKeyStoreKey = "apiKey"

// 校验失败的用户可读文案。
const (
	ValidationInvalidKey      = "Invalid API key"
	ValidationConnectionError = "Connection error"
	ValidationEmptyKey        = "API key is required"
)

const validationProbePrompt = "Reply with 'ok' if you can read this."

// ValidationResult 是一次凭证校验的结果。
type ValidationResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CredentialService 管理生成式模型的 API Key：先校验，校验通过才持久化。
type CredentialService struct {
	store      KeyValueStore
	generator  TextGenerator
	model      string
	defaultKey string
	log        *log.Helper
}

// NewCredentialService 构造 CredentialService。
func NewCredentialService(store KeyValueStore, generator TextGenerator, cfg PipelineConfig, logger log.Logger) *CredentialService {
	cfg = cfg.Normalize()
	return &CredentialService{
		store:      store,
		generator:  generator,
		model:      cfg.ClassificationModel,
		defaultKey: strings.TrimSpace(cfg.DefaultAPIKey),
		log:        log.NewHelper(logger),
	}
}

// GetAPIKey 优先返回已持久化的 Key，其次为配置中的默认 Key。
func (s *CredentialService) GetAPIKey(ctx context.Context) (string, bool) {
	raw, ok, err := s.store.Get(ctx, APIKeyStoreKey)
	if err != nil {
		s.log.WithContext(ctx).Warnf("read stored api key failed: %v", err)
	}
	if ok {
		if key := strings.TrimSpace(string(raw)); key != "" {
			return key, true
		}
	}
	if s.defaultKey != "" {
		return s.defaultKey, true
	}
	return "", false
}

// Validate 用最小探测请求检验 Key 是否可用。
func (s *CredentialService) Validate(ctx context.Context, apiKey string) ValidationResult {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return ValidationResult{Error: ValidationEmptyKey}
	}
	_, err := s.generator.GenerateContent(ctx, apiKey, clients.GenerationRequest{
		Model:           s.model,
		Prompt:          validationProbePrompt,
		Temperature:     0.1,
		MaxOutputTokens: 1,
	})
	// maxOutputTokens=1 时候选内容可能为空，但请求本身已通过鉴权。
	if err == nil || errors.Is(err, clients.ErrEmptyCandidates) {
		return ValidationResult{Success: true}
	}
	s.log.WithContext(ctx).Warnf("api key validation failed: %v", err)
	if strings.Contains(err.Error(), "API key") {
		return ValidationResult{Error: ValidationInvalidKey}
	}
	return ValidationResult{Error: ValidationConnectionError}
}

// SetAPIKey 校验通过后持久化；校验失败时不写入存储。
func (s *CredentialService) SetAPIKey(ctx context.Context, apiKey string) (ValidationResult, error) {
	result := s.Validate(ctx, apiKey)
	if !result.Success {
		return result, nil
	}
	if err := s.store.Set(ctx, APIKeyStoreKey, []byte(strings.TrimSpace(apiKey))); err != nil {
		return ValidationResult{Error: ValidationConnectionError}, fmt.Errorf("persist api key: %w", err)
	}
	s.log.WithContext(ctx).Info("api key updated")
	return result, nil
}

// ClearAPIKey 删除已持久化的 Key，之后回退到默认 Key。
func (s *CredentialService) ClearAPIKey(ctx context.Context) error {
	if err := s.store.Remove(ctx, APIKeyStoreKey); err != nil {
		return fmt.Errorf("remove api key: %w", err)
	}
	return nil
}
