package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpclient "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/http_client"

	"github.com/bionicotaku/lingo-utils/observability"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

var (
	// ErrMissingAPIKey 表示调用前未配置 API Key。
	ErrMissingAPIKey = errors.New("clients: api key not configured")
	// ErrEmptyCandidates 表示模型响应中没有可用文本。
	ErrEmptyCandidates = errors.New("clients: empty candidates")
)

// GeminiConfig 描述生成式模型接口的访问参数。
type GeminiConfig struct {
	Endpoint   string
	APIVersion string
	Timeout    time.Duration
}

// GenerationRequest 是一次文本生成调用。
type GenerationRequest struct {
	Model            string
	Prompt           string
	Temperature      float64
	TopK             int
	TopP             float64
	MaxOutputTokens  int
	ResponseMIMEType string
	ResponseSchema   map[string]any
}

type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64        `json:"temperature"`
	TopK             int            `json:"topK,omitempty"`
	TopP             float64        `json:"topP,omitempty"`
	MaxOutputTokens  int            `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// APIKeyHeader 携带生成式模型的 API Key。
const APIKeyHeader = "x-goog-api-key"

// GeminiClient 调用 generateContent 接口，单次请求，不做重试。
type GeminiClient struct {
	conn       *khttp.Client
	apiVersion string
	log        *log.Helper
}

// NewGeminiClient 构造 GeminiClient。
func NewGeminiClient(cfg GeminiConfig, metricsCfg *observability.MetricsConfig, logger log.Logger) (*GeminiClient, func(), error) {
	conn, cleanup, err := httpclient.NewHTTPClient(context.Background(), httpclient.Config{
		Name:     "gemini",
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
	}, metricsCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	version := cfg.APIVersion
	if version == "" {
		version = "v1beta"
	}
	return &GeminiClient{conn: conn, apiVersion: version, log: log.NewHelper(logger)}, cleanup, nil
}

// GenerateContent 发送提示词并返回首个候选的文本。
func (c *GeminiClient) GenerateContent(ctx context.Context, apiKey string, req GenerationRequest) (string, error) {
	if c == nil || c.conn == nil {
		return "", ErrClientDisabled
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", ErrMissingAPIKey
	}
	if req.Model == "" {
		return "", fmt.Errorf("clients: model required")
	}

	body := generateContentRequest{
		Contents: []content{{Parts: []part{{Text: req.Prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      req.Temperature,
			TopK:             req.TopK,
			TopP:             req.TopP,
			MaxOutputTokens:  req.MaxOutputTokens,
			ResponseMIMEType: req.ResponseMIMEType,
			ResponseSchema:   req.ResponseSchema,
		},
	}
	path := fmt.Sprintf("/%s/models/%s:generateContent", c.apiVersion, url.PathEscape(req.Model))
	callCtx := httpclient.WithRequestHeaders(ctx, map[string]string{APIKeyHeader: apiKey})

	var resp generateContentResponse
	if err := c.conn.Invoke(callCtx, http.MethodPost, path, &body, &resp); err != nil {
		return "", fmt.Errorf("generate content (%s): %w", req.Model, err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyCandidates
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
