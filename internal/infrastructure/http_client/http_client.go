// Package httpclient 负责配置出站 HTTP 客户端，供 clients 层调用 YouTube 与生成式模型接口。
// 包括：追踪、熔断、固定请求头等中间件，以及可选的 otelhttp 指标采集。
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-utils/observability"
	obsTrace "github.com/bionicotaku/lingo-utils/observability/tracing"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/circuitbreaker"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxErrorBodyBytes = 4 << 10

// Config 描述单个上游的连接参数。
type Config struct {
	Name      string
	Endpoint  string
	Timeout   time.Duration
	UserAgent string
	Headers   map[string]string
}

// NewHTTPClient 创建配置完整的 Kratos HTTP 客户端。
//
// 中间件链（按执行顺序）：
// 1. recovery.Recovery() - 捕获客户端调用中的 panic
// 2. 固定请求头注入（如 Accept-Language）
// 3. 单次调用请求头注入（WithRequestHeaders，如凭证）
// 4. obsTrace.Client() - OpenTelemetry 追踪，创建子 Span
// 5. circuitbreaker.Client() - 熔断保护
//
// 响应解码：*string / *[]byte 直接返回原始报文，其余类型按 Content-Type 解码。
// 错误解码：非 2xx 响应转为 kratos errors，Code 为 HTTP 状态码，Message 保留上游错误描述。
//
// 特殊处理：
// - 如果未配置 endpoint，返回 nil client（不报错），调用方需自行降级
func NewHTTPClient(ctx context.Context, cfg Config, metricsCfg *observability.MetricsConfig, logger log.Logger) (*khttp.Client, func(), error) {
	helper := log.NewHelper(logger)
	if cfg.Endpoint == "" {
		helper.Warnf("http client %q endpoint not configured; remote calls disabled", cfg.Name)
		return nil, func() {}, nil
	}

	metricsEnabled := true
	if metricsCfg != nil {
		metricsEnabled = metricsCfg.Enabled
	}

	mws := []middleware.Middleware{recovery.Recovery()}
	if len(cfg.Headers) > 0 {
		mws = append(mws, injectHeaders(cfg.Headers))
	}
	mws = append(mws,
		injectContextHeaders(),
		obsTrace.Client(),
		circuitbreaker.Client(),
	)

	var rt http.RoundTripper = http.DefaultTransport
	if metricsEnabled {
		rt = otelhttp.NewTransport(rt, otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return cfg.Name + " " + r.Method
		}))
	}

	opts := []khttp.ClientOption{
		khttp.WithEndpoint(cfg.Endpoint),
		khttp.WithMiddleware(mws...),
		khttp.WithTransport(rt),
		khttp.WithResponseDecoder(decodeResponse),
		khttp.WithErrorDecoder(decodeError),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, khttp.WithTimeout(cfg.Timeout))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, khttp.WithUserAgent(cfg.UserAgent))
	}

	client, err := khttp.NewClient(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("init http client %q: %w", cfg.Name, err)
	}

	cleanup := func() {
		if err := client.Close(); err != nil {
			helper.Errorf("close http client %q: %v", cfg.Name, err)
		}
	}
	return client, cleanup, nil
}

type requestHeadersKey struct{}

// WithRequestHeaders 为本次调用附加请求头。凭证等敏感值应走请求头，不拼入 URL。
func WithRequestHeaders(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	merged := make(map[string]string, len(headers))
	if prev, ok := ctx.Value(requestHeadersKey{}).(map[string]string); ok {
		for k, v := range prev {
			merged[k] = v
		}
	}
	for k, v := range headers {
		merged[k] = v
	}
	return context.WithValue(ctx, requestHeadersKey{}, merged)
}

func injectContextHeaders() middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			headers, _ := ctx.Value(requestHeadersKey{}).(map[string]string)
			if tr, ok := transport.FromClientContext(ctx); ok {
				for k, v := range headers {
					tr.RequestHeader().Set(k, v)
				}
			}
			return next(ctx, req)
		}
	}
}

func injectHeaders(headers map[string]string) middleware.Middleware {
	return func(next middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req any) (any, error) {
			if tr, ok := transport.FromClientContext(ctx); ok {
				for k, v := range headers {
					tr.RequestHeader().Set(k, v)
				}
			}
			return next(ctx, req)
		}
	}
}

func decodeResponse(ctx context.Context, res *http.Response, out any) error {
	switch v := out.(type) {
	case *string:
		defer res.Body.Close()
		data, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		*v = string(data)
		return nil
	case *[]byte:
		defer res.Body.Close()
		data, err := io.ReadAll(res.Body)
		if err != nil {
			return err
		}
		*v = data
		return nil
	default:
		return khttp.DefaultResponseDecoder(ctx, res, out)
	}
}

// upstreamError 兼容 Google API 的错误报文：{"error":{"code":400,"message":"...","status":"..."}}。
type upstreamError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func decodeError(_ context.Context, res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode <= 299 {
		return nil
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodyBytes))

	reason := fmt.Sprintf("UPSTREAM_%d", res.StatusCode)
	message := strings.TrimSpace(string(data))
	var env upstreamError
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&env); err == nil && env.Error.Message != "" {
		message = env.Error.Message
		if env.Error.Status != "" {
			reason = env.Error.Status
		}
	}
	if message == "" {
		message = http.StatusText(res.StatusCode)
	}
	return kerrors.New(res.StatusCode, reason, message)
}
