// Package httpserver 负责装配入站 HTTP Server 及其中间件栈。
// 包括：追踪、日志、限流、恢复等中间件，以及可选的 otelhttp 指标采集。
package httpserver

import (
	"net/http"

	"github.com/bionicotaku/lingo-services-takeaways/internal/controllers"
	configloader "github.com/bionicotaku/lingo-services-takeaways/internal/infrastructure/configloader"

	"github.com/bionicotaku/lingo-utils/observability"
	obsTrace "github.com/bionicotaku/lingo-utils/observability/tracing"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/metadata"
	"github.com/go-kratos/kratos/v2/middleware/ratelimit"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HealthPath 是存活探针路径，不计入指标。
const HealthPath = "/healthz"

// NewHTTPServer 构造配置完整的 Kratos HTTP Server 实例。
//
// 中间件链（按执行顺序）：
// 1. obsTrace.Server() - OpenTelemetry 追踪，自动创建 Span
// 2. recovery.Recovery() - Panic 恢复，防止服务崩溃
// 3. metadata.Server() - 元数据传播，转发配置中前缀匹配的 header
// 4. ratelimit.Server() - 限流保护
// 5. logging.Server() - 结构化日志记录（含 trace_id/span_id）
//
// 可选指标采集：metricsCfg.Enabled 为真时以 otelhttp 过滤器包裹整个 Handler，健康检查除外。
func NewHTTPServer(
	cfg configloader.ServerConfig,
	metricsCfg *observability.MetricsConfig,
	takeaways *controllers.TakeawayHandler,
	credentials *controllers.CredentialHandler,
	sessions *controllers.SessionHandler,
	hub *controllers.SessionHub,
	logger log.Logger,
) *khttp.Server {
	metricsEnabled := true
	if metricsCfg != nil {
		metricsEnabled = metricsCfg.Enabled
	}

	mws := []middleware.Middleware{
		obsTrace.Server(),
		recovery.Recovery(),
		metadata.Server(metadata.WithPropagatedPrefix(cfg.MetadataKeys...)),
		ratelimit.Server(),
		logging.Server(logger),
	}

	opts := []khttp.ServerOption{
		khttp.Middleware(mws...),
		khttp.Logger(logger),
	}
	if metricsEnabled {
		opts = append(opts, khttp.Filter(newMetricsFilter()))
	}
	if cfg.Network != "" {
		opts = append(opts, khttp.Network(cfg.Network))
	}
	if cfg.Address != "" {
		opts = append(opts, khttp.Address(cfg.Address))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, khttp.Timeout(cfg.Timeout))
	}
	srv := khttp.NewServer(opts...)
	srv.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router := srv.Route("/")
	if takeaways != nil {
		takeaways.RegisterRoutes(router)
	}
	if credentials != nil {
		credentials.RegisterRoutes(router)
	}
	if sessions != nil {
		sessions.RegisterRoutes(router)
	}
	if hub != nil {
		hub.RegisterRoutes(router)
	}
	return srv
}

// newMetricsFilter 构造入站 HTTP 的 otelhttp 过滤器，排除健康检查以减少指标噪音。
func newMetricsFilter() khttp.FilterFunc {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "takeaways.http",
			otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != HealthPath }),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}
