package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bionicotaku/lingo-services-takeaways/internal/metadata"
	"github.com/go-kratos/kratos/v2/transport"
)

// HandlerType 表示 Handler 的语义类别，用于选择超时策略。
type HandlerType int

const (
	// HandlerTypeDefault 表示未显式区分的 Handler。
	HandlerTypeDefault HandlerType = iota
	// HandlerTypeCommand 表示触发生成或写入的命令 Handler。
	HandlerTypeCommand
	// HandlerTypeQuery 表示只读查询 Handler。
	HandlerTypeQuery
)

// HandlerTimeouts 聚合不同类型 Handler 的超时策略。
type HandlerTimeouts struct {
	Default time.Duration
	Command time.Duration
	Query   time.Duration
}

const (
	fallbackDefaultTimeout = 5 * time.Second
	fallbackQueryTimeout   = 3 * time.Second

	// HeaderSessionID 携带扩展侧标签页会话标识。
	HeaderSessionID      = "x-takeaways-session"
	headerIdempotencyKey = "x-md-idempotency-key"
	headerClientVersion  = "x-client-version"
	headerUserInfo       = "x-apigateway-api-userinfo"
)

// BaseHandler 提供公共的超时、Metadata 解析能力，供具体 Handler 内嵌复用。
type BaseHandler struct {
	timeouts HandlerTimeouts
}

// NewBaseHandler 构造基础 Handler，并为缺省值填充合理的回退策略。
func NewBaseHandler(timeouts HandlerTimeouts) *BaseHandler {
	if timeouts.Default <= 0 {
		if timeouts.Command > 0 {
			timeouts.Default = timeouts.Command
		} else if timeouts.Query > 0 {
			timeouts.Default = timeouts.Query
		} else {
			timeouts.Default = fallbackDefaultTimeout
		}
	}
	if timeouts.Command <= 0 {
		timeouts.Command = timeouts.Default
	}
	if timeouts.Query <= 0 {
		if timeouts.Default > 0 {
			timeouts.Query = timeouts.Default
		} else {
			timeouts.Query = fallbackQueryTimeout
		}
	}
	return &BaseHandler{timeouts: timeouts}
}

// Timeouts 返回填充回退值后的超时配置。
func (h *BaseHandler) Timeouts() HandlerTimeouts {
	if h == nil {
		return HandlerTimeouts{Default: fallbackDefaultTimeout, Command: fallbackDefaultTimeout, Query: fallbackQueryTimeout}
	}
	return h.timeouts
}

// WithTimeout 根据 Handler 类型包装上下文，返回绑定超时的新 Context 与取消函数。
func (h *BaseHandler) WithTimeout(ctx context.Context, kind HandlerType) (context.Context, context.CancelFunc) {
	if h == nil {
		return context.WithTimeout(ctx, fallbackDefaultTimeout)
	}
	var timeout time.Duration
	switch kind {
	case HandlerTypeCommand:
		timeout = h.timeouts.Command
	case HandlerTypeQuery:
		timeout = h.timeouts.Query
	default:
		timeout = h.timeouts.Default
	}
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// ExtractMetadata 从 Kratos 服务端 Transport 中解析会话、幂等与调用方 Header。
func (h *BaseHandler) ExtractMetadata(ctx context.Context) metadata.HandlerMetadata {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return metadata.HandlerMetadata{}
	}
	return metadataFromHeader(tr.RequestHeader())
}

// ExtractHeaderMetadata 供未经过 Kratos 中间件的原生 HTTP Handler（如 WebSocket 升级）使用。
func (h *BaseHandler) ExtractHeaderMetadata(header http.Header) metadata.HandlerMetadata {
	return metadataFromHeader(httpHeaderCarrier(header))
}

// InjectHandlerMetadata 将解析结果注入到 Context，供后续层访问。
func InjectHandlerMetadata(ctx context.Context, meta metadata.HandlerMetadata) context.Context {
	return metadata.Inject(ctx, meta)
}

// HandlerMetadataFromContext 读取上游注入的 HandlerMetadata。
func HandlerMetadataFromContext(ctx context.Context) (metadata.HandlerMetadata, bool) {
	return metadata.FromContext(ctx)
}

type headerGetter interface {
	Get(key string) string
}

type httpHeaderCarrier http.Header

func (c httpHeaderCarrier) Get(key string) string {
	return http.Header(c).Get(key)
}

func metadataFromHeader(header headerGetter) metadata.HandlerMetadata {
	meta := metadata.HandlerMetadata{
		SessionID:      strings.TrimSpace(header.Get(HeaderSessionID)),
		IdempotencyKey: strings.TrimSpace(header.Get(headerIdempotencyKey)),
		ClientVersion:  strings.TrimSpace(header.Get(headerClientVersion)),
	}
	rawUserInfo := strings.TrimSpace(header.Get(headerUserInfo))
	meta.RawUserInfo = rawUserInfo
	if rawUserInfo != "" {
		userID, err := metadata.ExtractUserIDFromUserInfo(rawUserInfo)
		if err == nil && strings.TrimSpace(userID) != "" {
			meta.UserID = userID
		} else {
			meta.InvalidUserInfo = true
		}
	}
	return meta
}
