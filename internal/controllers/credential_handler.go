package controllers

import (
	"context"

	"github.com/bionicotaku/lingo-services-takeaways/internal/controllers/dto"
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	khttp "github.com/go-kratos/kratos/v2/transport/http"
)

// CredentialManager 抽象凭证的校验与持久化。
type CredentialManager interface {
	services.APIKeyProvider
	Validate(ctx context.Context, apiKey string) services.ValidationResult
	SetAPIKey(ctx context.Context, apiKey string) (services.ValidationResult, error)
	ClearAPIKey(ctx context.Context) error
}

var _ CredentialManager = (*services.CredentialService)(nil)

// CredentialHandler 暴露 API Key 的校验、保存与状态查询。响应中从不回传 Key。
type CredentialHandler struct {
	*BaseHandler
	credentials CredentialManager
	log         *log.Helper
}

// NewCredentialHandler 构造 CredentialHandler。
func NewCredentialHandler(credentials CredentialManager, base *BaseHandler, logger log.Logger) *CredentialHandler {
	if base == nil {
		base = NewBaseHandler(HandlerTimeouts{})
	}
	return &CredentialHandler{BaseHandler: base, credentials: credentials, log: log.NewHelper(logger)}
}

// RegisterRoutes 注册凭证路由。
func (h *CredentialHandler) RegisterRoutes(r *khttp.Router) {
	r.POST("/v1/credentials/validate", h.validate)
	r.PUT("/v1/credentials", h.set)
	r.GET("/v1/credentials", h.status)
	r.DELETE("/v1/credentials", h.clear)
}

func (h *CredentialHandler) bind(ctx khttp.Context) (*dto.CredentialRequest, error) {
	var req dto.CredentialRequest
	if err := ctx.Bind(&req); err != nil {
		return nil, kerrors.BadRequest(ReasonInvalidArgument, "malformed request body").WithCause(err)
	}
	return &req, nil
}

func (h *CredentialHandler) validate(ctx khttp.Context) error {
	req, err := h.bind(ctx)
	if err != nil {
		return err
	}
	return invoke(ctx, "Credentials/Validate", req, h.Validate)
}

func (h *CredentialHandler) set(ctx khttp.Context) error {
	req, err := h.bind(ctx)
	if err != nil {
		return err
	}
	return invoke(ctx, "Credentials/Set", req, h.Set)
}

func (h *CredentialHandler) status(ctx khttp.Context) error {
	return invoke(ctx, "Credentials/Status", struct{}{}, func(c context.Context, _ struct{}) (*dto.CredentialStatusResponse, error) {
		return h.Status(c)
	})
}

func (h *CredentialHandler) clear(ctx khttp.Context) error {
	return invoke(ctx, "Credentials/Clear", struct{}{}, func(c context.Context, _ struct{}) (*dto.CredentialStatusResponse, error) {
		return h.Clear(c)
	})
}

// Validate 仅校验，不持久化。校验失败以 success=false 返回而非错误状态码。
func (h *CredentialHandler) Validate(ctx context.Context, req *dto.CredentialRequest) (*dto.ValidationResponse, error) {
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeDefault)
	defer cancel()
	return dto.ToValidationResponse(h.credentials.Validate(timeoutCtx, req.APIKey)), nil
}

// Set 校验通过后持久化。
func (h *CredentialHandler) Set(ctx context.Context, req *dto.CredentialRequest) (*dto.ValidationResponse, error) {
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeDefault)
	defer cancel()
	result, err := h.credentials.SetAPIKey(timeoutCtx, req.APIKey)
	if err != nil {
		h.log.WithContext(ctx).Errorw("msg", "persist api key failed", "error", err)
		return nil, mapStoreError(err)
	}
	return dto.ToValidationResponse(result), nil
}

// Status 报告是否存在可用 Key。
func (h *CredentialHandler) Status(ctx context.Context) (*dto.CredentialStatusResponse, error) {
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeQuery)
	defer cancel()
	_, ok := h.credentials.GetAPIKey(timeoutCtx)
	return &dto.CredentialStatusResponse{Configured: ok}, nil
}

// Clear 删除已保存的 Key，返回清除后的状态（可能仍有配置中的默认 Key）。
func (h *CredentialHandler) Clear(ctx context.Context) (*dto.CredentialStatusResponse, error) {
	timeoutCtx, cancel := h.WithTimeout(ctx, HandlerTypeDefault)
	defer cancel()
	if err := h.credentials.ClearAPIKey(timeoutCtx); err != nil {
		return nil, mapStoreError(err)
	}
	_, ok := h.credentials.GetAPIKey(timeoutCtx)
	return &dto.CredentialStatusResponse{Configured: ok}, nil
}
