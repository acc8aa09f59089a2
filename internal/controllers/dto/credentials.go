package dto

import "github.com/bionicotaku/lingo-services-takeaways/internal/services"

// CredentialRequest 携带待校验或待保存的 API Key。
type CredentialRequest struct {
	APIKey string `json:"apiKey"`
}

// ValidationResponse 是校验或保存的结果。
type ValidationResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// CredentialStatusResponse 报告是否已配置可用的 Key，不回传 Key 本身。
type CredentialStatusResponse struct {
	Configured bool `json:"configured"`
}

// ToValidationResponse 转换服务层校验结果。
func ToValidationResponse(result services.ValidationResult) *ValidationResponse {
	return &ValidationResponse{Success: result.Success, Error: result.Error}
}
