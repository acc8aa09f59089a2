// Package controllers 提供 HTTP / WebSocket 传输层 Handler，负责处理外部请求并调用业务层。
// 该层负责参数校验、DTO 转换和错误映射。
package controllers

import (
	"github.com/bionicotaku/lingo-services-takeaways/internal/services"
	"github.com/google/wire"
)

// ProviderSet exposes controller/handler constructors for DI.
var ProviderSet = wire.NewSet(
	NewBaseHandler,
	NewTakeawayHandler,
	NewCredentialHandler,
	NewSessionHandler,
	NewSessionHub,
	wire.Bind(new(TakeawayPipeline), new(*services.PipelineService)),
	wire.Bind(new(CredentialManager), new(*services.CredentialService)),
)
