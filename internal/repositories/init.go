// Package repositories 提供要点服务的持久化实现：键值缓存后端与 Outbox/Inbox 消息表。
package repositories

import "github.com/google/wire"

// ProviderSet 暴露 Repository 层的构造函数供 Wire 依赖注入使用。
var ProviderSet = wire.NewSet(
	NewKeyValueRepository,
	NewOutboxRepository,
	NewInboxRepository,
)
