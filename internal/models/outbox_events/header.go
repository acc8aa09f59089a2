// Package outboxevents 把会话消息包装为领域事件，并派生 Outbox / Pub/Sub 所需的
// 附加属性（attributes）与 protobuf 载荷。
package outboxevents

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Attribute 键名，发布端与消费端共用。
const (
	AttrEventID       = "event_id"
	AttrEventType     = "event_type"
	AttrAggregateID   = "aggregate_id"
	AttrAggregateType = "aggregate_type"
	AttrVersion       = "version"
	AttrOccurredAt    = "occurred_at"
	AttrSchemaVersion = "schema_version"
	AttrTraceID       = "trace_id"
	AttrVideoID       = "video_id"
	AttrSessionID     = "session_id"
)

// FormatEventType 将事件种类映射为语义化字符串。
func FormatEventType(kind Kind) string {
	return kind.String()
}

// BuildAttributes 构造 message attributes；会话载荷额外携带 video_id 与 session_id，便于订阅端过滤。
func BuildAttributes(event *DomainEvent, schemaVersion string, traceID string) map[string]string {
	if schemaVersion == "" {
		schemaVersion = SchemaVersionV1
	}
	attrs := map[string]string{
		AttrEventID:       event.EventID.String(),
		AttrEventType:     FormatEventType(event.Kind),
		AttrAggregateID:   event.AggregateID.String(),
		AttrAggregateType: event.AggregateType,
		AttrVersion:       strconv.FormatInt(event.Version, 10),
		AttrOccurredAt:    event.OccurredAt.UTC().Format(time.RFC3339Nano),
		AttrSchemaVersion: schemaVersion,
	}
	if payload, ok := event.Payload.(*SessionEventPayload); ok && payload != nil {
		attrs[AttrVideoID] = payload.VideoID
		if payload.SessionID != "" {
			attrs[AttrSessionID] = payload.SessionID
		}
	}
	if traceID != "" {
		attrs[AttrTraceID] = traceID
	}
	return attrs
}

// TraceIDFromContext 提取 OTel Trace ID，若不存在返回空字符串。
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() || !spanCtx.HasTraceID() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// VersionFromTime 根据 UTC 微秒时间计算版本号，同一视频的事件按发生顺序递增。
func VersionFromTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMicro()
}
