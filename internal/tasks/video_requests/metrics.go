package videorequests

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

type inboxMetrics struct {
	success metric.Int64Counter
	failure metric.Int64Counter
	lag     metric.Float64Histogram
	enabled bool
}

func newInboxMetrics() *inboxMetrics {
	meterProvider := otel.GetMeterProvider()
	if meterProvider == nil {
		meterProvider = noopmetric.NewMeterProvider()
	}
	meter := meterProvider.Meter("lingo-services-takeaways.video_requests")

	success, err := meter.Int64Counter("video_requests_processed_total", metric.WithDescription("Number of NEW_VIDEO commands processed by outcome"))
	if err != nil {
		return &inboxMetrics{}
	}
	failure, err := meter.Int64Counter("video_requests_failure_total", metric.WithDescription("Number of NEW_VIDEO commands that failed and will be redelivered"))
	if err != nil {
		return &inboxMetrics{}
	}
	lag, err := meter.Float64Histogram("video_requests_lag_ms", metric.WithDescription("Lag between request occurred_at and completion"), metric.WithUnit("ms"))
	if err != nil {
		return &inboxMetrics{}
	}

	return &inboxMetrics{
		success: success,
		failure: failure,
		lag:     lag,
		enabled: true,
	}
}

func (m *inboxMetrics) recordSuccess(ctx context.Context, outcome string, occurredAt time.Time, now time.Time) {
	if m == nil || !m.enabled {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.success.Add(ctx, 1, attrs)
	if !occurredAt.IsZero() && !now.IsZero() {
		lag := now.Sub(occurredAt).Milliseconds()
		if lag < 0 {
			lag = 0
		}
		m.lag.Record(ctx, float64(lag), attrs)
	}
}

func (m *inboxMetrics) recordFailure(ctx context.Context, eventType string, err error) {
	if m == nil || !m.enabled {
		return
	}
	kind := "unknown"
	if err != nil {
		kind = fmt.Sprintf("%T", err)
	}
	m.failure.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("error_kind", kind),
	))
}
