package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

const servicesMeterName = "lingo-services-takeaways.services"

var (
	attrComponent = attribute.Key("component")
	attrEventType = attribute.Key("event_type")
	attrErrorKind = attribute.Key("error_kind")
	attrOutcome   = attribute.Key("outcome")
	attrResult    = attribute.Key("result")
)

// instruments 在首次使用时按当前 MeterProvider 初始化一次；初始化失败时所有记录操作静默跳过。
type instruments struct {
	runs           metric.Int64Counter
	runLatency     metric.Float64Histogram
	cacheLookups   metric.Int64Counter
	generations    metric.Int64Counter
	genLatency     metric.Float64Histogram
	outboxSuccess  metric.Int64Counter
	outboxFailures metric.Int64Counter
	outboxLag      metric.Float64Histogram
}

var (
	instrumentsOnce sync.Once
	sharedInstr     *instruments
)

func loadInstruments() *instruments {
	instrumentsOnce.Do(func() {
		provider := otel.GetMeterProvider()
		if provider == nil {
			provider = noopmetric.NewMeterProvider()
		}
		instr, err := newInstruments(provider.Meter(servicesMeterName))
		if err != nil {
			otel.Handle(err)
			return
		}
		sharedInstr = instr
	})
	return sharedInstr
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var (
		in  instruments
		err error
	)
	if in.runs, err = meter.Int64Counter("takeaways_pipeline_runs_total",
		metric.WithDescription("Pipeline executions by outcome")); err != nil {
		return nil, err
	}
	if in.runLatency, err = meter.Float64Histogram("takeaways_pipeline_duration_ms",
		metric.WithDescription("End-to-end pipeline latency"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if in.cacheLookups, err = meter.Int64Counter("takeaways_cache_lookups_total",
		metric.WithDescription("Takeaway cache lookups by result")); err != nil {
		return nil, err
	}
	if in.generations, err = meter.Int64Counter("takeaways_generations_total",
		metric.WithDescription("Generative model calls for takeaways by result")); err != nil {
		return nil, err
	}
	if in.genLatency, err = meter.Float64Histogram("takeaways_generation_duration_ms",
		metric.WithDescription("Latency of takeaway generation including repair and validation"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if in.outboxSuccess, err = meter.Int64Counter("takeaways_outbox_enqueue_total",
		metric.WithDescription("Number of session events enqueued to the takeaways outbox")); err != nil {
		return nil, err
	}
	if in.outboxFailures, err = meter.Int64Counter("takeaways_outbox_enqueue_failures_total",
		metric.WithDescription("Number of takeaways outbox enqueue attempts that failed")); err != nil {
		return nil, err
	}
	if in.outboxLag, err = meter.Float64Histogram("takeaways_outbox_enqueue_lag_ms",
		metric.WithDescription("Lag between session event emission and outbox enqueue"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	return &in, nil
}

type pipelineMetrics struct {
	in *instruments
}

func newPipelineMetrics() *pipelineMetrics {
	return &pipelineMetrics{in: loadInstruments()}
}

func (m *pipelineMetrics) recordRun(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil || m.in == nil {
		return
	}
	attrs := metric.WithAttributes(attrOutcome.String(outcome))
	m.in.runs.Add(ctx, 1, attrs)
	m.in.runLatency.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

func (m *pipelineMetrics) recordCacheLookup(ctx context.Context, hit bool) {
	if m == nil || m.in == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.in.cacheLookups.Add(ctx, 1, metric.WithAttributes(attrResult.String(result)))
}

func (m *pipelineMetrics) recordGeneration(ctx context.Context, ok bool, elapsed time.Duration) {
	if m == nil || m.in == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	attrs := metric.WithAttributes(attrResult.String(result))
	m.in.generations.Add(ctx, 1, attrs)
	m.in.genLatency.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

type outboxMetrics struct {
	component string
	in        *instruments
}

func newOutboxMetrics(component string) *outboxMetrics {
	return &outboxMetrics{component: component, in: loadInstruments()}
}

func (m *outboxMetrics) recordSuccess(ctx context.Context, eventType string, occurredAt time.Time) {
	if m == nil || m.in == nil {
		return
	}
	attrs := metric.WithAttributes(
		attrComponent.String(m.component),
		attrEventType.String(eventType),
	)
	m.in.outboxSuccess.Add(ctx, 1, attrs)
	if occurredAt.IsZero() {
		return
	}
	lag := time.Since(occurredAt).Milliseconds()
	if lag < 0 {
		lag = 0
	}
	m.in.outboxLag.Record(ctx, float64(lag), attrs)
}

func (m *outboxMetrics) recordFailure(ctx context.Context, eventType string, err error) {
	if m == nil || m.in == nil {
		return
	}
	errKind := "unknown"
	if err != nil {
		errKind = fmt.Sprintf("%T", err)
	}
	m.in.outboxFailures.Add(ctx, 1, metric.WithAttributes(
		attrComponent.String(m.component),
		attrEventType.String(eventType),
		attrErrorKind.String(errKind),
	))
}
