package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope of every ragflow instrument.
const MeterName = "github.com/randalmurphal/newsrag/ragflow"

// MetricsRecorder records ragflow metrics.
// Use NewMetricsRecorder for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordStage records one stage execution.
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)

	// RecordRun records a finished run.
	RecordRun(ctx context.Context, success bool, duration time.Duration, reformulations int)

	// RecordRoute records a routing decision.
	RecordRoute(ctx context.Context, from, to string)

	// RecordConfidence records an evaluated confidence score.
	RecordConfidence(ctx context.Context, score float64)

	// RecordSnapshot records a saved snapshot.
	RecordSnapshot(ctx context.Context, stage string, sizeBytes int64)
}

type otelMetrics struct {
	stageExecutions metric.Int64Counter
	stageLatency    metric.Float64Histogram
	stageErrors     metric.Int64Counter
	runs            metric.Int64Counter
	runLatency      metric.Float64Histogram
	reformulations  metric.Int64Histogram
	routes          metric.Int64Counter
	confidence      metric.Float64Histogram
	snapshotSize    metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter(MeterName))
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	m := &otelMetrics{}
	var err error

	if m.stageExecutions, err = meter.Int64Counter("ragflow.stage.executions",
		metric.WithDescription("Number of stage executions"),
	); err != nil {
		return nil, err
	}
	if m.stageLatency, err = meter.Float64Histogram("ragflow.stage.latency_ms",
		metric.WithDescription("Stage execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.stageErrors, err = meter.Int64Counter("ragflow.stage.errors",
		metric.WithDescription("Number of failed stage executions"),
	); err != nil {
		return nil, err
	}
	if m.runs, err = meter.Int64Counter("ragflow.run.count",
		metric.WithDescription("Number of runs"),
	); err != nil {
		return nil, err
	}
	if m.runLatency, err = meter.Float64Histogram("ragflow.run.latency_ms",
		metric.WithDescription("Run latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.reformulations, err = meter.Int64Histogram("ragflow.run.reformulations",
		metric.WithDescription("Query reformulations per run"),
	); err != nil {
		return nil, err
	}
	if m.routes, err = meter.Int64Counter("ragflow.route.decisions",
		metric.WithDescription("Routing decisions by source and target stage"),
	); err != nil {
		return nil, err
	}
	if m.confidence, err = meter.Float64Histogram("ragflow.evaluation.confidence",
		metric.WithDescription("Mean relevance score produced by the evaluator"),
	); err != nil {
		return nil, err
	}
	if m.snapshotSize, err = meter.Int64Histogram("ragflow.snapshot.size_bytes",
		metric.WithDescription("Snapshot size in bytes"),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a recorder backed by the global OTel meter
// provider, or a no-op recorder if instrument creation fails.
// Set the provider with otel.SetMeterProvider before the first call.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMetricsRecorderWithMeter returns a recorder on an explicit meter.
func NewMetricsRecorderWithMeter(meter metric.Meter) (MetricsRecorder, error) {
	return newOtelMetrics(meter)
}

func (m *otelMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.stageExecutions.Add(ctx, 1, attrs)
	m.stageLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	if err != nil {
		m.stageErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordRun(ctx context.Context, success bool, duration time.Duration, reformulations int) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.runs.Add(ctx, 1, attrs)
	m.runLatency.Record(ctx, float64(duration.Milliseconds()), attrs)
	m.reformulations.Record(ctx, int64(reformulations), attrs)
}

func (m *otelMetrics) RecordRoute(ctx context.Context, from, to string) {
	m.routes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

func (m *otelMetrics) RecordConfidence(ctx context.Context, score float64) {
	m.confidence.Record(ctx, score)
}

func (m *otelMetrics) RecordSnapshot(ctx context.Context, stage string, sizeBytes int64) {
	m.snapshotSize.Record(ctx, sizeBytes, metric.WithAttributes(attribute.String("stage", stage)))
}
