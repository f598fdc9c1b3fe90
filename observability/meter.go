package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/meetingflow/logger"
)

// InitMeter exports metrics over OTLP/HTTP every cfg.MetricInterval and
// installs the provider globally. The caller shuts it down.
func InitMeter(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(cfg.MetricInterval))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)

	logger.Get("observability").Info("metrics enabled", logger.Fields("endpoint", cfg.Endpoint, "interval", cfg.MetricInterval.String()))
	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// PipelineMetrics holds the instruments the pipeline records into.
// A nil *PipelineMetrics records nothing.
type PipelineMetrics struct {
	stageDuration         metric.Float64Histogram
	jobOutcome            metric.Int64Counter
	credentialUnavailable metric.Int64Counter
	backendFallback       metric.Int64Counter
}

// NewPipelineMetrics creates the instruments on meter.
func NewPipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	stageDuration, err := meter.Float64Histogram("pipeline.stage.duration",
		metric.WithDescription("Duration of pipeline stages"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.stage.duration histogram: %w", err)
	}

	jobOutcome, err := meter.Int64Counter("pipeline.job.outcome",
		metric.WithDescription("Finished jobs by terminal state and error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.job.outcome counter: %w", err)
	}

	credentialUnavailable, err := meter.Int64Counter("keyquota.acquire.unavailable",
		metric.WithDescription("Credential acquisitions that found no usable key"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating keyquota.acquire.unavailable counter: %w", err)
	}

	backendFallback, err := meter.Int64Counter("backend.fallback",
		metric.WithDescription("Failed backend attempts that moved to the next backend"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating backend.fallback counter: %w", err)
	}

	return &PipelineMetrics{
		stageDuration:         stageDuration,
		jobOutcome:            jobOutcome,
		credentialUnavailable: credentialUnavailable,
		backendFallback:       backendFallback,
	}, nil
}

// RecordStage records how long a stage ran and whether it succeeded.
func (m *PipelineMetrics) RecordStage(ctx context.Context, stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

// RecordJob counts a finished job.
func (m *PipelineMetrics) RecordJob(ctx context.Context, state, errorCode string) {
	if m == nil {
		return
	}
	m.jobOutcome.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state),
		attribute.String("error_code", errorCode),
	))
}

// RecordCredentialUnavailable counts a failed credential acquisition.
func (m *PipelineMetrics) RecordCredentialUnavailable(ctx context.Context, provider, reason string) {
	if m == nil {
		return
	}
	m.credentialUnavailable.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("reason", reason),
	))
}

// RecordFallback counts a backend attempt that failed over to the next one.
func (m *PipelineMetrics) RecordFallback(ctx context.Context, capability, from string) {
	if m == nil {
		return
	}
	m.backendFallback.Add(ctx, 1, metric.WithAttributes(
		attribute.String("capability", capability),
		attribute.String("from", from),
	))
}
