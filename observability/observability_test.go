package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestPipelineMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = mp.Shutdown(context.Background()) }()

	m, err := NewPipelineMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewPipelineMetrics: %v", err)
	}

	ctx := context.Background()
	m.RecordStage(ctx, "TRANSCRIBING", "ok", 2*time.Second)
	m.RecordJob(ctx, "FAILED", "LLM_CONTENT_BLOCKED")
	m.RecordJob(ctx, "FAILED", "LLM_CONTENT_BLOCKED")
	m.RecordCredentialUnavailable(ctx, "openai", "quota")
	m.RecordFallback(ctx, "transcription", "assembly")

	got := collect(t, reader)
	for _, name := range []string{"pipeline.stage.duration", "pipeline.job.outcome", "keyquota.acquire.unavailable", "backend.fallback"} {
		if _, ok := got[name]; !ok {
			t.Errorf("missing metric %s", name)
		}
	}

	sum, ok := got["pipeline.job.outcome"].Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("unexpected job outcome data %#v", got["pipeline.job.outcome"].Data)
	}
	dp := sum.DataPoints[0]
	if dp.Value != 2 {
		t.Errorf("expected 2 jobs, got %d", dp.Value)
	}
	if v, _ := dp.Attributes.Value(attribute.Key("error_code")); v.AsString() != "LLM_CONTENT_BLOCKED" {
		t.Errorf("unexpected error_code attribute %v", v)
	}
}

func TestPipelineMetrics_NilIsNoop(t *testing.T) {
	var m *PipelineMetrics
	m.RecordStage(context.Background(), "x", "ok", time.Second)
	m.RecordJob(context.Background(), "SUCCESS", "")
}

func TestStartSpanAndAttributes(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	ctx, span := StartSpan(context.Background(), "pipeline.transcribe")
	SetSpanAttribute(ctx, AttrJobID, "job-1")
	SetSpanAttribute(ctx, AttrSegmentCount, 2)
	SetSpanError(ctx, errors.New("primary failed"))
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	s := ended[0]
	if s.Name() != "pipeline.transcribe" {
		t.Errorf("unexpected span name %s", s.Name())
	}
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs[AttrJobID].AsString() != "job-1" || attrs[AttrSegmentCount].AsInt64() != 2 {
		t.Errorf("unexpected attributes %v", attrs)
	}
	if len(s.Events()) != 1 {
		t.Errorf("expected recorded error event, got %d", len(s.Events()))
	}
}

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Endpoint != "localhost:4318" || c.SampleRate != 1 || c.MetricInterval != 15*time.Second {
		t.Errorf("unexpected defaults %+v", c)
	}
}
