package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{}, "voicememo", "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown failed: %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || !cfg.Insecure {
		t.Errorf("unexpected endpoint defaults %+v", cfg)
	}
	if cfg.SampleRate != 1.0 || cfg.Interval != 30*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestMetricsRecordStage(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	ctx := context.Background()
	m.RecordStage(ctx, "diarization", "ok", 20*time.Millisecond)
	m.RecordStage(ctx, "diarization", "failed", 5*time.Millisecond)
	m.RecordPrompt(ctx, "speaker_upsell", true)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			found[metric.Name] = true
			if metric.Name == "voicememo.pipeline.stage.total" {
				sum, ok := metric.Data.(metricdata.Sum[int64])
				if !ok {
					t.Fatalf("unexpected data type %T", metric.Data)
				}
				if len(sum.DataPoints) != 2 {
					t.Errorf("expected 2 outcome series, got %d", len(sum.DataPoints))
				}
			}
		}
	}
	for _, name := range []string{"voicememo.pipeline.stage.total", "voicememo.pipeline.stage.duration", "voicememo.prompt.decision.total"} {
		if !found[name] {
			t.Errorf("expected metric %s", name)
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordStage(context.Background(), "x", "ok", time.Second)
	m.RecordPrompt(context.Background(), "x", false)
	m.RecordCaptureWarning(context.Background(), "x")
}

func TestStartAndEndSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), SpanPipelineStage)
	if ctx == nil || span == nil {
		t.Fatal("expected span")
	}
	EndSpan(span, errors.New("boom"))
}
