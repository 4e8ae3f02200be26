package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the instruments recorded by the recording core.
type Metrics struct {
	stageTotal     metric.Int64Counter
	stageDuration  metric.Float64Histogram
	promptTotal    metric.Int64Counter
	captureWarning metric.Int64Counter
}

// NewMetrics creates instruments on meter. Pass nil to use the global provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	stageTotal, err := meter.Int64Counter("voicememo.pipeline.stage.total",
		metric.WithDescription("Pipeline stage executions by stage and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage counter: %w", err)
	}
	stageDuration, err := meter.Float64Histogram("voicememo.pipeline.stage.duration",
		metric.WithDescription("Pipeline stage duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stage histogram: %w", err)
	}
	promptTotal, err := meter.Int64Counter("voicememo.prompt.decision.total",
		metric.WithDescription("Upsell prompt decisions by kind and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating prompt counter: %w", err)
	}
	captureWarning, err := meter.Int64Counter("voicememo.preroll.warning.total",
		metric.WithDescription("Non-fatal pre-roll capture warnings"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating capture warning counter: %w", err)
	}

	return &Metrics{
		stageTotal:     stageTotal,
		stageDuration:  stageDuration,
		promptTotal:    promptTotal,
		captureWarning: captureWarning,
	}, nil
}

// RecordStage records one stage outcome. A nil receiver is a no-op.
func (m *Metrics) RecordStage(ctx context.Context, stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordPrompt records a prompt decision.
func (m *Metrics) RecordPrompt(ctx context.Context, kind string, shown bool) {
	if m == nil {
		return
	}
	m.promptTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("shown", shown),
	))
}

// RecordCaptureWarning counts a hardware warning raised while armed.
func (m *Metrics) RecordCaptureWarning(ctx context.Context, code string) {
	if m == nil {
		return
	}
	m.captureWarning.Add(ctx, 1, metric.WithAttributes(attribute.String("code", code)))
}
