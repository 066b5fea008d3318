package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels attached to report metrics.
const (
	OutcomeSuccess         = "success"
	OutcomeValidationError = "validation_error"
	OutcomeEvaluationError = "evaluation_error"
	OutcomeDataError       = "data_error"
)

// ReportMetrics records DRE generation activity.
type ReportMetrics struct {
	generated  *Counter
	duration   *Histogram
	records    *Histogram
	warnings   *Counter
	runsQueued *Gauge
}

// NewReportMetrics registers the report instruments on the given meter.
func NewReportMetrics(meter metric.Meter) (*ReportMetrics, error) {
	generated, err := NewCounter(meter, "dre_reports_generated_total",
		"Number of report generations by outcome", "{report}")
	if err != nil {
		return nil, err
	}
	duration, err := NewHistogram(meter, HistogramOpts{
		Name:        "dre_report_generation_duration_seconds",
		Description: "Wall time of a report generation including the ledger fetch",
		Unit:        "s",
		Boundaries:  GenerationDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	records, err := NewHistogram(meter, HistogramOpts{
		Name:        "dre_report_ledger_records",
		Description: "Ledger records aggregated per report",
		Unit:        "{record}",
		Boundaries:  RecordCountBuckets,
	})
	if err != nil {
		return nil, err
	}
	warnings, err := NewCounter(meter, "dre_report_warnings_total",
		"Non-fatal warnings raised while generating reports", "{warning}")
	if err != nil {
		return nil, err
	}
	runsQueued, err := NewGauge(meter, "dre_report_runs_queued",
		"Scheduled report runs waiting for a worker", "{run}")
	if err != nil {
		return nil, err
	}

	return &ReportMetrics{
		generated:  generated,
		duration:   duration,
		records:    records,
		warnings:   warnings,
		runsQueued: runsQueued,
	}, nil
}

// RecordGeneration records one finished generation attempt.
func (m *ReportMetrics) RecordGeneration(ctx context.Context, templateID, outcome string, elapsed time.Duration, recordCount int) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{AttrTemplateID.String(templateID), AttrOutcome.String(outcome)}
	m.generated.Inc(ctx, attrs...)
	m.duration.RecordDuration(ctx, elapsed, attrs...)
	if outcome == OutcomeSuccess {
		m.records.Record(ctx, float64(recordCount), AttrTemplateID.String(templateID))
	}
}

// RecordWarnings counts warnings by kind.
func (m *ReportMetrics) RecordWarnings(ctx context.Context, kinds ...string) {
	if m == nil {
		return
	}
	for _, kind := range kinds {
		m.warnings.Inc(ctx, AttrWarningKind.String(kind))
	}
}

// RecordQueueDepth reports how many runs are waiting in the scheduler.
func (m *ReportMetrics) RecordQueueDepth(ctx context.Context, depth int) {
	if m == nil {
		return
	}
	m.runsQueued.Record(ctx, int64(depth))
}
