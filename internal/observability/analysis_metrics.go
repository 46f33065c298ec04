package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricAnalysesTotal    = "liveedit.analysis.total"
	metricDocumentsTotal   = "liveedit.analysis.documents.total"
	metricDiagnosticsTotal = "liveedit.analysis.diagnostics.total"
	metricEditsTotal       = "liveedit.analysis.edits.total"
	metricBodyScriptsTotal = "liveedit.analysis.body_scripts.total"
	metricDuration         = "liveedit.analysis.duration.seconds"

	attrOutcome  = "outcome"
	attrSeverity = "severity"
)

// analysisBucketBoundaries covers sub-millisecond single-member edits up to
// multi-second whole-project analyses.
var analysisBucketBoundaries = []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// AnalysisMetrics holds OTel instruments for analysis metrics.
type AnalysisMetrics struct {
	analyses    metric.Int64Counter
	documents   metric.Int64Counter
	diagnostics metric.Int64Counter
	edits       metric.Int64Counter
	bodyScripts metric.Int64Counter
	duration    metric.Float64Histogram
}

// AnalysisStats summarizes one Analyze call.
type AnalysisStats struct {
	Documents     int
	Blocked       int
	Failed        int
	Blocking      int
	Informational int
	Edits         int
	BodyScripts   int
	Duration      time.Duration
}

// NewAnalysisMetrics creates analysis metric instruments from the given meter.
func NewAnalysisMetrics(mt metric.Meter) (*AnalysisMetrics, error) {
	b := newMetricBuilder(mt)

	am := &AnalysisMetrics{
		analyses:    b.counter(metricAnalysesTotal, "Analyze calls", "{analysis}"),
		documents:   b.counter(metricDocumentsTotal, "Documents analysed by outcome", "{document}"),
		diagnostics: b.counter(metricDiagnosticsTotal, "Rude edit diagnostics by severity", "{diagnostic}"),
		edits:       b.counter(metricEditsTotal, "Semantic edits produced", "{edit}"),
		bodyScripts: b.counter(metricBodyScriptsTotal, "Member body matches computed", "{script}"),
		duration:    b.histogram(metricDuration, "Analyze call duration in seconds", "s", analysisBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return am, nil
}

// RecordAnalysis records one completed Analyze call.
// Safe to call on a nil receiver (no-op).
func (am *AnalysisMetrics) RecordAnalysis(ctx context.Context, stats AnalysisStats) {
	if am == nil {
		return
	}

	am.analyses.Add(ctx, 1)
	am.duration.Record(ctx, stats.Duration.Seconds())
	am.edits.Add(ctx, int64(stats.Edits))
	am.bodyScripts.Add(ctx, int64(stats.BodyScripts))

	ready := stats.Documents - stats.Blocked - stats.Failed

	am.documents.Add(ctx, int64(ready), metric.WithAttributes(attribute.String(attrOutcome, "edits-ready")))
	am.documents.Add(ctx, int64(stats.Blocked), metric.WithAttributes(attribute.String(attrOutcome, "blocked")))
	am.documents.Add(ctx, int64(stats.Failed), metric.WithAttributes(attribute.String(attrOutcome, "failed")))

	am.diagnostics.Add(ctx, int64(stats.Blocking), metric.WithAttributes(attribute.String(attrSeverity, "blocking")))
	am.diagnostics.Add(ctx, int64(stats.Informational),
		metric.WithAttributes(attribute.String(attrSeverity, "informational")))
}
