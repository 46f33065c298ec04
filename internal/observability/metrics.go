package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRunsTotal    = "liveedit.runs.total"
	metricRunDuration  = "liveedit.run.duration.seconds"
	metricErrorsTotal  = "liveedit.errors.total"
	metricInflightRuns = "liveedit.inflight.runs"

	attrOp     = "op"
	attrStatus = "status"

	// StatusOK marks a run that completed.
	StatusOK = "ok"
	// StatusError marks a run that returned an error.
	StatusError = "error"
)

// runBucketBoundaries covers a re-analysis triggered by a file change, from
// a few milliseconds up to a minute for large inputs.
var runBucketBoundaries = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// REDMetrics holds the Rate, Error, Duration instruments of command runs.
type REDMetrics struct {
	runsTotal    metric.Int64Counter
	runDuration  metric.Float64Histogram
	errorsTotal  metric.Int64Counter
	inflightRuns metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &REDMetrics{
		runsTotal:    b.counter(metricRunsTotal, "Total number of runs", "{run}"),
		runDuration:  b.histogram(metricRunDuration, "Run duration in seconds", "s", runBucketBoundaries...),
		errorsTotal:  b.counter(metricErrorsTotal, "Total number of failed runs", "{error}"),
		inflightRuns: b.upDownCounter(metricInflightRuns, "Number of runs in progress", "{run}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordRun records a completed run with its operation, status, and duration.
func (rm *REDMetrics) RecordRun(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.runsTotal.Add(ctx, 1, attrs)
	rm.runDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRuns.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRuns.Add(ctx, -1, attrs)
	}
}
