package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/liveedit/internal/observability"
)

func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics

	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, scope := range rm.ScopeMetrics {
		for idx := range scope.Metrics {
			if scope.Metrics[idx].Name == name {
				return &scope.Metrics[idx]
			}
		}
	}

	return nil
}

func sumByAttr(t *testing.T, m *metricdata.Metrics, key, value string) int64 {
	t.Helper()

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	for _, point := range sum.DataPoints {
		if got, found := point.Attributes.Value(attribute.Key(key)); found && got.AsString() == value {
			return point.Value
		}
	}

	return 0
}

func TestAnalysisMetrics_RecordAnalysis(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	am, err := observability.NewAnalysisMetrics(meter)
	require.NoError(t, err)

	am.RecordAnalysis(context.Background(), observability.AnalysisStats{
		Documents:     4,
		Blocked:       1,
		Failed:        1,
		Blocking:      2,
		Informational: 3,
		Edits:         5,
		BodyScripts:   6,
		Duration:      20 * time.Millisecond,
	})

	rm := collectMetrics(t, reader)

	documents := findMetric(rm, "liveedit.analysis.documents.total")
	require.NotNil(t, documents)
	assert.Equal(t, int64(2), sumByAttr(t, documents, "outcome", "edits-ready"))
	assert.Equal(t, int64(1), sumByAttr(t, documents, "outcome", "blocked"))

	diagnostics := findMetric(rm, "liveedit.analysis.diagnostics.total")
	require.NotNil(t, diagnostics)
	assert.Equal(t, int64(3), sumByAttr(t, diagnostics, "severity", "informational"))

	duration := findMetric(rm, "liveedit.analysis.duration.seconds")
	require.NotNil(t, duration)

	hist, ok := duration.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.NotEmpty(t, hist.DataPoints)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestAnalysisMetrics_NilReceiver(t *testing.T) {
	t.Parallel()

	var am *observability.AnalysisMetrics

	assert.NotPanics(t, func() {
		am.RecordAnalysis(context.Background(), observability.AnalysisStats{Documents: 1})
	})
}

func TestREDMetrics_RecordRun(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	rm, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	done := rm.TrackInflight(context.Background(), "watch")
	rm.RecordRun(context.Background(), "watch", observability.StatusError, time.Second)
	done()

	collected := collectMetrics(t, reader)

	errorsTotal := findMetric(collected, "liveedit.errors.total")
	require.NotNil(t, errorsTotal)
	assert.Equal(t, int64(1), sumByAttr(t, errorsTotal, "op", "watch"))

	inflight := findMetric(collected, "liveedit.inflight.runs")
	require.NotNil(t, inflight)
	assert.Equal(t, int64(0), sumByAttr(t, inflight, "op", "watch"))
}

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "1.2.3", observability.ModeWatch))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.InfoContext(ctx, "analysis: start", "documents", 2)

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "liveedit", record["service"])
	assert.Equal(t, "watch", record["mode"])
	assert.Equal(t, "1.2.3", record["version"])
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		level slog.Level
		ok    bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"loud", slog.LevelInfo, false},
	}

	for _, tt := range tests {
		level, ok := observability.ParseLevel(tt.name)
		assert.Equal(t, tt.level, level, tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
	}
}

func TestFilteringProvider_DropsDocumentSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	base := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter), sdktrace.WithSampler(sdktrace.AlwaysSample()))

	tracer := observability.NewFilteringTracerProvider(base).Tracer("liveedit.engine")

	ctx, analysis := tracer.Start(context.Background(), "liveedit.analyze")
	_, document := tracer.Start(ctx, "liveedit.analyze.document")
	document.End()
	analysis.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "liveedit.analyze", spans[0].Name)
}

func TestAttributeFilter(t *testing.T) {
	t.Parallel()

	assert.True(t, observability.FilterAllows("analysis.id"))
	assert.True(t, observability.FilterAllows("error"))
	assert.False(t, observability.FilterAllows("source"))
	assert.False(t, observability.FilterAllows("user.name"))
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    map[string]string
		wantErr error
	}{
		{name: "empty", raw: "  ", want: map[string]string{}},
		{name: "pairs", raw: "a=1, b = 2", want: map[string]string{"a": "1", "b": "2"}},
		{name: "encoded", raw: "authorization=Bearer%20abc%3D", want: map[string]string{"authorization": "Bearer abc="}},
		{name: "missing value", raw: "a=1,garbage", wantErr: observability.ErrMalformedHeader},
		{name: "empty key", raw: "=1", wantErr: observability.ErrMalformedHeader},
		{name: "bad escape", raw: "a=%zz", wantErr: observability.ErrMalformedHeader},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := observability.ParseHeaders(tt.raw)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSampler(t *testing.T) {
	t.Parallel()

	assert.Equal(t, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description(), observability.Sampler(0).Description())
	assert.Equal(t, sdktrace.ParentBased(sdktrace.AlwaysSample()).Description(), observability.Sampler(1).Description())
	assert.Contains(t, observability.Sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestInit_NoopWithoutEndpoint(t *testing.T) {
	t.Parallel()

	cfg := observability.DefaultConfig()
	cfg.LogLevel = slog.LevelError

	providers, err := observability.Init(cfg)
	require.NoError(t, err)

	assert.NotNil(t, providers.Tracer)
	assert.NotNil(t, providers.Meter)
	assert.NotNil(t, providers.Logger)
	require.NoError(t, providers.Shutdown(context.Background()))
}

func TestPrometheusMeter_ServesInstruments(t *testing.T) {
	t.Parallel()

	handler, provider, err := observability.PrometheusMeter()
	require.NoError(t, err)

	am, err := observability.NewAnalysisMetrics(provider.Meter("test"))
	require.NoError(t, err)

	am.RecordAnalysis(context.Background(), observability.AnalysisStats{Documents: 1, Edits: 2})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "liveedit_analysis_edits")
}

func TestHealthHandlers(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	observability.HealthHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	failing := func(context.Context) error { return errors.New("baseline not loaded") }

	rec = httptest.NewRecorder()
	observability.ReadyHandler(failing).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", http.NoBody))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDiagnosticsServer(t *testing.T) {
	t.Parallel()

	handler, _, err := observability.PrometheusMeter()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	server, err := observability.NewDiagnosticsServer(context.Background(), "127.0.0.1:0", handler, logger)
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, server.Close(context.Background())) })

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+server.Addr()+"/healthz", http.NoBody)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
