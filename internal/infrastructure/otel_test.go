package infrastructure

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeOTelDisabled(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.EnableTracing = false
	cfg.EnableMetrics = false

	providers, err := InitializeOTel(cfg, nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	assert.Nil(t, providers.TracerProvider)
	assert.Nil(t, providers.MeterProvider)
	assert.Nil(t, providers.PrometheusHTTP)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)
	RecordIngestMetrics(context.Background(), metrics, "xlsx", 3, time.Millisecond, nil)
}

func TestInitializeOTelUnsupportedExporter(t *testing.T) {
	cfg := DefaultOTelConfig()
	cfg.MetricExporter = "statsd"

	_, err := InitializeOTel(cfg, nil)
	assert.Error(t, err)

	cfg = DefaultOTelConfig()
	cfg.TraceExporter = "zipkin"
	_, err = InitializeOTel(cfg, nil)
	assert.Error(t, err)
}

func TestBusinessMetricsExposedOnPrometheus(t *testing.T) {
	cfg := DefaultOTelConfig()

	providers, err := InitializeOTel(cfg, nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())
	require.NotNil(t, providers.PrometheusHTTP)

	metrics, err := CreateBusinessMetrics(providers.Meter)
	require.NoError(t, err)

	ctx := context.Background()
	RecordIngestMetrics(ctx, metrics, "xlsx", 4, 20*time.Millisecond, nil)
	RecordIngestMetrics(ctx, metrics, "xls", 0, time.Millisecond, errors.New("broken"))
	RecordRescaleMetrics(ctx, metrics, nil)
	RecordExportMetrics(ctx, metrics)

	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "analyses_ingested_total")
	assert.Contains(t, string(body), "analysis_ingestion_failures_total")
	assert.Contains(t, string(body), "expense_rows_rescaled_total")
	assert.Contains(t, string(body), "workbooks_exported_total")
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Empty(t, TraceIDFromContext(context.Background()))

	providers, err := InitializeOTel(DefaultOTelConfig(), nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "analysis.ingest")
	defer span.End()
	assert.Len(t, TraceIDFromContext(ctx), 32)

	RecordError(ctx, errors.New("recorded"))
}
