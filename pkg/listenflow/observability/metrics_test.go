package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupMetricsTest creates a test meter provider and returns a function to collect metrics.
func setupMetricsTest(t *testing.T) (*sdkmetric.ManualReader, func()) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	originalProvider := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)

	cleanup := func() {
		otel.SetMeterProvider(originalProvider)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down meter provider: %v", err)
		}
	}

	return reader, cleanup
}

// collectMetrics collects all metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) *metricdata.ResourceMetrics {
	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return &rm
}

// findMetric finds a metric by name in the collected data.
func findMetric(rm *metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestNewMetricsRecorder(t *testing.T) {
	_, cleanup := setupMetricsTest(t)
	defer cleanup()

	recorder := NewMetricsRecorder()
	require.NotNil(t, recorder)
}

func TestRecordValidation(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordValidation(ctx, true)
	m.RecordValidation(ctx, true)
	m.RecordValidation(ctx, false)

	rm := collectMetrics(t, reader)
	metric := findMetric(rm, "listenflow.records.validated")
	require.NotNil(t, metric, "validated counter should exist")

	sum, ok := metric.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 2, "accepted and rejected outcomes recorded separately")
}

func TestRecordDerivation(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordDerivation(context.Background(), 2*time.Millisecond)

	rm := collectMetrics(t, reader)
	require.NotNil(t, findMetric(rm, "listenflow.records.derived"))

	latency := findMetric(rm, "listenflow.derive.latency_ms")
	require.NotNil(t, latency)
	hist, ok := latency.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestRecordWindowEmission(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordWindowEmission(ctx, "event_kind", 10)
	m.RecordWindowEmission(ctx, "genre", 4)

	rm := collectMetrics(t, reader)
	emissions := findMetric(rm, "listenflow.windows.emitted")
	require.NotNil(t, emissions)

	sum, ok := emissions.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Len(t, sum.DataPoints, 2, "one series per dimension")
}

func TestRecordSinkWrite(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSinkWrite(ctx, "rows", 100, nil)
	m.RecordSinkWrite(ctx, "rows", 50, errors.New("outage"))

	rm := collectMetrics(t, reader)

	writes := findMetric(rm, "listenflow.sink.writes")
	require.NotNil(t, writes)
	writeSum, ok := writes.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, writeSum.DataPoints, 1)
	assert.Equal(t, int64(2), writeSum.DataPoints[0].Value)

	errs := findMetric(rm, "listenflow.sink.errors")
	require.NotNil(t, errs)
	errSum, ok := errs.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errSum.DataPoints, 1)
	assert.Equal(t, int64(1), errSum.DataPoints[0].Value)

	batch := findMetric(rm, "listenflow.sink.batch_size")
	require.NotNil(t, batch)
	hist, ok := batch.Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestRecordLateDrop(t *testing.T) {
	reader, cleanup := setupMetricsTest(t)
	defer cleanup()

	m, err := newOtelMetrics()
	require.NoError(t, err)

	m.RecordLateDrop(context.Background())
	m.RecordLateDrop(context.Background())

	rm := collectMetrics(t, reader)
	drops := findMetric(rm, "listenflow.records.late_dropped")
	require.NotNil(t, drops)

	sum, ok := drops.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}
