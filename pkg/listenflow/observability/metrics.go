package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records pipeline metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordValidation records one validation outcome.
	RecordValidation(ctx context.Context, accepted bool)

	// RecordDerivation records a successful feature derivation.
	RecordDerivation(ctx context.Context, duration time.Duration)

	// RecordWindowEmission records one emitted aggregate.
	RecordWindowEmission(ctx context.Context, dimension string, records int64)

	// RecordLateDrop records a record dropped past the lateness horizon.
	RecordLateDrop(ctx context.Context)

	// RecordSinkWrite records a sink write batch with its error status.
	RecordSinkWrite(ctx context.Context, kind string, batchSize int, err error)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	validations     metric.Int64Counter
	derivations     metric.Int64Counter
	deriveLatency   metric.Float64Histogram
	windowEmissions metric.Int64Counter
	windowRecords   metric.Int64Histogram
	lateDrops       metric.Int64Counter
	sinkWrites      metric.Int64Counter
	sinkErrors      metric.Int64Counter
	sinkBatch       metric.Int64Histogram
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("listenflow")

	validations, err := meter.Int64Counter("listenflow.records.validated",
		metric.WithDescription("Number of records validated, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	derivations, err := meter.Int64Counter("listenflow.records.derived",
		metric.WithDescription("Number of records enriched with derived features"),
	)
	if err != nil {
		return nil, err
	}

	deriveLatency, err := meter.Float64Histogram("listenflow.derive.latency_ms",
		metric.WithDescription("Feature derivation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	windowEmissions, err := meter.Int64Counter("listenflow.windows.emitted",
		metric.WithDescription("Number of window aggregates emitted"),
	)
	if err != nil {
		return nil, err
	}

	windowRecords, err := meter.Int64Histogram("listenflow.windows.record_count",
		metric.WithDescription("Records per emitted window aggregate"),
	)
	if err != nil {
		return nil, err
	}

	lateDrops, err := meter.Int64Counter("listenflow.records.late_dropped",
		metric.WithDescription("Records dropped past the lateness horizon"),
	)
	if err != nil {
		return nil, err
	}

	sinkWrites, err := meter.Int64Counter("listenflow.sink.writes",
		metric.WithDescription("Sink write batches"),
	)
	if err != nil {
		return nil, err
	}

	sinkErrors, err := meter.Int64Counter("listenflow.sink.errors",
		metric.WithDescription("Failed sink write batches"),
	)
	if err != nil {
		return nil, err
	}

	sinkBatch, err := meter.Int64Histogram("listenflow.sink.batch_size",
		metric.WithDescription("Rows or aggregates per sink write batch"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		validations:     validations,
		derivations:     derivations,
		deriveLatency:   deriveLatency,
		windowEmissions: windowEmissions,
		windowRecords:   windowRecords,
		lateDrops:       lateDrops,
		sinkWrites:      sinkWrites,
		sinkErrors:      sinkErrors,
		sinkBatch:       sinkBatch,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordValidation records one validation outcome.
func (m *otelMetrics) RecordValidation(ctx context.Context, accepted bool) {
	m.validations.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("accepted", accepted),
	))
}

// RecordDerivation records a successful feature derivation.
func (m *otelMetrics) RecordDerivation(ctx context.Context, duration time.Duration) {
	m.derivations.Add(ctx, 1)
	m.deriveLatency.Record(ctx, float64(duration.Microseconds())/1000)
}

// RecordWindowEmission records one emitted aggregate.
func (m *otelMetrics) RecordWindowEmission(ctx context.Context, dimension string, records int64) {
	attrs := metric.WithAttributes(attribute.String("dimension", dimension))
	m.windowEmissions.Add(ctx, 1, attrs)
	m.windowRecords.Record(ctx, records, attrs)
}

// RecordLateDrop records a record dropped past the lateness horizon.
func (m *otelMetrics) RecordLateDrop(ctx context.Context) {
	m.lateDrops.Add(ctx, 1)
}

// RecordSinkWrite records a sink write batch.
func (m *otelMetrics) RecordSinkWrite(ctx context.Context, kind string, batchSize int, err error) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.sinkWrites.Add(ctx, 1, attrs)
	m.sinkBatch.Record(ctx, int64(batchSize), attrs)
	if err != nil {
		m.sinkErrors.Add(ctx, 1, attrs)
	}
}
