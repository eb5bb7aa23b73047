// Package observability provides structured logging, metrics, and
// tracing for the listenflow pipeline.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds pipeline context to a logger.
// Returns a new logger with run_id and workers fields.
func EnrichLogger(logger *slog.Logger, runID string, workers int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.Int("workers", workers),
	)
}

// LogPipelineStart logs the start of a pipeline run.
func LogPipelineStart(logger *slog.Logger, runID string, workers int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline starting",
		slog.String("run_id", runID),
		slog.Int("workers", workers),
	)
}

// LogRecordRejected logs a schema violation. Per-record failures are
// isolated, so this is informational, not an error.
func LogRecordRejected(logger *slog.Logger, path, reason string) {
	if logger == nil {
		return
	}
	logger.Info("record rejected",
		slog.String("field_path", path),
		slog.String("reason", reason),
	)
}

// LogRecordDefect logs a derivation failure on validated input: a
// contract mismatch between validator and deriver. The record is
// dropped; the pipeline keeps running.
func LogRecordDefect(logger *slog.Logger, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("derivation defect, record dropped",
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogWindowEmitted logs one aggregate emission.
func LogWindowEmitted(logger *slog.Logger, dimension, key string, count int64) {
	if logger == nil {
		return
	}
	logger.Debug("window aggregate emitted",
		slog.String("dimension", dimension),
		slog.String("key", key),
		slog.Int64("record_count", count),
	)
}

// LogEmissionDeferred logs an aggregate batch whose sink write failed
// after retries. The batch stays pending; nothing was partially flushed.
func LogEmissionDeferred(logger *slog.Logger, aggregates int, err error) {
	if logger == nil {
		return
	}
	logger.Warn("aggregate emission deferred",
		slog.Int("aggregates", aggregates),
		slog.String("error", err.Error()),
	)
}

// LogLateRecordsDropped logs records dropped past the lateness horizon.
func LogLateRecordsDropped(logger *slog.Logger, eventID string, granularities int) {
	if logger == nil {
		return
	}
	logger.Debug("late record dropped",
		slog.String("event_id", eventID),
		slog.Int("granularities", granularities),
	)
}

// LogDrainStart logs the beginning of a clean drain.
func LogDrainStart(logger *slog.Logger, runID string) {
	if logger == nil {
		return
	}
	logger.Info("pipeline draining",
		slog.String("run_id", runID),
	)
}

// LogDrainComplete logs drain completion.
func LogDrainComplete(logger *slog.Logger, runID string, durationMs float64, flushed int) {
	if logger == nil {
		return
	}
	logger.Info("pipeline drained",
		slog.String("run_id", runID),
		slog.Float64("duration_ms", durationMs),
		slog.Int("aggregates_flushed", flushed),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in
// milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
