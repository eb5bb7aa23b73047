// Package pipeline wires the processing stages together: intake,
// concurrent validation and feature derivation, single-owner windowed
// aggregation, and batched sink emission.
//
// Per-record failures never stop the run. Schema violations are counted
// and logged; derivation panics are contract defects, logged and
// dropped. Sink failures are retried with backoff, and aggregate
// batches that still fail are deferred to the next emission rather than
// lost.
package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/listenflow/listenflow/pkg/listenflow/config"
	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/errors"
	"github.com/listenflow/listenflow/pkg/listenflow/observability"
	"github.com/listenflow/listenflow/pkg/listenflow/sink"
	"github.com/listenflow/listenflow/pkg/listenflow/validate"
	"github.com/listenflow/listenflow/pkg/listenflow/window"
)

// ErrPipelineClosed is returned by Submit after Drain has begun.
var ErrPipelineClosed = stderrors.New("pipeline is closed")

// ErrNotStarted is returned by Submit and Drain before Start.
var ErrNotStarted = stderrors.New("pipeline not started")

// Config assembles a pipeline.
type Config struct {
	// Settings holds the validated run settings. Required.
	Settings config.Settings

	// Rows receives flat per-record output. Required.
	Rows sink.RowSink

	// Aggregates receives windowed output. Required.
	Aggregates sink.AggregateSink

	// Logger receives structured run logs. Optional; nil disables logging.
	Logger *slog.Logger

	// Metrics records pipeline metrics. Defaults to NoopMetrics.
	Metrics observability.MetricsRecorder

	// Spans manages trace spans. Defaults to NoopSpanManager.
	Spans observability.SpanManager

	// Retry governs sink writes. Defaults to errors.DefaultRetry.
	Retry errors.RetryConfig

	// Clock supplies the watermark. Defaults to time.Now UTC.
	Clock func() time.Time
}

// Summary reports the outcome of a completed run.
type Summary struct {
	RunID             string
	Accepted          int64
	Rejected          int64
	Defects           int64
	LateDropped       int64
	RowsWritten       int64
	AggregatesWritten int64
}

// Pipeline processes raw listening activity records end to end.
//
// Validation and derivation run on a stateless worker pool. All window
// state is owned by a single emission goroutine, so no aggregate is
// ever computed from a partial view.
type Pipeline struct {
	cfg      Config
	runID    string
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	clock    func() time.Time
	validate *validate.Validator
	derive   *derive.Deriver
	windows  *window.MultiAggregator

	intake  chan map[string]any
	records chan derive.DerivedRecord

	// mu guards the lifecycle flags. Submit holds the read lock across
	// its channel send so Drain cannot close the intake under it.
	mu      sync.RWMutex
	started bool
	closed  bool

	workers    sync.WaitGroup
	emitDone   chan struct{}
	runSpanEnd func(error)

	accepted    atomic.Int64
	rejected    atomic.Int64
	defects     atomic.Int64
	rowsWritten atomic.Int64
	aggsWritten atomic.Int64
}

// New assembles a pipeline. The settings are validated; a pipeline is
// never built on a broken configuration.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	if cfg.Rows == nil {
		return nil, fmt.Errorf("row sink is required")
	}
	if cfg.Aggregates == nil {
		return nil, fmt.Errorf("aggregate sink is required")
	}

	deriveCfg, err := cfg.Settings.DeriveConfig()
	if err != nil {
		return nil, err
	}
	windowCfgs, err := cfg.Settings.WindowConfigs()
	if err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	for i := range windowCfgs {
		windowCfgs[i].Clock = clock
	}
	windows, err := window.NewMulti(windowCfgs...)
	if err != nil {
		return nil, err
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	spans := cfg.Spans
	if spans == nil {
		spans = observability.NoopSpanManager{}
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = errors.DefaultRetry
	}

	runID := uuid.New().String()
	return &Pipeline{
		cfg:      cfg,
		runID:    runID,
		logger:   observability.EnrichLogger(cfg.Logger, runID, cfg.Settings.Workers),
		metrics:  metrics,
		spans:    spans,
		clock:    clock,
		validate: validate.New(validate.WithClock(clock)),
		derive:   derive.New(deriveCfg),
		windows:  windows,
		intake:   make(chan map[string]any, cfg.Settings.QueueSize),
		records:  make(chan derive.DerivedRecord, cfg.Settings.QueueSize),
		emitDone: make(chan struct{}),
	}, nil
}

// RunID returns the unique identifier for this run.
func (p *Pipeline) RunID() string { return p.runID }

// Start launches the worker pool and the emission loop.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return fmt.Errorf("pipeline already started")
	}
	p.started = true

	spanCtx, span := p.spans.StartRunSpan(ctx, p.runID)
	p.runSpanEnd = func(err error) { p.spans.EndSpanWithError(span, err) }

	observability.LogPipelineStart(p.logger, p.runID, p.cfg.Settings.Workers)

	for i := 0; i < p.cfg.Settings.Workers; i++ {
		p.workers.Add(1)
		go p.workerLoop(spanCtx)
	}
	go p.emitLoop(spanCtx)

	// Close the record channel once every worker is done so the
	// emission loop can run its final flush.
	go func() {
		p.workers.Wait()
		close(p.records)
	}()

	return nil
}

// Submit offers one raw record to the pipeline. It blocks while the
// intake queue is full and fails once the pipeline is closed or the
// context is cancelled.
func (p *Pipeline) Submit(ctx context.Context, raw map[string]any) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.started {
		return ErrNotStarted
	}
	if p.closed {
		return ErrPipelineClosed
	}

	select {
	case p.intake <- raw:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain stops intake, waits for in-flight records, flushes every open
// window, and returns the run summary. The context bounds the final
// sink writes.
func (p *Pipeline) Drain(ctx context.Context) (Summary, error) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return Summary{}, ErrNotStarted
	}
	if p.closed {
		p.mu.Unlock()
		return Summary{}, ErrPipelineClosed
	}
	p.closed = true
	p.mu.Unlock()

	observability.LogDrainStart(p.logger, p.runID)
	elapsed := observability.TimedOperation()

	close(p.intake)

	select {
	case <-p.emitDone:
	case <-ctx.Done():
		p.runSpanEnd(ctx.Err())
		return p.summary(), ctx.Err()
	}

	summary := p.summary()
	observability.LogDrainComplete(p.logger, p.runID, elapsed(), int(summary.AggregatesWritten))
	p.runSpanEnd(nil)
	return summary, nil
}

func (p *Pipeline) summary() Summary {
	return Summary{
		RunID:             p.runID,
		Accepted:          p.accepted.Load(),
		Rejected:          p.rejected.Load(),
		Defects:           p.defects.Load(),
		LateDropped:       p.windows.LateDrops(),
		RowsWritten:       p.rowsWritten.Load(),
		AggregatesWritten: p.aggsWritten.Load(),
	}
}
