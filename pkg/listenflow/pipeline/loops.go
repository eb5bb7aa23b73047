package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/errors"
	"github.com/listenflow/listenflow/pkg/listenflow/observability"
	"github.com/listenflow/listenflow/pkg/listenflow/schema"
	"github.com/listenflow/listenflow/pkg/listenflow/window"
)

// workerLoop validates and derives records until the intake closes.
// Stateless: any worker can process any record.
func (p *Pipeline) workerLoop(ctx context.Context) {
	defer p.workers.Done()

	ctx, span := p.spans.StartStageSpan(ctx, "process")
	defer p.spans.EndSpanWithError(span, nil)

	for raw := range p.intake {
		evt, err := p.validate.Validate(raw)
		if err != nil {
			p.rejected.Add(1)
			p.metrics.RecordValidation(ctx, false)

			var ferr *schema.FieldError
			if stderrors.As(err, &ferr) {
				observability.LogRecordRejected(p.logger, ferr.Path, ferr.Reason)
			} else {
				observability.LogRecordRejected(p.logger, "", err.Error())
			}
			continue
		}
		p.metrics.RecordValidation(ctx, true)

		rec, derr := p.deriveRecord(ctx, evt)
		if derr != nil {
			p.defects.Add(1)
			observability.LogRecordDefect(p.logger, evt.EventID, derr)
			continue
		}

		p.accepted.Add(1)
		p.records <- rec
	}
}

// deriveRecord runs feature derivation with a panic guard. Derivation
// is total on validated input, so a panic here is a contract defect,
// not bad data; the record is dropped and the pipeline keeps running.
func (p *Pipeline) deriveRecord(ctx context.Context, evt *schema.MusicEvent) (rec derive.DerivedRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Defect(fmt.Errorf("derivation panic: %v", r), "derive")
		}
	}()

	start := time.Now()
	rec = p.derive.Derive(evt)
	p.metrics.RecordDerivation(ctx, time.Since(start))
	return rec, nil
}

// emitLoop is the single owner of all window state and sink batching.
// It runs until the record channel closes, then flushes everything.
func (p *Pipeline) emitLoop(ctx context.Context) {
	defer close(p.emitDone)

	ctx, span := p.spans.StartStageSpan(ctx, "emit")
	defer p.spans.EndSpanWithError(span, nil)

	wmTicker := time.NewTicker(p.cfg.Settings.WatermarkInterval.Std())
	defer wmTicker.Stop()
	rowTicker := time.NewTicker(p.cfg.Settings.RowFlushInterval.Std())
	defer rowTicker.Stop()

	granularities := len(p.cfg.Settings.Granularities)

	var rowBatch []derive.Row
	var pendingAggs []window.Aggregate

	for {
		select {
		case rec, ok := <-p.records:
			if !ok {
				pendingAggs = append(pendingAggs, p.windows.Flush()...)
				p.flushRows(ctx, &rowBatch)
				p.flushAggregates(ctx, &pendingAggs)
				return
			}

			dropped := p.windows.Observe(rec)
			if dropped > 0 {
				p.metrics.RecordLateDrop(ctx)
				observability.LogLateRecordsDropped(p.logger, rec.Event.EventID, dropped)
			}
			if dropped == granularities {
				// Past every lateness horizon: counted, not persisted.
				continue
			}

			rowBatch = append(rowBatch, rec.Row())
			if len(rowBatch) >= p.cfg.Settings.RowBatchSize {
				p.flushRows(ctx, &rowBatch)
			}

		case <-rowTicker.C:
			p.flushRows(ctx, &rowBatch)

		case <-wmTicker.C:
			closed := p.windows.AdvanceWatermark(p.clock())
			if len(closed) > 0 {
				p.spans.AddSpanEvent(ctx, "windows.closed", attribute.Int("aggregates", len(closed)))
			}
			pendingAggs = append(pendingAggs, closed...)
			p.flushAggregates(ctx, &pendingAggs)
		}
	}
}

// flushRows writes the row batch with retries. On success the batch is
// reset; on exhausted retries it is kept for the next flush so no row
// is lost.
func (p *Pipeline) flushRows(ctx context.Context, batch *[]derive.Row) {
	if len(*batch) == 0 {
		return
	}
	rows := *batch

	flushCtx, span := p.spans.StartStageSpan(ctx, "sink.rows")
	res := errors.WithRetryContext(flushCtx, p.cfg.Retry, func(ctx context.Context) (int, error) {
		if err := p.cfg.Rows.WriteRows(ctx, rows); err != nil {
			return 0, errors.Transient(err, "row sink write")
		}
		return len(rows), nil
	})
	p.spans.EndSpanWithError(span, res.Err)
	p.metrics.RecordSinkWrite(ctx, "rows", len(rows), res.Err)

	if res.Err != nil {
		observability.LogEmissionDeferred(p.logger, len(rows), res.Err)
		return
	}
	p.rowsWritten.Add(int64(len(rows)))
	*batch = nil
}

// flushAggregates writes the pending aggregates with retries. A batch
// that still fails stays pending and is re-attempted on the next
// watermark tick; the upsert downstream makes the redelivery harmless.
func (p *Pipeline) flushAggregates(ctx context.Context, pending *[]window.Aggregate) {
	if len(*pending) == 0 {
		return
	}
	aggs := *pending

	flushCtx, span := p.spans.StartStageSpan(ctx, "sink.aggregates")
	res := errors.WithRetryContext(flushCtx, p.cfg.Retry, func(ctx context.Context) (int, error) {
		if err := p.cfg.Aggregates.WriteAggregates(ctx, aggs); err != nil {
			return 0, errors.Transient(err, "aggregate sink write")
		}
		return len(aggs), nil
	})
	p.spans.EndSpanWithError(span, res.Err)
	p.metrics.RecordSinkWrite(ctx, "aggregates", len(aggs), res.Err)

	if res.Err != nil {
		observability.LogEmissionDeferred(p.logger, len(aggs), res.Err)
		return
	}
	for _, agg := range aggs {
		p.metrics.RecordWindowEmission(ctx, agg.Dimension, agg.Count)
		observability.LogWindowEmitted(p.logger, agg.Dimension, agg.Key, agg.Count)
	}
	p.aggsWritten.Add(int64(len(aggs)))
	*pending = nil
}
