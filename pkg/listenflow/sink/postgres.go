package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/window"
)

// Postgres persists output to PostgreSQL through a pgx connection pool.
type Postgres struct {
	pool   *pgxpool.Pool
	mu     sync.Mutex
	closed bool
}

// Compile-time interface check.
var _ Sink = (*Postgres)(nil)

// NewPostgres connects to PostgreSQL and ensures the output tables
// exist.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listening_rows (
			event_id TEXT PRIMARY KEY,
			event_kind TEXT NOT NULL,
			event_timestamp TIMESTAMPTZ NOT NULL,
			platform TEXT NOT NULL,
			engagement_score DOUBLE PRECISION NOT NULL,
			payload JSONB NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create rows table: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS window_aggregates (
			window_start TIMESTAMPTZ NOT NULL,
			window_end TIMESTAMPTZ NOT NULL,
			dimension TEXT NOT NULL,
			group_key TEXT NOT NULL,
			record_count BIGINT NOT NULL,
			distinct_user_count BIGINT NOT NULL,
			distinct_track_count BIGINT NOT NULL,
			mean_engagement DOUBLE PRECISION NOT NULL,
			category_ratio DOUBLE PRECISION NOT NULL,
			aggregated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (window_start, window_end, dimension, group_key)
		)
	`)
	if err != nil {
		return fmt.Errorf("create aggregates table: %w", err)
	}
	return nil
}

// Ready reports whether the database is reachable.
func (p *Postgres) Ready(ctx context.Context) error {
	var one int
	return p.pool.QueryRow(ctx, "select 1").Scan(&one)
}

// WriteRows implements RowSink with a single multi-row insert.
// Replayed event IDs are ignored so duplicates never accumulate.
func (p *Postgres) WriteRows(ctx context.Context, rows []derive.Row) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrSinkClosed
	}
	if len(rows) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*6)

	argi := 1
	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row %s: %w", row.EventID, err)
		}
		placeholders = append(placeholders, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d::jsonb)",
			argi, argi+1, argi+2, argi+3, argi+4, argi+5,
		))
		args = append(args,
			row.EventID,
			row.EventKind,
			row.Timestamp,
			row.Platform,
			row.EngagementScore,
			string(payload),
		)
		argi += 6
	}

	sql := "INSERT INTO listening_rows " +
		"(event_id, event_kind, event_timestamp, platform, engagement_score, payload) VALUES " +
		strings.Join(placeholders, ",") +
		" ON CONFLICT (event_id) DO NOTHING"

	if _, err := p.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert rows: %w", err)
	}
	return nil
}

// WriteAggregates implements AggregateSink. Re-emitted aggregates
// overwrite their earlier version.
func (p *Postgres) WriteAggregates(ctx context.Context, aggs []window.Aggregate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrSinkClosed
	}
	if len(aggs) == 0 {
		return nil
	}

	placeholders := make([]string, 0, len(aggs))
	args := make([]any, 0, len(aggs)*10)

	argi := 1
	for _, agg := range aggs {
		ph := make([]string, 0, 10)
		for i := 0; i < 10; i++ {
			ph = append(ph, fmt.Sprintf("$%d", argi))
			argi++
		}
		placeholders = append(placeholders, "("+strings.Join(ph, ",")+")")
		args = append(args,
			agg.WindowStart,
			agg.WindowEnd,
			agg.Dimension,
			agg.Key,
			agg.Count,
			agg.DistinctUsers,
			agg.DistinctTracks,
			agg.MeanEngagement,
			agg.CategoryRatio,
			agg.AggregatedAt,
		)
	}

	sql := "INSERT INTO window_aggregates " +
		"(window_start, window_end, dimension, group_key, record_count, " +
		"distinct_user_count, distinct_track_count, mean_engagement, category_ratio, aggregated_at) VALUES " +
		strings.Join(placeholders, ",") +
		` ON CONFLICT (window_start, window_end, dimension, group_key) DO UPDATE SET
			record_count = excluded.record_count,
			distinct_user_count = excluded.distinct_user_count,
			distinct_track_count = excluded.distinct_track_count,
			mean_engagement = excluded.mean_engagement,
			category_ratio = excluded.category_ratio,
			aggregated_at = excluded.aggregated_at`

	if _, err := p.pool.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert aggregates: %w", err)
	}
	return nil
}

// Close implements Sink.
func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.pool.Close()
	return nil
}
