package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/window"
)

// SQLite persists output to SQLite.
// It is suitable for single-process production use.
//
// Rows keep their queryable key columns plus the full row as a JSON
// payload; aggregates get one column per statistic so they can be
// queried directly.
type SQLite struct {
	db     *sql.DB
	mu     sync.Mutex
	closed bool
}

// Compile-time interface check.
var _ Sink = (*SQLite)(nil)

// NewSQLite creates a SQLite sink.
// The path should be a file path (e.g., "./listenflow.db") or ":memory:" for testing.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS listening_rows (
			event_id TEXT NOT NULL PRIMARY KEY,
			event_kind TEXT NOT NULL,
			event_timestamp TEXT NOT NULL,
			platform TEXT NOT NULL,
			engagement_score REAL NOT NULL,
			payload BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rows table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_listening_rows_timestamp
		ON listening_rows(event_timestamp)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create rows index: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS window_aggregates (
			window_start TEXT NOT NULL,
			window_end TEXT NOT NULL,
			dimension TEXT NOT NULL,
			group_key TEXT NOT NULL,
			record_count INTEGER NOT NULL,
			distinct_user_count INTEGER NOT NULL,
			distinct_track_count INTEGER NOT NULL,
			mean_engagement REAL NOT NULL,
			category_ratio REAL NOT NULL,
			aggregated_at TEXT NOT NULL,
			PRIMARY KEY (window_start, window_end, dimension, group_key)
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create aggregates table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// WriteRows implements RowSink. A duplicate event_id overwrites in
// place, so replayed input never duplicates rows.
func (s *SQLite) WriteRows(ctx context.Context, rows []derive.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin row batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listening_rows
			(event_id, event_kind, event_timestamp, platform, engagement_score, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(event_id) DO UPDATE SET
			event_kind = excluded.event_kind,
			event_timestamp = excluded.event_timestamp,
			platform = excluded.platform,
			engagement_score = excluded.engagement_score,
			payload = excluded.payload
	`)
	if err != nil {
		return fmt.Errorf("prepare row insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		payload, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal row %s: %w", row.EventID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			row.EventID,
			row.EventKind,
			row.Timestamp.UTC().Format(time.RFC3339Nano),
			row.Platform,
			row.EngagementScore,
			payload,
		); err != nil {
			return fmt.Errorf("insert row %s: %w", row.EventID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit row batch: %w", err)
	}
	return nil
}

// WriteAggregates implements AggregateSink. Re-emitted aggregates
// overwrite their earlier version.
func (s *SQLite) WriteAggregates(ctx context.Context, aggs []window.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}
	if len(aggs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin aggregate batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO window_aggregates
			(window_start, window_end, dimension, group_key,
			 record_count, distinct_user_count, distinct_track_count,
			 mean_engagement, category_ratio, aggregated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(window_start, window_end, dimension, group_key) DO UPDATE SET
			record_count = excluded.record_count,
			distinct_user_count = excluded.distinct_user_count,
			distinct_track_count = excluded.distinct_track_count,
			mean_engagement = excluded.mean_engagement,
			category_ratio = excluded.category_ratio,
			aggregated_at = excluded.aggregated_at
	`)
	if err != nil {
		return fmt.Errorf("prepare aggregate insert: %w", err)
	}
	defer stmt.Close()

	for _, agg := range aggs {
		if _, err := stmt.ExecContext(ctx,
			agg.WindowStart.UTC().Format(time.RFC3339Nano),
			agg.WindowEnd.UTC().Format(time.RFC3339Nano),
			agg.Dimension,
			agg.Key,
			agg.Count,
			agg.DistinctUsers,
			agg.DistinctTracks,
			agg.MeanEngagement,
			agg.CategoryRatio,
			agg.AggregatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert aggregate %s/%s: %w", agg.Dimension, agg.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit aggregate batch: %w", err)
	}
	return nil
}

// RowCount returns the number of stored rows.
func (s *SQLite) RowCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrSinkClosed
	}

	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM listening_rows`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

// Aggregates returns every stored aggregate, ordered by window start,
// dimension, then key.
func (s *SQLite) Aggregates(ctx context.Context) ([]window.Aggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSinkClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT window_start, window_end, dimension, group_key,
		       record_count, distinct_user_count, distinct_track_count,
		       mean_engagement, category_ratio, aggregated_at
		FROM window_aggregates
		ORDER BY window_start, dimension, group_key
	`)
	if err != nil {
		return nil, fmt.Errorf("query aggregates: %w", err)
	}
	defer rows.Close()

	var out []window.Aggregate
	for rows.Next() {
		var agg window.Aggregate
		var start, end, at string
		if err := rows.Scan(&start, &end, &agg.Dimension, &agg.Key,
			&agg.Count, &agg.DistinctUsers, &agg.DistinctTracks,
			&agg.MeanEngagement, &agg.CategoryRatio, &at); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		agg.WindowStart, _ = time.Parse(time.RFC3339Nano, start)
		agg.WindowEnd, _ = time.Parse(time.RFC3339Nano, end)
		agg.AggregatedAt, _ = time.Parse(time.RFC3339Nano, at)
		out = append(out, agg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregates: %w", err)
	}
	return out, nil
}

// Close implements Sink.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
