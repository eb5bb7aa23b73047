// Package window buckets derived records into fixed, non-overlapping
// time windows and computes per-key aggregate statistics.
//
// Aggregation is a pure function of the set of records assigned to a
// (window, key) pair: accumulators are commutative and associative
// (counts, sums, set unions), so arrival order never affects the result.
// Window completion is driven by an external watermark; late records
// inside the allowed-lateness horizon trigger accumulating re-emission
// of the full updated aggregate, so downstream consumers can overwrite
// idempotently.
package window

import "time"

// Dimension names a grouping axis.
type Dimension string

const (
	// DimensionEventKind groups records by event kind.
	DimensionEventKind Dimension = "event_kind"

	// DimensionGenre groups records by primary genre.
	DimensionGenre Dimension = "genre"

	// DimensionPlatform groups records by streaming platform.
	DimensionPlatform Dimension = "platform"
)

// AllDimensions lists every grouping axis, in emission order.
var AllDimensions = []Dimension{DimensionEventKind, DimensionGenre, DimensionPlatform}

// GroupKey identifies one aggregation group within a window.
type GroupKey struct {
	Dimension Dimension
	Value     string
}

// Window is a fixed time bucket, [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFor returns the tumbling window of the given size containing ts.
// Windows are aligned to the Unix epoch in UTC.
func WindowFor(ts time.Time, size time.Duration) Window {
	start := ts.UTC().Truncate(size)
	return Window{Start: start, End: start.Add(size)}
}

// Aggregate is one summary row for a (window, key) pair: the aggregate
// sink boundary.
type Aggregate struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Dimension   string    `json:"dimension"`
	Key         string    `json:"key"`

	Count          int64   `json:"count"`
	DistinctUsers  int64   `json:"distinct_user_count"`
	DistinctTracks int64   `json:"distinct_track_count"`
	MeanEngagement float64 `json:"mean_engagement"`

	// CategoryRatio is the share of records satisfying the dimension's
	// category predicate: premium-platform ratio for platform, popular
	// genre ratio for genre, full-play ratio for event kind.
	CategoryRatio float64 `json:"category_ratio"`

	AggregatedAt time.Time `json:"aggregation_timestamp"`
}
