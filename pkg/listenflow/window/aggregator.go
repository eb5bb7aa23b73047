package window

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/schema"
)

// Config configures one windowing granularity.
type Config struct {
	// Size is the tumbling window duration. Required.
	Size time.Duration

	// Dimensions are the grouping axes to aggregate over.
	// Defaults to AllDimensions.
	Dimensions []Dimension

	// AllowedLateness keeps a closed window resident past its end so
	// late records can re-open it. Records arriving after the watermark
	// passes End+AllowedLateness are dropped and counted.
	AllowedLateness time.Duration

	// PopularGenres feeds the genre dimension's category predicate.
	PopularGenres []schema.Genre

	// Clock supplies aggregation timestamps. Defaults to time.Now UTC.
	Clock func() time.Time
}

// DefaultConfig aggregates over all dimensions in 5-minute windows with
// one minute of allowed lateness.
var DefaultConfig = Config{
	Size:            5 * time.Minute,
	Dimensions:      AllDimensions,
	AllowedLateness: time.Minute,
	PopularGenres:   []schema.Genre{schema.GenrePop, schema.GenreRock, schema.GenreHipHop},
}

// windowState holds the per-key accumulators for one window.
type windowState struct {
	groups  map[GroupKey]*accumulator
	emitted bool
	dirty   bool
}

// Aggregator assigns derived records to tumbling windows for one
// granularity and emits aggregates as the watermark advances.
//
// All methods are safe for concurrent use, but all state for a window
// lives in this one Aggregator: records must be routed so that every
// record for a (window, key) pair reaches the same instance before its
// watermark passes.
type Aggregator struct {
	size     time.Duration
	lateness time.Duration
	dims     []Dimension
	popular  map[schema.Genre]struct{}
	clock    func() time.Time

	mu        sync.Mutex
	windows   map[Window]*windowState
	watermark time.Time
	lateDrops int64
}

// New creates an Aggregator. The window size must be positive.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %v", cfg.Size)
	}
	dims := cfg.Dimensions
	if len(dims) == 0 {
		dims = AllDimensions
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	a := &Aggregator{
		size:     cfg.Size,
		lateness: cfg.AllowedLateness,
		dims:     dims,
		popular:  make(map[schema.Genre]struct{}, len(cfg.PopularGenres)),
		clock:    clock,
		windows:  make(map[Window]*windowState),
	}
	for _, g := range cfg.PopularGenres {
		a.popular[g] = struct{}{}
	}
	return a, nil
}

// Size returns the window duration for this granularity.
func (a *Aggregator) Size() time.Duration { return a.size }

// Observe assigns a record to its window and accumulates it under every
// configured grouping key. It reports false when the record is later
// than the lateness horizon and was dropped.
func (a *Aggregator) Observe(rec derive.DerivedRecord) bool {
	w := WindowFor(rec.Event.Timestamp, a.size)

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.expired(w) {
		a.lateDrops++
		return false
	}

	state, ok := a.windows[w]
	if !ok {
		state = &windowState{groups: make(map[GroupKey]*accumulator)}
		a.windows[w] = state
	}
	state.dirty = true

	for _, dim := range a.dims {
		key := GroupKey{Dimension: dim, Value: a.keyValue(dim, rec)}
		acc, ok := state.groups[key]
		if !ok {
			acc = newAccumulator()
			state.groups[key] = acc
		}
		acc.add(
			rec.Event.User.UserID,
			rec.Event.Track.ID,
			rec.EngagementScore,
			a.categoryMatch(dim, rec),
		)
	}
	return true
}

// AdvanceWatermark declares that no record with an earlier timestamp
// will arrive (except stragglers inside the lateness horizon). It
// returns the aggregates for every window that closed, plus full
// re-emissions for already-emitted windows that absorbed late records.
// The watermark never moves backwards.
func (a *Aggregator) AdvanceWatermark(wm time.Time) []Aggregate {
	a.mu.Lock()
	defer a.mu.Unlock()

	if wm.After(a.watermark) {
		a.watermark = wm
	}

	var out []Aggregate
	for w, state := range a.windows {
		if w.End.After(a.watermark) {
			continue
		}
		if state.dirty || !state.emitted {
			out = append(out, a.snapshotLocked(w, state)...)
			state.emitted = true
			state.dirty = false
		}
		if a.expired(w) {
			delete(a.windows, w)
		}
	}

	sortAggregates(out)
	return out
}

// Flush treats shutdown as a watermark advance to infinity: every open
// window is emitted (or re-emitted if it absorbed late records) and all
// accumulator state is discarded.
func (a *Aggregator) Flush() []Aggregate {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []Aggregate
	for w, state := range a.windows {
		if state.dirty || !state.emitted {
			out = append(out, a.snapshotLocked(w, state)...)
		}
		delete(a.windows, w)
	}

	sortAggregates(out)
	return out
}

// LateDrops returns the number of records dropped past the lateness
// horizon.
func (a *Aggregator) LateDrops() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lateDrops
}

// expired reports whether the watermark has passed the window's
// lateness horizon. Called with the lock held.
func (a *Aggregator) expired(w Window) bool {
	return !w.End.Add(a.lateness).After(a.watermark)
}

func (a *Aggregator) snapshotLocked(w Window, state *windowState) []Aggregate {
	at := a.clock()
	out := make([]Aggregate, 0, len(state.groups))
	for key, acc := range state.groups {
		out = append(out, acc.snapshot(w, key, at))
	}
	return out
}

func (a *Aggregator) keyValue(dim Dimension, rec derive.DerivedRecord) string {
	switch dim {
	case DimensionEventKind:
		return rec.Event.Kind.String()
	case DimensionGenre:
		if g := rec.PrimaryGenre(); g != "" {
			return g.String()
		}
		return "unknown"
	case DimensionPlatform:
		return rec.Event.Streaming.Platform.String()
	}
	return "unknown"
}

func (a *Aggregator) categoryMatch(dim Dimension, rec derive.DerivedRecord) bool {
	switch dim {
	case DimensionEventKind:
		return rec.IsFullPlay != nil && *rec.IsFullPlay
	case DimensionGenre:
		_, ok := a.popular[rec.PrimaryGenre()]
		return ok
	case DimensionPlatform:
		return rec.PlatformCategory == schema.CategoryPremium
	}
	return false
}

// sortAggregates orders emissions deterministically so identical input
// sets produce identical output, regardless of map iteration order.
func sortAggregates(aggs []Aggregate) {
	sort.Slice(aggs, func(i, j int) bool {
		if !aggs[i].WindowStart.Equal(aggs[j].WindowStart) {
			return aggs[i].WindowStart.Before(aggs[j].WindowStart)
		}
		if aggs[i].Dimension != aggs[j].Dimension {
			return aggs[i].Dimension < aggs[j].Dimension
		}
		return aggs[i].Key < aggs[j].Key
	})
}
