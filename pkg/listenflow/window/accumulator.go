package window

import "time"

// accumulator is the commutative, associative state for one
// (window, key) group. Everything in it is order-insensitive: counts,
// a sum, and set unions.
type accumulator struct {
	count         int64
	engagementSum float64
	users         map[string]struct{}
	tracks        map[string]struct{}
	categoryHits  int64
}

func newAccumulator() *accumulator {
	return &accumulator{
		users:  make(map[string]struct{}),
		tracks: make(map[string]struct{}),
	}
}

func (a *accumulator) add(userID, trackID string, engagement float64, categoryMatch bool) {
	a.count++
	a.engagementSum += engagement
	a.users[userID] = struct{}{}
	a.tracks[trackID] = struct{}{}
	if categoryMatch {
		a.categoryHits++
	}
}

// snapshot materializes the aggregate row. It does not consume the
// accumulator; re-emission after late data snapshots again.
func (a *accumulator) snapshot(w Window, key GroupKey, at time.Time) Aggregate {
	agg := Aggregate{
		WindowStart:    w.Start,
		WindowEnd:      w.End,
		Dimension:      string(key.Dimension),
		Key:            key.Value,
		Count:          a.count,
		DistinctUsers:  int64(len(a.users)),
		DistinctTracks: int64(len(a.tracks)),
		AggregatedAt:   at,
	}
	if a.count > 0 {
		agg.MeanEngagement = a.engagementSum / float64(a.count)
		agg.CategoryRatio = float64(a.categoryHits) / float64(a.count)
	}
	return agg
}
