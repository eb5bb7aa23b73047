package window

import (
	"fmt"
	"time"

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
)

// MultiAggregator fans one record stream out to several windowing
// granularities (e.g. 60s row-level metrics alongside 300s rollups).
type MultiAggregator struct {
	aggregators []*Aggregator
}

// NewMulti builds one Aggregator per config. At least one granularity
// is required, and sizes must be distinct.
func NewMulti(configs ...Config) (*MultiAggregator, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("at least one windowing granularity is required")
	}

	seen := make(map[time.Duration]struct{}, len(configs))
	aggs := make([]*Aggregator, 0, len(configs))
	for _, cfg := range configs {
		if _, dup := seen[cfg.Size]; dup {
			return nil, fmt.Errorf("duplicate window size %v", cfg.Size)
		}
		seen[cfg.Size] = struct{}{}

		agg, err := New(cfg)
		if err != nil {
			return nil, err
		}
		aggs = append(aggs, agg)
	}
	return &MultiAggregator{aggregators: aggs}, nil
}

// Observe feeds the record to every granularity. It reports how many
// granularities dropped the record as too late.
func (m *MultiAggregator) Observe(rec derive.DerivedRecord) int {
	dropped := 0
	for _, agg := range m.aggregators {
		if !agg.Observe(rec) {
			dropped++
		}
	}
	return dropped
}

// AdvanceWatermark advances every granularity and returns the combined
// emissions, ordered by window size then the per-aggregator order.
func (m *MultiAggregator) AdvanceWatermark(wm time.Time) []Aggregate {
	var out []Aggregate
	for _, agg := range m.aggregators {
		out = append(out, agg.AdvanceWatermark(wm)...)
	}
	return out
}

// Flush drains every granularity.
func (m *MultiAggregator) Flush() []Aggregate {
	var out []Aggregate
	for _, agg := range m.aggregators {
		out = append(out, agg.Flush()...)
	}
	return out
}

// LateDrops sums dropped-late counts across granularities.
func (m *MultiAggregator) LateDrops() int64 {
	var n int64
	for _, agg := range m.aggregators {
		n += agg.LateDrops()
	}
	return n
}
