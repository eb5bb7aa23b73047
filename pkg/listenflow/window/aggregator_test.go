package window

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/schema"
)

var testClock = func() time.Time {
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func testConfig() Config {
	return Config{
		Size:            5 * time.Minute,
		AllowedLateness: time.Minute,
		PopularGenres:   []schema.Genre{schema.GenrePop, schema.GenreRock, schema.GenreHipHop},
		Clock:           testClock,
	}
}

func record(ts time.Time, user, track string, kind schema.EventKind, genre schema.Genre, category schema.PlatformCategory, engagement float64) derive.DerivedRecord {
	evt := &schema.MusicEvent{
		EventID:   user + "-" + track,
		Kind:      kind,
		Timestamp: ts,
		Track:     schema.Track{ID: track, Name: "t", ArtistID: "artist-1"},
		Artist:    schema.Artist{ID: "artist-1", Name: "a"},
		User:      schema.UserInteraction{UserID: user, SessionID: "s"},
		Streaming: schema.StreamingContext{Platform: schema.PlatformSpotify},
	}
	if genre != "" {
		evt.Track.Genres = []schema.Genre{genre}
	}
	return derive.DerivedRecord{
		Event:            evt,
		EngagementScore:  engagement,
		PlatformCategory: category,
	}
}

func find(t *testing.T, aggs []Aggregate, dim Dimension, key string) Aggregate {
	t.Helper()
	for _, agg := range aggs {
		if agg.Dimension == string(dim) && agg.Key == key {
			return agg
		}
	}
	t.Fatalf("no aggregate for %s=%s in %v", dim, key, aggs)
	return Aggregate{}
}

func TestWindowFor(t *testing.T) {
	ts := time.Date(2026, 3, 14, 10, 33, 20, 0, time.UTC)
	w := WindowFor(ts, 5*time.Minute)

	wantStart := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	if !w.Start.Equal(wantStart) {
		t.Errorf("Start = %v, want %v", w.Start, wantStart)
	}
	if !w.End.Equal(wantStart.Add(5 * time.Minute)) {
		t.Errorf("End = %v", w.End)
	}

	// A timestamp exactly on a boundary belongs to the window it starts.
	edge := WindowFor(wantStart.Add(5*time.Minute), 5*time.Minute)
	if !edge.Start.Equal(wantStart.Add(5 * time.Minute)) {
		t.Errorf("boundary timestamp assigned to %v", edge.Start)
	}
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	if _, err := New(Config{Size: 0}); err == nil {
		t.Error("expected error for zero window size")
	}
	if _, err := New(Config{Size: -time.Minute}); err == nil {
		t.Error("expected error for negative window size")
	}
}

func TestAggregateStatistics(t *testing.T) {
	agg, err := New(testConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	agg.Observe(record(base, "user-1", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.5))
	agg.Observe(record(base.Add(time.Minute), "user-2", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryAdSupported, 0.75))
	agg.Observe(record(base.Add(2*time.Minute), "user-1", "track-2", schema.KindLike, schema.GenreJazz, schema.CategoryPremium, 0.25))

	out := agg.AdvanceWatermark(base.Add(5 * time.Minute))

	plays := find(t, out, DimensionEventKind, "play")
	if plays.Count != 2 {
		t.Errorf("play count = %d, want 2", plays.Count)
	}
	if plays.DistinctUsers != 2 || plays.DistinctTracks != 1 {
		t.Errorf("play distinct users/tracks = %d/%d, want 2/1", plays.DistinctUsers, plays.DistinctTracks)
	}
	if math.Abs(plays.MeanEngagement-0.625) > 1e-9 {
		t.Errorf("play mean engagement = %v, want 0.625", plays.MeanEngagement)
	}

	pop := find(t, out, DimensionGenre, "pop")
	if pop.Count != 2 || pop.CategoryRatio != 1.0 {
		t.Errorf("pop count/ratio = %d/%v, want 2/1.0 (pop is popular)", pop.Count, pop.CategoryRatio)
	}
	jazz := find(t, out, DimensionGenre, "jazz")
	if jazz.CategoryRatio != 0 {
		t.Errorf("jazz category ratio = %v, want 0", jazz.CategoryRatio)
	}

	spotify := find(t, out, DimensionPlatform, "spotify")
	if spotify.Count != 3 {
		t.Errorf("platform count = %d, want 3", spotify.Count)
	}
	if math.Abs(spotify.CategoryRatio-2.0/3.0) > 1e-9 {
		t.Errorf("premium ratio = %v, want 2/3", spotify.CategoryRatio)
	}

	if !plays.WindowStart.Equal(base) || !plays.WindowEnd.Equal(base.Add(5*time.Minute)) {
		t.Errorf("window bounds = %v..%v", plays.WindowStart, plays.WindowEnd)
	}
	if !plays.AggregatedAt.Equal(testClock()) {
		t.Errorf("AggregatedAt = %v, want clock time", plays.AggregatedAt)
	}
}

func TestRecordWithoutGenreGroupsAsUnknown(t *testing.T) {
	agg, _ := New(testConfig())
	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	agg.Observe(record(base, "user-1", "track-1", schema.KindPlay, "", schema.CategoryPremium, 0.5))

	out := agg.AdvanceWatermark(base.Add(5 * time.Minute))
	unknown := find(t, out, DimensionGenre, "unknown")
	if unknown.Count != 1 {
		t.Errorf("unknown genre count = %d, want 1", unknown.Count)
	}
}

func TestOrderIndependence(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	records := []derive.DerivedRecord{
		record(base, "user-1", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.5),
		record(base.Add(30*time.Second), "user-2", "track-2", schema.KindSkip, schema.GenreRock, schema.CategoryAdSupported, 0.25),
		record(base.Add(time.Minute), "user-3", "track-1", schema.KindPlay, schema.GenreJazz, schema.CategoryOtherTier, 0.75),
		record(base.Add(2*time.Minute), "user-1", "track-3", schema.KindLike, schema.GenrePop, schema.CategoryPremium, 0.875),
		record(base.Add(3*time.Minute), "user-4", "track-2", schema.KindShare, schema.GenreMetal, schema.CategoryPremium, 0.125),
	}

	run := func(order []derive.DerivedRecord) []Aggregate {
		agg, err := New(testConfig())
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		for _, r := range order {
			agg.Observe(r)
		}
		return agg.AdvanceWatermark(base.Add(5 * time.Minute))
	}

	want := run(records)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5; i++ {
		shuffled := make([]derive.DerivedRecord, len(records))
		copy(shuffled, records)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		got := run(shuffled)
		if !reflect.DeepEqual(want, got) {
			t.Fatalf("shuffle %d changed the aggregates:\nwant %v\ngot  %v", i, want, got)
		}
	}
}

func TestNoEmissionBeforeWindowCloses(t *testing.T) {
	agg, _ := New(testConfig())
	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	agg.Observe(record(base, "user-1", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.5))

	if out := agg.AdvanceWatermark(base.Add(4 * time.Minute)); out != nil {
		t.Errorf("expected no emission before window end, got %v", out)
	}
	if out := agg.AdvanceWatermark(base.Add(5 * time.Minute)); len(out) == 0 {
		t.Error("expected emission once watermark reaches window end")
	}
	// No new data, no re-emission.
	if out := agg.AdvanceWatermark(base.Add(5*time.Minute + 30*time.Second)); out != nil {
		t.Errorf("expected no duplicate emission, got %v", out)
	}
}

func TestLateRecordTriggersReEmission(t *testing.T) {
	agg, _ := New(testConfig())
	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	agg.Observe(record(base, "user-1", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.5))
	first := agg.AdvanceWatermark(base.Add(5 * time.Minute))
	if find(t, first, DimensionEventKind, "play").Count != 1 {
		t.Fatal("expected initial count of 1")
	}

	// A straggler inside the lateness horizon re-opens the window.
	if !agg.Observe(record(base.Add(2*time.Minute), "user-2", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.75)) {
		t.Fatal("record inside the lateness horizon must be accepted")
	}

	second := agg.AdvanceWatermark(base.Add(5*time.Minute + 30*time.Second))
	replay := find(t, second, DimensionEventKind, "play")
	if replay.Count != 2 {
		t.Errorf("re-emitted count = %d, want full accumulated 2", replay.Count)
	}
	if replay.DistinctUsers != 2 {
		t.Errorf("re-emitted distinct users = %d, want 2", replay.DistinctUsers)
	}
	if !replay.WindowStart.Equal(base) {
		t.Error("re-emission must carry the same window identity")
	}
}

func TestRecordPastLatenessHorizonDropped(t *testing.T) {
	agg, _ := New(testConfig())
	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	agg.Observe(record(base, "user-1", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.5))
	agg.AdvanceWatermark(base.Add(6 * time.Minute)) // past end + lateness

	if agg.Observe(record(base.Add(time.Minute), "user-2", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.75)) {
		t.Error("record past the lateness horizon must be dropped")
	}
	if agg.LateDrops() != 1 {
		t.Errorf("LateDrops = %d, want 1", agg.LateDrops())
	}

	// The dropped record must not resurface anywhere.
	if out := agg.AdvanceWatermark(base.Add(7 * time.Minute)); out != nil {
		t.Errorf("unexpected emission %v", out)
	}
}

func TestFlushEmitsOpenWindows(t *testing.T) {
	agg, _ := New(testConfig())
	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	agg.Observe(record(base, "user-1", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.5))
	agg.Observe(record(base.Add(6*time.Minute), "user-2", "track-2", schema.KindLike, schema.GenreRock, schema.CategoryPremium, 0.75))

	out := agg.Flush()
	if len(out) != 6 {
		t.Fatalf("expected 6 aggregates (2 windows x 3 dimensions), got %d", len(out))
	}

	// Flush drains everything; a second flush is empty.
	if out = agg.Flush(); out != nil {
		t.Errorf("second flush emitted %v", out)
	}
}

func TestEmissionsSortedDeterministically(t *testing.T) {
	agg, _ := New(testConfig())
	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)

	agg.Observe(record(base.Add(6*time.Minute), "user-1", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.5))
	agg.Observe(record(base, "user-2", "track-2", schema.KindLike, schema.GenreRock, schema.CategoryPremium, 0.75))

	out := agg.Flush()
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		if cur.WindowStart.Before(prev.WindowStart) {
			t.Fatal("emissions not ordered by window start")
		}
		if cur.WindowStart.Equal(prev.WindowStart) && cur.Dimension < prev.Dimension {
			t.Fatal("emissions not ordered by dimension within a window")
		}
	}
}

func TestMultiAggregator(t *testing.T) {
	small := testConfig()
	small.Size = time.Minute
	multi, err := NewMulti(testConfig(), small)
	if err != nil {
		t.Fatalf("NewMulti() error = %v", err)
	}

	base := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	if dropped := multi.Observe(record(base, "user-1", "track-1", schema.KindPlay, schema.GenrePop, schema.CategoryPremium, 0.5)); dropped != 0 {
		t.Errorf("dropped = %d, want 0", dropped)
	}

	// The one-minute window closes first.
	out := multi.AdvanceWatermark(base.Add(time.Minute))
	if len(out) != 3 {
		t.Errorf("expected 3 aggregates from the small granularity, got %d", len(out))
	}

	out = multi.AdvanceWatermark(base.Add(5 * time.Minute))
	if len(out) != 3 {
		t.Errorf("expected 3 aggregates from the large granularity, got %d", len(out))
	}
}

func TestMultiRejectsDuplicateSizes(t *testing.T) {
	if _, err := NewMulti(testConfig(), testConfig()); err == nil {
		t.Error("expected error for duplicate granularities")
	}
	if _, err := NewMulti(); err == nil {
		t.Error("expected error for zero granularities")
	}
}
