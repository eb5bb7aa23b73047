// Package derive computes per-record analytic features for validated
// listening events.
//
// Derivation is a total function on well-formed input: the validator has
// already rejected anything that could fail here, so Derive never errors.
// The original event is never mutated; each call produces a new
// DerivedRecord wrapping it.
package derive

import (
	"time"

	"github.com/listenflow/listenflow/pkg/listenflow/schema"
)

// Config fixes the classification sets and conventions used during
// derivation. It is loaded once before processing begins; there is no
// global fallback.
type Config struct {
	// PremiumPlatforms maps to the "premium" platform category.
	PremiumPlatforms []schema.Platform

	// AdSupportedPlatforms maps to the "ad_supported" platform category.
	// Platforms in neither set categorize as "other".
	AdSupportedPlatforms []schema.Platform

	// WeekendDays lists weekend days using the Monday=0 .. Sunday=6
	// convention shared by every temporal field in this package.
	WeekendDays []int

	// LongTrackSeconds is the exclusive lower bound for is_long_track.
	LongTrackSeconds float64

	// ShortTrackSeconds is the exclusive upper bound for is_short_track.
	ShortTrackSeconds float64
}

// DefaultConfig classifies the known platforms and uses the
// Saturday/Sunday weekend.
var DefaultConfig = Config{
	PremiumPlatforms: []schema.Platform{
		schema.PlatformSpotify,
		schema.PlatformAppleMusic,
		schema.PlatformTidal,
	},
	AdSupportedPlatforms: []schema.Platform{
		schema.PlatformYouTubeMusic,
		schema.PlatformSoundCloud,
		schema.PlatformPandora,
	},
	WeekendDays:       []int{5, 6},
	LongTrackSeconds:  300,
	ShortTrackSeconds: 120,
}

// Deriver computes analytic features. It is stateless per record and
// safe for concurrent use.
type Deriver struct {
	premium     map[schema.Platform]struct{}
	adSupported map[schema.Platform]struct{}
	weekend     map[int]struct{}
	longSecs    float64
	shortSecs   float64
}

// New creates a Deriver from the given configuration. Zero thresholds
// fall back to the defaults.
func New(cfg Config) *Deriver {
	d := &Deriver{
		premium:     make(map[schema.Platform]struct{}, len(cfg.PremiumPlatforms)),
		adSupported: make(map[schema.Platform]struct{}, len(cfg.AdSupportedPlatforms)),
		weekend:     make(map[int]struct{}, len(cfg.WeekendDays)),
		longSecs:    cfg.LongTrackSeconds,
		shortSecs:   cfg.ShortTrackSeconds,
	}
	if d.longSecs == 0 {
		d.longSecs = DefaultConfig.LongTrackSeconds
	}
	if d.shortSecs == 0 {
		d.shortSecs = DefaultConfig.ShortTrackSeconds
	}
	for _, p := range cfg.PremiumPlatforms {
		d.premium[p] = struct{}{}
	}
	for _, p := range cfg.AdSupportedPlatforms {
		d.adSupported[p] = struct{}{}
	}
	for _, day := range cfg.WeekendDays {
		d.weekend[day] = struct{}{}
	}
	return d
}

// DerivedRecord wraps a validated event with its computed features.
type DerivedRecord struct {
	Event *schema.MusicEvent

	// Temporal context, from the event timestamp.
	HourOfDay int
	// DayOfWeek uses Monday=0 .. Sunday=6.
	DayOfWeek int
	IsWeekend bool
	Month     int
	Year      int

	// Duration features, present only when the track duration is known.
	TrackDurationSeconds *float64
	IsLongTrack          *bool
	IsShortTrack         *bool

	// Completion features, present only when both play detail and track
	// duration are known. The ratio is capped at 1.0.
	CompletionRatio *float64
	IsFullPlay      *bool
	IsSkip          *bool

	// EngagementScore is always in [0.0, 1.0].
	EngagementScore float64

	PlatformCategory schema.PlatformCategory
}

// Derive computes all analytic features for one validated event.
func (d *Deriver) Derive(evt *schema.MusicEvent) DerivedRecord {
	rec := DerivedRecord{Event: evt}

	ts := evt.Timestamp
	rec.HourOfDay = ts.Hour()
	rec.DayOfWeek = mondayIndexed(ts.Weekday())
	_, rec.IsWeekend = d.weekend[rec.DayOfWeek]
	rec.Month = int(ts.Month())
	rec.Year = ts.Year()

	if evt.Track.DurationMS != nil {
		secs := float64(*evt.Track.DurationMS) / 1000
		long := secs > d.longSecs
		short := secs < d.shortSecs
		rec.TrackDurationSeconds = &secs
		rec.IsLongTrack = &long
		rec.IsShortTrack = &short
	}

	if evt.Play != nil && evt.Track.DurationMS != nil && *evt.Track.DurationMS > 0 {
		ratio := float64(evt.Play.PlayedDurationMS) / float64(*evt.Track.DurationMS)
		if ratio > 1 {
			ratio = 1
		}
		full := ratio >= 0.8
		skip := ratio < 0.3
		rec.CompletionRatio = &ratio
		rec.IsFullPlay = &full
		rec.IsSkip = &skip
	}

	rec.EngagementScore = d.engagementScore(evt, rec.CompletionRatio)
	rec.PlatformCategory = d.categorize(evt.Streaming.Platform)
	return rec
}

// engagementScore implements the fixed scoring model: base 0.5, boosted
// by completion and interactive kinds, penalized for skips, clamped to
// [0.0, 1.0].
func (d *Deriver) engagementScore(evt *schema.MusicEvent, ratio *float64) float64 {
	score := 0.5

	if ratio != nil {
		score += *ratio * 0.3
	}

	switch evt.Kind {
	case schema.KindLike, schema.KindShare, schema.KindPlaylistAdd:
		score += 0.4
	case schema.KindSkip:
		score -= 0.2
	}

	if evt.Play != nil && evt.Play.Repeat != schema.RepeatOff {
		score += 0.1
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func (d *Deriver) categorize(p schema.Platform) schema.PlatformCategory {
	if _, ok := d.premium[p]; ok {
		return schema.CategoryPremium
	}
	if _, ok := d.adSupported[p]; ok {
		return schema.CategoryAdSupported
	}
	return schema.CategoryOtherTier
}

// PrimaryGenre returns the record's grouping genre: the track's first
// genre tag, falling back to the artist's, or "" when neither has one.
func (r DerivedRecord) PrimaryGenre() schema.Genre {
	if len(r.Event.Track.Genres) > 0 {
		return r.Event.Track.Genres[0]
	}
	if len(r.Event.Artist.Genres) > 0 {
		return r.Event.Artist.Genres[0]
	}
	return ""
}

// mondayIndexed converts time.Weekday (Sunday=0) to the Monday=0
// convention.
func mondayIndexed(d time.Weekday) int {
	return (int(d) + 6) % 7
}
