// Package schema defines the entity shapes, closed enumerations, and
// cross-field invariants for listening activity records.
//
// Entities are validated at construction (see NewMusicEvent); a MusicEvent
// that exists is well-formed. Validation fails the whole event rather than
// accepting a partial record.
package schema

import (
	"strings"
	"time"
)

const (
	maxArtistNameLen = 200
	maxTrackNameLen  = 300
	maxAlbumNameLen  = 300
)

// Track describes the track an event refers to.
type Track struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	ArtistID   string   `json:"artist_id"`
	AlbumID    *string  `json:"album_id,omitempty"`
	DurationMS *int64   `json:"duration_ms,omitempty"`
	Explicit   bool     `json:"explicit"`
	Popularity *int     `json:"popularity,omitempty"`
	Energy     *float64 `json:"energy,omitempty"`
	Valence    *float64 `json:"valence,omitempty"`
	Tempo      *float64 `json:"tempo,omitempty"`
	Genres     []Genre  `json:"genres,omitempty"`
}

// Validate normalizes the name and checks every field-level invariant.
// Returned paths are relative to the track.
func (t *Track) Validate() *FieldError {
	if t.ID == "" {
		return NewFieldError("id", "track id is required")
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return NewFieldError("name", "track name cannot be empty")
	}
	if len(t.Name) > maxTrackNameLen {
		return NewFieldError("name", "track name exceeds %d characters", maxTrackNameLen)
	}
	if t.ArtistID == "" {
		return NewFieldError("artist_id", "track artist_id is required")
	}
	if t.DurationMS != nil && *t.DurationMS < 0 {
		return NewFieldError("duration_ms", "duration must be >= 0, got %d", *t.DurationMS)
	}
	if t.Popularity != nil && (*t.Popularity < 0 || *t.Popularity > 100) {
		return NewFieldError("popularity", "popularity must be in [0, 100], got %d", *t.Popularity)
	}
	if t.Energy != nil && (*t.Energy < 0 || *t.Energy > 1) {
		return NewFieldError("energy", "energy must be in [0.0, 1.0], got %g", *t.Energy)
	}
	if t.Valence != nil && (*t.Valence < 0 || *t.Valence > 1) {
		return NewFieldError("valence", "valence must be in [0.0, 1.0], got %g", *t.Valence)
	}
	if t.Tempo != nil && *t.Tempo < 0 {
		return NewFieldError("tempo", "tempo must be >= 0, got %g", *t.Tempo)
	}
	return nil
}

// Artist describes the primary artist of an event.
type Artist struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Genres    []Genre `json:"genres,omitempty"`
	Followers *int64  `json:"followers,omitempty"`
	Verified  bool    `json:"verified"`
	Country   *string `json:"country,omitempty"`
}

// Validate normalizes the name and checks every field-level invariant.
func (a *Artist) Validate() *FieldError {
	if a.ID == "" {
		return NewFieldError("id", "artist id is required")
	}
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return NewFieldError("name", "artist name cannot be empty")
	}
	if len(a.Name) > maxArtistNameLen {
		return NewFieldError("name", "artist name exceeds %d characters", maxArtistNameLen)
	}
	if a.Followers != nil && *a.Followers < 0 {
		return NewFieldError("followers", "followers must be >= 0, got %d", *a.Followers)
	}
	if a.Country != nil && len(*a.Country) != 2 {
		return NewFieldError("country", "country must be a 2-letter code, got %q", *a.Country)
	}
	return nil
}

// Album describes the album context of an event, when known.
type Album struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ArtistID    string     `json:"artist_id"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	TrackCount  *int       `json:"track_count,omitempty"`
	Genres      []Genre    `json:"genres,omitempty"`
}

// Validate normalizes the name and checks every field-level invariant.
func (a *Album) Validate() *FieldError {
	if a.ID == "" {
		return NewFieldError("id", "album id is required")
	}
	a.Name = strings.TrimSpace(a.Name)
	if a.Name == "" {
		return NewFieldError("name", "album name cannot be empty")
	}
	if len(a.Name) > maxAlbumNameLen {
		return NewFieldError("name", "album name exceeds %d characters", maxAlbumNameLen)
	}
	if a.ArtistID == "" {
		return NewFieldError("artist_id", "album artist_id is required")
	}
	if a.TrackCount != nil && *a.TrackCount < 1 {
		return NewFieldError("track_count", "track_count must be >= 1, got %d", *a.TrackCount)
	}
	return nil
}

// UserInteraction carries the anonymized user and session context.
type UserInteraction struct {
	UserID           string  `json:"user_id"`
	SessionID        string  `json:"session_id"`
	DeviceType       *string `json:"device_type,omitempty"`
	Location         *string `json:"location,omitempty"`
	SubscriptionTier *string `json:"subscription_tier,omitempty"`
	AgeGroup         *string `json:"age_group,omitempty"`
}

// Validate checks every field-level invariant.
func (u *UserInteraction) Validate() *FieldError {
	if u.UserID == "" {
		return NewFieldError("user_id", "user_id is required")
	}
	if u.SessionID == "" {
		return NewFieldError("session_id", "session_id is required")
	}
	if u.Location != nil && len(*u.Location) != 2 {
		return NewFieldError("location", "location must be a 2-letter code, got %q", *u.Location)
	}
	return nil
}

// PlayDetail carries playback-specific data. Present on every play event;
// optional otherwise.
type PlayDetail struct {
	PlayedDurationMS int64      `json:"played_duration_ms"`
	SkipReason       *string    `json:"skip_reason,omitempty"`
	PlaylistID       *string    `json:"playlist_id,omitempty"`
	Shuffle          bool       `json:"shuffle"`
	Repeat           RepeatMode `json:"repeat_mode"`
}

// Validate checks every field-level invariant. An empty repeat mode is
// normalized to "off".
func (p *PlayDetail) Validate() *FieldError {
	if p.PlayedDurationMS < 0 {
		return NewFieldError("played_duration_ms", "played duration must be >= 0, got %d", p.PlayedDurationMS)
	}
	if p.Repeat == "" {
		p.Repeat = RepeatOff
	}
	if _, err := ParseRepeatMode(string(p.Repeat)); err != nil {
		return NewFieldError("repeat_mode", "%v", err)
	}
	return nil
}

// StreamingContext carries platform-side delivery data.
type StreamingContext struct {
	Platform      Platform `json:"platform"`
	Quality       *string  `json:"quality,omitempty"`
	BandwidthKbps *int64   `json:"bandwidth_kbps,omitempty"`
	BufferEvents  *int     `json:"buffer_events,omitempty"`
}

// Validate checks every field-level invariant.
func (s *StreamingContext) Validate() *FieldError {
	if _, err := ParsePlatform(string(s.Platform)); err != nil {
		return NewFieldError("platform", "%v", err)
	}
	if s.BandwidthKbps != nil && *s.BandwidthKbps < 0 {
		return NewFieldError("bandwidth_kbps", "bandwidth must be >= 0, got %d", *s.BandwidthKbps)
	}
	if s.BufferEvents != nil && *s.BufferEvents < 0 {
		return NewFieldError("buffer_events", "buffer_events must be >= 0, got %d", *s.BufferEvents)
	}
	return nil
}
