// Package validate parses raw listening activity records into typed,
// invariant-checked events.
//
// Validation is a pure function: the same input always yields the same
// outcome, and every failure is a typed *schema.FieldError carrying the
// offending field path and reason. Nothing is thrown past the caller.
package validate

import (
	"time"

	"github.com/listenflow/listenflow/pkg/listenflow/schema"
)

// Validator turns untyped key/value records into MusicEvents.
// It holds no per-record state and is safe for concurrent use.
type Validator struct {
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the processing-timestamp source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) {
		v.now = now
	}
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate parses and validates one raw record.
//
// Missing optional fields never fail validation; missing required fields,
// type mismatches, out-of-range values, unknown enum tokens, and
// cross-entity violations all do. The returned error is always a
// *schema.FieldError.
func (v *Validator) Validate(raw map[string]any) (*schema.MusicEvent, error) {
	if len(raw) == 0 {
		return nil, schema.NewFieldError("", "record is empty")
	}

	kindTok, ferr := requireString(raw, "event_kind", "event_kind")
	if ferr != nil {
		return nil, ferr
	}
	kind, err := schema.ParseEventKind(kindTok)
	if err != nil {
		return nil, schema.NewFieldError("event_kind", "%v", err)
	}

	ts, ferr := requireTime(raw, "timestamp", "timestamp")
	if ferr != nil {
		return nil, ferr
	}

	track, ferr := parseTrack(raw)
	if ferr != nil {
		return nil, ferr
	}
	artist, ferr := parseArtist(raw)
	if ferr != nil {
		return nil, ferr
	}

	opts := []schema.EventOption{schema.WithProcessingTime(v.now())}

	if id, ok, ferr := optionalString(raw, "event_id", "event_id"); ferr != nil {
		return nil, ferr
	} else if ok {
		opts = append(opts, schema.WithEventID(id))
	}

	album, ok, ferr := parseAlbum(raw)
	if ferr != nil {
		return nil, ferr
	}
	if ok {
		opts = append(opts, schema.WithAlbum(album))
	}

	user, ferr := parseUserInteraction(raw)
	if ferr != nil {
		return nil, ferr
	}

	play, ok, ferr := parsePlayDetail(raw)
	if ferr != nil {
		return nil, ferr
	}
	if ok {
		opts = append(opts, schema.WithPlayDetail(play))
	}

	streaming, ferr := parseStreamingContext(raw)
	if ferr != nil {
		return nil, ferr
	}

	evt, err := schema.NewMusicEvent(kind, ts, track, artist, user, streaming, opts...)
	if err != nil {
		return nil, err
	}
	return evt, nil
}

func parseTrack(raw map[string]any) (schema.Track, *schema.FieldError) {
	m, ferr := requireMap(raw, "track", "track")
	if ferr != nil {
		return schema.Track{}, ferr
	}

	var t schema.Track
	if t.ID, ferr = requireString(m, "id", "track.id"); ferr != nil {
		return t, ferr
	}
	if t.Name, ferr = requireString(m, "name", "track.name"); ferr != nil {
		return t, ferr
	}
	if t.ArtistID, ferr = requireString(m, "artist_id", "track.artist_id"); ferr != nil {
		return t, ferr
	}
	if t.AlbumID, ferr = optionalStringPtr(m, "album_id", "track.album_id"); ferr != nil {
		return t, ferr
	}
	if t.DurationMS, ferr = optionalInt64Ptr(m, "duration_ms", "track.duration_ms"); ferr != nil {
		return t, ferr
	}
	if t.Explicit, _, ferr = optionalBool(m, "explicit", "track.explicit"); ferr != nil {
		return t, ferr
	}
	if t.Popularity, ferr = optionalIntPtr(m, "popularity", "track.popularity"); ferr != nil {
		return t, ferr
	}
	if t.Energy, ferr = optionalFloatPtr(m, "energy", "track.energy"); ferr != nil {
		return t, ferr
	}
	if t.Valence, ferr = optionalFloatPtr(m, "valence", "track.valence"); ferr != nil {
		return t, ferr
	}
	if t.Tempo, ferr = optionalFloatPtr(m, "tempo", "track.tempo"); ferr != nil {
		return t, ferr
	}
	if t.Genres, ferr = optionalGenres(m, "genres", "track.genres"); ferr != nil {
		return t, ferr
	}
	return t, nil
}

func parseArtist(raw map[string]any) (schema.Artist, *schema.FieldError) {
	m, ferr := requireMap(raw, "artist", "artist")
	if ferr != nil {
		return schema.Artist{}, ferr
	}

	var a schema.Artist
	if a.ID, ferr = requireString(m, "id", "artist.id"); ferr != nil {
		return a, ferr
	}
	if a.Name, ferr = requireString(m, "name", "artist.name"); ferr != nil {
		return a, ferr
	}
	if a.Genres, ferr = optionalGenres(m, "genres", "artist.genres"); ferr != nil {
		return a, ferr
	}
	if a.Followers, ferr = optionalInt64Ptr(m, "followers", "artist.followers"); ferr != nil {
		return a, ferr
	}
	if a.Verified, _, ferr = optionalBool(m, "verified", "artist.verified"); ferr != nil {
		return a, ferr
	}
	if a.Country, ferr = optionalStringPtr(m, "country", "artist.country"); ferr != nil {
		return a, ferr
	}
	return a, nil
}

func parseAlbum(raw map[string]any) (schema.Album, bool, *schema.FieldError) {
	m, ok, ferr := optionalMap(raw, "album", "album")
	if ferr != nil || !ok {
		return schema.Album{}, false, ferr
	}

	var a schema.Album
	if a.ID, ferr = requireString(m, "id", "album.id"); ferr != nil {
		return a, false, ferr
	}
	if a.Name, ferr = requireString(m, "name", "album.name"); ferr != nil {
		return a, false, ferr
	}
	if a.ArtistID, ferr = requireString(m, "artist_id", "album.artist_id"); ferr != nil {
		return a, false, ferr
	}
	if a.ReleaseDate, ferr = optionalTimePtr(m, "release_date", "album.release_date"); ferr != nil {
		return a, false, ferr
	}
	if a.TrackCount, ferr = optionalIntPtr(m, "track_count", "album.track_count"); ferr != nil {
		return a, false, ferr
	}
	if a.Genres, ferr = optionalGenres(m, "genres", "album.genres"); ferr != nil {
		return a, false, ferr
	}
	return a, true, nil
}

func parseUserInteraction(raw map[string]any) (schema.UserInteraction, *schema.FieldError) {
	m, ferr := requireMap(raw, "user_interaction", "user_interaction")
	if ferr != nil {
		return schema.UserInteraction{}, ferr
	}

	var u schema.UserInteraction
	if u.UserID, ferr = requireString(m, "user_id", "user_interaction.user_id"); ferr != nil {
		return u, ferr
	}
	if u.SessionID, ferr = requireString(m, "session_id", "user_interaction.session_id"); ferr != nil {
		return u, ferr
	}
	if u.DeviceType, ferr = optionalStringPtr(m, "device_type", "user_interaction.device_type"); ferr != nil {
		return u, ferr
	}
	if u.Location, ferr = optionalStringPtr(m, "location", "user_interaction.location"); ferr != nil {
		return u, ferr
	}
	if u.SubscriptionTier, ferr = optionalStringPtr(m, "subscription_tier", "user_interaction.subscription_tier"); ferr != nil {
		return u, ferr
	}
	if u.AgeGroup, ferr = optionalStringPtr(m, "age_group", "user_interaction.age_group"); ferr != nil {
		return u, ferr
	}
	return u, nil
}

func parsePlayDetail(raw map[string]any) (schema.PlayDetail, bool, *schema.FieldError) {
	m, ok, ferr := optionalMap(raw, "play_detail", "play_detail")
	if ferr != nil || !ok {
		return schema.PlayDetail{}, false, ferr
	}

	var p schema.PlayDetail
	if p.PlayedDurationMS, ferr = requireInt64(m, "played_duration_ms", "play_detail.played_duration_ms"); ferr != nil {
		return p, false, ferr
	}
	if p.SkipReason, ferr = optionalStringPtr(m, "skip_reason", "play_detail.skip_reason"); ferr != nil {
		return p, false, ferr
	}
	if p.PlaylistID, ferr = optionalStringPtr(m, "playlist_id", "play_detail.playlist_id"); ferr != nil {
		return p, false, ferr
	}
	if p.Shuffle, _, ferr = optionalBool(m, "shuffle", "play_detail.shuffle"); ferr != nil {
		return p, false, ferr
	}

	tok, ok2, ferr := optionalString(m, "repeat_mode", "play_detail.repeat_mode")
	if ferr != nil {
		return p, false, ferr
	}
	if !ok2 {
		tok = string(schema.RepeatOff)
	}
	mode, err := schema.ParseRepeatMode(tok)
	if err != nil {
		return p, false, schema.NewFieldError("play_detail.repeat_mode", "%v", err)
	}
	p.Repeat = mode
	return p, true, nil
}

func parseStreamingContext(raw map[string]any) (schema.StreamingContext, *schema.FieldError) {
	m, ferr := requireMap(raw, "streaming_context", "streaming_context")
	if ferr != nil {
		return schema.StreamingContext{}, ferr
	}

	var s schema.StreamingContext
	tok, ferr := requireString(m, "platform", "streaming_context.platform")
	if ferr != nil {
		return s, ferr
	}
	platform, err := schema.ParsePlatform(tok)
	if err != nil {
		return s, schema.NewFieldError("streaming_context.platform", "%v", err)
	}
	s.Platform = platform

	if s.Quality, ferr = optionalStringPtr(m, "quality", "streaming_context.quality"); ferr != nil {
		return s, ferr
	}
	if s.BandwidthKbps, ferr = optionalInt64Ptr(m, "bandwidth_kbps", "streaming_context.bandwidth_kbps"); ferr != nil {
		return s, ferr
	}
	if s.BufferEvents, ferr = optionalIntPtr(m, "buffer_events", "streaming_context.buffer_events"); ferr != nil {
		return s, ferr
	}
	return s, nil
}
