package schema

import (
	"time"

	"github.com/google/uuid"
)

// Reasons for the two cross-entity invariants. Callers match on these
// when classifying rejections.
const (
	ReasonPlayRequiresDetail = "play events require play detail"
	ReasonArtistMismatch     = "track artist_id must match artist id"
)

// MusicEvent is the root aggregate for one listening activity record.
// It is constructed once at ingestion and immutable thereafter; feature
// derivation wraps it instead of mutating it.
type MusicEvent struct {
	EventID   string    `json:"event_id"`
	Kind      EventKind `json:"event_kind"`
	Timestamp time.Time `json:"timestamp"`

	Track  Track  `json:"track"`
	Artist Artist `json:"artist"`
	Album  *Album `json:"album,omitempty"`

	User      UserInteraction  `json:"user_interaction"`
	Play      *PlayDetail      `json:"play_detail,omitempty"`
	Streaming StreamingContext `json:"streaming_context"`

	// ProcessedAt is set when the event passes validation.
	ProcessedAt time.Time `json:"processed_at"`
}

// EventOption configures MusicEvent construction.
type EventOption func(*eventConfig)

type eventConfig struct {
	id          string
	album       *Album
	play        *PlayDetail
	processedAt time.Time
}

// WithEventID sets a specific event ID (default: generated UUID).
func WithEventID(id string) EventOption {
	return func(cfg *eventConfig) {
		cfg.id = id
	}
}

// WithAlbum attaches album context.
func WithAlbum(album Album) EventOption {
	return func(cfg *eventConfig) {
		cfg.album = &album
	}
}

// WithPlayDetail attaches playback data.
func WithPlayDetail(play PlayDetail) EventOption {
	return func(cfg *eventConfig) {
		cfg.play = &play
	}
}

// WithProcessingTime sets the processing timestamp (default: time.Now UTC).
func WithProcessingTime(t time.Time) EventOption {
	return func(cfg *eventConfig) {
		cfg.processedAt = t
	}
}

// NewMusicEvent constructs a validated MusicEvent.
//
// Every entity-level invariant is checked first; the two cross-entity
// invariants (play requires play detail, track.artist_id == artist.id)
// are applied only after all sub-entities validate. Any violation fails
// the whole event with a *FieldError anchored at the event root.
func NewMusicEvent(
	kind EventKind,
	timestamp time.Time,
	track Track,
	artist Artist,
	user UserInteraction,
	streaming StreamingContext,
	opts ...EventOption,
) (*MusicEvent, error) {
	cfg := &eventConfig{
		id:          uuid.New().String(),
		processedAt: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if _, err := ParseEventKind(string(kind)); err != nil {
		return nil, NewFieldError("event_kind", "%v", err)
	}
	if timestamp.IsZero() {
		return nil, NewFieldError("timestamp", "timestamp is required")
	}

	if ferr := track.Validate(); ferr != nil {
		return nil, ferr.prefix("track")
	}
	if ferr := artist.Validate(); ferr != nil {
		return nil, ferr.prefix("artist")
	}
	if cfg.album != nil {
		if ferr := cfg.album.Validate(); ferr != nil {
			return nil, ferr.prefix("album")
		}
	}
	if ferr := user.Validate(); ferr != nil {
		return nil, ferr.prefix("user_interaction")
	}
	if cfg.play != nil {
		if ferr := cfg.play.Validate(); ferr != nil {
			return nil, ferr.prefix("play_detail")
		}
	}
	if ferr := streaming.Validate(); ferr != nil {
		return nil, ferr.prefix("streaming_context")
	}

	// Cross-entity invariants, only after all sub-entities parsed.
	if kind == KindPlay && cfg.play == nil {
		return nil, &FieldError{Path: "play_detail", Reason: ReasonPlayRequiresDetail}
	}
	if track.ArtistID != artist.ID {
		return nil, &FieldError{Path: "track.artist_id", Reason: ReasonArtistMismatch}
	}

	return &MusicEvent{
		EventID:     cfg.id,
		Kind:        kind,
		Timestamp:   timestamp,
		Track:       track,
		Artist:      artist,
		Album:       cfg.album,
		User:        user,
		Play:        cfg.play,
		Streaming:   streaming,
		ProcessedAt: cfg.processedAt,
	}, nil
}
