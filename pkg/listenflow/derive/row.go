package derive

import (
	"time"

	"github.com/listenflow/listenflow/pkg/listenflow/schema"
)

// Row is the flat record emitted at the row-level sink boundary.
// Every scalar entity field plus every derived field appears as its own
// column, suitable for append-only columnar storage. Nil pointers map
// to NULL columns.
type Row struct {
	EventID     string    `json:"event_id"`
	EventKind   string    `json:"event_kind"`
	Timestamp   time.Time `json:"timestamp"`
	ProcessedAt time.Time `json:"processed_at"`

	TrackID         string   `json:"track_id"`
	TrackName       string   `json:"track_name"`
	TrackDurationMS *int64   `json:"track_duration_ms"`
	TrackExplicit   bool     `json:"track_explicit"`
	TrackPopularity *int     `json:"track_popularity"`
	TrackEnergy     *float64 `json:"track_energy"`
	TrackValence    *float64 `json:"track_valence"`
	TrackTempo      *float64 `json:"track_tempo"`
	TrackGenres     []string `json:"track_genres"`

	ArtistID        string   `json:"artist_id"`
	ArtistName      string   `json:"artist_name"`
	ArtistFollowers *int64   `json:"artist_followers"`
	ArtistVerified  bool     `json:"artist_verified"`
	ArtistCountry   *string  `json:"artist_country"`
	ArtistGenres    []string `json:"artist_genres"`

	AlbumID          *string    `json:"album_id"`
	AlbumName        *string    `json:"album_name"`
	AlbumReleaseDate *time.Time `json:"album_release_date"`

	UserID           string  `json:"user_id"`
	SessionID        string  `json:"session_id"`
	DeviceType       *string `json:"device_type"`
	Location         *string `json:"location"`
	SubscriptionTier *string `json:"subscription_tier"`
	AgeGroup         *string `json:"age_group"`

	Platform      string  `json:"platform"`
	StreamQuality *string `json:"stream_quality"`
	BandwidthKbps *int64  `json:"bandwidth_kbps"`
	BufferEvents  *int    `json:"buffer_events"`

	PlayedDurationMS *int64  `json:"played_duration_ms"`
	SkipReason       *string `json:"skip_reason"`
	PlaylistID       *string `json:"playlist_id"`
	ShuffleMode      *bool   `json:"shuffle_mode"`
	RepeatMode       *string `json:"repeat_mode"`

	HourOfDay            int      `json:"hour_of_day"`
	DayOfWeek            int      `json:"day_of_week"`
	IsWeekend            bool     `json:"is_weekend"`
	Month                int      `json:"month"`
	Year                 int      `json:"year"`
	TrackDurationSeconds *float64 `json:"track_duration_seconds"`
	IsLongTrack          *bool    `json:"is_long_track"`
	IsShortTrack         *bool    `json:"is_short_track"`
	PlayCompletionRatio  *float64 `json:"play_completion_ratio"`
	IsFullPlay           *bool    `json:"is_full_play"`
	IsSkip               *bool    `json:"is_skip"`
	EngagementScore      float64  `json:"engagement_score"`
	PlatformCategory     string   `json:"platform_category"`
}

// Row flattens the record for the sink boundary.
func (r DerivedRecord) Row() Row {
	evt := r.Event

	row := Row{
		EventID:     evt.EventID,
		EventKind:   evt.Kind.String(),
		Timestamp:   evt.Timestamp,
		ProcessedAt: evt.ProcessedAt,

		TrackID:         evt.Track.ID,
		TrackName:       evt.Track.Name,
		TrackDurationMS: evt.Track.DurationMS,
		TrackExplicit:   evt.Track.Explicit,
		TrackPopularity: evt.Track.Popularity,
		TrackEnergy:     evt.Track.Energy,
		TrackValence:    evt.Track.Valence,
		TrackTempo:      evt.Track.Tempo,
		TrackGenres:     genreTokens(evt.Track.Genres),

		ArtistID:        evt.Artist.ID,
		ArtistName:      evt.Artist.Name,
		ArtistFollowers: evt.Artist.Followers,
		ArtistVerified:  evt.Artist.Verified,
		ArtistCountry:   evt.Artist.Country,
		ArtistGenres:    genreTokens(evt.Artist.Genres),

		UserID:           evt.User.UserID,
		SessionID:        evt.User.SessionID,
		DeviceType:       evt.User.DeviceType,
		Location:         evt.User.Location,
		SubscriptionTier: evt.User.SubscriptionTier,
		AgeGroup:         evt.User.AgeGroup,

		Platform:      evt.Streaming.Platform.String(),
		StreamQuality: evt.Streaming.Quality,
		BandwidthKbps: evt.Streaming.BandwidthKbps,
		BufferEvents:  evt.Streaming.BufferEvents,

		HourOfDay:            r.HourOfDay,
		DayOfWeek:            r.DayOfWeek,
		IsWeekend:            r.IsWeekend,
		Month:                r.Month,
		Year:                 r.Year,
		TrackDurationSeconds: r.TrackDurationSeconds,
		IsLongTrack:          r.IsLongTrack,
		IsShortTrack:         r.IsShortTrack,
		PlayCompletionRatio:  r.CompletionRatio,
		IsFullPlay:           r.IsFullPlay,
		IsSkip:               r.IsSkip,
		EngagementScore:      r.EngagementScore,
		PlatformCategory:     r.PlatformCategory.String(),
	}

	if evt.Album != nil {
		row.AlbumID = &evt.Album.ID
		row.AlbumName = &evt.Album.Name
		row.AlbumReleaseDate = evt.Album.ReleaseDate
	}

	if evt.Play != nil {
		row.PlayedDurationMS = &evt.Play.PlayedDurationMS
		row.SkipReason = evt.Play.SkipReason
		row.PlaylistID = evt.Play.PlaylistID
		row.ShuffleMode = &evt.Play.Shuffle
		mode := evt.Play.Repeat.String()
		row.RepeatMode = &mode
	}

	return row
}

func genreTokens(genres []schema.Genre) []string {
	if len(genres) == 0 {
		return nil
	}
	out := make([]string, len(genres))
	for i, g := range genres {
		out[i] = g.String()
	}
	return out
}
