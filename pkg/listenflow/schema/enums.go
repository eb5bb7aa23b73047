package schema

import "fmt"

// EventKind is the closed set of listening activity types.
// Unknown tokens are rejected at validation time; this is not an
// open string field.
type EventKind string

const (
	KindPlay        EventKind = "play"
	KindSkip        EventKind = "skip"
	KindLike        EventKind = "like"
	KindShare       EventKind = "share"
	KindPlaylistAdd EventKind = "playlist_add"
	KindDownload    EventKind = "download"
	KindSearch      EventKind = "search"
)

var eventKinds = map[EventKind]struct{}{
	KindPlay:        {},
	KindSkip:        {},
	KindLike:        {},
	KindShare:       {},
	KindPlaylistAdd: {},
	KindDownload:    {},
	KindSearch:      {},
}

// ParseEventKind converts a raw token into an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if _, ok := eventKinds[k]; !ok {
		return "", fmt.Errorf("unknown event kind %q", s)
	}
	return k, nil
}

// String returns the wire token.
func (k EventKind) String() string { return string(k) }

// Platform is the closed set of known streaming services.
type Platform string

const (
	PlatformSpotify      Platform = "spotify"
	PlatformAppleMusic   Platform = "apple_music"
	PlatformYouTubeMusic Platform = "youtube_music"
	PlatformAmazonMusic  Platform = "amazon_music"
	PlatformTidal        Platform = "tidal"
	PlatformSoundCloud   Platform = "soundcloud"
	PlatformPandora      Platform = "pandora"
)

var platforms = map[Platform]struct{}{
	PlatformSpotify:      {},
	PlatformAppleMusic:   {},
	PlatformYouTubeMusic: {},
	PlatformAmazonMusic:  {},
	PlatformTidal:        {},
	PlatformSoundCloud:   {},
	PlatformPandora:      {},
}

// ParsePlatform converts a raw token into a Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(s)
	if _, ok := platforms[p]; !ok {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// String returns the wire token.
func (p Platform) String() string { return string(p) }

// Genre is the closed set of genre tags.
type Genre string

const (
	GenrePop         Genre = "pop"
	GenreRock        Genre = "rock"
	GenreHipHop      Genre = "hip_hop"
	GenreElectronic  Genre = "electronic"
	GenreJazz        Genre = "jazz"
	GenreClassical   Genre = "classical"
	GenreCountry     Genre = "country"
	GenreRAndB       Genre = "r_and_b"
	GenreIndie       Genre = "indie"
	GenreAlternative Genre = "alternative"
	GenreFolk        Genre = "folk"
	GenreReggae      Genre = "reggae"
	GenreBlues       Genre = "blues"
	GenreMetal       Genre = "metal"
	GenrePunk        Genre = "punk"
	GenreOther       Genre = "other"
)

var genres = map[Genre]struct{}{
	GenrePop:         {},
	GenreRock:        {},
	GenreHipHop:      {},
	GenreElectronic:  {},
	GenreJazz:        {},
	GenreClassical:   {},
	GenreCountry:     {},
	GenreRAndB:       {},
	GenreIndie:       {},
	GenreAlternative: {},
	GenreFolk:        {},
	GenreReggae:      {},
	GenreBlues:       {},
	GenreMetal:       {},
	GenrePunk:        {},
	GenreOther:       {},
}

// ParseGenre converts a raw token into a Genre.
func ParseGenre(s string) (Genre, error) {
	g := Genre(s)
	if _, ok := genres[g]; !ok {
		return "", fmt.Errorf("unknown genre %q", s)
	}
	return g, nil
}

// String returns the wire token.
func (g Genre) String() string { return string(g) }

// RepeatMode describes the player repeat setting during a play.
type RepeatMode string

const (
	RepeatOff     RepeatMode = "off"
	RepeatTrack   RepeatMode = "track"
	RepeatContext RepeatMode = "context"
)

// ParseRepeatMode converts a raw token into a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch m := RepeatMode(s); m {
	case RepeatOff, RepeatTrack, RepeatContext:
		return m, nil
	}
	return "", fmt.Errorf("unknown repeat mode %q", s)
}

// String returns the wire token.
func (m RepeatMode) String() string { return string(m) }

// PlatformCategory partitions platforms by monetization model.
// The partition itself is configuration (see the derive package),
// not inferred from the event.
type PlatformCategory string

const (
	CategoryPremium     PlatformCategory = "premium"
	CategoryAdSupported PlatformCategory = "ad_supported"
	CategoryOtherTier   PlatformCategory = "other"
)

// String returns the wire token.
func (c PlatformCategory) String() string { return string(c) }
