package schema

import (
	"strings"
	"testing"
)

func int64Ptr(v int64) *int64     { return &v }
func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestTrackValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Track)
		wantPath string
	}{
		{"valid", func(*Track) {}, ""},
		{"missing id", func(tr *Track) { tr.ID = "" }, "id"},
		{"blank name", func(tr *Track) { tr.Name = "  " }, "name"},
		{"name too long", func(tr *Track) { tr.Name = strings.Repeat("x", 301) }, "name"},
		{"missing artist id", func(tr *Track) { tr.ArtistID = "" }, "artist_id"},
		{"negative duration", func(tr *Track) { tr.DurationMS = int64Ptr(-1) }, "duration_ms"},
		{"popularity too high", func(tr *Track) { tr.Popularity = intPtr(101) }, "popularity"},
		{"energy out of range", func(tr *Track) { tr.Energy = floatPtr(1.5) }, "energy"},
		{"valence out of range", func(tr *Track) { tr.Valence = floatPtr(-0.1) }, "valence"},
		{"negative tempo", func(tr *Track) { tr.Tempo = floatPtr(-10) }, "tempo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := validTrack()
			tt.mutate(&tr)

			ferr := tr.Validate()
			if tt.wantPath == "" {
				if ferr != nil {
					t.Fatalf("Validate() error = %v, want nil", ferr)
				}
				return
			}
			if ferr == nil {
				t.Fatal("expected validation error")
			}
			if ferr.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", ferr.Path, tt.wantPath)
			}
		})
	}
}

func TestTrackValidateTrimsName(t *testing.T) {
	tr := validTrack()
	tr.Name = "  Midnight Drive  "
	if ferr := tr.Validate(); ferr != nil {
		t.Fatalf("Validate() error = %v", ferr)
	}
	if tr.Name != "Midnight Drive" {
		t.Errorf("Name = %q, want trimmed", tr.Name)
	}
}

func TestArtistValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Artist)
		wantPath string
	}{
		{"valid", func(*Artist) {}, ""},
		{"missing id", func(a *Artist) { a.ID = "" }, "id"},
		{"blank name", func(a *Artist) { a.Name = " " }, "name"},
		{"name too long", func(a *Artist) { a.Name = strings.Repeat("x", 201) }, "name"},
		{"negative followers", func(a *Artist) { a.Followers = int64Ptr(-5) }, "followers"},
		{"bad country code", func(a *Artist) { a.Country = strPtr("USA") }, "country"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := validArtist()
			tt.mutate(&a)

			ferr := a.Validate()
			if tt.wantPath == "" {
				if ferr != nil {
					t.Fatalf("Validate() error = %v, want nil", ferr)
				}
				return
			}
			if ferr == nil {
				t.Fatal("expected validation error")
			}
			if ferr.Path != tt.wantPath {
				t.Errorf("Path = %q, want %q", ferr.Path, tt.wantPath)
			}
		})
	}
}

func TestAlbumValidate(t *testing.T) {
	album := Album{ID: "album-1", Name: "First Light", ArtistID: "artist-1", TrackCount: intPtr(0)}
	ferr := album.Validate()
	if ferr == nil {
		t.Fatal("expected validation error for zero track count")
	}
	if ferr.Path != "track_count" {
		t.Errorf("Path = %q, want track_count", ferr.Path)
	}
}

func TestUserInteractionValidate(t *testing.T) {
	u := validUser()
	u.Location = strPtr("Berlin")
	ferr := u.Validate()
	if ferr == nil {
		t.Fatal("expected validation error for non 2-letter location")
	}
	if ferr.Path != "location" {
		t.Errorf("Path = %q, want location", ferr.Path)
	}
}

func TestPlayDetailNormalizesRepeat(t *testing.T) {
	p := PlayDetail{PlayedDurationMS: 500}
	if ferr := p.Validate(); ferr != nil {
		t.Fatalf("Validate() error = %v", ferr)
	}
	if p.Repeat != RepeatOff {
		t.Errorf("Repeat = %q, want off", p.Repeat)
	}
}

func TestPlayDetailRejectsNegativeDuration(t *testing.T) {
	p := PlayDetail{PlayedDurationMS: -1}
	if ferr := p.Validate(); ferr == nil {
		t.Fatal("expected validation error")
	}
}

func TestStreamingContextValidate(t *testing.T) {
	s := validStreaming()
	s.BufferEvents = intPtr(-1)
	ferr := s.Validate()
	if ferr == nil {
		t.Fatal("expected validation error for negative buffer events")
	}
	if ferr.Path != "buffer_events" {
		t.Errorf("Path = %q, want buffer_events", ferr.Path)
	}
}
