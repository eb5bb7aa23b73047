// Package config defines pipeline settings loaded from files and the
// environment.
//
// Settings resolve in three layers: built-in defaults, then an optional
// YAML or JSON file, then environment variable overrides. Validation is
// fatal at startup; a pipeline never runs on a half-formed
// configuration.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/listenflow/listenflow/pkg/listenflow/derive"
	"github.com/listenflow/listenflow/pkg/listenflow/schema"
	"github.com/listenflow/listenflow/pkg/listenflow/window"
)

// Settings holds every tunable for a pipeline run.
type Settings struct {
	// Workers is the number of concurrent validate+derive workers.
	Workers int `yaml:"workers" json:"workers" env:"LISTENFLOW_WORKERS"`

	// QueueSize bounds the intake channel.
	QueueSize int `yaml:"queue_size" json:"queue_size" env:"LISTENFLOW_QUEUE_SIZE"`

	// WatermarkInterval is how often the watermark advances from the
	// wall clock.
	WatermarkInterval Duration `yaml:"watermark_interval" json:"watermark_interval" env:"LISTENFLOW_WATERMARK_INTERVAL"`

	// AllowedLateness keeps closed windows open to stragglers.
	AllowedLateness Duration `yaml:"allowed_lateness" json:"allowed_lateness" env:"LISTENFLOW_ALLOWED_LATENESS"`

	// Granularities lists the tumbling window sizes. Each size gets its
	// own aggregator; sizes must be distinct.
	Granularities []Duration `yaml:"granularities" json:"granularities" env:"LISTENFLOW_GRANULARITIES"`

	// PremiumPlatforms and AdSupportedPlatforms drive the
	// platform_category feature. Platforms in neither list categorize
	// as "other".
	PremiumPlatforms     []string `yaml:"premium_platforms" json:"premium_platforms" env:"LISTENFLOW_PREMIUM_PLATFORMS"`
	AdSupportedPlatforms []string `yaml:"ad_supported_platforms" json:"ad_supported_platforms" env:"LISTENFLOW_AD_SUPPORTED_PLATFORMS"`

	// PopularGenres feeds the genre dimension's category ratio.
	PopularGenres []string `yaml:"popular_genres" json:"popular_genres" env:"LISTENFLOW_POPULAR_GENRES"`

	// WeekendDays uses the Monday=0 .. Sunday=6 convention.
	WeekendDays []int `yaml:"weekend_days" json:"weekend_days" env:"LISTENFLOW_WEEKEND_DAYS"`

	// Track length thresholds in seconds.
	LongTrackSeconds  float64 `yaml:"long_track_seconds" json:"long_track_seconds" env:"LISTENFLOW_LONG_TRACK_SECONDS"`
	ShortTrackSeconds float64 `yaml:"short_track_seconds" json:"short_track_seconds" env:"LISTENFLOW_SHORT_TRACK_SECONDS"`

	// Row sink batching.
	RowBatchSize     int      `yaml:"row_batch_size" json:"row_batch_size" env:"LISTENFLOW_ROW_BATCH_SIZE"`
	RowFlushInterval Duration `yaml:"row_flush_interval" json:"row_flush_interval" env:"LISTENFLOW_ROW_FLUSH_INTERVAL"`

	// SQLitePath enables the SQLite sink when set.
	SQLitePath string `yaml:"sqlite_path" json:"sqlite_path" env:"LISTENFLOW_SQLITE_PATH"`

	// PostgresDSN enables the Postgres sink when set.
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn" env:"LISTENFLOW_POSTGRES_DSN"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Workers:           4,
		QueueSize:         1024,
		WatermarkInterval: Duration(time.Second),
		AllowedLateness:   Duration(time.Minute),
		Granularities:     []Duration{Duration(5 * time.Minute)},
		PremiumPlatforms:  []string{"spotify", "apple_music", "tidal"},
		AdSupportedPlatforms: []string{
			"youtube_music", "soundcloud", "pandora",
		},
		PopularGenres:     []string{"pop", "rock", "hip_hop"},
		WeekendDays:       []int{5, 6},
		LongTrackSeconds:  300,
		ShortTrackSeconds: 120,
		RowBatchSize:      100,
		RowFlushInterval:  Duration(2 * time.Second),
	}
}

// ApplyEnv overlays environment variable overrides onto s.
func (s *Settings) ApplyEnv() error {
	if err := env.Parse(s); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports the first problem with the settings. A pipeline must
// refuse to start on an invalid configuration.
func (s Settings) Validate() error {
	if s.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	}
	if s.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1, got %d", s.QueueSize)
	}
	if s.WatermarkInterval <= 0 {
		return fmt.Errorf("watermark_interval must be positive, got %v", s.WatermarkInterval)
	}
	if s.AllowedLateness < 0 {
		return fmt.Errorf("allowed_lateness must not be negative, got %v", s.AllowedLateness)
	}
	if len(s.Granularities) == 0 {
		return fmt.Errorf("at least one windowing granularity is required")
	}
	seen := make(map[Duration]struct{}, len(s.Granularities))
	for _, g := range s.Granularities {
		if g <= 0 {
			return fmt.Errorf("granularity must be positive, got %v", g)
		}
		if _, dup := seen[g]; dup {
			return fmt.Errorf("duplicate granularity %v", g)
		}
		seen[g] = struct{}{}
	}
	if _, err := parsePlatforms(s.PremiumPlatforms); err != nil {
		return fmt.Errorf("premium_platforms: %w", err)
	}
	if _, err := parsePlatforms(s.AdSupportedPlatforms); err != nil {
		return fmt.Errorf("ad_supported_platforms: %w", err)
	}
	if _, err := parseGenres(s.PopularGenres); err != nil {
		return fmt.Errorf("popular_genres: %w", err)
	}
	for _, day := range s.WeekendDays {
		if day < 0 || day > 6 {
			return fmt.Errorf("weekend day must be in [0,6], got %d", day)
		}
	}
	if s.LongTrackSeconds <= 0 {
		return fmt.Errorf("long_track_seconds must be positive, got %v", s.LongTrackSeconds)
	}
	if s.ShortTrackSeconds <= 0 {
		return fmt.Errorf("short_track_seconds must be positive, got %v", s.ShortTrackSeconds)
	}
	if s.RowBatchSize < 1 {
		return fmt.Errorf("row_batch_size must be at least 1, got %d", s.RowBatchSize)
	}
	if s.RowFlushInterval <= 0 {
		return fmt.Errorf("row_flush_interval must be positive, got %v", s.RowFlushInterval)
	}
	return nil
}

// DeriveConfig converts the settings into a derivation configuration.
// Call Validate first; unknown platform tokens fail here too.
func (s Settings) DeriveConfig() (derive.Config, error) {
	premium, err := parsePlatforms(s.PremiumPlatforms)
	if err != nil {
		return derive.Config{}, fmt.Errorf("premium_platforms: %w", err)
	}
	ad, err := parsePlatforms(s.AdSupportedPlatforms)
	if err != nil {
		return derive.Config{}, fmt.Errorf("ad_supported_platforms: %w", err)
	}
	return derive.Config{
		PremiumPlatforms:     premium,
		AdSupportedPlatforms: ad,
		WeekendDays:          s.WeekendDays,
		LongTrackSeconds:     s.LongTrackSeconds,
		ShortTrackSeconds:    s.ShortTrackSeconds,
	}, nil
}

// WindowConfigs converts the settings into one windowing configuration
// per granularity.
func (s Settings) WindowConfigs() ([]window.Config, error) {
	popular, err := parseGenres(s.PopularGenres)
	if err != nil {
		return nil, fmt.Errorf("popular_genres: %w", err)
	}
	configs := make([]window.Config, 0, len(s.Granularities))
	for _, g := range s.Granularities {
		configs = append(configs, window.Config{
			Size:            g.Std(),
			Dimensions:      window.AllDimensions,
			AllowedLateness: s.AllowedLateness.Std(),
			PopularGenres:   popular,
		})
	}
	return configs, nil
}

func parsePlatforms(tokens []string) ([]schema.Platform, error) {
	out := make([]schema.Platform, 0, len(tokens))
	for _, tok := range tokens {
		p, err := schema.ParsePlatform(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func parseGenres(tokens []string) ([]schema.Genre, error) {
	out := make([]schema.Genre, 0, len(tokens))
	for _, tok := range tokens {
		g, err := schema.ParseGenre(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
