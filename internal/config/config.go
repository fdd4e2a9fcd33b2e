// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ashh-m/ytkeywordsearchtool/internal/harvest"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Browser  BrowserConfig  `mapstructure:"browser"`
	API      APIConfig      `mapstructure:"api"`
	Harvest  HarvestConfig  `mapstructure:"harvest"`
	Output   OutputConfig   `mapstructure:"output"`
	DB       DBConfig       `mapstructure:"db"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the metrics/health HTTP listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// BrowserConfig controls the headless browsing session.
type BrowserConfig struct {
	Headless      bool    `mapstructure:"headless"`
	UserAgent     string  `mapstructure:"user_agent"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	NavigationQPS float64 `mapstructure:"navigation_qps"`
	WindowWidth   int     `mapstructure:"window_width"`
	WindowHeight  int     `mapstructure:"window_height"`
}

// APIConfig holds the optional structured-data API credential.
type APIConfig struct {
	Key            string `mapstructure:"key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// HarvestConfig governs categories, caps and the scroll loop.
type HarvestConfig struct {
	Categories       []string `mapstructure:"categories"`
	MaxVideos        int      `mapstructure:"max_videos"`
	MaxShorts        int      `mapstructure:"max_shorts"`
	MaxChannels      int      `mapstructure:"max_channels"`
	MaxPlaylists     int      `mapstructure:"max_playlists"`
	GlobalMax        int      `mapstructure:"global_max"`
	MaxScrollRounds  int      `mapstructure:"max_scroll_rounds"`
	StaleRounds      int      `mapstructure:"stale_rounds"`
	ScrollStep       int      `mapstructure:"scroll_step"`
	ScrollPauseMs    int      `mapstructure:"scroll_pause_ms"`
	CollectSubtitles bool     `mapstructure:"collect_subtitles"`
	BatchSize        int      `mapstructure:"batch_size"`
}

// OutputConfig sets the local NDJSON output and fallback paths.
type OutputConfig struct {
	Path         string `mapstructure:"path"`
	FallbackPath string `mapstructure:"fallback_path"`
}

// DBConfig controls the optional Postgres sink.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// SnapshotConfig sets where diagnostic screenshots go.
type SnapshotConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
}

// PubSubConfig holds metadata for run event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("YT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8080)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.nav_timeout_seconds", 45)
	v.SetDefault("browser.navigation_qps", 0.5)
	v.SetDefault("browser.window_width", 1366)
	v.SetDefault("browser.window_height", 900)
	v.SetDefault("api.timeout_seconds", 15)
	v.SetDefault("harvest.categories", []string{"any"})
	// A zero shorts cap excludes shorts from the default categories.
	v.SetDefault("harvest.max_videos", 10)
	v.SetDefault("harvest.max_shorts", 0)
	v.SetDefault("harvest.max_channels", 10)
	v.SetDefault("harvest.max_playlists", 10)
	v.SetDefault("harvest.global_max", 50)
	v.SetDefault("harvest.max_scroll_rounds", 60)
	v.SetDefault("harvest.stale_rounds", 3)
	v.SetDefault("harvest.scroll_step", 2500)
	v.SetDefault("harvest.scroll_pause_ms", 1500)
	v.SetDefault("harvest.collect_subtitles", false)
	v.SetDefault("harvest.batch_size", 100)
	v.SetDefault("output.path", "output/results.ndjson")
	v.SetDefault("output.fallback_path", "output/fallback.ndjson")
	v.SetDefault("db.table", "harvested_items")
	v.SetDefault("snapshot.prefix", "snapshots")
	v.SetDefault("snapshot.local_dir", "output/snapshots")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Browser.NavTimeoutSec <= 0 {
		return fmt.Errorf("browser.nav_timeout_seconds must be > 0")
	}
	if c.Harvest.MaxScrollRounds <= 0 {
		return fmt.Errorf("harvest.max_scroll_rounds must be > 0")
	}
	if c.Harvest.MaxVideos < 0 || c.Harvest.MaxShorts < 0 ||
		c.Harvest.MaxChannels < 0 || c.Harvest.MaxPlaylists < 0 {
		return fmt.Errorf("harvest caps must not be negative")
	}
	if c.Output.Path == "" {
		return fmt.Errorf("output.path is required")
	}
	return nil
}

// HarvestCaps converts the per-category knobs into a caps table.
func (c Config) HarvestCaps() harvest.Caps {
	return harvest.Caps{
		PerCategory: map[harvest.Category]int{
			harvest.CategoryVideo:    c.Harvest.MaxVideos,
			harvest.CategoryShorts:   c.Harvest.MaxShorts,
			harvest.CategoryChannel:  c.Harvest.MaxChannels,
			harvest.CategoryPlaylist: c.Harvest.MaxPlaylists,
			harvest.CategoryLive:     c.Harvest.MaxVideos,
			harvest.CategoryMovie:    c.Harvest.MaxVideos,
		},
		Global: c.Harvest.GlobalMax,
	}
}

// NavTimeout returns the navigation timeout as a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Browser.NavTimeoutSec) * time.Second
}

// ScrollPause returns the per-round scroll pause as a duration.
func (c Config) ScrollPause() time.Duration {
	return time.Duration(c.Harvest.ScrollPauseMs) * time.Millisecond
}
