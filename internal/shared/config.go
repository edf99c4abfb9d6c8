package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Playlist    PlaylistConfig    `toml:"playlist"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings for the OAuth callback listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// PipelineConfig holds the retry delay and per-operation request spacing, all in milliseconds.
type PipelineConfig struct {
	RetryDelayMs      int `toml:"retry_delay_ms"`
	MaxRetries        int `toml:"max_retries"`
	PlaylistSpacingMs int `toml:"playlist_spacing_ms"`
	TrackSpacingMs    int `toml:"track_spacing_ms"`
	BatchSpacingMs    int `toml:"batch_spacing_ms"`
}

// Spacing is the minimum interval between issued playlist-page, playlist-track and add-track requests.
type Spacing struct {
	Playlists time.Duration
	Tracks    time.Duration
	Batches   time.Duration
}

// Spacing converts the millisecond settings to durations.
func (p PipelineConfig) Spacing() Spacing {
	return Spacing{
		Playlists: ms(p.PlaylistSpacingMs),
		Tracks:    ms(p.TrackSpacingMs),
		Batches:   ms(p.BatchSpacingMs),
	}
}

// RetryDelay is the fixed wait between attempts of a retryable call.
func (p PipelineConfig) RetryDelay() time.Duration {
	return ms(p.RetryDelayMs)
}

// PlaylistConfig holds the name and description of the generated playlist.
type PlaylistConfig struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

// MetricsConfig controls the optional prometheus listener.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

func ms(n int) time.Duration {
	if n < 0 {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}

// Validate reports missing or out-of-range settings.
func (c *Config) Validate() error {
	switch {
	case c.Credentials.Spotify.ClientID == "" || c.Credentials.Spotify.ClientSecret == "":
		return fmt.Errorf("%w: spotify client_id and client_secret are required", ErrMissingCredentials)
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is required", ErrInvalidConfig)
	case c.Pipeline.MaxRetries < 0:
		return fmt.Errorf("%w: pipeline.max_retries must not be negative", ErrInvalidConfig)
	case c.Pipeline.RetryDelayMs <= 0:
		return fmt.Errorf("%w: pipeline.retry_delay_ms must be positive", ErrInvalidConfig)
	case c.Playlist.Title == "":
		return fmt.Errorf("%w: playlist.title is required", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys absent from the file keep their values from [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
