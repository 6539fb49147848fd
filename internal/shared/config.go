package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
)

//go:embed config.example.toml
var exampleConf []byte

// AppName names the XDG data directory.
const AppName = "ang2spot"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Matching    MatchingConfig    `toml:"matching"`
	Migration   MigrationConfig   `toml:"migration"`
	Vault       VaultConfig       `toml:"vault"`
	Anghami     AnghamiConfig     `toml:"anghami"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains the default Spotify application credentials.
//
// Per-user credentials stored through the vault take precedence.
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

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string   `toml:"host"`
	Port              int      `toml:"port"`
	AllowedOrigins    []string `toml:"allowed_origins"`
	RateLimitRequests int      `toml:"rate_limit_requests"`
	RateLimitWindow   int      `toml:"rate_limit_window"` // seconds
	PushInterval      int      `toml:"push_interval"`     // seconds between websocket keepalive snapshots
	SessionTTL        int      `toml:"session_ttl"`       // minutes a finished session stays in memory, 0 keeps it
}

// MatchingConfig tunes the track matcher.
type MatchingConfig struct {
	Threshold    float64 `toml:"threshold"`
	TieEpsilon   float64 `toml:"tie_epsilon"`
	SearchLimit  int     `toml:"search_limit"`
	IncludeAlbum bool    `toml:"include_album"`
}

// MigrationConfig tunes the orchestrator and playlist prefetching.
type MigrationConfig struct {
	BatchSize       int     `toml:"batch_size"`
	PublicPlaylists bool    `toml:"public_playlists"`
	PrefetchWorkers int     `toml:"prefetch_workers"`
	PrefetchRate    float64 `toml:"prefetch_rate"` // requests per second
}

// VaultConfig locates the per-install master key.
type VaultConfig struct {
	KeyFile string `toml:"key_file"`
}

// AnghamiConfig controls how Anghami pages are fetched.
type AnghamiConfig struct {
	BaseURL     string `toml:"base_url"`
	HeadersFile string `toml:"headers_file"`
	Timeout     int    `toml:"timeout"` // seconds
}

// Addr returns the host:port pair the HTTP server listens on.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SessionRetention is how long finished sessions are served from memory before only the archive has them.
func (s ServerConfig) SessionRetention() time.Duration {
	return time.Duration(s.SessionTTL) * time.Minute
}

// Window returns the rate limit window as a [time.Duration].
func (s ServerConfig) Window() time.Duration {
	return time.Duration(s.RateLimitWindow) * time.Second
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	} else if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
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

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks numeric settings are within usable ranges.
func (c *Config) Validate() error {
	switch {
	case c.Matching.Threshold <= 0 || c.Matching.Threshold > 1:
		return fmt.Errorf("%w: matching.threshold must be in (0, 1], got %v", ErrInvalidConfig, c.Matching.Threshold)
	case c.Matching.TieEpsilon < 0 || c.Matching.TieEpsilon >= 1:
		return fmt.Errorf("%w: matching.tie_epsilon must be in [0, 1), got %v", ErrInvalidConfig, c.Matching.TieEpsilon)
	case c.Matching.SearchLimit < 1 || c.Matching.SearchLimit > 50:
		return fmt.Errorf("%w: matching.search_limit must be in [1, 50], got %d", ErrInvalidConfig, c.Matching.SearchLimit)
	case c.Migration.BatchSize < 1 || c.Migration.BatchSize > 100:
		return fmt.Errorf("%w: migration.batch_size must be in [1, 100], got %d", ErrInvalidConfig, c.Migration.BatchSize)
	case c.Server.SessionTTL < 0:
		return fmt.Errorf("%w: server.session_ttl must not be negative, got %d", ErrInvalidConfig, c.Server.SessionTTL)
	}
	return nil
}

// ResolvePaths fills empty file locations with paths under the XDG data directory.
func (c *Config) ResolvePaths() error {
	if c.Database.Path == "" {
		p, err := xdg.DataFile(filepath.Join(AppName, AppName+".db"))
		if err != nil {
			return fmt.Errorf("failed to resolve database path: %w", err)
		}
		c.Database.Path = p
	}

	if c.Vault.KeyFile == "" {
		p, err := xdg.DataFile(filepath.Join(AppName, ".master_key"))
		if err != nil {
			return fmt.Errorf("failed to resolve vault key path: %w", err)
		}
		c.Vault.KeyFile = p
	}
	return nil
}
