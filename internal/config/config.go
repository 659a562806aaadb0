package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"diskdash/internal/atomicfile"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// UpstreamConfig points at a remote dashboard backend whose settings this
// instance mirrors instead of keeping its own settings file.
type UpstreamConfig struct {
	URL string `yaml:"url" json:"url"`
	// CacheDir keeps the last good settings response for outages.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
	// TimeoutSeconds bounds each request to the upstream.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone date ranges are displayed in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DateFormat is the Go layout for dates in range displays.
	DateFormat string `yaml:"date_format" json:"date_format"`

	// TimeFormat is "12" (03:04PM) or "24" (15:04).
	TimeFormat string `yaml:"time_format" json:"time_format"`

	// RefreshCron is a cron schedule (e.g. "*/15 * * * *") on which cached
	// settings are dropped and refetched. "off" disables it.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// SettingsPath is the YAML file user settings are stored in when no
	// upstream is configured.
	SettingsPath string `yaml:"settings_path" json:"settings_path"`

	// DefaultsPath optionally names a YAML file merged over the built-in
	// default settings.
	DefaultsPath string `yaml:"defaults_path,omitempty" json:"defaults_path,omitempty"`

	// SessionTTLMinutes bounds how long an idle date-range session lives.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" json:"session_ttl_minutes"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Upstream *UpstreamConfig `yaml:"upstream,omitempty" json:"upstream,omitempty"`

	// BasicAuth, if set with both fields non-empty, protects every endpoint
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "UTC"
	defaultDateFormat   = "02/01/2006"
	defaultTimeFormat   = "12"
	defaultRefreshCron  = "*/15 * * * *"
	defaultSettingsPath = "/var/lib/diskdash/settings.yaml"
	defaultSessionTTL   = 30
	defaultLogLevel     = "info"
	defaultUpstreamTO   = 15
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:            defaultListen,
		Timezone:          defaultTimezone,
		DateFormat:        defaultDateFormat,
		TimeFormat:        defaultTimeFormat,
		RefreshCron:       defaultRefreshCron,
		SettingsPath:      defaultSettingsPath,
		SessionTTLMinutes: defaultSessionTTL,
		LogLevel:          defaultLogLevel,
	}
}

// Normalize fills in missing or invalid values so that partially-filled
// configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.DateFormat == "" {
		c.DateFormat = defaultDateFormat
	}
	switch c.TimeFormat {
	case "12", "24":
	default:
		c.TimeFormat = defaultTimeFormat
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.SettingsPath == "" {
		c.SettingsPath = defaultSettingsPath
	}
	if c.SessionTTLMinutes <= 0 {
		c.SessionTTLMinutes = defaultSessionTTL
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.Upstream != nil {
		if c.Upstream.URL == "" {
			c.Upstream = nil
		} else if c.Upstream.TimeoutSeconds <= 0 {
			c.Upstream.TimeoutSeconds = defaultUpstreamTO
		}
	}
}

// Location resolves Timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SessionTTL is SessionTTLMinutes as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there with
//     0600 permissions and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// The defaults are still usable; let the caller decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// LoadDefaults reads an optional YAML settings tree used to extend the
// built-in defaults. An empty path yields nil.
func LoadDefaults(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse defaults %s: %w", path, err)
	}
	return out, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data)
}
