// Package config provides layered configuration loading.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultInterval is the automatic refresh period.
const DefaultInterval = 10 * time.Second

// minInterval keeps a typo like "10ms" from hammering the store.
const minInterval = time.Second

// Config holds the resolved configuration.
type Config struct {
	// Store settings
	Backend     string `json:"backend"`
	StoreURL    string `json:"store_url"`
	StoreKey    string `json:"-"` // env or credential store only, never files
	Table       string `json:"table"`
	DatabaseURL string `json:"database_url"`

	// Polling
	Interval time.Duration `json:"interval"`
	Timeout  time.Duration `json:"timeout"`

	// Output settings
	Format string `json:"format"`

	// Behavior preferences (overridable by flags)
	Stats       *bool  `json:"stats,omitempty"`
	Verbose     *int   `json:"verbose,omitempty"`
	MetricsAddr string `json:"metrics_addr,omitempty"`

	// Sources tracks where each value came from (for debugging).
	Sources map[string]string `json:"-"`
}

// Source indicates where a config value came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceSystem  Source = "system"
	SourceGlobal  Source = "global"
	SourceLocal   Source = "local"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
	SourceKeyring Source = "credentials"
)

// FlagOverrides holds command-line flag values.
type FlagOverrides struct {
	Backend     string
	StoreURL    string
	Table       string
	Interval    time.Duration
	Format      string
	MetricsAddr string
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Backend:  "rest",
		Table:    "stock",
		Interval: DefaultInterval,
		Timeout:  30 * time.Second,
		Format:   "auto",
		Sources:  make(map[string]string),
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence: flags > env > local > global > system > defaults
func Load(overrides FlagOverrides) (*Config, error) {
	cfg := Default()

	loadFromFile(cfg, systemConfigPath(), SourceSystem)
	loadFromFile(cfg, globalConfigPath(), SourceGlobal)
	if path := localConfigPath(); path != "" {
		loadFromFile(cfg, path, SourceLocal)
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	ApplyOverrides(cfg, overrides)

	if cfg.Interval < minInterval {
		return nil, fmt.Errorf("interval %s is below the minimum of %s", cfg.Interval, minInterval)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string, source Source) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
	if err != nil {
		return // File doesn't exist, skip
	}

	var fileCfg map[string]any
	if err := json.Unmarshal(data, &fileCfg); err != nil {
		fmt.Fprintf(os.Stderr, "warning: skipping malformed config at %s: %v\n", path, err)
		return
	}

	// Authority keys decide where requests (and the store key) are sent.
	// A config dropped into the working directory must not redirect them.
	untrusted := source == SourceLocal

	for _, key := range []string{"store_url", "database_url"} {
		v, ok := fileCfg[key].(string)
		if !ok || v == "" {
			continue
		}
		if untrusted {
			fmt.Fprintf(os.Stderr, "warning: ignoring %s from %s config at %s (authority keys are not trusted from local config)\n", key, source, path)
			continue
		}
		if key == "store_url" {
			cfg.StoreURL = NormalizeURL(v)
		} else {
			cfg.DatabaseURL = v
		}
		cfg.Sources[key] = string(source)
	}

	if v, ok := fileCfg["backend"].(string); ok && v != "" {
		cfg.Backend = v
		cfg.Sources["backend"] = string(source)
	}
	if v, ok := fileCfg["table"].(string); ok && v != "" {
		cfg.Table = v
		cfg.Sources["table"] = string(source)
	}
	if d, ok := getDuration(fileCfg, "interval"); ok {
		cfg.Interval = d
		cfg.Sources["interval"] = string(source)
	}
	if d, ok := getDuration(fileCfg, "timeout"); ok {
		cfg.Timeout = d
		cfg.Sources["timeout"] = string(source)
	}
	if v, ok := fileCfg["format"].(string); ok && v != "" {
		cfg.Format = v
		cfg.Sources["format"] = string(source)
	}
	if v, ok := fileCfg["metrics_addr"].(string); ok && v != "" {
		cfg.MetricsAddr = v
		cfg.Sources["metrics_addr"] = string(source)
	}
	if v, ok := fileCfg["stats"].(bool); ok {
		cfg.Stats = &v
		cfg.Sources["stats"] = string(source)
	}
	if v, ok := fileCfg["verbose"]; ok {
		if fv, ok := v.(float64); ok {
			iv := int(fv)
			if iv >= 0 && iv <= 2 && fv == float64(iv) {
				cfg.Verbose = &iv
				cfg.Sources["verbose"] = string(source)
			}
		}
	}
}

// getDuration accepts either a Go duration string ("10s") or a number of seconds.
func getDuration(m map[string]any, key string) (time.Duration, bool) {
	switch v := m[key].(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return 0, false
		}
		return d, true
	case float64:
		if v <= 0 {
			return 0, false
		}
		return time.Duration(v * float64(time.Second)), true
	default:
		return 0, false
	}
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv(cfg *Config) error {
	if v := os.Getenv("STOCKSTATUS_BACKEND"); v != "" {
		cfg.Backend = v
		cfg.Sources["backend"] = string(SourceEnv)
	}
	if v := firstEnv("STOCKSTATUS_STORE_URL", "SUPABASE_URL"); v != "" {
		cfg.StoreURL = NormalizeURL(v)
		cfg.Sources["store_url"] = string(SourceEnv)
	}
	if v := firstEnv("STOCKSTATUS_STORE_KEY", "SUPABASE_ANON_KEY"); v != "" {
		cfg.StoreKey = v
		cfg.Sources["store_key"] = string(SourceEnv)
	}
	if v := os.Getenv("STOCKSTATUS_TABLE"); v != "" {
		cfg.Table = v
		cfg.Sources["table"] = string(SourceEnv)
	}
	if v := firstEnv("STOCKSTATUS_DATABASE_URL", "DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
		cfg.Sources["database_url"] = string(SourceEnv)
	}
	if v := os.Getenv("STOCKSTATUS_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid STOCKSTATUS_INTERVAL %q: %w", v, err)
		}
		cfg.Interval = d
		cfg.Sources["interval"] = string(SourceEnv)
	}
	if v := os.Getenv("STOCKSTATUS_STATS"); v != "" {
		if b, ok := parseEnvBool(v); ok {
			cfg.Stats = &b
			cfg.Sources["stats"] = string(SourceEnv)
		}
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// parseEnvBool parses a boolean environment variable strictly.
// Returns (value, true) for recognized values, (false, false) for unrecognized.
func parseEnvBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1":
		return true, true
	case "false", "0":
		return false, true
	default:
		return false, false
	}
}

// ApplyOverrides applies non-empty flag overrides to cfg.
func ApplyOverrides(cfg *Config, o FlagOverrides) {
	if o.Backend != "" {
		cfg.Backend = o.Backend
		cfg.Sources["backend"] = string(SourceFlag)
	}
	if o.StoreURL != "" {
		cfg.StoreURL = NormalizeURL(o.StoreURL)
		cfg.Sources["store_url"] = string(SourceFlag)
	}
	if o.Table != "" {
		cfg.Table = o.Table
		cfg.Sources["table"] = string(SourceFlag)
	}
	if o.Interval > 0 {
		cfg.Interval = o.Interval
		cfg.Sources["interval"] = string(SourceFlag)
	}
	if o.Format != "" {
		cfg.Format = o.Format
		cfg.Sources["format"] = string(SourceFlag)
	}
	if o.MetricsAddr != "" {
		cfg.MetricsAddr = o.MetricsAddr
		cfg.Sources["metrics_addr"] = string(SourceFlag)
	}
}

// Source returns where key was set, or "default".
func (cfg *Config) Source(key string) string {
	if s, ok := cfg.Sources[key]; ok {
		return s
	}
	return string(SourceDefault)
}

// Path helpers

var systemConfigPath = func() string {
	return "/etc/stockstatus/config.json"
}

func globalConfigPath() string {
	return filepath.Join(GlobalConfigDir(), "config.json")
}

// localConfigPath returns ./.stockstatus/config.json when it exists.
// Only the working directory is consulted; parents are not trusted.
func localConfigPath() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	path := filepath.Join(dir, ".stockstatus", "config.json")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// GlobalConfigDir returns the global config directory path.
func GlobalConfigDir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "stockstatus")
}

// NormalizeURL ensures consistent URL format (no trailing slash).
func NormalizeURL(url string) string {
	return strings.TrimSuffix(strings.TrimSpace(url), "/")
}
