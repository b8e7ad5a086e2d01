// Package config loads and saves the cbudget TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/theirongolddev/cbudget/internal/pipeline"
)

// Remote backends.
const (
	BackendNone     = ""
	BackendHTTP     = "http"
	BackendPostgres = "postgres"
)

// Config holds all cbudget configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Remote     RemoteConfig     `toml:"remote"`
	Analysis   AnalysisConfig   `toml:"analysis"`
	Ingest     IngestConfig     `toml:"ingest"`
	Server     ServerConfig     `toml:"server"`
	Appearance AppearanceConfig `toml:"appearance"`
	Log        LogConfig        `toml:"log"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	AppID     string `toml:"app_id"`
	CachePath string `toml:"cache_path,omitempty"`
}

// RemoteConfig selects and addresses the shared document store.
type RemoteConfig struct {
	Backend string `toml:"backend"`
	URL     string `toml:"url,omitempty"`
	APIKey  string `toml:"api_key,omitempty"`
}

// AnalysisConfig holds language model settings.
type AnalysisConfig struct {
	Model  string `toml:"model"`
	APIKey string `toml:"api_key,omitempty"`
}

// IngestConfig tunes spreadsheet column matching.
type IngestConfig struct {
	Locale       string            `toml:"locale"`
	TotalMarkers []string          `toml:"total_markers,omitempty"`
	Labels       pipeline.LabelSet `toml:"labels"`
}

// ServerConfig holds document server settings.
type ServerConfig struct {
	Addr    string `toml:"addr"`
	APIKey  string `toml:"api_key,omitempty"`
	Persist bool   `toml:"persist"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			AppID: "construction-budget-pro-v2",
		},
		Analysis: AnalysisConfig{
			Model: "gemini-2.5-flash",
		},
		Ingest: IngestConfig{
			Locale: "zh-TW",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "cbudget")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "cbudget")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile reads the config file at path, returning defaults if it doesn't exist.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

// Validate checks enumerated settings.
func (c Config) Validate() error {
	switch c.Remote.Backend {
	case BackendNone, BackendHTTP, BackendPostgres:
	default:
		return fmt.Errorf("config: unknown remote backend %q", c.Remote.Backend)
	}
	if c.Remote.Backend != BackendNone && c.Remote.URL == "" && os.Getenv("CBUDGET_REMOTE_URL") == "" {
		return fmt.Errorf("config: remote backend %q needs a url", c.Remote.Backend)
	}
	return nil
}

// GetRemoteURL returns the remote URL from env var or config, in that order.
func GetRemoteURL(cfg Config) string {
	if v := os.Getenv("CBUDGET_REMOTE_URL"); v != "" {
		return v
	}
	return cfg.Remote.URL
}

// GetRemoteKey returns the remote API key from env var or config, in that order.
func GetRemoteKey(cfg Config) string {
	if v := os.Getenv("CBUDGET_REMOTE_KEY"); v != "" {
		return v
	}
	return cfg.Remote.APIKey
}

// GetGeminiKey returns the Gemini API key from env var or config, in that order.
func GetGeminiKey(cfg Config) string {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		return v
	}
	return cfg.Analysis.APIKey
}

// GetServerKey returns the document server key from env var or config, in that order.
func GetServerKey(cfg Config) string {
	if v := os.Getenv("CBUDGET_SERVER_KEY"); v != "" {
		return v
	}
	return cfg.Server.APIKey
}

// CachePath returns the durable cache location, defaulting under the XDG cache dir.
func (c Config) CachePath(fallback string) string {
	if p := strings.TrimSpace(c.General.CachePath); p != "" {
		return p
	}
	return fallback
}

// IngestOptions builds the ingestion options for this configuration.
func (c Config) IngestOptions() pipeline.IngestOptions {
	return pipeline.IngestOptions{
		Labels:       pipeline.LabelsFor(c.Ingest.Locale).Merge(c.Ingest.Labels),
		TotalMarkers: c.Ingest.TotalMarkers,
	}
}
