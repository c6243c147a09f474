// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for termchat.
//
// Configuration lives in ~/.termchat/config.toml, with built-in defaults and
// TERMCHAT_* environment variable overrides applied on top.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete termchat configuration.
type Config struct {
	// Version of the config schema.
	Version string `toml:"version"`

	// Provider selects the generation backend: "ollama", "openai", "echo".
	Provider string `toml:"provider"`

	// Ollama (local) backend configuration.
	Ollama OllamaConfig `toml:"ollama"`

	// Cloud (OpenAI-compatible) backend configuration.
	Cloud CloudConfig `toml:"cloud"`

	// Generation behavior knobs.
	Generation GenerationConfig `toml:"generation"`

	// Cache configuration for static (non-streaming) generations.
	Cache CacheConfig `toml:"cache"`

	// UI configuration.
	UI UIConfig `toml:"ui"`
}

// OllamaConfig contains local Ollama backend configuration.
type OllamaConfig struct {
	// URL of the Ollama server.
	URL string `toml:"url"`
	// Model to use for chat requests.
	Model string `toml:"model"`
	// Temperature is the sampling temperature (0.0-2.0).
	Temperature float64 `toml:"temperature"`
	// NumPredict caps generated tokens per response. -1 means unlimited.
	NumPredict int `toml:"num_predict"`
}

// CloudConfig contains OpenAI-compatible backend configuration. The defaults
// point at a local LM Studio server, which accepts requests without a key.
type CloudConfig struct {
	// BaseURL of the endpoint, including the /v1 suffix.
	BaseURL string `toml:"base_url"`
	// APIKey sent as a bearer token when non-empty.
	APIKey string `toml:"api_key"`
	// Model identifier sent with every request.
	Model string `toml:"model"`
	// Temperature is the sampling temperature.
	Temperature float64 `toml:"temperature"`
	// MaxTokens caps generated tokens per response. Zero means no cap.
	MaxTokens int `toml:"max_tokens"`
	// RequestsPerMinute throttles outgoing calls. Zero disables throttling.
	RequestsPerMinute int `toml:"requests_per_minute"`
}

// GenerationConfig contains generation behavior knobs.
type GenerationConfig struct {
	// TimeoutSecs bounds a single streaming generation. Zero disables the
	// guard and streams run until the backend closes them.
	TimeoutSecs int `toml:"timeout_secs"`
	// Titles enables automatic conversation title generation.
	Titles bool `toml:"titles"`
	// TitlePrompt is the instruction used to summarize a conversation into
	// a title. The conversation text is appended after it.
	TitlePrompt string `toml:"title_prompt"`
	// Greeting is the model message shown at the top of new conversations.
	Greeting string `toml:"greeting"`
}

// CacheConfig contains the static-generation cache configuration.
type CacheConfig struct {
	// Enabled controls whether caching is active.
	Enabled bool `toml:"enabled"`
	// TTLHours is the time-to-live for cache entries in hours.
	TTLHours int `toml:"ttl_hours"`
	// MaxEntries bounds the cache size.
	MaxEntries int `toml:"max_entries"`
}

// UIConfig contains UI configuration.
type UIConfig struct {
	// Theme is the UI theme: "dark", "light", "auto".
	Theme string `toml:"theme"`
	// PageSize is the number of exchanges shown per transcript page.
	PageSize int `toml:"page_size"`
	// Markdown renders model responses through the markdown renderer.
	Markdown bool `toml:"markdown"`
	// HistoryWidth is the width of the conversation history panel.
	HistoryWidth int `toml:"history_width"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// DefaultGreeting is the canned model message opening every new conversation.
const DefaultGreeting = "Hello! How can I assist you today?"

// DefaultTitlePrompt asks the backend for a short conversation title.
const DefaultTitlePrompt = "Summarize the following conversation in at most five words. " +
	"Reply with the title only, no quotes, no punctuation at the end."

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version:  "1.0.0",
		Provider: "ollama",

		Ollama: OllamaConfig{
			URL:         "http://127.0.0.1:11434",
			Model:       "llama3.2",
			Temperature: 0.7,
			NumPredict:  -1,
		},

		Cloud: CloudConfig{
			BaseURL:           "http://127.0.0.1:1234/v1",
			Model:             "local-model",
			Temperature:       0.7,
			MaxTokens:         0,
			RequestsPerMinute: 0,
		},

		Generation: GenerationConfig{
			TimeoutSecs: 120,
			Titles:      true,
			TitlePrompt: DefaultTitlePrompt,
			Greeting:    DefaultGreeting,
		},

		Cache: CacheConfig{
			Enabled:    true,
			TTLHours:   24,
			MaxEntries: 10000,
		},

		UI: UIConfig{
			Theme:        "dark",
			PageSize:     4,
			Markdown:     true,
			HistoryWidth: 28,
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the termchat configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".termchat"), nil
}

// Path returns the path to the TOML config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// HistoryPath returns the path to the conversation history document.
func HistoryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}

// LogPath returns the path to the application log file.
func LogPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "termchat.log"), nil
}

// CachePath returns the path to the response cache database.
func CachePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// EnsureDir ensures the config directory exists.
func EnsureDir() error {
	dir, err := Dir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions fixes permissions on the config file. It can hold
// an API key, so anything other than 0600 gets tightened.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load loads configuration from ~/.termchat/config.toml, falling back to
// defaults when the file is absent. Environment overrides are applied last.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation. A missing file is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := ensureSecurePermissions(path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
		}
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save saves the configuration to the default TOML file with 0600
// permissions; the file can hold an API key.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# termchat configuration file")
	fmt.Fprintln(file, "# Generated by termchat - edit with care")
	fmt.Fprintln(file, "")

	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	validProviders := map[string]bool{"ollama": true, "openai": true, "echo": true}
	if !validProviders[strings.ToLower(c.Provider)] {
		errs = append(errs, ValidationError{
			Field:   "provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: ollama, openai, echo", c.Provider),
		})
	}

	if c.Ollama.URL != "" {
		if _, err := url.Parse(c.Ollama.URL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "ollama.url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}
	if c.Ollama.Temperature < 0 || c.Ollama.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "ollama.temperature",
			Message: fmt.Sprintf("must be between 0.0 and 2.0, got %g", c.Ollama.Temperature),
		})
	}

	if c.Cloud.BaseURL != "" {
		if _, err := url.Parse(c.Cloud.BaseURL); err != nil {
			errs = append(errs, ValidationError{
				Field:   "cloud.base_url",
				Message: fmt.Sprintf("invalid URL: %v", err),
			})
		}
	}
	if c.Cloud.RequestsPerMinute < 0 {
		errs = append(errs, ValidationError{
			Field:   "cloud.requests_per_minute",
			Message: "must be non-negative",
		})
	}

	if c.Generation.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "generation.timeout_secs",
			Message: "must be non-negative",
		})
	}

	if c.Cache.TTLHours < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.ttl_hours",
			Message: "must be non-negative",
		})
	}
	if c.Cache.MaxEntries < 0 || c.Cache.MaxEntries > 100000 {
		errs = append(errs, ValidationError{
			Field:   "cache.max_entries",
			Message: fmt.Sprintf("must be 0-100000, got %d", c.Cache.MaxEntries),
		})
	}

	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		errs = append(errs, ValidationError{
			Field:   "ui.theme",
			Message: fmt.Sprintf("invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme),
		})
	}
	if c.UI.PageSize < 1 || c.UI.PageSize > 50 {
		errs = append(errs, ValidationError{
			Field:   "ui.page_size",
			Message: fmt.Sprintf("must be 1-50, got %d", c.UI.PageSize),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills in any missing or zero-value fields from the defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.Provider == "" {
		c.Provider = defaults.Provider
	}

	if c.Ollama.URL == "" {
		c.Ollama.URL = defaults.Ollama.URL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = defaults.Ollama.Model
	}

	if c.Cloud.BaseURL == "" {
		c.Cloud.BaseURL = defaults.Cloud.BaseURL
	}
	if c.Cloud.Model == "" {
		c.Cloud.Model = defaults.Cloud.Model
	}

	if c.Generation.TitlePrompt == "" {
		c.Generation.TitlePrompt = defaults.Generation.TitlePrompt
	}
	if c.Generation.Greeting == "" {
		c.Generation.Greeting = defaults.Generation.Greeting
	}

	if c.Cache.TTLHours == 0 {
		c.Cache.TTLHours = defaults.Cache.TTLHours
	}
	if c.Cache.MaxEntries == 0 {
		c.Cache.MaxEntries = defaults.Cache.MaxEntries
	}

	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
	if c.UI.PageSize == 0 {
		c.UI.PageSize = defaults.UI.PageSize
	}
	if c.UI.HistoryWidth == 0 {
		c.UI.HistoryWidth = defaults.UI.HistoryWidth
	}
}

// GenerationTimeout returns the streaming timeout as a duration. Zero means
// no timeout.
func (c *Config) GenerationTimeout() time.Duration {
	return time.Duration(c.Generation.TimeoutSecs) * time.Second
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - TERMCHAT_PROVIDER: overrides provider
//   - TERMCHAT_MODEL: overrides the active backend's model
//   - TERMCHAT_OLLAMA_URL: overrides ollama.url
//   - TERMCHAT_BASE_URL: overrides cloud.base_url
//   - TERMCHAT_API_KEY: overrides cloud.api_key
//   - TERMCHAT_TIMEOUT_SECS: overrides generation.timeout_secs
//   - TERMCHAT_NO_CACHE: set to "1" or "true" to disable the response cache
//   - TERMCHAT_THEME: overrides ui.theme
func (c *Config) ApplyEnvOverrides() {
	if provider := os.Getenv("TERMCHAT_PROVIDER"); provider != "" {
		c.Provider = provider
	}

	if model := os.Getenv("TERMCHAT_MODEL"); model != "" {
		c.Ollama.Model = model
		c.Cloud.Model = model
	}

	if u := os.Getenv("TERMCHAT_OLLAMA_URL"); u != "" {
		c.Ollama.URL = u
	}
	if u := os.Getenv("TERMCHAT_BASE_URL"); u != "" {
		c.Cloud.BaseURL = u
	}
	if key := os.Getenv("TERMCHAT_API_KEY"); key != "" {
		c.Cloud.APIKey = key
	}

	if secs := os.Getenv("TERMCHAT_TIMEOUT_SECS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n >= 0 {
			c.Generation.TimeoutSecs = n
		}
	}

	if noCache := os.Getenv("TERMCHAT_NO_CACHE"); noCache != "" {
		if noCache == "1" || strings.ToLower(noCache) == "true" {
			c.Cache.Enabled = false
		}
	}

	if theme := os.Getenv("TERMCHAT_THEME"); theme != "" {
		c.UI.Theme = theme
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// Redacted returns a copy with the API key masked, for logging.
func (c *Config) Redacted() *Config {
	safe := c.Clone()
	if safe.Cloud.APIKey != "" {
		safe.Cloud.APIKey = "[REDACTED]"
	}
	return safe
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance. Loads configuration on
// first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfig = cfg
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between test runs.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
