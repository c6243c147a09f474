// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// DEFAULTS
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", cfg.Provider)
	}
	if cfg.Ollama.URL != "http://127.0.0.1:11434" {
		t.Errorf("Ollama.URL = %q", cfg.Ollama.URL)
	}
	if cfg.Generation.Greeting != DefaultGreeting {
		t.Errorf("Greeting = %q, want default", cfg.Generation.Greeting)
	}
	if cfg.GenerationTimeout() != 120*time.Second {
		t.Errorf("GenerationTimeout = %v, want 120s", cfg.GenerationTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad provider", func(c *Config) { c.Provider = "gpt9" }, "provider"},
		{"temperature too high", func(c *Config) { c.Ollama.Temperature = 3.0 }, "ollama.temperature"},
		{"negative timeout", func(c *Config) { c.Generation.TimeoutSecs = -1 }, "generation.timeout_secs"},
		{"bad theme", func(c *Config) { c.UI.Theme = "neon" }, "ui.theme"},
		{"page size zero", func(c *Config) { c.UI.PageSize = 0 }, "ui.page_size"},
		{"page size huge", func(c *Config) { c.UI.PageSize = 100 }, "ui.page_size"},
		{"cache entries huge", func(c *Config) { c.Cache.MaxEntries = 200000 }, "cache.max_entries"},
		{"negative rpm", func(c *Config) { c.Cloud.RequestsPerMinute = -5 }, "cloud.requests_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not mention %q", err, tt.field)
			}
		})
	}
}

func TestSetDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{Provider: "echo"}
	cfg.SetDefaults()

	if cfg.Provider != "echo" {
		t.Error("explicit values must survive SetDefaults")
	}
	if cfg.Ollama.URL == "" || cfg.UI.PageSize == 0 || cfg.Generation.Greeting == "" {
		t.Error("zero values should be filled from defaults")
	}
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

func TestLoadFromPath_Missing(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing file should fall back to defaults: %v", err)
	}
	if cfg.Provider != "ollama" {
		t.Errorf("Provider = %q, want default", cfg.Provider)
	}
}

func TestLoadFromPath_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := Default()
	cfg.Provider = "openai"
	cfg.Cloud.Model = "gpt-4o-mini"
	cfg.UI.PageSize = 8
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}

	// The file can hold an API key; it must come back locked down.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 0600", perm)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.Provider != "openai" || loaded.Cloud.Model != "gpt-4o-mini" || loaded.UI.PageSize != 8 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestLoadFromPath_InvalidRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("provider = \"bogus\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromPath(path); err == nil {
		t.Error("invalid provider should fail validation")
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("TERMCHAT_PROVIDER", "echo")
	t.Setenv("TERMCHAT_MODEL", "mistral")
	t.Setenv("TERMCHAT_API_KEY", "sk-test")
	t.Setenv("TERMCHAT_TIMEOUT_SECS", "30")
	t.Setenv("TERMCHAT_NO_CACHE", "1")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.Provider != "echo" {
		t.Errorf("Provider = %q, want echo", cfg.Provider)
	}
	if cfg.Ollama.Model != "mistral" || cfg.Cloud.Model != "mistral" {
		t.Error("TERMCHAT_MODEL should override both backends")
	}
	if cfg.Cloud.APIKey != "sk-test" {
		t.Errorf("APIKey = %q", cfg.Cloud.APIKey)
	}
	if cfg.Generation.TimeoutSecs != 30 {
		t.Errorf("TimeoutSecs = %d, want 30", cfg.Generation.TimeoutSecs)
	}
	if cfg.Cache.Enabled {
		t.Error("TERMCHAT_NO_CACHE=1 should disable the cache")
	}
}

func TestApplyEnvOverrides_BadTimeoutIgnored(t *testing.T) {
	t.Setenv("TERMCHAT_TIMEOUT_SECS", "soon")
	cfg := Default()
	cfg.ApplyEnvOverrides()
	if cfg.Generation.TimeoutSecs != 120 {
		t.Errorf("TimeoutSecs = %d, want unchanged default", cfg.Generation.TimeoutSecs)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func TestRedacted(t *testing.T) {
	cfg := Default()
	cfg.Cloud.APIKey = "sk-secret"

	safe := cfg.Redacted()
	if safe.Cloud.APIKey != "[REDACTED]" {
		t.Errorf("APIKey = %q, want redacted", safe.Cloud.APIKey)
	}
	if cfg.Cloud.APIKey != "sk-secret" {
		t.Error("Redacted must not mutate the original")
	}
}

// Global(), SetGlobal(), and ReloadGlobal() must be safe to call
// concurrently. Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			_ = Global()
		}()
	}
	wg.Wait()

	if Global() == nil {
		t.Fatal("global config should never be nil after access")
	}
}
