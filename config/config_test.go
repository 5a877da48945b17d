package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	bankerr "bankd/internal/errors"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Port != 1080 || cfg.MaxAccounts != 20 || cfg.MaxSessions != 20 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.StatusInterval != 20*time.Second {
		t.Errorf("StatusInterval = %v, want 20s", cfg.StatusInterval)
	}
	if cfg.ClientMode() {
		t.Error("default config should serve")
	}
}

func TestAddress(t *testing.T) {
	cfg := Default()
	if got := cfg.Address(); got != ":1080" {
		t.Errorf("Address() = %q", got)
	}
	cfg.ListenAddr = "::1"
	if got := cfg.Address(); got != "[::1]:1080" {
		t.Errorf("Address() = %q", got)
	}
}

// TestValidate_ErrorMessages verifies that Validate names the offending
// flag and returns a ConfigError.
func TestValidate_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantSub string
	}{
		{"port zero", func(c *Config) { c.Port = 0 }, "port", "hint:"},
		{"port too big", func(c *Config) { c.Port = 70000 }, "port", "1-65535"},
		{"no accounts", func(c *Config) { c.MaxAccounts = 0 }, "max-accounts", "at least 1"},
		{"no sessions", func(c *Config) { c.MaxSessions = -1 }, "max-sessions", "at least 1"},
		{"status interval", func(c *Config) { c.StatusInterval = 0 }, "status-interval", "hint:"},
		{"tiny line", func(c *Config) { c.MaxLineLen = 4 }, "max-line", "16 bytes"},
		{"name longer than line", func(c *Config) { c.MaxNameLen = 300 }, "max-name", "hint:"},
		{"negative idle", func(c *Config) { c.IdleTimeout = -time.Second }, "idle-timeout", "hint:"},
		{"no shutdown grace", func(c *Config) { c.ShutdownTimeout = 0 }, "shutdown-timeout", "positive"},
		{"bad metrics addr", func(c *Config) { c.MetricsAddr = "nocolon" }, "metrics-addr", "hint:"},
		{"connect no port", func(c *Config) { c.Connect = "localhost" }, "connect", "host:port"},
		{"connect bad port", func(c *Config) { c.Connect = "localhost:0" }, "connect", "1-65535"},
		{"connect no retries", func(c *Config) { c.Connect = "localhost:1080"; c.RetryAttempts = 0 }, "retry", "at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			var ce *bankerr.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ConfigError, got %T", err)
			}
			if ce.Field != tt.field {
				t.Errorf("Field = %q, want %q", ce.Field, tt.field)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestValidate_ClientIgnoresServerFields(t *testing.T) {
	cfg := Default()
	cfg.Connect = "bank.example.com:1080"
	cfg.Port = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("client config should validate: %v", err)
	}
}
