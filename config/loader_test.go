package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromEnv_Server(t *testing.T) {
	t.Setenv("BANKD_PORT", "9090")
	t.Setenv("BANKD_MAX_ACCOUNTS", "5")
	t.Setenv("BANKD_MAX_SESSIONS", "3")
	t.Setenv("BANKD_LISTEN_ADDR", "127.0.0.1")
	t.Setenv("BANKD_METRICS_ADDR", "127.0.0.1:9108")

	cfg := Default()
	LoadFromEnv(cfg)

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.MaxAccounts != 5 || cfg.MaxSessions != 3 {
		t.Errorf("capacities = %d/%d, want 5/3", cfg.MaxAccounts, cfg.MaxSessions)
	}
	if cfg.ListenAddr != "127.0.0.1" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.MetricsAddr != "127.0.0.1:9108" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
}

func TestLoadFromEnv_Durations(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"10", 10 * time.Second},
		{"1m30s", 90 * time.Second},
		{"250ms", 250 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("BANKD_STATUS_INTERVAL", tt.value)
			cfg := Default()
			LoadFromEnv(cfg)
			if cfg.StatusInterval != tt.want {
				t.Errorf("StatusInterval = %v, want %v", cfg.StatusInterval, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_InvalidIgnored(t *testing.T) {
	t.Setenv("BANKD_PORT", "notanumber")
	t.Setenv("BANKD_IDLE_TIMEOUT", "soon")
	cfg := Default()
	LoadFromEnv(cfg)
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want default", cfg.Port)
	}
	if cfg.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want default", cfg.IdleTimeout)
	}
}

func TestLoadFromEnv_Verbose(t *testing.T) {
	for _, v := range []string{"true", "YES"} {
		t.Run(v, func(t *testing.T) {
			t.Setenv("BANKD_VERBOSE", v)
			cfg := Default()
			LoadFromEnv(cfg)
			if cfg.Verbose != 1 {
				t.Errorf("Verbose = %d, want 1", cfg.Verbose)
			}
		})
	}
	t.Run("level", func(t *testing.T) {
		t.Setenv("BANKD_VERBOSE", "3")
		cfg := Default()
		LoadFromEnv(cfg)
		if cfg.Verbose != 3 {
			t.Errorf("Verbose = %d, want 3", cfg.Verbose)
		}
	})
}

func TestLoadFromEnv_Client(t *testing.T) {
	t.Setenv("BANKD_CONNECT", "bank:1080")
	t.Setenv("BANKD_RETRY", "2")
	t.Setenv("BANKD_RETRY_INTERVAL", "1s")
	cfg := Default()
	LoadFromEnv(cfg)
	if !cfg.ClientMode() || cfg.Connect != "bank:1080" {
		t.Errorf("Connect = %q", cfg.Connect)
	}
	if cfg.RetryAttempts != 2 || cfg.RetryInterval != time.Second {
		t.Errorf("retry = %d/%v", cfg.RetryAttempts, cfg.RetryInterval)
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bankd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
port: 2080
max_accounts: 50
status_interval: 5s
idle_timeout: 2m
metrics_addr: "127.0.0.1:9108"
`)
	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != 2080 || cfg.MaxAccounts != 50 {
		t.Errorf("port/accounts = %d/%d", cfg.Port, cfg.MaxAccounts)
	}
	if cfg.StatusInterval != 5*time.Second || cfg.IdleTimeout != 2*time.Minute {
		t.Errorf("durations = %v/%v", cfg.StatusInterval, cfg.IdleTimeout)
	}
	if cfg.MaxSessions != DefaultMaxSessions {
		t.Errorf("keys absent from the file must keep their value, got %d", cfg.MaxSessions)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
}

func TestLoadFile_Empty(t *testing.T) {
	cfg := Default()
	if err := LoadFile(cfg, writeFile(t, "")); err != nil {
		t.Fatalf("empty file should load: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d", cfg.Port)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantSub string
	}{
		{"missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.yaml") }, "no such file"},
		{"unknown key", func(t *testing.T) string { return writeFile(t, "prot: 1\n") }, "prot"},
		{"bad duration", func(t *testing.T) string { return writeFile(t, "status_interval: often\n") }, "hint:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := LoadFile(Default(), tt.path(t))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestPrecedence_EnvOverFile(t *testing.T) {
	path := writeFile(t, "port: 2080\nmax_sessions: 7\n")
	t.Setenv("BANKD_PORT", "3080")

	cfg := Default()
	if err := LoadFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	LoadFromEnv(cfg)

	if cfg.Port != 3080 {
		t.Errorf("env should win over file: Port = %d", cfg.Port)
	}
	if cfg.MaxSessions != 7 {
		t.Errorf("file should win over defaults: MaxSessions = %d", cfg.MaxSessions)
	}
}
