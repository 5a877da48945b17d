package config

// loader.go - configuration loading from a YAML file and environment
// variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables
//   3. Config file
//   4. Defaults   (defaults.go)

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	bankerr "bankd/internal/errors"
)

// EnvConfigFile names the config file when --config is not given.
const EnvConfigFile = "BANKD_CONFIG"

// LoadFile overlays the YAML document at path onto cfg.  Keys missing
// from the file keep their current value; unknown keys are an error.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &bankerr.ConfigError{
			Field: "config", Value: path,
			Message: err.Error(),
		}
	}
	if err := decode(cfg, bytes.NewReader(data)); err != nil {
		return &bankerr.ConfigError{
			Field: "config", Value: path,
			Message: err.Error(),
			Hint:    "durations are written like 20s, keys like max_accounts",
		}
	}
	cfg.ConfigFile = path
	return nil
}

func decode(cfg *Config, r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the BANKD_ prefix.  Durations accept Go
// syntax ("20s") or a bare number of seconds.

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty,
// well-formed values override the existing value.  Call it after LoadFile
// and before applying CLI flags.
func LoadFromEnv(cfg *Config) {
	if v, ok := os.LookupEnv("BANKD_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v := envInt("BANKD_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := envInt("BANKD_MAX_ACCOUNTS"); v > 0 {
		cfg.MaxAccounts = v
	}
	if v := envInt("BANKD_MAX_SESSIONS"); v > 0 {
		cfg.MaxSessions = v
	}
	if v := envInt("BANKD_MAX_LINE"); v > 0 {
		cfg.MaxLineLen = v
	}
	if v := envInt("BANKD_MAX_NAME"); v > 0 {
		cfg.MaxNameLen = v
	}
	if v, ok := envDuration("BANKD_STATUS_INTERVAL"); ok {
		cfg.StatusInterval = v
	}
	if v, ok := envDuration("BANKD_IDLE_TIMEOUT"); ok {
		cfg.IdleTimeout = v
	}
	if v, ok := envDuration("BANKD_SHUTDOWN_TIMEOUT"); ok {
		cfg.ShutdownTimeout = v
	}
	if v := os.Getenv("BANKD_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	// Client
	if v := os.Getenv("BANKD_CONNECT"); v != "" {
		cfg.Connect = v
	}
	if v, ok := envDuration("BANKD_RETRY_INTERVAL"); ok {
		cfg.RetryInterval = v
	}
	if v := envInt("BANKD_RETRY"); v > 0 {
		cfg.RetryAttempts = v
	}

	// Output
	if v := envInt("BANKD_VERBOSE"); v > 0 {
		cfg.Verbose = v
	} else if envBool("BANKD_VERBOSE") {
		cfg.Verbose = 1
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "true" || v == "yes"
}

func envDuration(key string) (time.Duration, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, true
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, false
	}
	return d, true
}
