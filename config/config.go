// Package config defines the runtime configuration for bankd.
package config

import (
	"net"
	"strconv"
	"time"

	bankerr "bankd/internal/errors"
)

// Config holds every tuneable for one bankd process.
type Config struct {
	// ── Server ───────────────────────────────────────────────────────
	ListenAddr      string        `yaml:"listen_addr"`
	Port            int           `yaml:"port"`
	MaxAccounts     int           `yaml:"max_accounts"`
	MaxSessions     int           `yaml:"max_sessions"`
	StatusInterval  time.Duration `yaml:"status_interval"`
	MaxLineLen      int           `yaml:"max_line_len"`
	MaxNameLen      int           `yaml:"max_name_len"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MetricsAddr     string        `yaml:"metrics_addr"`

	// ── Client ───────────────────────────────────────────────────────
	Connect        string        `yaml:"connect"` // host:port; empty means serve
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	RetryAttempts  int           `yaml:"retry_attempts"`

	// ── Output ───────────────────────────────────────────────────────
	Verbose int `yaml:"verbose"`

	// ConfigFile is the path the file layer was read from, if any.
	ConfigFile string `yaml:"-"`
}

// Address returns the host:port the server listens on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.ListenAddr, strconv.Itoa(c.Port))
}

// ClientMode reports whether the process should dial a server instead of
// serving.
func (c *Config) ClientMode() bool { return c.Connect != "" }

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.  The
// returned error is a *errors.ConfigError carrying a hint for the user.
func (c *Config) Validate() error {
	if c.ClientMode() {
		return c.validateClient()
	}

	if c.Port < 1 || c.Port > 65535 {
		return &bankerr.ConfigError{
			Field: "port", Value: c.Port,
			Message: "port out of range 1-65535",
			Hint:    "the bank listens on 1080 unless told otherwise",
		}
	}
	if c.MaxAccounts < 1 {
		return &bankerr.ConfigError{
			Field: "max-accounts", Value: c.MaxAccounts,
			Message: "must be at least 1",
		}
	}
	if c.MaxSessions < 1 {
		return &bankerr.ConfigError{
			Field: "max-sessions", Value: c.MaxSessions,
			Message: "must be at least 1",
		}
	}
	if c.StatusInterval <= 0 {
		return &bankerr.ConfigError{
			Field: "status-interval", Value: c.StatusInterval,
			Message: "must be positive",
			Hint:    "use a Go duration such as 20s or 1m",
		}
	}
	if c.MaxLineLen < minLineLen {
		return &bankerr.ConfigError{
			Field: "max-line", Value: c.MaxLineLen,
			Message: "must be at least " + strconv.Itoa(minLineLen) + " bytes",
		}
	}
	if c.MaxNameLen < 1 || c.MaxNameLen >= c.MaxLineLen {
		return &bankerr.ConfigError{
			Field: "max-name", Value: c.MaxNameLen,
			Message: "must be positive and shorter than the line limit",
			Hint:    "an account name has to fit on an \"open <name>\" line",
		}
	}
	if c.IdleTimeout < 0 {
		return &bankerr.ConfigError{
			Field: "idle-timeout", Value: c.IdleTimeout,
			Message: "must not be negative",
			Hint:    "use 0 to keep idle sessions connected",
		}
	}
	if c.ShutdownTimeout <= 0 {
		return &bankerr.ConfigError{
			Field: "shutdown-timeout", Value: c.ShutdownTimeout,
			Message: "must be positive",
		}
	}
	if c.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			return &bankerr.ConfigError{
				Field: "metrics-addr", Value: c.MetricsAddr,
				Message: err.Error(),
				Hint:    "expected host:port, e.g. 127.0.0.1:9108",
			}
		}
	}
	return nil
}

func (c *Config) validateClient() error {
	host, port, err := net.SplitHostPort(c.Connect)
	if err != nil || host == "" {
		return &bankerr.ConfigError{
			Field: "connect", Value: c.Connect,
			Message: "expected host:port",
			Hint:    "e.g. --connect localhost:1080",
		}
	}
	if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
		return &bankerr.ConfigError{
			Field: "connect", Value: c.Connect,
			Message: "port out of range 1-65535",
		}
	}
	if c.RetryAttempts < 1 {
		return &bankerr.ConfigError{
			Field: "retry", Value: c.RetryAttempts,
			Message: "must be at least 1",
		}
	}
	if c.RetryInterval <= 0 || c.ConnectTimeout <= 0 {
		return &bankerr.ConfigError{
			Field: "retry-interval", Value: c.RetryInterval,
			Message: "retry interval and connect timeout must be positive",
		}
	}
	return nil
}
