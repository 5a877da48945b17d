package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, the config file and environment variable loading.

const (
	// DefaultListenAddr binds every interface.
	DefaultListenAddr = ""

	// DefaultPort is the TCP port the bank listens on.
	DefaultPort = 1080

	// DefaultMaxAccounts is the capacity of the account store.
	DefaultMaxAccounts = 20

	// DefaultMaxSessions bounds the number of concurrently connected
	// clients (the worker slot table).
	DefaultMaxSessions = 20

	// DefaultStatusInterval is how often the bank status table is printed.
	DefaultStatusInterval = 20 * time.Second

	// DefaultMaxLineLen is the longest accepted command line in bytes,
	// excluding the newline.
	DefaultMaxLineLen = 256

	// DefaultMaxNameLen is the longest accepted account name in bytes.
	DefaultMaxNameLen = 100

	// DefaultIdleTimeout of zero leaves idle sessions connected forever.
	DefaultIdleTimeout = 0

	// DefaultShutdownTimeout bounds how long shutdown waits for connected
	// sessions to be reaped before their connections are force-closed.
	DefaultShutdownTimeout = 5 * time.Second

	// DefaultConnectTimeout is the client's per-attempt dial timeout.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultRetryInterval is the pause between client connection attempts.
	DefaultRetryInterval = 3 * time.Second

	// DefaultRetryAttempts is how many times the client dials before
	// giving up.
	DefaultRetryAttempts = 5

	// minLineLen keeps the line buffer large enough for every command.
	minLineLen = 16
)

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		ListenAddr:      DefaultListenAddr,
		Port:            DefaultPort,
		MaxAccounts:     DefaultMaxAccounts,
		MaxSessions:     DefaultMaxSessions,
		StatusInterval:  DefaultStatusInterval,
		MaxLineLen:      DefaultMaxLineLen,
		MaxNameLen:      DefaultMaxNameLen,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		ConnectTimeout:  DefaultConnectTimeout,
		RetryInterval:   DefaultRetryInterval,
		RetryAttempts:   DefaultRetryAttempts,
	}
}
