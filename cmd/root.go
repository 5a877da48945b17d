// Package cmd wires up the CLI flags and dispatches to the bank core.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"bankd/config"
	"bankd/internal/core"
	"bankd/internal/metrics"
	"bankd/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X bankd/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the bank server, or the client when
// --connect is given.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout)
}

func execute(ctx context.Context, args []string, stdout io.Writer) error {
	// Flags are parsed into their own Config; only the ones actually set
	// are copied over the file and environment layers afterwards.
	fl := config.Default()
	fs := flag.NewFlagSet("bankd", flag.ContinueOnError)

	// ── server ───────────────────────────────────────────────────
	fs.StringVarP(&fl.ListenAddr, "listen", "l", fl.ListenAddr, "Listen address (empty = all interfaces)")
	fs.IntVarP(&fl.Port, "port", "p", fl.Port, "TCP port to listen on")
	fs.IntVar(&fl.MaxAccounts, "max-accounts", fl.MaxAccounts, "Account store capacity")
	fs.IntVar(&fl.MaxSessions, "max-sessions", fl.MaxSessions, "Maximum concurrent client sessions")
	fs.DurationVar(&fl.StatusInterval, "status-interval", fl.StatusInterval, "Interval between bank status reports")
	fs.IntVar(&fl.MaxLineLen, "max-line", fl.MaxLineLen, "Maximum command line length in bytes")
	fs.IntVar(&fl.MaxNameLen, "max-name", fl.MaxNameLen, "Maximum account name length in bytes")
	fs.DurationVar(&fl.IdleTimeout, "idle-timeout", fl.IdleTimeout, "Disconnect idle sessions after this long (0 = never)")
	fs.DurationVar(&fl.ShutdownTimeout, "shutdown-timeout", fl.ShutdownTimeout, "How long shutdown waits for sessions")
	fs.StringVar(&fl.MetricsAddr, "metrics-addr", fl.MetricsAddr, "Serve Prometheus metrics on host:port")

	// ── client ───────────────────────────────────────────────────
	fs.StringVarP(&fl.Connect, "connect", "c", fl.Connect, "Connect to a bank at host:port instead of serving")
	fs.IntVar(&fl.RetryAttempts, "retry", fl.RetryAttempts, "Connection attempts before giving up")
	fs.DurationVar(&fl.RetryInterval, "retry-interval", fl.RetryInterval, "Pause between connection attempts")
	fs.DurationVar(&fl.ConnectTimeout, "connect-timeout", fl.ConnectTimeout, "Per-attempt dial timeout")

	// ── config & output ──────────────────────────────────────────
	fs.StringVarP(&fl.ConfigFile, "config", "f", "", "YAML config file (env "+config.EnvConfigFile+")")
	fs.CountVarP(&fl.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp, dryRun, quiet bool
	fs.BoolVarP(&quiet, "quiet", "q", false, "Only log errors")
	fs.BoolVar(&dryRun, "dry-run", false, "Print the resolved configuration and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Fprintf(stdout, "bankd %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	// ── layer: defaults < file < env < flags ─────────────────────
	cfg := config.Default()
	path := fl.ConfigFile
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	if path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)
	fs.Visit(func(f *flag.Flag) { applyFlag(cfg, fl, f.Name) })

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dryRun {
		return yaml.NewEncoder(stdout).Encode(cfg)
	}

	// ── build components ─────────────────────────────────────────
	level := cfg.Verbose + 1
	if quiet {
		level = 0
	}
	logger := util.NewLogger(level)
	if cfg.ConfigFile != "" {
		logger.Verbose("loaded %s", cfg.ConfigFile)
	}

	var mc *metrics.Collector
	if !cfg.ClientMode() {
		mc = metrics.New()
		defer func() { logger.Verbose("final metrics: %s", mc.JSON()) }()
	}

	mode, err := core.Build(cfg, logger, mc)
	if err != nil {
		return err
	}
	return mode.Run(ctx)
}

// ── helpers ──────────────────────────────────────────────────────────

// applyFlag copies the flag named name from src to dst.
func applyFlag(dst, src *config.Config, name string) {
	switch name {
	case "listen":
		dst.ListenAddr = src.ListenAddr
	case "port":
		dst.Port = src.Port
	case "max-accounts":
		dst.MaxAccounts = src.MaxAccounts
	case "max-sessions":
		dst.MaxSessions = src.MaxSessions
	case "status-interval":
		dst.StatusInterval = src.StatusInterval
	case "max-line":
		dst.MaxLineLen = src.MaxLineLen
	case "max-name":
		dst.MaxNameLen = src.MaxNameLen
	case "idle-timeout":
		dst.IdleTimeout = src.IdleTimeout
	case "shutdown-timeout":
		dst.ShutdownTimeout = src.ShutdownTimeout
	case "metrics-addr":
		dst.MetricsAddr = src.MetricsAddr
	case "connect":
		dst.Connect = src.Connect
	case "retry":
		dst.RetryAttempts = src.RetryAttempts
	case "retry-interval":
		dst.RetryInterval = src.RetryInterval
	case "connect-timeout":
		dst.ConnectTimeout = src.ConnectTimeout
	case "verbose":
		dst.Verbose = src.Verbose
	}
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `bankd – concurrent bank session server v%s

Clients connect over TCP and send one command per line:
  open <name>   start <name>   credit <amount>   debit <amount>
  balance       finish         exit

Usage:
  bankd [options]                             Serve
  bankd --connect <host:port> [options]       Interactive client

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Settings are read from defaults, then the config file, then BANKD_*
environment variables, then flags; later sources win.

Examples:
  bankd                                       Serve on port 1080
  bankd -p 9000 --max-sessions 50 -v          Bigger bank, verbose log
  bankd -f /etc/bankd.yaml                    Settings from a file
  bankd --connect localhost:1080              Talk to a running bank
`)
}
