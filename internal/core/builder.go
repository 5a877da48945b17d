package core

import (
	"bankd/config"
	"bankd/internal/metrics"
	"bankd/internal/retry"
	"bankd/internal/transport"
	"bankd/util"
)

// Build constructs the appropriate Mode from the given configuration.
// mc may be nil; the client never records metrics.
func Build(cfg *config.Config, logger *util.Logger, mc *metrics.Collector) (Mode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ClientMode() {
		return buildConnect(cfg, logger), nil
	}
	return buildServe(cfg, logger, mc), nil
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger, mc *metrics.Collector) Mode {
	return &Supervisor{
		Config:  cfg,
		Logger:  logger,
		Metrics: mc,
	}
}

func buildConnect(cfg *config.Config, logger *util.Logger) Mode {
	return &ConnectMode{
		Dialer:  &transport.TCPDialer{Timeout: cfg.ConnectTimeout},
		Address: cfg.Connect,
		Retry:   retry.DialBackoff(cfg.RetryInterval, cfg.RetryAttempts),
		Logger:  logger,
	}
}
