package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"

	bankerr "bankd/internal/errors"
	"bankd/internal/retry"
	"bankd/internal/transport"
	"bankd/util"
)

// ConnectMode is the interactive client: it dials a bank server,
// retrying while the server is not up yet, and relays the terminal to
// the session.
type ConnectMode struct {
	Dialer  transport.Dialer
	Address string
	Retry   *retry.Backoff
	Logger  *util.Logger

	// Stdin/Stdout default to os.Stdin/os.Stdout when nil.
	// Override in tests for deterministic I/O.
	Stdin  io.Reader
	Stdout io.Writer
}

func (m *ConnectMode) stdin() io.Reader {
	if m.Stdin != nil {
		return m.Stdin
	}
	return os.Stdin
}

func (m *ConnectMode) stdout() io.Writer {
	if m.Stdout != nil {
		return m.Stdout
	}
	return os.Stdout
}

// Run dials the server and relays until either side hangs up.  The
// transport is closed when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	defer m.Dialer.Close()

	b := m.Retry
	if b == nil {
		b = retry.DialBackoff(0, 1)
	}

	var conn net.Conn
	err := b.Do(ctx, func(attempt int) error {
		m.Logger.Verbose("connecting to %s (attempt %d)", m.Address, attempt)
		c, err := m.Dialer.Dial(ctx, "tcp", m.Address)
		if err == nil {
			conn = c
			return nil
		}
		if !bankerr.IsRetryable(err) {
			return retry.Permanent(err)
		}
		m.Logger.Warn("%v, retrying", err)
		return err
	})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", m.Address, err)
	}
	defer conn.Close()

	m.Logger.Info("connected to %s", conn.RemoteAddr())
	return util.Relay(ctx, conn, m.stdin(), m.stdout())
}
