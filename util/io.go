package util

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// Relay shuttles data between a server connection and a local
// reader/writer pair (typically stdin/stdout) for the interactive
// client.  It returns when the server closes the connection or ctx is
// cancelled.  When r reaches EOF first, the write side is half-closed and
// Relay keeps printing until the server hangs up.
//
// A goroutine blocked reading r is left behind when the server closes
// first; for os.Stdin that lasts until the process exits.
func Relay(ctx context.Context, conn net.Conn, r io.Reader, w io.Writer) error {
	down := make(chan error, 1)
	go func() {
		buf := getBuf()
		defer putBuf(buf)
		_, err := io.CopyBuffer(w, conn, *buf)
		down <- err
	}()

	up := make(chan error, 1)
	go func() {
		buf := getBuf()
		defer putBuf(buf)
		_, err := io.CopyBuffer(conn, r, *buf)
		if tc, ok := conn.(*net.TCPConn); ok {
			tc.CloseWrite() //nolint:errcheck
		}
		up <- err
	}()

	var err error
	select {
	case err = <-down:
	case <-ctx.Done():
		conn.Close()
		<-down
		return nil
	case uerr := <-up:
		if uerr != nil && !IsHarmless(uerr) {
			conn.Close()
			<-down
			return uerr
		}
		select {
		case err = <-down:
		case <-ctx.Done():
			conn.Close()
			<-down
			return nil
		}
	}
	conn.Close()

	if IsHarmless(err) {
		return nil
	}
	return err
}

// IsHarmless returns true for errors that just mean one side hung up.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
