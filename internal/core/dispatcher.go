package core

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"bankd/internal/bank"
	bankerr "bankd/internal/errors"
	"bankd/internal/metrics"
	"bankd/internal/retry"
	"bankd/internal/session"
	"bankd/internal/slots"
	"bankd/internal/wire"
	"bankd/util"
)

const (
	// defaultAcceptFailures is how many accept errors in a row are
	// tolerated before the listener is declared broken.
	defaultAcceptFailures = 10

	// rejectWriteTimeout bounds the busy notice sent to a rejected client
	// so a slow peer cannot stall the accept loop.
	rejectWriteTimeout = time.Second
)

// Dispatcher accepts client connections, gives each one a worker slot and
// runs a session state machine over it.  Every way a worker can end goes
// through the slot's reaping hook, which releases the session's account.
type Dispatcher struct {
	Address         string // host:port, port 0 picks a free one
	Store           *bank.Store
	Slots           *slots.Table
	Metrics         *metrics.Collector
	Logger          *util.Logger
	MaxLineLen      int
	IdleTimeout     time.Duration // 0 disables
	ShutdownTimeout time.Duration

	// Bind and Accept default to retry.BindBackoff and a breaker that
	// trips after defaultAcceptFailures.
	Bind   *retry.Backoff
	Accept *retry.Breaker

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup

	initOnce     sync.Once
	ready        chan struct{}
	shutdownOnce sync.Once
	shutdown     chan struct{}
}

func (d *Dispatcher) init() {
	d.initOnce.Do(func() {
		d.ready = make(chan struct{})
		d.shutdown = make(chan struct{})
		d.conns = make(map[net.Conn]struct{})
		if d.Logger == nil {
			d.Logger = util.NewLogger(0)
		}
		if d.MaxLineLen <= 0 {
			d.MaxLineLen = 256
		}
		if d.ShutdownTimeout <= 0 {
			d.ShutdownTimeout = 5 * time.Second
		}
		if d.Bind == nil {
			d.Bind = retry.BindBackoff()
		}
		if d.Accept == nil {
			d.Accept = retry.NewBreaker(defaultAcceptFailures)
		}
	})
}

// Ready is closed once the listener is bound.
func (d *Dispatcher) Ready() <-chan struct{} {
	d.init()
	return d.ready
}

// Addr returns the bound listener address, or nil before Ready.
func (d *Dispatcher) Addr() net.Addr {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.listener == nil {
		return nil
	}
	return d.listener.Addr()
}

// Run binds the listener and serves until ctx is cancelled or Shutdown is
// called, then drains the connected sessions.  It returns an error only
// when the listener cannot be bound or keeps failing.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.init()

	ln, err := d.listen(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	d.mu.Lock()
	d.listener = ln
	d.mu.Unlock()
	close(d.ready)

	// Shutdown may have raced the bind.
	select {
	case <-d.shutdown:
		ln.Close()
	default:
	}

	stop := context.AfterFunc(ctx, d.Shutdown)
	defer stop()

	d.Logger.Info("bank open on %s (%d sessions, %d accounts)",
		ln.Addr(), d.Slots.Cap(), d.Store.Cap())

	err = d.acceptLoop(ln)
	d.drain()
	return err
}

// Shutdown stops accepting and interrupts every blocked session read.
// It is safe to call more than once and from any goroutine.
func (d *Dispatcher) Shutdown() {
	d.init()
	d.shutdownOnce.Do(func() {
		close(d.shutdown)

		d.mu.Lock()
		defer d.mu.Unlock()
		if d.listener != nil {
			d.listener.Close()
		}
		now := time.Now()
		for c := range d.conns {
			c.SetReadDeadline(now) //nolint:errcheck
		}
	})
}

func (d *Dispatcher) stopping() bool {
	select {
	case <-d.shutdown:
		return true
	default:
		return false
	}
}

// ── listener ─────────────────────────────────────────────────────────

func (d *Dispatcher) listen(ctx context.Context) (net.Listener, error) {
	var ln net.Listener
	var lc net.ListenConfig
	err := d.Bind.Do(ctx, func(attempt int) error {
		l, err := lc.Listen(ctx, "tcp", d.Address)
		if err == nil {
			ln = l
			return nil
		}
		nerr := bankerr.Wrap("listen", d.Address, err)
		if !nerr.Retryable {
			return retry.Permanent(nerr)
		}
		d.Logger.Warn("%v (attempt %d)", nerr, attempt)
		return nerr
	})
	if err != nil {
		return nil, err
	}
	return ln, nil
}

func (d *Dispatcher) acceptLoop(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if d.stopping() {
				return nil
			}
			d.Metrics.RecordError(err.Error())
			pause, berr := d.Accept.Failure(err)
			if berr != nil {
				d.Logger.Error("accept: %v", berr)
				d.Shutdown()
				return bankerr.Wrap("accept", ln.Addr().String(), berr)
			}
			d.Logger.Warn("accept: %v (retrying in %v)", err, pause)
			select {
			case <-d.shutdown:
				return nil
			case <-time.After(pause):
			}
			continue
		}
		d.Accept.Success()
		d.dispatch(conn)
	}
}

// ── workers ──────────────────────────────────────────────────────────

// worker is the per-connection state shared with the slot's reaping hook.
type worker struct {
	conn    net.Conn
	machine *session.Machine
	reason  string
	log     *util.Logger
}

func (d *Dispatcher) dispatch(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	w := &worker{conn: conn, reason: metrics.ReasonDisconnect}

	slot, err := d.Slots.Acquire(remote, func() { d.reap(w) })
	if err != nil {
		d.Logger.Warn("rejecting %s: %v", remote, err)
		d.Metrics.SessionRejected()
		conn.SetWriteDeadline(time.Now().Add(rejectWriteTimeout)) //nolint:errcheck
		wire.WriteLine(conn, session.MsgBusy)                     //nolint:errcheck
		conn.Close()
		return
	}

	w.log = d.Logger.With(fmt.Sprintf("[%d %s]", slot.Index, remote))
	w.machine = session.New(d.Store, w.log, d.Metrics)
	d.Metrics.SessionOpened()
	w.log.Verbose("session %s started", slot.WorkerID)

	d.track(conn)
	d.wg.Add(1)
	go d.serve(w, slot)
}

func (d *Dispatcher) serve(w *worker, slot slots.Slot) {
	defer d.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("session panicked: %v", r)
			d.Metrics.RecordError(fmt.Sprint(r))
		}
	}()
	defer d.Slots.Reap(slot)

	lr := wire.NewLineReader(w.conn, d.MaxLineLen)
	for {
		if d.IdleTimeout > 0 {
			w.conn.SetReadDeadline(time.Now().Add(d.IdleTimeout)) //nolint:errcheck
		}
		// Checked after arming the idle deadline so it cannot overwrite
		// the one Shutdown set.
		if d.stopping() {
			w.reason = metrics.ReasonShutdown
			wire.WriteLine(w.conn, session.MsgShuttingDown) //nolint:errcheck
			return
		}

		line, err := lr.ReadLine()
		switch {
		case err == nil:
		case errors.Is(err, bankerr.ErrLineTooLong):
			if wire.WriteLine(w.conn, session.MsgLineTooLong) != nil {
				return
			}
			continue
		default:
			d.readFailed(w, err)
			return
		}

		reply := w.machine.Handle(line)
		if err := wire.WriteLine(w.conn, reply.Text); err != nil {
			w.log.Verbose("write: %v", err)
			return
		}
		if reply.Close {
			w.reason = metrics.ReasonExit
			return
		}
	}
}

// readFailed classifies why a session's read loop ended.
func (d *Dispatcher) readFailed(w *worker, err error) {
	switch {
	case d.stopping():
		w.reason = metrics.ReasonShutdown
		wire.WriteLine(w.conn, session.MsgShuttingDown) //nolint:errcheck
	case errors.Is(err, os.ErrDeadlineExceeded):
		w.reason = metrics.ReasonIdle
		w.log.Info("idle for %v, disconnecting", d.IdleTimeout)
	case util.IsHarmless(err):
		w.log.Verbose("client disconnected")
	default:
		w.log.Warn("read: %v", err)
	}
}

// reap runs from the slot table exactly once per worker.
func (d *Dispatcher) reap(w *worker) {
	if w.machine != nil {
		w.machine.Close(w.reason)
	}
	d.untrack(w.conn)
	w.conn.Close()
	d.Metrics.SessionClosed()
	if w.log != nil {
		w.log.Verbose("session ended (%s)", w.reason)
	}
}

func (d *Dispatcher) track(c net.Conn) {
	d.mu.Lock()
	d.conns[c] = struct{}{}
	d.mu.Unlock()
}

func (d *Dispatcher) untrack(c net.Conn) {
	d.mu.Lock()
	delete(d.conns, c)
	d.mu.Unlock()
}

// drain waits for every worker to be reaped.  Workers still running after
// ShutdownTimeout have their connections closed under them.
func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.ShutdownTimeout)
	defer cancel()

	if err := d.Slots.Wait(ctx); err != nil {
		d.mu.Lock()
		n := len(d.conns)
		for c := range d.conns {
			c.Close()
		}
		d.mu.Unlock()
		d.Logger.Warn("%d session(s) still open after %v, closed", n, d.ShutdownTimeout)
	}
	d.wg.Wait()
}
