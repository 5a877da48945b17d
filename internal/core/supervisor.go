package core

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bankd/config"
	"bankd/internal/bank"
	bankerr "bankd/internal/errors"
	"bankd/internal/metrics"
	"bankd/internal/slots"
	"bankd/util"
)

// Supervisor owns the server lifecycle: it allocates the account store
// and the slot table, runs the dispatcher, the status reporter and the
// optional metrics endpoint, and tears everything down in order.
type Supervisor struct {
	Config  *config.Config
	Logger  *util.Logger
	Metrics *metrics.Collector

	// StatusOutput receives the periodic status table (default stdout).
	StatusOutput io.Writer

	mu         sync.Mutex
	store      *bank.Store
	dispatcher *Dispatcher
	ready      chan struct{}
	stop       chan struct{}
	initOnce   sync.Once
	stopOnce   sync.Once
}

func (s *Supervisor) init() {
	s.initOnce.Do(func() {
		s.ready = make(chan struct{})
		s.stop = make(chan struct{})
		if s.Logger == nil {
			s.Logger = util.NewLogger(0)
		}
	})
}

// Ready is closed once the bank is accepting connections.
func (s *Supervisor) Ready() <-chan struct{} {
	s.init()
	return s.ready
}

// Addr returns the address the bank listens on, or nil before Ready.
func (s *Supervisor) Addr() net.Addr {
	s.mu.Lock()
	d := s.dispatcher
	s.mu.Unlock()
	if d == nil {
		return nil
	}
	return d.Addr()
}

// Store returns the account store, or nil before Run allocated it.
func (s *Supervisor) Store() *bank.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}

// Shutdown asks a running supervisor to stop.  It may be called any
// number of times, before or during Run.
func (s *Supervisor) Shutdown() {
	s.init()
	s.stopOnce.Do(func() { close(s.stop) })
}

// Run serves until ctx is cancelled, Shutdown is called or a component
// fails.  Allocation failures are returned as *errors.ResourceError.
func (s *Supervisor) Run(ctx context.Context) error {
	s.init()
	cfg := s.Config
	log := s.Logger

	store, err := bank.NewStore(cfg.MaxAccounts, cfg.MaxNameLen)
	if err != nil {
		return err
	}
	defer func() {
		if n := store.Close(); n > 0 {
			log.Warn("released %d account lock(s) at shutdown", n)
		}
		log.Verbose("account store closed")
	}()

	table, err := slots.New(cfg.MaxSessions)
	if err != nil {
		return err
	}

	d := &Dispatcher{
		Address:         cfg.Address(),
		Store:           store,
		Slots:           table,
		Metrics:         s.Metrics,
		Logger:          log.With("[dispatch]"),
		MaxLineLen:      cfg.MaxLineLen,
		IdleTimeout:     cfg.IdleTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	rep := &Reporter{
		Store:    store,
		Interval: cfg.StatusInterval,
		Metrics:  s.Metrics,
		Logger:   log.With("[status]"),
		Output:   s.StatusOutput,
	}

	s.mu.Lock()
	s.store = store
	s.dispatcher = d
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			log.Info("shutdown requested")
			cancel()
		case <-ctx.Done():
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(gctx) })
	g.Go(func() error {
		select {
		case <-d.Ready():
			close(s.ready)
		case <-gctx.Done():
			return nil
		}
		return rep.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return s.serveMetrics(gctx, cfg.MetricsAddr) })
	}

	err = g.Wait()
	if err != nil {
		s.Metrics.RecordError(err.Error())
		log.Error("%v", err)
	}
	log.Info("bank closed")
	return err
}

func (s *Supervisor) serveMetrics(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return bankerr.Wrap("listen", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Metrics.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(sctx) //nolint:errcheck
	}()

	s.Logger.Info("metrics on http://%s/metrics", ln.Addr())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
