// Package metrics tracks runtime statistics of the bank server and
// exposes them to Prometheus.
//
// All methods are safe for concurrent use.  A nil *Collector is a valid
// no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"

	LockAcquired  = "acquired"
	LockContended = "contended"
	LockReleased  = "released"

	ReasonFinish     = "finish"
	ReasonExit       = "exit"
	ReasonDisconnect = "disconnect"
	ReasonShutdown   = "shutdown"
	ReasonIdle       = "idle"
)

// Collector tracks runtime metrics for a bank server.
// A nil Collector is safe to use; all methods become no-ops.
type Collector struct {
	sessionsActive   atomic.Int64
	sessionsTotal    atomic.Int64
	sessionsRejected atomic.Int64
	commandsTotal    atomic.Int64
	contentions      atomic.Int64
	overdrafts       atomic.Int64
	errorsTotal      atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastReport   time.Time
	lastError    time.Time
	lastErrorMsg string

	registry     *prometheus.Registry
	promActive   prometheus.Gauge
	promSessions *prometheus.CounterVec
	promCommands *prometheus.CounterVec
	promLocks    *prometheus.CounterVec
	promReleases *prometheus.CounterVec
	promAccounts *prometheus.GaugeVec
	promReports  prometheus.Counter
	promErrors   prometheus.Counter
}

// New creates a collector with its own Prometheus registry.
func New() *Collector {
	c := &Collector{
		startTime: time.Now(),
		registry:  prometheus.NewRegistry(),
		promActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bankd",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of sessions currently occupying a worker slot",
		}),
		promSessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankd",
			Subsystem: "sessions",
			Name:      "total",
			Help:      "Connections handled, by admission result",
		}, []string{"result"}),
		promCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankd",
			Subsystem: "commands",
			Name:      "total",
			Help:      "Commands processed, by command and result",
		}, []string{"command", "result"}),
		promLocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankd",
			Subsystem: "locks",
			Name:      "events_total",
			Help:      "Account lock events",
		}, []string{"event"}),
		promReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bankd",
			Subsystem: "locks",
			Name:      "release_total",
			Help:      "Account lock releases, by reason",
		}, []string{"reason"}),
		promAccounts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bankd",
			Subsystem: "accounts",
			Name:      "count",
			Help:      "Accounts in the store, total and currently in session",
		}, []string{"state"}),
		promReports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bankd",
			Subsystem: "status",
			Name:      "reports_total",
			Help:      "Status reports rendered",
		}),
		promErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bankd",
			Name:      "errors_total",
			Help:      "Server-side errors (transport and internal)",
		}),
	}
	c.registry.MustRegister(
		c.promActive, c.promSessions, c.promCommands, c.promLocks,
		c.promReleases, c.promAccounts, c.promReports, c.promErrors,
	)
	return c
}

// Registry returns the Prometheus registry holding every bankd metric.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ── Session metrics ──────────────────────────────────────────────────

// SessionOpened records a connection admitted to a worker slot.
func (c *Collector) SessionOpened() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
	c.promActive.Inc()
	c.promSessions.WithLabelValues(ResultOK).Inc()
}

// SessionClosed records a reaped worker slot.
func (c *Collector) SessionClosed() {
	if c == nil {
		return
	}
	c.sessionsActive.Add(-1)
	c.promActive.Dec()
}

// SessionRejected records a connection turned away for lack of a slot.
func (c *Collector) SessionRejected() {
	if c == nil {
		return
	}
	c.sessionsRejected.Add(1)
	c.promSessions.WithLabelValues(ResultRejected).Inc()
}

// ActiveSessions returns the number of sessions currently running.
func (c *Collector) ActiveSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsActive.Load()
}

// TotalSessions returns the lifetime admitted-session count.
func (c *Collector) TotalSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsTotal.Load()
}

// RejectedSessions returns the lifetime rejected-connection count.
func (c *Collector) RejectedSessions() int64 {
	if c == nil {
		return 0
	}
	return c.sessionsRejected.Load()
}

// ── Command and lock metrics ─────────────────────────────────────────

// Command records one processed command.
func (c *Collector) Command(name string, ok bool) {
	if c == nil {
		return
	}
	c.commandsTotal.Add(1)
	result := ResultOK
	if !ok {
		result = ResultRejected
	}
	c.promCommands.WithLabelValues(name, result).Inc()
}

// Overdraft records a debit refused for insufficient funds.
func (c *Collector) Overdraft() {
	if c == nil {
		return
	}
	c.overdrafts.Add(1)
}

// LockAcquired records a successful account hold.
func (c *Collector) LockAcquired() {
	if c == nil {
		return
	}
	c.promLocks.WithLabelValues(LockAcquired).Inc()
}

// LockContended records a start refused because another session holds
// the account.
func (c *Collector) LockContended() {
	if c == nil {
		return
	}
	c.contentions.Add(1)
	c.promLocks.WithLabelValues(LockContended).Inc()
}

// LockReleased records an account hold ending for the given reason.
func (c *Collector) LockReleased(reason string) {
	if c == nil {
		return
	}
	c.promLocks.WithLabelValues(LockReleased).Inc()
	c.promReleases.WithLabelValues(reason).Inc()
}

// Commands returns the lifetime command count.
func (c *Collector) Commands() int64 {
	if c == nil {
		return 0
	}
	return c.commandsTotal.Load()
}

// Contentions returns how many start attempts hit a held account.
func (c *Collector) Contentions() int64 {
	if c == nil {
		return 0
	}
	return c.contentions.Load()
}

// Overdrafts returns how many debits were refused.
func (c *Collector) Overdrafts() int64 {
	if c == nil {
		return 0
	}
	return c.overdrafts.Load()
}

// ── Store metrics ────────────────────────────────────────────────────

// RecordReport stores the account gauges observed by a status report.
func (c *Collector) RecordReport(accounts, inSession int) {
	if c == nil {
		return
	}
	c.promAccounts.WithLabelValues("total").Set(float64(accounts))
	c.promAccounts.WithLabelValues("in_session").Set(float64(inSession))
	c.promReports.Inc()
	c.mu.Lock()
	c.lastReport = time.Now()
	c.mu.Unlock()
}

// ── Error metrics ────────────────────────────────────────────────────

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.promErrors.Inc()
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	SessionsActive   int64  `json:"sessions_active"`
	SessionsTotal    int64  `json:"sessions_total"`
	SessionsRejected int64  `json:"sessions_rejected"`
	Commands         int64  `json:"commands"`
	Contentions      int64  `json:"contentions"`
	Overdrafts       int64  `json:"overdrafts"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastReport       string `json:"last_report,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:           time.Since(c.startTime).Truncate(time.Second).String(),
		SessionsActive:   c.sessionsActive.Load(),
		SessionsTotal:    c.sessionsTotal.Load(),
		SessionsRejected: c.sessionsRejected.Load(),
		Commands:         c.commandsTotal.Load(),
		Contentions:      c.contentions.Load(),
		Overdrafts:       c.overdrafts.Load(),
		ErrorsTotal:      c.errorsTotal.Load(),
	}
	if !c.lastReport.IsZero() {
		s.LastReport = c.lastReport.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
