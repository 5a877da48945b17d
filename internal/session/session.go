// Package session implements the per-connection command state machine.
//
// A Machine is either Unbound or Bound to exactly one account.  Every
// command produces one reply line; errors that belong to the client
// (bad syntax, wrong state, full store, locked account) become replies and
// the session carries on.  A Machine is owned by a single worker goroutine
// and is not safe for concurrent use, apart from Close, which the worker's
// reaper calls after the command loop has stopped.
package session

import (
	"fmt"

	"bankd/internal/bank"
	bankerr "bankd/internal/errors"
	"bankd/internal/metrics"
	"bankd/util"
)

// State is the binding state of a session.
type State int

const (
	Unbound State = iota
	Bound
)

func (s State) String() string {
	if s == Bound {
		return "bound"
	}
	return "unbound"
}

// Reply is the response to one request line.
type Reply struct {
	Text  string
	Close bool // the connection must be closed after sending Text
}

// Machine drives one client session against the shared store.
type Machine struct {
	store   *bank.Store
	logger  *util.Logger
	metrics *metrics.Collector

	state State
	idx   int
	name  string
}

// New returns an unbound session over store.  logger and mc may be nil.
func New(store *bank.Store, logger *util.Logger, mc *metrics.Collector) *Machine {
	if logger == nil {
		logger = util.NewLogger(0)
	}
	return &Machine{store: store, logger: logger, metrics: mc, idx: -1}
}

// State returns the current binding state.
func (m *Machine) State() State { return m.state }

// Account returns the bound account name and index, or ("", -1).
func (m *Machine) Account() (string, int) {
	if m.state != Bound {
		return "", -1
	}
	return m.name, m.idx
}

// Handle interprets one request line.
func (m *Machine) Handle(line string) Reply {
	cmd, arg := splitCommand(line)

	var (
		r  Reply
		ok bool
	)
	switch cmd {
	case CmdOpen:
		r, ok = m.open(arg)
	case CmdStart:
		r, ok = m.start(arg)
	case CmdCredit:
		r, ok = m.credit(arg)
	case CmdDebit:
		r, ok = m.debit(arg)
	case CmdBalance:
		r, ok = m.balance()
	case CmdFinish:
		r, ok = m.finish()
	case CmdExit:
		r, ok = m.exit()
	default:
		m.logger.Debug("unknown command %q", cmd)
		cmd = "unknown"
		r = Reply{Text: msgUnknown}
	}

	m.metrics.Command(cmd, ok)
	m.logger.Verbose("%s -> %q", cmd, r.Text)
	return r
}

// Close releases the bound account, if any.  It is the cleanup path for a
// session that ends without finish or exit; reason is recorded in metrics.
// It reports whether a lock was released.
func (m *Machine) Close(reason string) bool {
	if m.state != Bound {
		return false
	}
	name := m.name
	released := m.unbind(reason)
	if released {
		m.logger.Info("released account %q (%s)", name, reason)
	}
	return released
}

// ── commands ─────────────────────────────────────────────────────────

func (m *Machine) open(name string) (Reply, bool) {
	switch {
	case m.state == Bound:
		return Reply{Text: msgAlreadyOpen}, false
	case name == "":
		return Reply{Text: msgNeedName}, false
	}

	idx, err := m.store.Create(name)
	if err != nil {
		switch {
		case bankerr.Is(err, bankerr.ErrAlreadyExists):
			return Reply{Text: msgExists}, false
		case bankerr.Is(err, bankerr.ErrNameTooLong):
			return Reply{Text: msgNameTooLong}, false
		case bankerr.Is(err, bankerr.ErrStoreClosed):
			return Reply{Text: MsgShuttingDown}, false
		default:
			m.logger.Warn("open %q: %v", name, err)
			return Reply{Text: msgNoResources}, false
		}
	}

	m.bind(idx, name)
	m.logger.Info("created account %q", name)
	return Reply{Text: fmt.Sprintf(fmtCreated, name)}, true
}

func (m *Machine) start(name string) (Reply, bool) {
	switch {
	case m.state == Bound:
		return Reply{Text: msgAlreadyOpen}, false
	case name == "":
		return Reply{Text: msgNeedAcctName}, false
	}

	idx, err := m.store.Start(name)
	if err != nil {
		switch {
		case bankerr.KindOf(err) == bankerr.KindContention:
			m.metrics.LockContended()
			return Reply{Text: msgLocked}, false
		case bankerr.Is(err, bankerr.ErrStoreClosed):
			return Reply{Text: MsgShuttingDown}, false
		default:
			return Reply{Text: msgNotFound}, false
		}
	}

	m.bind(idx, name)
	return Reply{Text: fmt.Sprintf(fmtReopened, name)}, true
}

func (m *Machine) credit(arg string) (Reply, bool) {
	if m.state != Bound {
		return Reply{Text: msgCreditUnbound}, false
	}
	if arg == "" {
		return Reply{Text: msgNeedCredit}, false
	}
	amt, r, ok := m.parseAmount(arg)
	if !ok {
		return r, false
	}

	bal, err := m.store.Credit(m.idx, amt)
	if err != nil {
		return m.mutationFailed(err), false
	}
	return Reply{Text: fmt.Sprintf(fmtNewBal, m.name, bal)}, true
}

func (m *Machine) debit(arg string) (Reply, bool) {
	if m.state != Bound {
		return Reply{Text: msgDebitUnbound}, false
	}
	if arg == "" {
		return Reply{Text: msgNeedDebit}, false
	}
	amt, r, ok := m.parseAmount(arg)
	if !ok {
		return r, false
	}

	bal, err := m.store.Debit(m.idx, amt)
	if err != nil {
		if bankerr.Is(err, bankerr.ErrOverdraft) {
			m.metrics.Overdraft()
			return Reply{Text: msgOverdraft}, false
		}
		return m.mutationFailed(err), false
	}
	return Reply{Text: fmt.Sprintf(fmtNewBal, m.name, bal)}, true
}

func (m *Machine) balance() (Reply, bool) {
	if m.state != Bound {
		return Reply{Text: msgBalUnbound}, false
	}
	bal, err := m.store.Balance(m.idx)
	if err != nil {
		return m.mutationFailed(err), false
	}
	return Reply{Text: fmt.Sprintf(fmtCurBal, m.name, bal)}, true
}

func (m *Machine) finish() (Reply, bool) {
	if m.state != Bound {
		return Reply{Text: msgNoFinish}, false
	}
	name := m.name
	m.unbind(metrics.ReasonFinish)
	return Reply{Text: fmt.Sprintf(fmtFinished, name)}, true
}

func (m *Machine) exit() (Reply, bool) {
	if m.state == Bound {
		m.unbind(metrics.ReasonExit)
	}
	return Reply{Text: msgGoodbye, Close: true}, true
}

// ── helpers ──────────────────────────────────────────────────────────

func (m *Machine) parseAmount(arg string) (bank.Amount, Reply, bool) {
	amt, err := bank.ParseAmount(arg)
	switch {
	case err == nil:
		return amt, Reply{}, true
	case bankerr.Is(err, bankerr.ErrAmountTooLarge):
		return 0, Reply{Text: msgAmountTooBig}, false
	default:
		return 0, Reply{Text: fmt.Sprintf(fmtBadAmount, arg)}, false
	}
}

// mutationFailed maps a store error on the bound account to a reply.  If
// the hold is gone (the store was closed underneath us) the session drops
// back to Unbound.
func (m *Machine) mutationFailed(err error) Reply {
	switch {
	case bankerr.Is(err, bankerr.ErrAmountTooLarge):
		return Reply{Text: msgAmountTooBig}
	case bankerr.Is(err, bankerr.ErrNotHeld):
		m.logger.Warn("lost hold on %q", m.name)
		m.state, m.idx, m.name = Unbound, -1, ""
		return Reply{Text: msgSessionLost}
	default:
		m.logger.Error("account %q: %v", m.name, err)
		return Reply{Text: msgSessionLost}
	}
}

func (m *Machine) bind(idx int, name string) {
	m.state, m.idx, m.name = Bound, idx, name
	m.metrics.LockAcquired()
}

func (m *Machine) unbind(reason string) bool {
	err := m.store.Release(m.idx)
	if err != nil {
		m.logger.Debug("release %q: %v", m.name, err)
	} else {
		m.metrics.LockReleased(reason)
	}
	m.state, m.idx, m.name = Unbound, -1, ""
	return err == nil
}
