package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bankd/internal/bank"
	"bankd/internal/metrics"
)

func newStore(t *testing.T, capacity int) *bank.Store {
	t.Helper()
	s, err := bank.NewStore(capacity, 100)
	require.NoError(t, err)
	return s
}

// run feeds lines to m and returns the reply texts.
func run(m *Machine, lines ...string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, m.Handle(l).Text)
	}
	return out
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		line, cmd, arg string
	}{
		{"open alice", "open", "alice"},
		{"  credit   100  ", "credit", "100"},
		{"open Mary Ann", "open", "Mary Ann"},
		{"balance", "balance", ""},
		{"start\tbob", "start", "bob"},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, arg := splitCommand(tt.line)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.arg, arg)
		})
	}
}

func TestScenario_OpenCreditDebitBalance(t *testing.T) {
	m := New(newStore(t, 4), nil, nil)

	got := run(m, "open alice", "credit 100", "debit 30", "balance")
	assert.Equal(t, []string{
		"Account successfully created - alice",
		"alice new balance: 100.00",
		"alice new balance: 70.00",
		"alice current balance: 70.00",
	}, got)
	assert.Equal(t, Bound, m.State())
}

func TestScenario_Overdraft(t *testing.T) {
	m := New(newStore(t, 4), nil, nil)

	got := run(m, "open zed", "credit 20", "debit 50", "balance")
	assert.Equal(t, "Overdraft is not allowed for this account", got[2])
	assert.Equal(t, "zed current balance: 20.00", got[3])
}

func TestFinishThenStartFromAnotherSession(t *testing.T) {
	store := newStore(t, 4)
	a := New(store, nil, nil)
	b := New(store, nil, nil)

	require.Equal(t, "Account successfully created - bob", a.Handle("open bob").Text)
	assert.Equal(t, "Account is locked by another user", b.Handle("start bob").Text)
	assert.Equal(t, Unbound, b.State())

	assert.Equal(t, "bob transactions finished", a.Handle("finish").Text)
	assert.Equal(t, Unbound, a.State())

	assert.Equal(t, "bob session reopened", b.Handle("start bob").Text)
	assert.Equal(t, "Account is locked by another user", a.Handle("start bob").Text)
}

func TestExitReleasesAndCloses(t *testing.T) {
	store := newStore(t, 4)
	a := New(store, nil, nil)
	run(a, "open carol", "credit 5")

	r := a.Handle("exit")
	assert.Equal(t, "Have a good day", r.Text)
	assert.True(t, r.Close)
	assert.Equal(t, Unbound, a.State())

	b := New(store, nil, nil)
	assert.Equal(t, "carol session reopened", b.Handle("start carol").Text)
	assert.Equal(t, "carol current balance: 5.00", b.Handle("balance").Text)
}

func TestExitWhileUnbound(t *testing.T) {
	m := New(newStore(t, 1), nil, nil)
	r := m.Handle("exit")
	assert.Equal(t, "Have a good day", r.Text)
	assert.True(t, r.Close)
}

func TestCloseReleasesHold(t *testing.T) {
	store := newStore(t, 4)
	a := New(store, nil, nil)
	run(a, "open dave")

	assert.True(t, a.Close(metrics.ReasonDisconnect))
	assert.False(t, a.Close(metrics.ReasonDisconnect), "second close is a no-op")

	b := New(store, nil, nil)
	assert.Equal(t, "dave session reopened", b.Handle("start dave").Text)
}

func TestUnboundCommandsRejected(t *testing.T) {
	m := New(newStore(t, 1), nil, nil)

	got := run(m, "credit 10", "debit 10", "balance", "finish")
	assert.Equal(t, []string{
		"Start or open an account before using credit function",
		"Start or open an account before using debit function",
		"Start or open an account before using balance function",
		"No open account to finish",
	}, got)
	assert.Equal(t, Unbound, m.State())
}

func TestAlreadyBound(t *testing.T) {
	store := newStore(t, 4)
	m := New(store, nil, nil)
	run(m, "open erin")

	assert.Equal(t, "Command Error: Session is already opened", m.Handle("open other").Text)
	assert.Equal(t, "Command Error: Session is already opened", m.Handle("start erin").Text)
	assert.Equal(t, 1, store.Len())
}

func TestMissingArguments(t *testing.T) {
	m := New(newStore(t, 4), nil, nil)
	assert.Equal(t, "Command Error: Please provide a name", m.Handle("open").Text)
	assert.Equal(t, "Command Error: Please provide an account name", m.Handle("start   ").Text)

	run(m, "open fay")
	assert.Equal(t, "Please enter an amount to credit", m.Handle("credit").Text)
	assert.Equal(t, "Please enter an amount to debit", m.Handle("debit").Text)
}

func TestInvalidAmountsRejected(t *testing.T) {
	m := New(newStore(t, 4), nil, nil)
	run(m, "open gus", "credit 10")

	for _, bad := range []string{"abc", "-5", "1.234", "1e9"} {
		assert.Equal(t, "Invalid amount: "+bad, m.Handle("credit "+bad).Text)
		assert.Equal(t, "Invalid amount: "+bad, m.Handle("debit "+bad).Text)
	}
	assert.Equal(t, "Command Error: Amount is too large", m.Handle("credit 99999999999999999999").Text)
	assert.Equal(t, "gus current balance: 10.00", m.Handle("balance").Text)
}

func TestUnknownCommand(t *testing.T) {
	m := New(newStore(t, 1), nil, nil)
	for _, line := range []string{"withdraw 5", "", "OPEN alice", "help"} {
		r := m.Handle(line)
		assert.Equal(t, "I don't understand that command!!!", r.Text)
		assert.False(t, r.Close)
	}
}

func TestOpenDuplicateAndCapacity(t *testing.T) {
	store := newStore(t, 2)
	a := New(store, nil, nil)
	run(a, "open one", "finish")

	b := New(store, nil, nil)
	assert.Equal(t, "Command Error: Account name already exists. Try start command", b.Handle("open one").Text)
	run(b, "open two", "finish")

	assert.Equal(t, "Command Error: Unable to allocate resources", b.Handle("open three").Text)
	assert.Equal(t, Unbound, b.State())
	assert.Equal(t, "Account not found", b.Handle("start three").Text)
}

func TestOpenNameTooLong(t *testing.T) {
	store, err := bank.NewStore(2, 8)
	require.NoError(t, err)
	m := New(store, nil, nil)
	assert.Equal(t, "Command Error: Account name is too long", m.Handle("open "+strings.Repeat("n", 9)).Text)
}

func TestStoreClosedUnderSession(t *testing.T) {
	store := newStore(t, 2)
	m := New(store, nil, nil)
	run(m, "open hal")

	store.Close()
	assert.Equal(t, "Command Error: Account session has ended", m.Handle("credit 1").Text)
	assert.Equal(t, Unbound, m.State())
	assert.Equal(t, "Command Error: Bank is shutting down", m.Handle("start hal").Text)
	assert.Equal(t, "Command Error: Bank is shutting down", m.Handle("open new").Text)
}

func TestConcurrentStart_ExactlyOneReopens(t *testing.T) {
	store := newStore(t, 4)
	owner := New(store, nil, nil)
	run(owner, "open bob", "finish")

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		replies []string
		barrier = make(chan struct{})
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := New(store, nil, nil)
			<-barrier
			r := m.Handle("start bob").Text
			mu.Lock()
			replies = append(replies, r)
			mu.Unlock()
		}()
	}
	close(barrier)
	wg.Wait()

	var reopened, locked int
	for _, r := range replies {
		switch r {
		case "bob session reopened":
			reopened++
		case "Account is locked by another user":
			locked++
		default:
			t.Errorf("unexpected reply %q", r)
		}
	}
	assert.Equal(t, 1, reopened)
	assert.Equal(t, racers-1, locked)
}

func TestConcurrentOpen_ExactlyOneCreates(t *testing.T) {
	store := newStore(t, 16)

	const racers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		barrier = make(chan struct{})
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m := New(store, nil, nil)
			<-barrier
			r := m.Handle("open shared").Text
			if r == fmt.Sprintf(fmtCreated, "shared") {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	close(barrier)
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, 1, store.Len())
}

func TestMetricsRecorded(t *testing.T) {
	mc := metrics.New()
	store := newStore(t, 4)
	a := New(store, nil, mc)
	b := New(store, nil, mc)

	run(a, "open ivy", "credit 1", "debit 5")
	run(b, "start ivy", "nonsense")

	assert.Equal(t, int64(5), mc.Commands())
	assert.Equal(t, int64(1), mc.Contentions())
	assert.Equal(t, int64(1), mc.Overdrafts())
}
