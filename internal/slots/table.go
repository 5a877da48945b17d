// Package slots keeps the fixed-size table of worker slots, one per live
// client connection.
package slots

import (
	"context"
	"sync"
	"time"

	"github.com/eapache/queue"
	"github.com/google/uuid"

	bankerr "bankd/internal/errors"
)

// Slot describes one entry of the table.
type Slot struct {
	Index    int
	WorkerID string // unique per occupancy, so a reused slot is never mistaken for its predecessor
	Remote   string
	Since    time.Time
	Occupied bool

	cleanup func()
}

// Table hands out worker slots.  Free slot indices wait in a FIFO so a
// slot that was just reaped is the last to be reused.
type Table struct {
	mu       sync.Mutex
	slots    []Slot
	free     *queue.Queue
	occupied int
	changed  chan struct{} // closed and replaced on every change
}

// New returns a table with capacity slots, all free.
func New(capacity int) (*Table, error) {
	if capacity <= 0 {
		return nil, bankerr.Resource("worker slots", bankerr.New("capacity must be positive"))
	}
	t := &Table{
		slots:   make([]Slot, capacity),
		free:    queue.New(),
		changed: make(chan struct{}),
	}
	for i := range t.slots {
		t.slots[i].Index = i
		t.free.Add(i)
	}
	return t, nil
}

// Acquire marks a free slot occupied on behalf of the connection from
// remote.  cleanup runs exactly once when the slot is reaped; it may be nil.
func (t *Table) Acquire(remote string, cleanup func()) (Slot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.free.Length() == 0 {
		return Slot{}, &bankerr.CapacityError{
			Resource: "sessions",
			Limit:    len(t.slots),
			Err:      bankerr.ErrSlotsFull,
		}
	}
	i := t.free.Remove().(int)
	s := &t.slots[i]
	s.WorkerID = uuid.NewString()
	s.Remote = remote
	s.Since = time.Now()
	s.Occupied = true
	s.cleanup = cleanup
	t.occupied++
	t.notifyLocked()
	return *s, nil
}

// Reap frees the slot, running its cleanup hook first.  Reaping a slot
// that was already reaped (or has since been handed to another worker)
// does nothing and returns false.
func (t *Table) Reap(s Slot) bool {
	t.mu.Lock()
	cur := &t.slots[s.Index]
	if !cur.Occupied || cur.WorkerID != s.WorkerID {
		t.mu.Unlock()
		return false
	}
	cleanup := cur.cleanup
	*cur = Slot{Index: s.Index}
	t.mu.Unlock()

	// The slot is taken out of circulation until cleanup finishes, so a
	// new worker can never observe state left behind by the old one.
	if cleanup != nil {
		cleanup()
	}

	t.mu.Lock()
	t.free.Add(s.Index)
	t.occupied--
	t.notifyLocked()
	t.mu.Unlock()
	return true
}

// Occupied returns the number of slots in use.
func (t *Table) Occupied() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.occupied
}

// Cap returns the number of slots.
func (t *Table) Cap() int { return len(t.slots) }

// List returns copies of the occupied slots in index order.
func (t *Table) List() []Slot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Slot, 0, t.occupied)
	for _, s := range t.slots {
		if s.Occupied {
			s.cleanup = nil
			out = append(out, s)
		}
	}
	return out
}

// Wait blocks until every slot is free or ctx is done.
func (t *Table) Wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		if t.occupied == 0 {
			t.mu.Unlock()
			return nil
		}
		ch := t.changed
		t.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (t *Table) notifyLocked() {
	close(t.changed)
	t.changed = make(chan struct{})
}
