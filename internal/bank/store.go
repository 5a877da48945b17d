// Package bank holds the shared account table and the per-account lock
// protocol that gives each account at most one active session.
//
// The table is a fixed-size arena addressed by index.  Slots are filled in
// creation order and never removed, so an index handed out by Create or
// FindByName stays valid for the lifetime of the Store.  The store-level
// RWMutex only guards the table shape (count and names); balances and
// session flags are atomics so the status reporter can read them while a
// session mutates its own account.
package bank

import (
	"fmt"
	"sync"
	"sync/atomic"

	bankerr "bankd/internal/errors"
)

// Account is one entry in the store.
type Account struct {
	name      string
	balance   atomic.Int64 // cents; written only by the lock holder
	inSession atomic.Bool  // true exactly while mu is held by a session
	mu        sync.Mutex
}

// AccountStatus is a point-in-time copy of an account for reporting.
type AccountStatus struct {
	Name      string
	Balance   Amount
	InSession bool
}

// Store is the shared account table.
type Store struct {
	mu         sync.RWMutex
	accounts   []Account
	count      int
	maxNameLen int
	closed     atomic.Bool
}

// NewStore allocates a store for up to capacity accounts whose names are at
// most maxNameLen bytes.
func NewStore(capacity, maxNameLen int) (*Store, error) {
	if capacity <= 0 {
		return nil, bankerr.Resource("account store",
			fmt.Errorf("capacity must be positive, got %d", capacity))
	}
	if maxNameLen <= 0 {
		return nil, bankerr.Resource("account store",
			fmt.Errorf("name length must be positive, got %d", maxNameLen))
	}
	return &Store{
		accounts:   make([]Account, capacity),
		maxNameLen: maxNameLen,
	}, nil
}

// Create appends a new account with a zero balance and returns its index.
// The new account is already locked on behalf of the caller.
func (s *Store) Create(name string) (int, error) {
	if name == "" {
		return -1, bankerr.ErrEmptyName
	}
	if len(name) > s.maxNameLen {
		return -1, bankerr.ErrNameTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed.Load() {
		return -1, bankerr.ErrStoreClosed
	}
	if s.count >= len(s.accounts) {
		return -1, &bankerr.CapacityError{
			Resource: "accounts",
			Limit:    len(s.accounts),
			Err:      bankerr.ErrStoreFull,
		}
	}
	if s.indexLocked(name) >= 0 {
		return -1, bankerr.ErrAlreadyExists
	}

	idx := s.count
	acct := &s.accounts[idx]
	acct.name = name
	acct.balance.Store(0)
	s.acquireBlocking(acct)
	s.count++
	return idx, nil
}

// FindByName returns the index of the named account.
func (s *Store) FindByName(name string) (int, error) {
	s.mu.RLock()
	idx := s.indexLocked(name)
	s.mu.RUnlock()
	if idx < 0 {
		return -1, bankerr.ErrNotFound
	}
	return idx, nil
}

// Start looks up name and tries to take its lock without blocking.
func (s *Store) Start(name string) (int, error) {
	idx, err := s.FindByName(name)
	if err != nil {
		return -1, err
	}
	ok, err := s.TryAcquire(idx)
	if err != nil {
		return -1, err
	}
	if !ok {
		return -1, &bankerr.ContentionError{Account: name}
	}
	return idx, nil
}

// Credit adds amount to the held account and returns the new balance.
func (s *Store) Credit(idx int, amount Amount) (Amount, error) {
	acct, err := s.held(idx)
	if err != nil {
		return 0, err
	}
	if amount < 0 {
		return 0, bankerr.ErrInvalidAmount
	}
	cur := Amount(acct.balance.Load())
	if amount > MaxAmount-cur {
		return cur, bankerr.ErrAmountTooLarge
	}
	next := cur + amount
	acct.balance.Store(int64(next))
	return next, nil
}

// Debit subtracts amount from the held account.  The balance is left
// untouched when amount exceeds it.
func (s *Store) Debit(idx int, amount Amount) (Amount, error) {
	acct, err := s.held(idx)
	if err != nil {
		return 0, err
	}
	if amount < 0 {
		return 0, bankerr.ErrInvalidAmount
	}
	cur := Amount(acct.balance.Load())
	if amount > cur {
		return cur, bankerr.ErrOverdraft
	}
	next := cur - amount
	acct.balance.Store(int64(next))
	return next, nil
}

// Balance returns the current balance of the held account.
func (s *Store) Balance(idx int) (Amount, error) {
	acct, err := s.held(idx)
	if err != nil {
		return 0, err
	}
	return Amount(acct.balance.Load()), nil
}

// Name returns the name stored at idx, or "" when idx is not in use.
func (s *Store) Name(idx int) string {
	acct, err := s.at(idx)
	if err != nil {
		return ""
	}
	return acct.name
}

// Snapshot copies every account under the store read lock.
func (s *Store) Snapshot() []AccountStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]AccountStatus, s.count)
	for i := 0; i < s.count; i++ {
		a := &s.accounts[i]
		out[i] = AccountStatus{
			Name:      a.name,
			Balance:   Amount(a.balance.Load()),
			InSession: a.inSession.Load(),
		}
	}
	return out
}

// Len returns the number of accounts created so far.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// Cap returns the maximum number of accounts.
func (s *Store) Cap() int { return len(s.accounts) }

// Close releases every held account lock and refuses further creation
// and acquisition.  It is safe to call more than once; the number of
// locks force-released is returned.
func (s *Store) Close() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed.CompareAndSwap(false, true) {
		return 0
	}
	released := 0
	for i := 0; i < s.count; i++ {
		if s.release(&s.accounts[i]) {
			released++
		}
	}
	return released
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool { return s.closed.Load() }

// ── internals ────────────────────────────────────────────────────────

// indexLocked scans for name.  Caller holds s.mu.
func (s *Store) indexLocked(name string) int {
	for i := 0; i < s.count; i++ {
		if s.accounts[i].name == name {
			return i
		}
	}
	return -1
}

func (s *Store) at(idx int) (*Account, error) {
	s.mu.RLock()
	n := s.count
	s.mu.RUnlock()
	if idx < 0 || idx >= n {
		return nil, bankerr.ErrBadIndex
	}
	return &s.accounts[idx], nil
}

func (s *Store) held(idx int) (*Account, error) {
	acct, err := s.at(idx)
	if err != nil {
		return nil, err
	}
	if !acct.inSession.Load() {
		return nil, bankerr.ErrNotHeld
	}
	return acct, nil
}
