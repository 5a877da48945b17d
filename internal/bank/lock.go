package bank

import bankerr "bankd/internal/errors"

// Account locks never queue.  A session that finds an account in use is
// told so immediately; bank sessions are interactive and may stay open for
// a long time, so waiting would pin a worker indefinitely.

// TryAcquire takes the lock of the account at idx if nobody holds it.
func (s *Store) TryAcquire(idx int) (bool, error) {
	if s.closed.Load() {
		return false, bankerr.ErrStoreClosed
	}
	acct, err := s.at(idx)
	if err != nil {
		return false, err
	}
	if !acct.mu.TryLock() {
		return false, nil
	}
	acct.inSession.Store(true)
	return true, nil
}

// Release gives up the lock of the account at idx.  Releasing an account
// that is not held returns ErrNotHeld.
func (s *Store) Release(idx int) error {
	acct, err := s.at(idx)
	if err != nil {
		return err
	}
	if !s.release(acct) {
		return bankerr.ErrNotHeld
	}
	return nil
}

// InSession reports whether the account at idx is currently held.
func (s *Store) InSession(idx int) bool {
	acct, err := s.at(idx)
	if err != nil {
		return false
	}
	return acct.inSession.Load()
}

// acquireBlocking locks a freshly created account.  Nobody else can see
// the account yet, so this never waits.
func (s *Store) acquireBlocking(acct *Account) {
	acct.mu.Lock()
	acct.inSession.Store(true)
}

// release clears the session flag and unlocks.  Only the caller that wins
// the flag swap unlocks, so a double release cannot unlock twice.
func (s *Store) release(acct *Account) bool {
	if !acct.inSession.CompareAndSwap(true, false) {
		return false
	}
	acct.mu.Unlock()
	return true
}
