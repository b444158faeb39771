package usecase

import "sync"

// accountLocks serializes sync runs per account. The map is bounded by
// the number of connected accounts, so entries are never evicted.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until this goroutine holds the account's lock and
// returns the release function
func (a *accountLocks) Acquire(key string) func() {
	a.mu.Lock()
	lock, ok := a.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[key] = lock
	}
	a.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
