package service

import "sync"

// listingLocks serialises mutations per listing inside one process.  The
// listing row lock taken in the transaction is what makes this safe across
// processes; the mutex keeps same-process writers from queueing on the
// database.  Entries are removed when the last holder unlocks.
type listingLocks struct {
	mu    sync.Mutex
	locks map[uint64]*listingLock
}

type listingLock struct {
	sync.Mutex
	refs int
}

func newListingLocks() *listingLocks {
	return &listingLocks{locks: make(map[uint64]*listingLock)}
}

// lock blocks until the listing's mutex is held and returns its release.
func (l *listingLocks) lock(id uint64) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &listingLock{}
		l.locks[id] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *listingLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
