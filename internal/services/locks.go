package services

import "sync"

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// IdentityLocks serializes event processing per identity. Locks for
// different identities never contend; lock entries are dropped once the
// last holder releases, so the map does not grow with the user base.
type IdentityLocks struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

// NewIdentityLocks creates a new keyed lock set
func NewIdentityLocks() *IdentityLocks {
	return &IdentityLocks{
		locks: make(map[string]*identityLock),
	}
}

// Lock acquires the lock for an identity and returns its release func
func (l *IdentityLocks) Lock(identity string) func() {
	l.mu.Lock()
	entry, ok := l.locks[identity]
	if !ok {
		entry = &identityLock{}
		l.locks[identity] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, identity)
		}
		l.mu.Unlock()
	}
}
