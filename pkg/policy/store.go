package policy

import "sync"

// Store holds the active policy snapshot. Reads happen on the sampling
// hot path and take a shared lock; the poller takes the exclusive lock
// only for the pointer swap, so readers never wait on network I/O and
// never observe a state mixing two policy versions.
type Store struct {
	mu     sync.RWMutex
	active *Policy
}

// NewStore creates a store seeded with the built-in default policy.
func NewStore() *Store {
	return &Store{active: Default()}
}

// Current returns the active snapshot. The returned Policy is immutable
// and remains valid after a subsequent Swap.
func (s *Store) Current() *Policy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Version returns the active policy version.
func (s *Store) Version() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active.Version
}

// Swap atomically installs a new snapshot.
func (s *Store) Swap(p *Policy) {
	if p == nil {
		return
	}
	s.mu.Lock()
	s.active = p
	s.mu.Unlock()
}
