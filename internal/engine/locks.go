package engine

import "sync"

// keyedLocks serializes operations per pool key. Operations against
// different pools proceed in parallel; two operations on the same pool
// never interleave their read-validate-mutate sequences.
//
// Pools are never deleted, so lock entries are never reclaimed.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// acquire locks key and returns the matching unlock.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
