// Package lock provides try-lock/release semantics over opaque session IDs,
// guaranteeing at most one long-running operation acts on a given session
// at a time.
package lock

import "sync"

// Table is a set of currently-held session IDs guarded by a single mutex.
// Acquisition for an already-held ID fails without blocking.
type Table struct {
	mu     sync.Mutex
	locked map[string]struct{}
}

func NewTable() *Table {
	return &Table{locked: make(map[string]struct{})}
}

// TryAcquire atomically inserts id into the lock set if absent. Returns
// true iff the insertion happened.
func (t *Table) TryAcquire(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, held := t.locked[id]; held {
		return false
	}
	t.locked[id] = struct{}{}
	return true
}

// Release idempotently removes id from the lock set. Safe to call when
// the id is not currently locked.
func (t *Table) Release(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.locked, id)
}

func (t *Table) IsLocked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, held := t.locked[id]
	return held
}

// WithLock runs fn while holding id's lock, guaranteeing release on every
// exit path including a panic inside fn. Returns false without running fn
// if the lock could not be acquired.
func (t *Table) WithLock(id string, fn func() error) (acquired bool, err error) {
	if !t.TryAcquire(id) {
		return false, nil
	}
	defer t.Release(id)
	return true, fn()
}
