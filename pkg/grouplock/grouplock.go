package grouplock

import (
	"sync"

	"github.com/google/uuid"
)

// Keyed serializes state-mutating operations per group. Two concurrent
// operations on the same group take turns; operations on different groups
// proceed independently. Entries are reference-counted so the map does not
// grow with every group ever touched.
type Keyed struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

// New constructs an empty keyed lock.
func New() *Keyed {
	return &Keyed{locks: map[uuid.UUID]*entry{}}
}

// Lock acquires the mutex for the given group id, blocking until available.
func (k *Keyed) Lock(groupID uuid.UUID) {
	k.mu.Lock()
	e, ok := k.locks[groupID]
	if !ok {
		e = &entry{}
		k.locks[groupID] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
}

// Unlock releases the mutex for the given group id.
func (k *Keyed) Unlock(groupID uuid.UUID) {
	k.mu.Lock()
	e, ok := k.locks[groupID]
	if ok {
		e.refs--
		if e.refs == 0 {
			delete(k.locks, groupID)
		}
	}
	k.mu.Unlock()

	if ok {
		e.mu.Unlock()
	}
}

// WithLock runs fn while holding the group's mutex.
func (k *Keyed) WithLock(groupID uuid.UUID, fn func() error) error {
	k.Lock(groupID)
	defer k.Unlock(groupID)
	return fn()
}
