package service

import "sync"

// seatLocks is a keyed lock table: one mutex per seat ID, created
// on first use. It serializes issuance per seat when the backing
// store has no compare-and-swap primitive, while reservations for
// different seats proceed in parallel. A global lock here would
// serialize unrelated seats, which the engine must not do.
//
// Locks are never evicted. The seat namespace is the flat seat map
// of one vehicle, so the table stays small.
type seatLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSeatLocks() *seatLocks {
	return &seatLocks{locks: make(map[string]*sync.Mutex)}
}

// get returns the mutex for a seat, creating it on first use.
func (t *seatLocks) get(seatID string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[seatID]
	if !ok {
		l = &sync.Mutex{}
		t.locks[seatID] = l
	}
	return l
}
