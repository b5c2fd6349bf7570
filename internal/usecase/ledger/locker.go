package ledger

import (
	"sync"

	"github.com/google/uuid"
)

// accountLocks hands out one mutex per account so concurrent movements
// against the same account serialize while movements on different accounts
// proceed independently. Locks are never removed; the map grows with the
// set of accounts that have moved money, which is bounded and small.
type accountLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[uuid.UUID]*sync.Mutex)}
}

func (l *accountLocks) get(id uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// lockAll acquires the mutexes for the given accounts in a stable order
// (sorted by ID) so two transfers between the same pair of accounts cannot
// deadlock. It returns an unlock function releasing them in reverse order.
func (l *accountLocks) lockAll(ids ...uuid.UUID) func() {
	unique := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	for i := 0; i < len(unique); i++ {
		for j := i + 1; j < len(unique); j++ {
			if unique[j].String() < unique[i].String() {
				unique[i], unique[j] = unique[j], unique[i]
			}
		}
	}

	acquired := make([]*sync.Mutex, 0, len(unique))
	for _, id := range unique {
		m := l.get(id)
		m.Lock()
		acquired = append(acquired, m)
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}
