package engine

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// keyedLease serializes engine operations per thread id. Each key holds
// a one-slot semaphore so an acquire can either fail fast or block with
// context cancellation. Entries persist for the life of the process;
// the map is bounded by the number of distinct threads touched.
type keyedLease struct {
	mu   sync.Mutex
	sems map[uuid.UUID]chan struct{}
}

func newKeyedLease() *keyedLease {
	return &keyedLease{sems: make(map[uuid.UUID]chan struct{})}
}

func (l *keyedLease) sem(id uuid.UUID) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.sems[id]
	if !ok {
		sem = make(chan struct{}, 1)
		l.sems[id] = sem
	}
	return sem
}

// Acquire takes the thread's lease. When wait is false a held lease
// returns ErrThreadBusy immediately; when true the caller blocks until
// the lease frees or ctx is done. The returned func releases the lease.
func (l *keyedLease) Acquire(ctx context.Context, id uuid.UUID, wait bool) (func(), error) {
	sem := l.sem(id)

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	default:
	}

	if !wait {
		return nil, ErrThreadBusy
	}

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
