// Package lock keeps ticks from overlapping, inside one process or across many.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLocked is returned when somebody else holds the lock.
var ErrLocked = errors.New("lock is held")

// Lease is a held lock.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker acquires named locks. Acquire never waits: a held lock yields ErrLocked.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// Local is an in-process Locker. The ttl is ignored since a crashed process
// takes its locks with it.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocal() *Local {
	return &Local{held: make(map[string]struct{})}
}

func (l *Local) Acquire(_ context.Context, key string, _ time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.held[key] = struct{}{}

	return &localLease{owner: l, key: key}, nil
}

type localLease struct {
	owner *Local
	key   string
	once  sync.Once
}

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() {
		l.owner.mu.Lock()
		delete(l.owner.held, l.key)
		l.owner.mu.Unlock()
	})
	return nil
}
