// Package locks serializes work per order and per background job class.
package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotAcquired is returned by Acquire when the context ends before the lock frees up.
var ErrNotAcquired = errors.New("lock not acquired")

// Unlock releases a held lock. Calling it more than once is harmless.
type Unlock func()

// Locker hands out named mutual-exclusion locks. ttl bounds how long a lock survives
// a holder that never unlocks; backends without that failure mode ignore it.
type Locker interface {
	// Acquire blocks until the lock is held or ctx is done.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Unlock, error)
	// TryAcquire returns immediately; ok is false when someone else holds the lock.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (unlock Unlock, ok bool, err error)
}

func OrderKey(orderID uint) string {
	return fmt.Sprintf("order:%d", orderID)
}

func JobKey(class string) string {
	return "job:" + class
}

// New builds the locker selected by cfg.Backend.
func New(ctx context.Context, cfg Config) (Locker, error) {
	switch cfg.Backend {
	case "", BackendLocal:
		return NewLocalLocker(), nil
	case BackendRedis:
		return NewRedisLocker(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown lock backend %q", cfg.Backend)
}

// LocalLocker is a process-wide keyed mutex.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: map[string]chan struct{}{}}
}

func (l *LocalLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (Unlock, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	ch := make(chan struct{})
	l.held[key] = ch
	return l.unlock(key, ch), true, nil
}

func (l *LocalLocker) Acquire(ctx context.Context, key string, _ time.Duration) (Unlock, error) {
	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			mine := make(chan struct{})
			l.held[key] = mine
			l.mu.Unlock()
			return l.unlock(key, mine), nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
	}
}

func (l *LocalLocker) unlock(key string, ch chan struct{}) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.held[key] == ch {
				delete(l.held, key)
			}
			l.mu.Unlock()
			close(ch)
		})
	}
}
