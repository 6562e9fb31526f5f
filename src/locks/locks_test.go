package locks

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseLocker(t *testing.T, l Locker, key string) {
	ctx := context.Background()

	unlock, ok, err := l.TryAcquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryAcquire(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	_, err = l.Acquire(short, key, time.Minute)
	cancel()
	assert.True(t, errors.Is(err, ErrNotAcquired))

	done := make(chan Unlock, 1)
	go func() {
		u, err := l.Acquire(ctx, key, time.Minute)
		if err == nil {
			done <- u
		}
	}()

	time.Sleep(20 * time.Millisecond)
	unlock()
	unlock()

	select {
	case u := <-done:
		u()
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}

	u, ok, err := l.TryAcquire(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	u()
}

func TestLocalLocker(t *testing.T) {
	exerciseLocker(t, NewLocalLocker(), OrderKey(7))
}

func TestLocalLockerKeysAreIndependent(t *testing.T) {
	l := NewLocalLocker()
	a, ok, _ := l.TryAcquire(context.Background(), OrderKey(1), 0)
	require.True(t, ok)
	b, ok, _ := l.TryAcquire(context.Background(), OrderKey(2), 0)
	require.True(t, ok)
	a()
	b()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" || testing.Short() {
		t.Skip("REDIS_ADDR not set")
	}
	l, err := NewRedisLocker(context.Background(), Config{RedisAddr: addr})
	require.NoError(t, err)
	defer l.Close()

	exerciseLocker(t, l, JobKey("test-"+time.Now().Format("150405.000000")))
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "zookeeper"})
	require.Error(t, err)

	l, err := New(context.Background(), Config{Backend: BackendLocal})
	require.NoError(t, err)
	assert.IsType(t, &LocalLocker{}, l)
}
