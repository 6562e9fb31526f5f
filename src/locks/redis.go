package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	logger "github.com/sirupsen/logrus"
)

const (
	redisKeyPrefix    = "ordersaga:lock:"
	redisPollInterval = 50 * time.Millisecond
	redisReleaseWait  = 2 * time.Second
)

// releaseScript deletes the key only while it still carries our token, so an
// expired lock taken over by someone else is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker shares locks between processes. Locks expire after their ttl.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(ctx context.Context, cfg Config) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisLocker{client: client}, nil
}

func (l *RedisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Unlock, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, redisKeyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return l.unlock(key, token), true, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Unlock, error) {
	ticker := time.NewTicker(redisPollInterval)
	defer ticker.Stop()

	for {
		unlock, ok, err := l.TryAcquire(ctx, key, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return unlock, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
	}
}

func (l *RedisLocker) unlock(key, token string) Unlock {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), redisReleaseWait)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{redisKeyPrefix + key}, token).Err(); err != nil {
				logger.WithField("key", key).WithError(err).Warn("failed to release redis lock; it will expire")
			}
		})
	}
}

// Close closes the Redis client
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
