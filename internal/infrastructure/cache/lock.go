package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	"github.com/bravo68web/qadeck/pkg/logger"
)

var (
	// ErrLockNotAcquired is returned when a lock cannot be acquired
	ErrLockNotAcquired = errors.New("lock not acquired")
	// ErrLockNotHeld is returned when trying to release a lock not held
	ErrLockNotHeld = errors.New("lock not held")
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// Locker provides distributed locking on top of SET NX
type Locker struct {
	rdb       redis.UniversalClient
	keyPrefix string
	log       *logger.Logger
}

var _ domainservice.Locker = (*Locker)(nil)

// NewLocker creates a new Locker
func NewLocker(rdb redis.UniversalClient, keyPrefix string) *Locker {
	if keyPrefix == "" {
		keyPrefix = "qadeck:lock:"
	}
	return &Locker{
		rdb:       rdb,
		keyPrefix: keyPrefix,
		log:       logger.Get().WithFields(logger.Component("redis-lock")),
	}
}

// RedisLock is a held lock. Only the owner value set at acquire time can release it.
type RedisLock struct {
	locker *Locker
	key    string
	value  string
}

// Acquire attempts to acquire a lock once
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (*RedisLock, error) {
	lockKey := l.keyPrefix + key
	lockValue := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockNotAcquired
	}

	l.log.WithContext(ctx).Debug("Acquired lock", logger.String("key", lockKey))
	return &RedisLock{locker: l, key: lockKey, value: lockValue}, nil
}

// TryAcquire retries Acquire with capped exponential backoff until wait elapses
func (l *Locker) TryAcquire(ctx context.Context, key string, ttl, wait time.Duration) (domainservice.Lock, error) {
	deadline := time.Now().Add(wait)
	backoff := 10 * time.Millisecond

	for {
		lock, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockNotAcquired) {
			return nil, err
		}
		if !time.Now().Before(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 500*time.Millisecond {
				backoff = 500 * time.Millisecond
			}
		}
	}
}

// Release deletes the key only if this lock still owns it
func (lock *RedisLock) Release(ctx context.Context) error {
	result, err := releaseScript.Run(ctx, lock.locker.rdb, []string{lock.key}, lock.value).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	lock.locker.log.WithContext(ctx).Debug("Released lock", logger.String("key", lock.key))
	return nil
}
