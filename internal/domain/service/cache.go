package service

import (
	"context"
	"time"
)

// Cache is a TTL key/value store for JSON-encodable values
type Cache interface {
	// Get decodes the cached value into dest and reports whether the key was present
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Lock is a held mutual-exclusion lease
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out leases shared across processes
type Locker interface {
	// TryAcquire keeps trying until wait elapses; the lease expires after ttl
	TryAcquire(ctx context.Context, key string, ttl, wait time.Duration) (Lock, error)
}
