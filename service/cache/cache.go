// Package cache stores serialized lookup results keyed by transaction id.
//
// Two backends are provided: Memory, local to the process, and Redis,
// shared between replicas. Both expire entries after a fixed TTL.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Backend names accepted by New.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache is implemented by every backend.
type Cache interface {
	// Get returns the value stored for id. A miss is (nil, false, nil).
	Get(ctx context.Context, id string) ([]byte, bool, error)

	// Set stores value for id until the backend's TTL elapses.
	Set(ctx context.Context, id string, value []byte) error

	// Close releases backend resources.
	Close() error
}

// New builds the named backend. It returns (nil, nil) for BackendNone.
func New(ctx context.Context, backend, redisAddr string, ttl time.Duration) (Cache, error) {
	switch backend {
	case BackendNone, "":
		return nil, nil
	case BackendMemory:
		return NewMemory(ttl), nil
	case BackendRedis:
		r, err := NewRedis(ctx, redisAddr, ttl)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
}
