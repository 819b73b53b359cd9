// Package cache stores raw service documents, such as $metadata responses,
// between reads.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Cache is implemented by every backend.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value for ttl. A zero ttl uses the backend default, a
	// negative one never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Config is shared by the backends.
type Config struct {
	DefaultTTL time.Duration
	Prefix     string
}

func DefaultConfig() Config {
	return Config{
		DefaultTTL: 10 * time.Minute,
		Prefix:     "goodata:",
	}
}

// ErrCacheMiss is wrapped by Get when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

func missError(key string) error {
	return fmt.Errorf("%w: %s", ErrCacheMiss, key)
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}
