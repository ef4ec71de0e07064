// Package cache memoises detection results by content hash.
//
// Entries are msgpack-encoded into a kv.Store with a fixed TTL. The cache is
// advisory: callers treat any error as a miss and carry on computing.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/voiceguard/go/pkg/kv"
)

// DefaultTTL is the entry lifetime when Config.TTL is zero.
const DefaultTTL = time.Hour

// Key derives the cache key for an input: the hex SHA-256 of the raw
// audio bytes followed by the language tag.
func Key(raw []byte, language string) string {
	h := sha256.New()
	h.Write(raw)
	h.Write([]byte(language))
	return hex.EncodeToString(h.Sum(nil))
}

// Config configures a Cache.
type Config struct {
	// Store holds the encoded entries. Required.
	Store kv.Store

	// TTL is how long entries live. Defaults to DefaultTTL.
	TTL time.Duration

	// Namespace is the first key segment. Defaults to "result".
	Namespace string
}

// Cache stores values of type V under content keys.
type Cache[V any] struct {
	store kv.Store
	ttl   time.Duration
	ns    string
}

// New returns a cache over cfg.Store.
func New[V any](cfg Config) *Cache[V] {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "result"
	}
	return &Cache[V]{store: cfg.Store, ttl: cfg.TTL, ns: cfg.Namespace}
}

// TTL returns the entry lifetime.
func (c *Cache[V]) TTL() time.Duration { return c.ttl }

// Get returns the value stored under key. ok is false on a miss and on any
// error; err is set only for backend or decoding failures.
func (c *Cache[V]) Get(ctx context.Context, key string) (v V, ok bool, err error) {
	data, err := c.store.Get(ctx, kv.Key{c.ns, key})
	if errors.Is(err, kv.ErrNotFound) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("cache: get: %w", err)
	}
	if err := msgpack.Unmarshal(data, &v); err != nil {
		var zero V
		return zero, false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return v, true, nil
}

// Put stores v under key for the configured TTL.
func (c *Cache[V]) Put(ctx context.Context, key string, v V) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode: %w", err)
	}
	if err := c.store.Set(ctx, kv.Key{c.ns, key}, data, c.ttl); err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Invalidate drops the entry for key.
func (c *Cache[V]) Invalidate(ctx context.Context, key string) error {
	if err := c.store.Delete(ctx, kv.Key{c.ns, key}); err != nil {
		return fmt.Errorf("cache: delete: %w", err)
	}
	return nil
}
