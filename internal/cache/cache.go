// Package cache stores suggestion results keyed by claim text.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Cache is a byte-valued store with per-entry expiry. A zero ttl means the
// store's default.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Pruner is implemented by caches that can drop expired entries in bulk
type Pruner interface {
	Prune() (int, error)
}

const keyPrefix = "papertrail:v1:"

// Key hashes parts into a fixed-length cache key. Parts are separated so
// ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// GetJSON decodes the entry at key into v. A corrupt entry is deleted and
// reported as a miss.
func GetJSON(c Cache, key string, v any) bool {
	data, ok := c.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		_ = c.Delete(key)
		return false
	}
	return true
}

// SetJSON encodes v and stores it at key
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(key, data, ttl)
}
