package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// KeyPrefix namespaces every cache key written by this module
const KeyPrefix = "mathfoundry:v1:"

// Cache kinds
const (
	KindFeed   = "feed"   // Raw arXiv export API pages
	KindSearch = "search" // Ranked search results
	KindRobots = "robots" // robots.txt bodies
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a namespaced cache key for a kind from its identifying parts
func Key(kind string, parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return KeyPrefix + kind + ":" + hex.EncodeToString(hash[:])
}

// GetJSON decodes a cached JSON value. Undecodable entries count as misses.
func GetJSON[T any](c Cache, key string) (T, bool) {
	var v T
	data, ok := c.Get(key)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false
	}
	return v, true
}

// SetJSON encodes and stores a value
func SetJSON(c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return c.Set(key, data, ttl)
}
