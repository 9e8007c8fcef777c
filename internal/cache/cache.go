// Package cache stores fetched feed bodies and dashboard aggregates in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is the key/value surface used by the feed fetcher and stats.
type Cache interface {
	// Get returns "" with a nil error on a miss.
	Get(ctx context.Context, key string) (string, error)
	// Set stores strings and byte slices as-is and anything else as JSON.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Health(ctx context.Context) map[string]any
	Close() error
}

// FeedKey returns the cache key for a feed URL.
func FeedKey(feedURL string) string {
	hash := sha256.Sum256([]byte(feedURL))
	return fmt.Sprintf("feed:%x", hash[:8])
}

// StatsKey returns the cache key for a dashboard aggregate.
func StatsKey(name string) string {
	return "stats:" + name
}

// GetJSON decodes a cached JSON value into v. A miss or an undecodable value
// reports false; undecodable values are deleted.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	data, err := c.Get(ctx, key)
	if err != nil || data == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(data), v); err != nil {
		_ = c.Delete(ctx, key)
		return false, nil
	}
	return true, nil
}

func encode(key string, value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value for key %s: %w", key, err)
		}
		return data, nil
	}
}

// Noop is a Cache that stores nothing. It is used when no Redis address is
// configured.
type Noop struct{}

func (Noop) Get(ctx context.Context, key string) (string, error) { return "", nil }
func (Noop) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	_, err := encode(key, value)
	return err
}
func (Noop) Delete(ctx context.Context, key string) error { return nil }
func (Noop) Health(ctx context.Context) map[string]any {
	return map[string]any{"status": "disabled", "type": "none"}
}
func (Noop) Close() error { return nil }
