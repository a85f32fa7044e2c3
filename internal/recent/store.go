// Package recent keeps the most recently queried channel names.
package recent

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKey   = "recent_channels"
	DefaultLimit = 5
)

// Store is a capped, most-recent-first list of channel names in Redis.
type Store struct {
	client redis.Cmdable
	key    string
	limit  int
}

// NewStore creates a Store. Empty key and non-positive limit fall back to the defaults.
func NewStore(client redis.Cmdable, key string, limit int) *Store {
	if key == "" {
		key = DefaultKey
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Store{client: client, key: key, limit: limit}
}

// Push moves name to the front of the list, inserting it if absent, and trims
// the list to the configured limit.
func (s *Store) Push(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, s.key, 0, name)
		pipe.LPush(ctx, s.key, name)
		pipe.LTrim(ctx, s.key, 0, int64(s.limit-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record recent channel: %w", err)
	}
	return nil
}

// List returns the stored names, most recent first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	names, err := s.client.LRange(ctx, s.key, 0, int64(s.limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list recent channels: %w", err)
	}
	return names, nil
}

// Ping checks connectivity to Redis.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
