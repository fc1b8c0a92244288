package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the redis key of the cached result.
const DefaultKey = "forecast:predictions:latest"

// Redis is a Cache shared between server replicas. Expiry is left to redis.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

var _ Cache = (*Redis)(nil)

// NewRedis creates a Redis cache. An empty key uses DefaultKey; ttl <= 0
// uses DefaultTTL.
func NewRedis(client redis.UniversalClient, key string, ttl time.Duration) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, key: key, ttl: ttl}
}

// Get returns the entry if the key has not expired.
func (r *Redis) Get(ctx context.Context) (*Entry, bool, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get cached predictions: %w", err)
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decode cached predictions: %w", err)
	}
	return &entry, true, nil
}

// Set stores the entry with the TTL counted from now.
func (r *Redis) Set(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached predictions: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("set cached predictions: %w", err)
	}
	return nil
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
