package promo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache keeps the upstream event-status answer warm so promotional page
// loads do not hammer the commerce API.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetStatus loads the cached event flags. It reports whether the key existed.
func (c *Cache) GetStatus(ctx context.Context, key string) (map[string]bool, bool, error) {
	if c == nil || c.client == nil || key == "" {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, err
	}
	var flags map[string]bool
	if err := json.Unmarshal(data, &flags); err != nil {
		return nil, false, err
	}
	return flags, true, nil
}

// SetStatus stores the event flags with the configured TTL.
func (c *Cache) SetStatus(ctx context.Context, key string, flags map[string]bool) error {
	if c == nil || c.client == nil || key == "" || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
