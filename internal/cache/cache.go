// Package cache is a Redis cache-aside layer for user profiles.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Deletes uint64 `json:"deletes"`
	Errors  uint64 `json:"errors"`
}

// ProfileCache stores domain.User values as JSON under prefix+"user:"+id.
type ProfileCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration

	hits, misses, sets, deletes, errs atomic.Uint64
}

// NewClient connects and pings Redis.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func New(client *redis.Client, prefix string, ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProfileCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *ProfileCache) key(id string) string { return c.prefix + "user:" + id }

// GetUser reports a miss as (nil, false, nil).
func (c *ProfileCache) GetUser(ctx context.Context, id string) (*domain.User, bool, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, false, nil
		}
		c.errs.Add(1)
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		c.errs.Add(1)
		return nil, false, fmt.Errorf("cache unmarshal: %w", err)
	}
	c.hits.Add(1)
	return &u, true, nil
}

func (c *ProfileCache) SetUser(ctx context.Context, u *domain.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		c.errs.Add(1)
		return fmt.Errorf("cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, c.key(u.ID), data, c.ttl).Err(); err != nil {
		c.errs.Add(1)
		return fmt.Errorf("cache set: %w", err)
	}
	c.sets.Add(1)
	return nil
}

func (c *ProfileCache) DeleteUser(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, c.key(id)).Err(); err != nil {
		c.errs.Add(1)
		return fmt.Errorf("cache delete: %w", err)
	}
	c.deletes.Add(1)
	return nil
}

func (c *ProfileCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
		Errors:  c.errs.Load(),
	}
}

func (c *ProfileCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
