package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/ticket"
)

// redisKeyPrefix namespaces our entries inside a shared Redis.
const redisKeyPrefix = "ingot:"

// redisOpTimeout bounds each Redis round trip independently of the fetch
// deadline.
const redisOpTimeout = 5 * time.Second

// Redis is the shared cache variant for teams running multiple workflow
// hosts. Entry expiry rides on Redis TTLs; the envelope keeps its own
// expires_at as well so a misconfigured server cannot serve stale entries.
type Redis struct {
	client     redis.UniversalClient
	defaultTTL time.Duration
	log        logger.Logger

	mu    sync.Mutex
	stats Stats
}

// NewRedis wraps an existing Redis client. The caller owns the client's
// lifecycle.
func NewRedis(client redis.UniversalClient, defaultTTL time.Duration) *Redis {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Redis{
		client:     client,
		defaultTTL: defaultTTL,
		log:        logger.New("cache.redis"),
	}
}

// NewRedisFromAddr dials a single Redis node.
func NewRedisFromAddr(addr, password string, db int, defaultTTL time.Duration) *Redis {
	return NewRedis(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), defaultTTL)
}

func (c *Redis) key(key Key) string {
	return redisKeyPrefix + key.String()
}

func (c *Redis) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

// Get loads the cached ticket. Connection failures degrade to a miss.
func (c *Redis) Get(key Key) (*ticket.Ticket, bool) {
	entry, ok := c.load(key, true)
	if !ok {
		return nil, false
	}
	return entry.Ticket, true
}

// GetFull loads the entry with envelope metadata.
func (c *Redis) GetFull(key Key) (*Entry, bool) {
	return c.load(key, true)
}

func (c *Redis) load(key Key, countStats bool) (*Entry, bool) {
	if countStats {
		c.count(func(s *Stats) { s.Gets++ })
	}
	ctx, cancel := c.ctx()
	defer cancel()

	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("redis get failed", logger.Err(err))
		}
		if countStats {
			c.count(func(s *Stats) { s.Misses++ })
		}
		return nil, false
	}
	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("dropping corrupt redis entry", logger.Err(err))
		_ = c.client.Del(ctx, c.key(key)).Err()
		if countStats {
			c.count(func(s *Stats) { s.Misses++ })
		}
		return nil, false
	}
	if time.Now().UTC().After(env.ExpiresAt) {
		_ = c.client.Del(ctx, c.key(key)).Err()
		if countStats {
			c.count(func(s *Stats) { s.Expired++; s.Misses++ })
		}
		return nil, false
	}
	t, err := ticket.FromMap(env.Ticket)
	if err != nil {
		_ = c.client.Del(ctx, c.key(key)).Err()
		if countStats {
			c.count(func(s *Stats) { s.Misses++ })
		}
		return nil, false
	}
	if countStats {
		c.count(func(s *Stats) { s.Hits++ })
	}
	return &Entry{
		Ticket:    t,
		CachedAt:  env.CachedAt,
		ExpiresAt: env.ExpiresAt,
		Etag:      env.Etag,
	}, true
}

// Set stores the ticket with a Redis TTL matching the envelope expiry.
// Encoding and connection failures are logged and absorbed.
func (c *Redis) Set(t *ticket.Ticket, ttl time.Duration, etag string) error {
	if t == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now().UTC()
	m := t.ToMap()
	m["platform_metadata"] = t.Metadata
	env := fileEnvelope{
		Ticket:    m,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
		Etag:      etag,
	}
	data, err := json.Marshal(&env)
	if err != nil {
		c.log.Warn("skipping cache write for unserializable ticket",
			logger.String("ticket_id", t.ID), logger.Err(err))
		return nil
	}

	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.client.Set(ctx, c.key(NewKey(t.Platform, t.ID)), data, ttl).Err(); err != nil {
		c.log.Warn("redis set failed", logger.Err(err))
		return nil
	}
	c.count(func(s *Stats) { s.Sets++ })
	return nil
}

// Invalidate drops one entry.
func (c *Redis) Invalidate(key Key) {
	ctx, cancel := c.ctx()
	defer cancel()
	_ = c.client.Del(ctx, c.key(key)).Err()
}

// Clear drops every entry under our prefix.
func (c *Redis) Clear() {
	c.deleteByPattern(redisKeyPrefix + "*")
}

// ClearPlatform drops every entry for one platform.
func (c *Redis) ClearPlatform(platform ticket.Platform) {
	c.deleteByPattern(redisKeyPrefix + platform.String() + ":*")
}

func (c *Redis) deleteByPattern(pattern string) {
	ctx, cancel := c.ctx()
	defer cancel()
	iter := c.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		_ = c.client.Del(ctx, iter.Val()).Err()
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("redis scan failed", logger.Err(err))
	}
}

// ValidatorTag returns the entry's etag without counting a hit.
func (c *Redis) ValidatorTag(key Key) (string, bool) {
	entry, ok := c.load(key, false)
	if !ok {
		return "", false
	}
	return entry.Etag, true
}

// Size counts live entries under our prefix.
func (c *Redis) Size() int {
	ctx, cancel := c.ctx()
	defer cancel()
	n := 0
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}

// Stats returns a snapshot of the counters.
func (c *Redis) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Redis) count(f func(*Stats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}
