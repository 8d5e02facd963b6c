package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/ticket"
)

// Memory is the in-process cache variant: an LRU-ordered map with per-entry
// TTL behind a single mutex. Tickets are deep-copied on the way in and on
// the way out; both copies happen outside the lock to keep contention low.
type Memory struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front = most recently used
	defaultTTL time.Duration
	maxSize    int
	stats      Stats
	log        logger.Logger
}

type memoryEntry struct {
	key   string
	entry Entry
}

// NewMemory creates an in-memory cache. maxSize 0 disables the size bound.
func NewMemory(defaultTTL time.Duration, maxSize int) *Memory {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &Memory{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
		log:        logger.New("cache.memory"),
	}
}

// Get returns a copy of the cached ticket. An expired entry is evicted on
// touch and counts as a miss.
func (c *Memory) Get(key Key) (*ticket.Ticket, bool) {
	entry, ok := c.lookup(key, true)
	if !ok {
		return nil, false
	}
	// Copy outside the lock; the stored ticket is never mutated in place.
	return entry.Ticket.Clone(), true
}

// GetFull returns the entry with envelope metadata.
func (c *Memory) GetFull(key Key) (*Entry, bool) {
	entry, ok := c.lookup(key, true)
	if !ok {
		return nil, false
	}
	dup := *entry
	dup.Ticket = entry.Ticket.Clone()
	return &dup, true
}

// lookup finds a live entry, refreshes its LRU position, and returns the
// stored entry by pointer. Callers copy outside the lock.
func (c *Memory) lookup(key Key, countStats bool) (*Entry, bool) {
	k := key.String()

	c.mu.Lock()
	defer c.mu.Unlock()

	if countStats {
		c.stats.Gets++
	}
	element, ok := c.entries[k]
	if !ok {
		if countStats {
			c.stats.Misses++
		}
		return nil, false
	}
	stored := element.Value.(*memoryEntry)
	if stored.entry.IsExpired() {
		c.removeLocked(k, element)
		if countStats {
			c.stats.Expired++
			c.stats.Misses++
		}
		return nil, false
	}
	c.order.MoveToFront(element)
	if countStats {
		c.stats.Hits++
	}
	return &stored.entry, true
}

// Set stores a deep copy of the ticket under its platform/id key.
func (c *Memory) Set(t *ticket.Ticket, ttl time.Duration, etag string) error {
	if t == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now().UTC()
	// The copy happens before taking the lock.
	stored := &memoryEntry{
		key: NewKey(t.Platform, t.ID).String(),
		entry: Entry{
			Ticket:    t.Clone(),
			CachedAt:  now,
			ExpiresAt: now.Add(ttl),
			Etag:      etag,
		},
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.Sets++
	if element, ok := c.entries[stored.key]; ok {
		element.Value = stored
		c.order.MoveToFront(element)
		return nil
	}
	c.entries[stored.key] = c.order.PushFront(stored)

	if c.maxSize > 0 {
		for len(c.entries) > c.maxSize {
			oldest := c.order.Back()
			if oldest == nil {
				break
			}
			c.removeLocked(oldest.Value.(*memoryEntry).key, oldest)
			c.stats.Evictions++
		}
	}
	return nil
}

// Invalidate drops one entry.
func (c *Memory) Invalidate(key Key) {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if element, ok := c.entries[k]; ok {
		c.removeLocked(k, element)
	}
}

// Clear drops everything.
func (c *Memory) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// ClearPlatform drops every entry for one platform.
func (c *Memory) ClearPlatform(platform ticket.Platform) {
	prefix := platform.String() + ":"
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, element := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			c.removeLocked(k, element)
		}
	}
}

// ValidatorTag returns the entry's etag without touching hit counters or
// LRU order.
func (c *Memory) ValidatorTag(key Key) (string, bool) {
	k := key.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	element, ok := c.entries[k]
	if !ok {
		return "", false
	}
	stored := element.Value.(*memoryEntry)
	if stored.entry.IsExpired() {
		return "", false
	}
	return stored.entry.Etag, true
}

// Size returns the number of live entries, counting expired ones that have
// not been touched yet.
func (c *Memory) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Memory) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Memory) removeLocked(key string, element *list.Element) {
	c.order.Remove(element)
	delete(c.entries, key)
}
