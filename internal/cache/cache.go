// Package cache memoizes normalized tickets for the current session. Two
// local variants (in-memory LRU and one-file-per-entry on disk) plus an
// optional Redis variant share one interface. All variants hand out deep
// copies so no caller can mutate another caller's ticket, or the cache's.
package cache

import (
	"fmt"
	"strings"
	"time"

	"github.com/catherinevee/ingot/internal/ticket"
)

// DefaultTTL is the entry lifetime when the caller passes no override.
const DefaultTTL = time.Hour

// Key addresses one cached ticket.
type Key struct {
	Platform ticket.Platform
	TicketID string
}

// NewKey builds a cache key.
func NewKey(platform ticket.Platform, ticketID string) Key {
	return Key{Platform: platform, TicketID: ticketID}
}

// String renders the canonical key form: the uppercase platform name, a
// colon, and the ticket id percent-encoded with no characters considered
// safe. Ids containing colons or slashes cannot collide this way.
func (k Key) String() string {
	return k.Platform.String() + ":" + encodeAll(k.TicketID)
}

func encodeAll(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		fmt.Fprintf(&b, "%%%02X", s[i])
	}
	return b.String()
}

// Entry is a cached ticket with its envelope metadata.
type Entry struct {
	Ticket    *ticket.Ticket `json:"ticket"`
	CachedAt  time.Time      `json:"cached_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	// Etag is an opaque validator tag reserved for conditional requests.
	Etag string `json:"etag,omitempty"`
}

// IsExpired reports whether the entry's lifetime has passed.
func (e *Entry) IsExpired() bool {
	return time.Now().UTC().After(e.ExpiresAt)
}

// Stats tracks cache performance counters.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Expired   int64 `json:"expired"`
	Sets      int64 `json:"sets"`
	Gets      int64 `json:"gets"`
}

// Cache is the ticket memoization contract.
type Cache interface {
	// Get returns a copy of the cached ticket, or miss.
	Get(key Key) (*ticket.Ticket, bool)
	// GetFull returns the entry with envelope metadata, or miss.
	GetFull(key Key) (*Entry, bool)
	// Set stores a copy of the ticket. A non-positive ttl means DefaultTTL.
	// Storage failures are absorbed (the ticket is simply not cached);
	// Set never fails a fetch that already succeeded.
	Set(t *ticket.Ticket, ttl time.Duration, etag string) error
	// Invalidate drops one entry.
	Invalidate(key Key)
	// Clear drops everything.
	Clear()
	// ClearPlatform drops every entry for one platform.
	ClearPlatform(platform ticket.Platform)
	// ValidatorTag returns the entry's etag without counting a hit.
	ValidatorTag(key Key) (string, bool)
	// Size returns the approximate number of live entries.
	Size() int
	// Stats returns a snapshot of the performance counters.
	Stats() Stats
}
