package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/ticket"
)

// evictionProbability is the chance a Set triggers the lazy eviction scan.
const evictionProbability = 0.10

// evictionSlack lets the directory overshoot maxSize by 10% before a scan
// does any work, so most Sets stay cheap.
const evictionSlack = 1.10

// FileOption customizes a file cache.
type FileOption func(*File)

// WithRand replaces the eviction coin-flip source. Tests pass a seeded
// source to make eviction deterministic.
func WithRand(r *rand.Rand) FileOption {
	return func(c *File) { c.rand = r }
}

// File is the on-disk cache variant: one JSON file per entry under a single
// directory. Writes go through a temp file and rename so a crash never
// leaves a half-written entry; reads bump the file's mtime so eviction
// approximates LRU.
type File struct {
	dir        string
	defaultTTL time.Duration
	maxSize    int
	rand       *rand.Rand
	log        logger.Logger

	mu    sync.Mutex
	stats Stats
}

type fileEnvelope struct {
	Ticket    map[string]interface{} `json:"ticket"`
	CachedAt  time.Time              `json:"cached_at"`
	ExpiresAt time.Time              `json:"expires_at"`
	Etag      string                 `json:"etag,omitempty"`
}

// DefaultDir returns the conventional cache directory under the user's
// home, falling back to a path relative to the working directory when the
// home cannot be resolved.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ingot-cache"
	}
	return filepath.Join(home, ".ingot-cache")
}

// NewFile creates a file cache rooted at dir, creating it if needed.
// maxSize 0 disables eviction.
func NewFile(dir string, defaultTTL time.Duration, maxSize int, opts ...FileOption) (*File, error) {
	if dir == "" {
		dir = DefaultDir()
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	c := &File{
		dir:        dir,
		defaultTTL: defaultTTL,
		maxSize:    maxSize,
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		log:        logger.New("cache.file"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *File) Dir() string { return c.dir }

// path maps a key to its entry file: the uppercase platform name, an
// underscore, and the first 32 hex characters of the ticket id's SHA-256.
// Hashing sidesteps ids that are not filesystem-safe.
func (c *File) path(key Key) string {
	sum := sha256.Sum256([]byte(key.TicketID))
	name := key.Platform.String() + "_" + hex.EncodeToString(sum[:])[:32] + ".json"
	return filepath.Join(c.dir, name)
}

// Get loads the cached ticket. Expired or unreadable entries are removed
// and count as misses. A hit refreshes the file's mtime.
func (c *File) Get(key Key) (*ticket.Ticket, bool) {
	entry, ok := c.load(key, true)
	if !ok {
		return nil, false
	}
	return entry.Ticket, true
}

// GetFull loads the entry with envelope metadata.
func (c *File) GetFull(key Key) (*Entry, bool) {
	return c.load(key, true)
}

func (c *File) load(key Key, countStats bool) (*Entry, bool) {
	path := c.path(key)
	if countStats {
		c.count(func(s *Stats) { s.Gets++ })
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if countStats {
			c.count(func(s *Stats) { s.Misses++ })
		}
		return nil, false
	}
	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.log.Warn("dropping corrupt cache entry",
			logger.String("path", path), logger.Err(err))
		_ = os.Remove(path)
		if countStats {
			c.count(func(s *Stats) { s.Misses++ })
		}
		return nil, false
	}
	if time.Now().UTC().After(env.ExpiresAt) {
		_ = os.Remove(path)
		if countStats {
			c.count(func(s *Stats) { s.Expired++; s.Misses++ })
		}
		return nil, false
	}
	t, err := ticket.FromMap(env.Ticket)
	if err != nil {
		c.log.Warn("dropping unreadable cache entry",
			logger.String("path", path), logger.Err(err))
		_ = os.Remove(path)
		if countStats {
			c.count(func(s *Stats) { s.Misses++ })
		}
		return nil, false
	}
	// Recently-read entries should survive eviction longest.
	now := time.Now()
	_ = os.Chtimes(path, now, now)
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

// Set persists the ticket atomically. The ticket's metadata is marshaled
// as-is, so a payload carrying non-serializable values fails encoding; that
// failure is logged and absorbed rather than propagated, and no temp file
// survives it.
func (c *File) Set(t *ticket.Ticket, ttl time.Duration, etag string) error {
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
			logger.String("ticket_id", t.ID),
			logger.String("platform", string(t.Platform)),
			logger.Err(err))
		return nil
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		c.log.Warn("cache write failed", logger.Err(err))
		return nil
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		c.log.Warn("cache write failed", logger.Err(err))
		return nil
	}
	if err := tmp.Close(); err != nil {
		c.log.Warn("cache write failed", logger.Err(err))
		return nil
	}
	if err := os.Rename(tmpName, c.path(NewKey(t.Platform, t.ID))); err != nil {
		c.log.Warn("cache write failed", logger.Err(err))
		return nil
	}
	c.count(func(s *Stats) { s.Sets++ })
	c.maybeEvict()
	return nil
}

// Invalidate removes one entry.
func (c *File) Invalidate(key Key) {
	_ = os.Remove(c.path(key))
}

// Clear removes every entry file. Foreign files in the directory are left
// alone.
func (c *File) Clear() {
	for _, name := range c.entryFiles("") {
		_ = os.Remove(filepath.Join(c.dir, name))
	}
}

// ClearPlatform removes every entry for one platform.
func (c *File) ClearPlatform(platform ticket.Platform) {
	for _, name := range c.entryFiles(platform.String() + "_") {
		_ = os.Remove(filepath.Join(c.dir, name))
	}
}

// ValidatorTag returns the entry's etag without counting a hit or touching
// the mtime.
func (c *File) ValidatorTag(key Key) (string, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}
	var env fileEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", false
	}
	if time.Now().UTC().After(env.ExpiresAt) {
		return "", false
	}
	return env.Etag, true
}

// Size counts the entry files on disk.
func (c *File) Size() int {
	return len(c.entryFiles(""))
}

// Stats returns a snapshot of the counters.
func (c *File) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *File) count(f func(*Stats)) {
	c.mu.Lock()
	f(&c.stats)
	c.mu.Unlock()
}

// maybeEvict runs the eviction scan on roughly one Set in ten, and only
// when the directory has overshot the size bound by the slack factor.
// Entries vanishing mid-scan (another process cleaning up) are tolerated.
func (c *File) maybeEvict() {
	if c.maxSize <= 0 {
		return
	}
	c.mu.Lock()
	roll := c.rand.Float64()
	c.mu.Unlock()
	if roll >= evictionProbability {
		return
	}

	names := c.entryFiles("")
	threshold := int(math.Ceil(float64(c.maxSize) * evictionSlack))
	if len(names) <= threshold {
		return
	}

	type aged struct {
		name  string
		mtime time.Time
	}
	entries := make([]aged, 0, len(names))
	for _, name := range names {
		info, err := os.Stat(filepath.Join(c.dir, name))
		if err != nil {
			continue
		}
		entries = append(entries, aged{name: name, mtime: info.ModTime()})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].mtime.Before(entries[j].mtime)
	})

	excess := len(entries) - c.maxSize
	for i := 0; i < excess && i < len(entries); i++ {
		if err := os.Remove(filepath.Join(c.dir, entries[i].name)); err != nil && !os.IsNotExist(err) {
			continue
		}
		c.count(func(s *Stats) { s.Evictions++ })
	}
	c.log.Debug("evicted cache entries",
		logger.Int("removed", excess),
		logger.Int("max_size", c.maxSize))
}

// entryFiles lists entry filenames carrying the given prefix, skipping temp
// files and anything that is not a cache entry.
func (c *File) entryFiles(prefix string) []string {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := de.Name()
		if !strings.HasSuffix(name, ".json") || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}
	return names
}
