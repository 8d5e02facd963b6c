package cache

import (
	"sync"
	"time"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/logger"
)

var (
	sharedMu  sync.Mutex
	sharedTTL time.Duration
	shared    *Memory
)

// SharedCacheForTestingOnly returns a process-wide in-memory cache so test
// helpers can observe each other's entries. The first call fixes the TTL;
// later calls asking for a different TTL get the existing cache back with a
// warning, or an error when strict is set. Production code composes its own
// cache through the service factory instead.
func SharedCacheForTestingOnly(ttl time.Duration, strict bool) (*Memory, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared == nil {
		shared = NewMemory(ttl, 0)
		sharedTTL = ttl
		return shared, nil
	}
	if ttl != sharedTTL {
		if strict {
			return nil, ingoterrors.Newf(ingoterrors.KindCacheConfiguration, ingoterrors.SeverityMedium,
				"shared cache already initialized with ttl %s, refusing %s", sharedTTL, ttl)
		}
		logger.New("cache.shared").Warn("shared cache ttl mismatch, keeping original",
			logger.Duration("existing", sharedTTL),
			logger.Duration("requested", ttl))
	}
	return shared, nil
}

// ResetSharedCacheForTestingOnly discards the shared cache so the next
// caller reinitializes it.
func ResetSharedCacheForTestingOnly() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = nil
	sharedTTL = 0
}
