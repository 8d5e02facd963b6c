package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

func TestSharedCacheSingleton(t *testing.T) {
	ResetSharedCacheForTestingOnly()
	t.Cleanup(ResetSharedCacheForTestingOnly)

	first, err := SharedCacheForTestingOnly(time.Hour, false)
	require.NoError(t, err)
	second, err := SharedCacheForTestingOnly(time.Hour, false)
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, first.Set(cachedTicket("PROJ-1"), 0, ""))
	_, ok := second.Get(NewKey(ticket.PlatformJira, "PROJ-1"))
	assert.True(t, ok, "both handles see the same entries")
}

func TestSharedCacheTTLMismatch(t *testing.T) {
	ResetSharedCacheForTestingOnly()
	t.Cleanup(ResetSharedCacheForTestingOnly)

	first, err := SharedCacheForTestingOnly(time.Hour, true)
	require.NoError(t, err)

	// Strict mode refuses a conflicting TTL outright.
	_, err = SharedCacheForTestingOnly(30*time.Minute, true)
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindCacheConfiguration))

	// Non-strict keeps the original and warns.
	again, err := SharedCacheForTestingOnly(30*time.Minute, false)
	require.NoError(t, err)
	assert.Same(t, first, again)
}

func TestSharedCacheZeroTTLUsesDefault(t *testing.T) {
	ResetSharedCacheForTestingOnly()
	t.Cleanup(ResetSharedCacheForTestingOnly)

	first, err := SharedCacheForTestingOnly(0, true)
	require.NoError(t, err)
	again, err := SharedCacheForTestingOnly(DefaultTTL, true)
	require.NoError(t, err)
	assert.Same(t, first, again)
}
