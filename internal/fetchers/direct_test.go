package fetchers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

// stubCredentials serves a fixed credential table.
type stubCredentials struct {
	creds map[ticket.Platform]map[string]string
}

func (s *stubCredentials) Credentials(platform ticket.Platform) (map[string]string, bool, string) {
	c, ok := s.creds[platform]
	if !ok {
		return nil, false, "no credentials configured for " + string(platform)
	}
	return c, true, ""
}

func TestDirectFetcherSupportsAllPlatforms(t *testing.T) {
	f := NewDirectFetcher(&stubCredentials{})
	defer f.Close()
	for _, platform := range ticket.AllPlatforms() {
		assert.True(t, f.Supports(platform), platform)
	}
}

func TestDirectFetcherUnconfiguredPlatform(t *testing.T) {
	f := NewDirectFetcher(&stubCredentials{})
	defer f.Close()

	_, err := f.Fetch(context.Background(), ticket.PlatformJira, "PROJ-1", 0)
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindCredentialValidation))
	assert.False(t, ingoterrors.FallbackEligible(err), "credential problems never trigger fallback")
}

func TestDirectFetcherDelegatesToHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"key": "PROJ-1"})
	}))
	defer server.Close()

	f := NewDirectFetcher(&stubCredentials{creds: map[ticket.Platform]map[string]string{
		ticket.PlatformJira: {"url": server.URL, "email": "me@example.com", "token": "tok"},
	}})
	defer f.Close()

	raw, err := f.Fetch(context.Background(), ticket.PlatformJira, "PROJ-1", 0)
	require.NoError(t, err)
	assert.Equal(t, "PROJ-1", raw["key"])
}

func TestDirectFetcherCloseIdempotent(t *testing.T) {
	f := NewDirectFetcher(&stubCredentials{})
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}

func TestDirectFetcherName(t *testing.T) {
	f := NewDirectFetcher(&stubCredentials{})
	defer f.Close()
	assert.Equal(t, "direct", f.Name())
}
