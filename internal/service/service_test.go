package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/ingot/internal/cache"
	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/providers"
	"github.com/catherinevee/ingot/internal/ticket"
)

// scriptedFetcher replays a canned payload or error and counts calls.
type scriptedFetcher struct {
	name     string
	platform ticket.Platform
	raw      map[string]interface{}
	err      error
	fetches  int
	closes   int
}

func (f *scriptedFetcher) Name() string { return f.name }

func (f *scriptedFetcher) Supports(p ticket.Platform) bool { return p == f.platform }

func (f *scriptedFetcher) Fetch(ctx context.Context, p ticket.Platform, id string, timeout time.Duration) (map[string]interface{}, error) {
	f.fetches++
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

func (f *scriptedFetcher) Close() error {
	f.closes++
	return nil
}

func jiraFetcher(name string) *scriptedFetcher {
	return &scriptedFetcher{
		name:     name,
		platform: ticket.PlatformJira,
		raw:      map[string]interface{}{"key": "PROJ-123", "summary": "Fix the widget"},
	}
}

func serviceRegistry() *providers.Registry {
	return providers.NewRegistry(providers.Deps{Logger: logger.Nop()})
}

func TestGetTicketResolvesAndCaches(t *testing.T) {
	primary := jiraFetcher("primary")
	c := cache.NewMemory(time.Hour, 0)
	s := NewTicketService(serviceRegistry(), primary, nil, c, time.Hour)
	defer s.Close()

	got, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "PROJ-123", got.ID)
	assert.Equal(t, ticket.PlatformJira, got.Platform)
	assert.Equal(t, "Fix the widget", got.Title)
	assert.Equal(t, 1, primary.fetches)

	// The second call is served from cache.
	again, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
	assert.Equal(t, 1, primary.fetches, "cache hit skips the fetcher")
}

func TestGetTicketSkipCacheStillWrites(t *testing.T) {
	primary := jiraFetcher("primary")
	c := cache.NewMemory(time.Hour, 0)
	s := NewTicketService(serviceRegistry(), primary, nil, c, time.Hour)
	defer s.Close()

	_, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{})
	require.NoError(t, err)

	// SkipCache forces a refetch but the result is stored again.
	primary.raw = map[string]interface{}{"key": "PROJ-123", "summary": "Updated title"}
	fresh, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, "Updated title", fresh.Title)
	assert.Equal(t, 2, primary.fetches)

	cached, ok := c.Get(cache.NewKey(ticket.PlatformJira, "PROJ-123"))
	require.True(t, ok)
	assert.Equal(t, "Updated title", cached.Title, "skip-cache fetch refreshed the entry")
}

func TestGetTicketTTLOverride(t *testing.T) {
	primary := jiraFetcher("primary")
	c := cache.NewMemory(time.Hour, 0)
	s := NewTicketService(serviceRegistry(), primary, nil, c, time.Hour)
	defer s.Close()

	_, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{TTLOverride: 5 * time.Minute})
	require.NoError(t, err)

	entry, ok := c.GetFull(cache.NewKey(ticket.PlatformJira, "PROJ-123"))
	require.True(t, ok)
	assert.WithinDuration(t, entry.CachedAt.Add(5*time.Minute), entry.ExpiresAt, time.Second)
}

func TestGetTicketNilCache(t *testing.T) {
	primary := jiraFetcher("primary")
	s := NewTicketService(serviceRegistry(), primary, nil, nil, 0)
	defer s.Close()

	for i := 0; i < 2; i++ {
		_, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, primary.fetches, "no cache means every call fetches")
}

func TestGetTicketFallbackOnEligibleError(t *testing.T) {
	primary := jiraFetcher("primary")
	primary.err = ingoterrors.New(ingoterrors.KindAgentFetch, ingoterrors.SeverityMedium, "agent unavailable")
	fallback := jiraFetcher("fallback")

	s := NewTicketService(serviceRegistry(), primary, fallback, nil, 0)
	defer s.Close()

	got, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Fix the widget", got.Title)
	assert.Equal(t, 1, primary.fetches)
	assert.Equal(t, 1, fallback.fetches)
}

func TestGetTicketNoFallbackOnIneligibleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", ingoterrors.NewPlatformNotFound("JIRA", "PROJ-123")},
		{"credentials", ingoterrors.NewCredentialValidation("JIRA", "missing token")},
		{"cancellation", ingoterrors.New(ingoterrors.KindAgentFetch, ingoterrors.SeverityMedium, "interrupted").WithCause(context.Canceled)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := jiraFetcher("primary")
			primary.err = tt.err
			fallback := jiraFetcher("fallback")

			s := NewTicketService(serviceRegistry(), primary, fallback, nil, 0)
			defer s.Close()

			_, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{})
			require.Error(t, err)
			assert.Equal(t, ingoterrors.KindOf(tt.err), ingoterrors.KindOf(err))
			assert.Zero(t, fallback.fetches, "ineligible errors never reach the fallback")
		})
	}
}

func TestGetTicketFallbackErrorSurfaces(t *testing.T) {
	primary := jiraFetcher("primary")
	primary.err = ingoterrors.New(ingoterrors.KindAgentResponseParse, ingoterrors.SeverityMedium, "garbage reply")
	fallback := jiraFetcher("fallback")
	fallback.err = ingoterrors.NewPlatformNotFound("JIRA", "PROJ-123")

	s := NewTicketService(serviceRegistry(), primary, fallback, nil, 0)
	defer s.Close()

	_, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{})
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindPlatformNotFound),
		"the fallback's error is the final answer")
}

func TestGetTicketPrimaryUnsupportedUsesFallback(t *testing.T) {
	primary := jiraFetcher("primary")
	primary.platform = ticket.PlatformLinear
	fallback := jiraFetcher("fallback")

	s := NewTicketService(serviceRegistry(), primary, fallback, nil, 0)
	defer s.Close()

	_, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{})
	require.NoError(t, err)
	assert.Zero(t, primary.fetches)
	assert.Equal(t, 1, fallback.fetches)
}

func TestGetTicketNoFetcherSupportsPlatform(t *testing.T) {
	primary := jiraFetcher("primary")
	primary.platform = ticket.PlatformLinear

	s := NewTicketService(serviceRegistry(), primary, nil, nil, 0)
	defer s.Close()

	_, err := s.GetTicket(context.Background(), "PROJ-123", GetOptions{})
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindPlatformNotSupported))
	assert.Zero(t, primary.fetches)
}

func TestGetTicketUnsupportedInput(t *testing.T) {
	primary := jiraFetcher("primary")
	s := NewTicketService(serviceRegistry(), primary, nil, nil, 0)
	defer s.Close()

	_, err := s.GetTicket(context.Background(), "not a ticket at all!", GetOptions{})
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindUnsupportedInput))
	assert.Zero(t, primary.fetches)
}

func TestCloseIdempotentAndClosesBoth(t *testing.T) {
	primary := jiraFetcher("primary")
	fallback := jiraFetcher("fallback")
	s := NewTicketService(serviceRegistry(), primary, fallback, nil, 0)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, primary.closes)
	assert.Equal(t, 1, fallback.closes)
}
