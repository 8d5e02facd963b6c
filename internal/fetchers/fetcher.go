// Package fetchers implements the two fetch strategies: agent-mediated
// (an AI backend relays the platform data as JSON) and direct API (REST or
// GraphQL through the handlers package). The service composes one of each
// as primary and fallback.
package fetchers

import (
	"context"
	"time"

	"github.com/catherinevee/ingot/internal/ticket"
)

// Fetcher is one fetch strategy. Implementations return the raw platform
// payload; normalization belongs to the provider.
type Fetcher interface {
	// Name identifies the strategy for logs and metrics.
	Name() string
	// Supports reports whether the strategy can serve the platform.
	Supports(platform ticket.Platform) bool
	// Fetch retrieves the raw payload for one ticket. A zero timeout means
	// the strategy default.
	Fetch(ctx context.Context, platform ticket.Platform, id string, timeout time.Duration) (map[string]interface{}, error)
	// Close releases pooled resources. Double-close is a no-op.
	Close() error
}

// MediatedPlatforms is the closed set of platforms agent-mediated fetch can
// serve, identical for every supported backend.
var MediatedPlatforms = map[ticket.Platform]struct{}{
	ticket.PlatformJira:   {},
	ticket.PlatformLinear: {},
	ticket.PlatformGitHub: {},
}

// MediatedBackends is the closed set of backends with mediated-fetch
// support. The service factory consults it when deciding topology.
var MediatedBackends = map[string]struct{}{
	"auggie": {},
	"claude": {},
	"cursor": {},
}

// SupportsMediated reports whether a backend/platform pair can use mediated
// fetch.
func SupportsMediated(backendName string, platform ticket.Platform) bool {
	if _, ok := MediatedBackends[backendName]; !ok {
		return false
	}
	_, ok := MediatedPlatforms[platform]
	return ok
}
