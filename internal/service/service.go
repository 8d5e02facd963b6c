// Package service wires the detector, registry, fetchers, and cache into
// the one-stop GetTicket entry point and owns the lifecycle of all of them.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/catherinevee/ingot/internal/cache"
	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/fetchers"
	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/providers"
	"github.com/catherinevee/ingot/internal/ratelimit"
	"github.com/catherinevee/ingot/internal/ticket"
)

// GetOptions tunes a single GetTicket call.
type GetOptions struct {
	// SkipCache bypasses the cache read; the fetched ticket is still stored.
	SkipCache bool
	// TTLOverride replaces the configured TTL for this call's cache write.
	TTLOverride time.Duration
	// Timeout is the per-fetch budget; zero means the fetcher default.
	Timeout time.Duration
}

// TicketService turns a free-form ticket reference into a normalized
// ticket. It owns a primary fetcher, an optional fallback fetcher, and an
// optional cache, and closes all of them on Close.
type TicketService struct {
	registry   *providers.Registry
	primary    fetchers.Fetcher
	fallback   fetchers.Fetcher
	cache      cache.Cache
	defaultTTL time.Duration
	metrics    *Metrics
	retry      *ratelimit.Policy
	log        logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewTicketService assembles a service from explicit parts. fallback and c
// may be nil; a nil cache disables memoization entirely.
func NewTicketService(registry *providers.Registry, primary, fallback fetchers.Fetcher, c cache.Cache, defaultTTL time.Duration) *TicketService {
	if defaultTTL <= 0 {
		defaultTTL = cache.DefaultTTL
	}
	return &TicketService{
		registry:   registry,
		primary:    primary,
		fallback:   fallback,
		cache:      c,
		defaultTTL: defaultTTL,
		metrics:    NewMetrics(),
		retry:      ratelimit.DefaultPolicy(),
		log:        logger.New("service"),
	}
}

// Metrics exposes the service-owned metrics registry.
func (s *TicketService) Metrics() *Metrics { return s.metrics }

// RetryPolicy returns the backoff policy callers should apply when wrapping
// GetTicket in a retry loop. The service itself never retries; it only
// classifies errors for fallback.
func (s *TicketService) RetryPolicy() *ratelimit.Policy { return s.retry }

// GetTicket resolves, fetches, normalizes, and caches one ticket.
//
// Order: provider lookup, id parse, cache read (unless skipped), fetcher
// selection, fetch with fallback on fallback-eligible errors only,
// normalize, cache write, return. Cancellation is observed at the fetch
// suspension points and always propagates unchanged.
func (s *TicketService) GetTicket(ctx context.Context, input string, opts GetOptions) (*ticket.Ticket, error) {
	requestID := uuid.NewString()
	log := s.log.WithFields(logger.String("request_id", requestID))

	provider, err := s.registry.ProviderForInput(input)
	if err != nil {
		s.metrics.requests.WithLabelValues("unknown", "error").Inc()
		return nil, err
	}
	platform := provider.Platform()

	id, err := provider.ParseInput(input)
	if err != nil {
		s.metrics.requests.WithLabelValues(string(platform), "error").Inc()
		return nil, err
	}
	log = log.WithFields(
		logger.String("platform", string(platform)),
		logger.String("ticket_id", id))

	key := cache.NewKey(platform, id)
	if s.cache != nil && !opts.SkipCache {
		if cached, ok := s.cache.Get(key); ok {
			log.Debug("cache hit")
			s.metrics.cacheHits.Inc()
			s.metrics.requests.WithLabelValues(string(platform), "cache_hit").Inc()
			return cached, nil
		}
	}

	raw, err := s.fetch(ctx, log, platform, id, opts.Timeout)
	if err != nil {
		s.metrics.requests.WithLabelValues(string(platform), "error").Inc()
		return nil, err
	}

	t, err := provider.Normalize(raw, id)
	if err != nil {
		s.metrics.requests.WithLabelValues(string(platform), "error").Inc()
		return nil, err
	}

	if s.cache != nil {
		ttl := opts.TTLOverride
		if ttl <= 0 {
			ttl = s.defaultTTL
		}
		if err := s.cache.Set(t, ttl, ""); err != nil {
			log.Warn("cache write failed", logger.Err(err))
		}
	}

	log.Info("ticket resolved", logger.String("status", string(t.Status)))
	s.metrics.requests.WithLabelValues(string(platform), "success").Inc()
	return t, nil
}

// fetch picks a fetcher per the support matrix and applies the fallback
// policy: only fallback-eligible primary errors reach the fallback fetcher;
// everything else, cancellation included, propagates unchanged.
func (s *TicketService) fetch(ctx context.Context, log logger.Logger, platform ticket.Platform, id string, timeout time.Duration) (map[string]interface{}, error) {
	primaryUsable := s.primary != nil && s.primary.Supports(platform)
	fallbackUsable := s.fallback != nil && s.fallback.Supports(platform)

	if !primaryUsable && !fallbackUsable {
		return nil, ingoterrors.Newf(ingoterrors.KindPlatformNotSupported, ingoterrors.SeverityMedium,
			"no configured fetcher supports %s", platform)
	}
	if !primaryUsable {
		return s.timedFetch(ctx, s.fallback, platform, id, timeout)
	}

	raw, err := s.timedFetch(ctx, s.primary, platform, id, timeout)
	if err == nil {
		return raw, nil
	}
	if !fallbackUsable || !ingoterrors.FallbackEligible(err) {
		return nil, err
	}

	log.Warn("primary fetch failed, trying fallback",
		logger.String("primary", s.primary.Name()),
		logger.Err(err))
	s.metrics.fallbacks.Inc()
	return s.timedFetch(ctx, s.fallback, platform, id, timeout)
}

func (s *TicketService) timedFetch(ctx context.Context, f fetchers.Fetcher, platform ticket.Platform, id string, timeout time.Duration) (map[string]interface{}, error) {
	start := time.Now()
	raw, err := f.Fetch(ctx, platform, id, timeout)
	s.metrics.fetchDuration.WithLabelValues(f.Name()).Observe(time.Since(start).Seconds())
	return raw, err
}

// Close releases the fallback and primary fetchers. Safe to call more than
// once; later calls are no-ops.
func (s *TicketService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if s.fallback != nil {
		if err := s.fallback.Close(); err != nil {
			firstErr = err
		}
	}
	if s.primary != nil {
		if err := s.primary.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
