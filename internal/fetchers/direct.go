package fetchers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/handlers"
	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/ticket"
)

// CredentialSource hands the direct fetcher its per-platform credentials.
// The credentials manager implements it; tests use stubs.
type CredentialSource interface {
	// Credentials returns the canonical credential map for a platform, a
	// configured flag, and the setup error message when unconfigured.
	Credentials(platform ticket.Platform) (map[string]string, bool, string)
}

// directRequestsPerSecond keeps the fetcher polite toward platform APIs
// when the workflow layer fans out.
const directRequestsPerSecond = 5

// DirectFetcher fetches tickets straight from the platform APIs. It owns a
// handler per platform, a pooled HTTP client shared across invocations, and
// a small per-platform rate limiter.
type DirectFetcher struct {
	handlers    map[ticket.Platform]handlers.Handler
	credentials CredentialSource
	client      *http.Client
	log         logger.Logger

	mu       sync.Mutex
	limiters map[ticket.Platform]*rate.Limiter
	closed   bool
}

// NewDirectFetcher builds a direct fetcher with every built-in handler
// registered.
func NewDirectFetcher(credentials CredentialSource) *DirectFetcher {
	f := &DirectFetcher{
		handlers:    make(map[ticket.Platform]handlers.Handler),
		credentials: credentials,
		client: &http.Client{
			Timeout: handlers.DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log:      logger.New("fetcher.direct"),
		limiters: make(map[ticket.Platform]*rate.Limiter),
	}
	f.RegisterHandler(handlers.NewJiraHandler())
	f.RegisterHandler(handlers.NewGitHubHandler())
	f.RegisterHandler(handlers.NewLinearHandler())
	f.RegisterHandler(handlers.NewAzureDevOpsHandler())
	f.RegisterHandler(handlers.NewMondayHandler())
	f.RegisterHandler(handlers.NewTrelloHandler())
	return f
}

// RegisterHandler binds a handler; the supported-platform set is exactly
// the set of registered handlers.
func (f *DirectFetcher) RegisterHandler(h handlers.Handler) {
	f.handlers[h.Platform()] = h
}

// Name identifies the fetcher for logs and metrics.
func (f *DirectFetcher) Name() string { return "direct" }

// Supports reports whether a handler is registered for the platform.
func (f *DirectFetcher) Supports(platform ticket.Platform) bool {
	_, ok := f.handlers[platform]
	return ok
}

// Fetch resolves credentials and delegates to the platform handler under
// the shared client.
func (f *DirectFetcher) Fetch(ctx context.Context, platform ticket.Platform, id string, timeout time.Duration) (map[string]interface{}, error) {
	handler, ok := f.handlers[platform]
	if !ok {
		return nil, ingoterrors.Newf(ingoterrors.KindPlatformNotSupported, ingoterrors.SeverityMedium,
			"no direct API handler for %s", platform)
	}

	creds, configured, errMsg := f.credentials.Credentials(platform)
	if !configured {
		if errMsg == "" {
			errMsg = "no credentials configured"
		}
		return nil, ingoterrors.NewCredentialValidation(string(platform), errMsg)
	}

	if err := f.limiter(platform).Wait(ctx); err != nil {
		return nil, err
	}

	f.log.Debug("direct fetch",
		logger.String("platform", string(platform)),
		logger.String("ticket_id", id))
	return handler.Fetch(ctx, id, creds, handlers.Options{
		Timeout: timeout,
		Client:  f.client,
	})
}

// Close drops pooled connections. Safe to call more than once.
func (f *DirectFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	f.client.CloseIdleConnections()
	return nil
}

func (f *DirectFetcher) limiter(platform ticket.Platform) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	limiter, ok := f.limiters[platform]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(directRequestsPerSecond), directRequestsPerSecond)
		f.limiters[platform] = limiter
	}
	return limiter
}
