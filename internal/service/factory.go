package service

import (
	"github.com/catherinevee/ingot/internal/backend"
	"github.com/catherinevee/ingot/internal/cache"
	"github.com/catherinevee/ingot/internal/config"
	"github.com/catherinevee/ingot/internal/credentials"
	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/fetchers"
	"github.com/catherinevee/ingot/internal/providers"
	"github.com/catherinevee/ingot/internal/ratelimit"
	"github.com/catherinevee/ingot/internal/ticket"
)

// BuildOptions lets callers override pieces of the composed service.
type BuildOptions struct {
	// Backend overrides the backend constructed from config. A nil value
	// with an empty config backend name means no mediated fetcher.
	Backend backend.Backend
	// Cache replaces the cache selected by config.
	Cache cache.Cache
	// Prompter is forwarded to providers that can disambiguate input.
	Prompter providers.UserPrompter
}

// Build composes a TicketService from configuration.
//
// Topology rules: a mediated-capable backend yields a mediated primary with
// a direct-API fallback; credentials without a backend yield a direct-only
// service; neither is a configuration error. A memory cache with the
// default TTL is attached unless config or options say otherwise.
func Build(cfg *config.Config, opts BuildOptions) (*TicketService, error) {
	registry := providers.NewRegistry(providerDeps(cfg, opts.Prompter))
	creds := credentials.NewManager(staticCredentials(cfg))

	agentBackend := opts.Backend
	if agentBackend == nil && cfg.Backend.Name != "" {
		agentBackend = backendFromConfig(cfg)
	}

	var primary, fallback fetchers.Fetcher
	switch {
	case agentBackend != nil:
		if _, ok := fetchers.MediatedBackends[agentBackend.Name()]; !ok {
			return nil, ingoterrors.Newf(ingoterrors.KindConfiguration, ingoterrors.SeverityHigh,
				"backend %q has no mediated-fetch support", agentBackend.Name())
		}
		primary = mediatedFetcher(agentBackend, registry)
		if creds.HasFallbackConfigured() {
			fallback = fetchers.NewDirectFetcher(creds)
		}
	case creds.HasFallbackConfigured():
		primary = fetchers.NewDirectFetcher(creds)
	default:
		return nil, ingoterrors.Newf(ingoterrors.KindConfiguration, ingoterrors.SeverityHigh,
			"no agent backend and no platform credentials configured").
			WithHint("set backend.name in ingot.yaml or configure platform credentials")
	}

	c := opts.Cache
	if c == nil {
		var err error
		c, err = cacheFromConfig(cfg)
		if err != nil {
			return nil, err
		}
	}
	s := NewTicketService(registry, primary, fallback, c, cfg.Cache.TTL)
	s.retry = ratelimit.NewPolicy(cfg.Retry.MaxRetries, cfg.Retry.BaseDelay,
		cfg.Retry.MaxDelay, cfg.Retry.JitterFactor, cfg.Retry.RetryableStatuses)
	return s, nil
}

func mediatedFetcher(b backend.Backend, registry *providers.Registry) fetchers.Fetcher {
	switch b.Name() {
	case "auggie":
		return fetchers.NewAuggieFetcher(b, registry)
	case "claude":
		return fetchers.NewClaudeFetcher(b, registry)
	case "cursor":
		return fetchers.NewCursorFetcher(b, registry)
	default:
		return fetchers.NewAgentFetcher(b, registry)
	}
}

func backendFromConfig(cfg *config.Config) backend.Backend {
	if cfg.Backend.Binary != "" {
		return backend.NewCLIBackend(cfg.Backend.Name, cfg.Backend.Binary)
	}
	switch cfg.Backend.Name {
	case "auggie":
		return backend.NewAuggieBackend()
	case "claude":
		return backend.NewClaudeBackend()
	case "cursor":
		return backend.NewCursorBackend()
	default:
		return backend.NewCLIBackend(cfg.Backend.Name, cfg.Backend.Name)
	}
}

func cacheFromConfig(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case "", "memory":
		return cache.NewMemory(cfg.Cache.TTL, cfg.Cache.MaxEntries), nil
	case "file":
		return cache.NewFile(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.MaxEntries)
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			return nil, ingoterrors.Newf(ingoterrors.KindCacheConfiguration, ingoterrors.SeverityHigh,
				"cache backend redis requires cache.redis_addr")
		}
		return cache.NewRedisFromAddr(cfg.Cache.RedisAddr, "", cfg.Cache.RedisDB, cfg.Cache.TTL), nil
	case "none":
		return nil, nil
	default:
		return nil, ingoterrors.Newf(ingoterrors.KindCacheConfiguration, ingoterrors.SeverityHigh,
			"unknown cache backend %q", cfg.Cache.Backend)
	}
}

func providerDeps(cfg *config.Config, prompter providers.UserPrompter) providers.Deps {
	return providers.Deps{
		Prompter:           prompter,
		JiraDefaultProject: cfg.Platforms.Jira.DefaultProject,
		JiraBaseURL:        cfg.Platforms.Jira.URL,
		GitHubDefaultOwner: cfg.Platforms.GitHub.DefaultOwner,
		GitHubDefaultRepo:  cfg.Platforms.GitHub.DefaultRepo,
		GitHubHost:         cfg.Platforms.GitHub.Host,
		AzureOrganization:  cfg.Platforms.Azure.Organization,
		AzureProject:       cfg.Platforms.Azure.Project,
		MondayAccountSlug:  cfg.Platforms.Monday.AccountSlug,
	}
}

// staticCredentials projects the config's credential fields onto the
// canonical per-platform key sets.
func staticCredentials(cfg *config.Config) map[ticket.Platform]map[string]string {
	return map[ticket.Platform]map[string]string{
		ticket.PlatformJira: {
			"url":   cfg.Platforms.Jira.URL,
			"email": cfg.Platforms.Jira.Email,
			"token": cfg.Platforms.Jira.Token,
		},
		ticket.PlatformGitHub: {
			"token":   cfg.Platforms.GitHub.Token,
			"api_url": cfg.Platforms.GitHub.APIURL,
		},
		ticket.PlatformLinear: {
			"api_key": cfg.Platforms.Linear.APIKey,
		},
		ticket.PlatformAzureDevOps: {
			"organization": cfg.Platforms.Azure.Organization,
			"pat":          cfg.Platforms.Azure.PAT,
		},
		ticket.PlatformMonday: {
			"api_token": cfg.Platforms.Monday.APIToken,
		},
		ticket.PlatformTrello: {
			"key":   cfg.Platforms.Trello.Key,
			"token": cfg.Platforms.Trello.Token,
		},
	}
}
