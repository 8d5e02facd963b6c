// Package providers holds the per-platform components that recognize, parse,
// and normalize ticket references. Providers are pure with respect to the
// network: fetching lives in the fetchers and handlers packages.
package providers

import (
	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/ticket"
)

// UserPrompter is the user-interaction capability injected into providers
// that may need to disambiguate input. Implementations live in the CLI layer.
type UserPrompter interface {
	// Choose asks the user to pick one of the options and returns its index.
	Choose(question string, options []string) (int, error)
}

// Deps carries the optional capabilities and configured defaults a provider
// factory may consume. Providers take what they need and ignore the rest.
type Deps struct {
	Logger   logger.Logger
	Prompter UserPrompter

	// Jira
	JiraDefaultProject string
	JiraBaseURL        string

	// GitHub
	GitHubDefaultOwner string
	GitHubDefaultRepo  string
	// GitHubHost allows a GitHub Enterprise host besides github.com.
	GitHubHost string

	// Azure DevOps
	AzureOrganization string
	AzureProject      string

	// Monday
	MondayAccountSlug string
}

// Provider is the per-platform recognize/parse/normalize contract. Instances
// are created once by the registry and must hold no per-request state.
type Provider interface {
	// Platform returns the platform tag this provider serves.
	Platform() ticket.Platform
	// Name returns a human-readable provider name.
	Name() string
	// CanHandle reports whether the input string belongs to this provider.
	CanHandle(input string) bool
	// ParseInput converts an accepted input to the canonical ticket id.
	ParseInput(input string) (string, error)
	// Normalize converts raw platform data to the common ticket shape. The
	// id hint is the canonical id from ParseInput and may fill gaps in the
	// raw payload; a payload with no usable identifier is an error.
	Normalize(raw map[string]interface{}, id string) (*ticket.Ticket, error)
	// PromptTemplate returns the agent prompt with a {ticket_id} slot, or
	// empty when the platform has no mediated-fetch support.
	PromptTemplate() string
}

// Factory builds a provider from its dependencies. The registry stores
// factories and instantiates lazily.
type Factory func(deps Deps) (Provider, error)
