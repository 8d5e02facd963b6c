package providers

import (
	"sort"
	"sync"

	"github.com/catherinevee/ingot/internal/detect"
	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/ticket"
)

// Registry maps platform tags to provider factories and lazily builds one
// singleton provider per platform. All state sits behind one mutex; factory
// calls happen inside the lock so concurrent first lookups build exactly one
// instance, and a failed factory caches nothing.
type Registry struct {
	mu           sync.Mutex
	factories    map[ticket.Platform]Factory
	factoryNames map[ticket.Platform]string
	instances    map[ticket.Platform]Provider
	deps         Deps
	log          logger.Logger
}

// NewRegistry creates a registry with the six built-in providers registered.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = logger.New("providers")
	}
	r := &Registry{
		factories:    make(map[ticket.Platform]Factory),
		factoryNames: make(map[ticket.Platform]string),
		instances:    make(map[ticket.Platform]Provider),
		deps:         deps,
		log:          deps.Logger,
	}
	r.Register(ticket.PlatformJira, "jira", NewJiraProvider)
	r.Register(ticket.PlatformGitHub, "github", NewGitHubProvider)
	r.Register(ticket.PlatformLinear, "linear", NewLinearProvider)
	r.Register(ticket.PlatformAzureDevOps, "azure_devops", NewAzureDevOpsProvider)
	r.Register(ticket.PlatformMonday, "monday", NewMondayProvider)
	r.Register(ticket.PlatformTrello, "trello", NewTrelloProvider)
	return r
}

// NewEmptyRegistry creates a registry with nothing registered. Tests use it
// to exercise registration semantics.
func NewEmptyRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	return &Registry{
		factories:    make(map[ticket.Platform]Factory),
		factoryNames: make(map[ticket.Platform]string),
		instances:    make(map[ticket.Platform]Provider),
		deps:         deps,
		log:          deps.Logger,
	}
}

// Register binds a factory to a platform. Re-registering the same named
// factory is a no-op; replacing it with a different one clears the cached
// instance and logs a warning.
func (r *Registry) Register(platform ticket.Platform, name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.factoryNames[platform]; ok {
		if existing == name {
			return
		}
		r.log.Warn("replacing registered provider",
			logger.String("platform", string(platform)),
			logger.String("old", existing),
			logger.String("new", name))
		delete(r.instances, platform)
	}
	r.factories[platform] = factory
	r.factoryNames[platform] = name
}

// Provider returns the singleton provider for a platform, building it on
// first use.
func (r *Registry) Provider(platform ticket.Platform) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if instance, ok := r.instances[platform]; ok {
		return instance, nil
	}
	factory, ok := r.factories[platform]
	if !ok {
		return nil, ingoterrors.NewUnsupportedPlatform(platform.String(), r.registeredLocked())
	}
	instance, err := factory(r.deps)
	if err != nil {
		return nil, err
	}
	r.instances[platform] = instance
	return instance, nil
}

// ProviderForInput detects the platform for an input string and returns its
// provider. Every detector failure surfaces as UnsupportedInput so callers
// see one stable error kind.
func (r *Registry) ProviderForInput(input string) (Provider, error) {
	platform, _, err := detect.Detect(input)
	if err != nil {
		if ingoterrors.IsKind(err, ingoterrors.KindUnsupportedInput) {
			return nil, err
		}
		return nil, ingoterrors.NewUnsupportedInput(input, ticket.PlatformNames()).WithCause(err)
	}
	return r.Provider(platform)
}

// SetDeps replaces the dependency bag used for future instantiations.
// Already-built singletons are not mutated; reset first if that matters.
func (r *Registry) SetDeps(deps Deps) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if deps.Logger == nil {
		deps.Logger = r.log
	}
	r.deps = deps
}

// SetPrompter injects the user-interaction capability for future
// instantiations. Existing singletons keep the prompter they were built with.
func (r *Registry) SetPrompter(p UserPrompter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps.Prompter = p
}

// ResetInstances drops all cached provider singletons but keeps factories.
func (r *Registry) ResetInstances() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[ticket.Platform]Provider)
}

// Clear removes all factories and instances.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[ticket.Platform]Factory)
	r.factoryNames = make(map[ticket.Platform]string)
	r.instances = make(map[ticket.Platform]Provider)
}

// RegisteredPlatforms returns the sorted serialized names of all platforms
// with a registered factory.
func (r *Registry) RegisteredPlatforms() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registeredLocked()
}

func (r *Registry) registeredLocked() []string {
	names := make([]string, 0, len(r.factories))
	for platform := range r.factories {
		names = append(names, platform.String())
	}
	sort.Strings(names)
	return names
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// GlobalRegistryForTestingOnly returns a process-wide registry with default
// deps. Production code composes a registry explicitly; the global exists so
// tests can avoid plumbing.
func GlobalRegistryForTestingOnly() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry(Deps{Logger: logger.Nop()})
	})
	return globalRegistry
}
