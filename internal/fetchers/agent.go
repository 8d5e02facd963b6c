package fetchers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/catherinevee/ingot/internal/backend"
	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/providers"
	"github.com/catherinevee/ingot/internal/ticket"
)

// DefaultAgentTimeout is the per-fetch backend budget when the caller does
// not override it.
const DefaultAgentTimeout = 60 * time.Second

// outerTimeoutBuffer pads the cooperative deadline beyond the backend's own
// budget so the backend gets to time out first and report cleanly.
const outerTimeoutBuffer = 10 * time.Second

// requiredFields lists the keys an agent reply must carry per platform.
var requiredFields = map[ticket.Platform][]string{
	ticket.PlatformJira:   {"key", "summary"},
	ticket.PlatformLinear: {"identifier", "title"},
	ticket.PlatformGitHub: {"number", "title"},
}

var (
	taggedFenceRe   = regexp.MustCompile("(?s)```json\\s*\\n(.*?)```")
	untaggedFenceRe = regexp.MustCompile("(?s)```(?:[a-zA-Z0-9_-]*)\\s*\\n(.*?)```")
)

// AgentFetcher fetches tickets by prompting an AI backend to relay the
// platform data as a JSON object. One struct serves all three backends; the
// variants differ only in display name and whether the per-call timeout is
// forwarded to the backend (Auggie relies on the outer deadline alone).
type AgentFetcher struct {
	displayName          string
	backend              backend.Backend
	registry             *providers.Registry
	passTimeoutToBackend bool
	log                  logger.Logger
}

// NewAgentFetcher builds a mediated fetcher for an arbitrary backend,
// forwarding the per-call timeout.
func NewAgentFetcher(b backend.Backend, registry *providers.Registry) *AgentFetcher {
	return newAgentFetcher(b, registry, b.Name(), true)
}

// NewAuggieFetcher builds the Auggie variant, which uses only the outer
// cooperative deadline.
func NewAuggieFetcher(b backend.Backend, registry *providers.Registry) *AgentFetcher {
	return newAgentFetcher(b, registry, "Auggie", false)
}

// NewClaudeFetcher builds the Claude variant.
func NewClaudeFetcher(b backend.Backend, registry *providers.Registry) *AgentFetcher {
	return newAgentFetcher(b, registry, "Claude", true)
}

// NewCursorFetcher builds the Cursor variant.
func NewCursorFetcher(b backend.Backend, registry *providers.Registry) *AgentFetcher {
	return newAgentFetcher(b, registry, "Cursor", true)
}

func newAgentFetcher(b backend.Backend, registry *providers.Registry, name string, passTimeout bool) *AgentFetcher {
	return &AgentFetcher{
		displayName:          name,
		backend:              b,
		registry:             registry,
		passTimeoutToBackend: passTimeout,
		log:                  logger.New("fetcher.agent"),
	}
}

// Name identifies the fetcher for logs and metrics.
func (f *AgentFetcher) Name() string {
	return fmt.Sprintf("agent(%s)", f.displayName)
}

// Supports reports membership in the closed mediated-platform set.
func (f *AgentFetcher) Supports(platform ticket.Platform) bool {
	_, ok := MediatedPlatforms[platform]
	return ok
}

// Close releases nothing: the backend handle is owned by the caller.
func (f *AgentFetcher) Close() error { return nil }

// Fetch prompts the backend for the ticket and parses its reply. Backend
// failures and unparseable replies surface as the agent error kinds, all of
// which are fallback-eligible; cancellation passes through untouched.
func (f *AgentFetcher) Fetch(ctx context.Context, platform ticket.Platform, id string, timeout time.Duration) (map[string]interface{}, error) {
	if !f.Supports(platform) {
		return nil, ingoterrors.Newf(ingoterrors.KindPlatformNotSupported, ingoterrors.SeverityMedium,
			"mediated fetch does not support %s", platform)
	}
	prompt, err := f.prompt(platform, id)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = DefaultAgentTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout+outerTimeoutBuffer)
	defer cancel()

	opts := backend.RunOptions{DontSaveSession: true}
	if f.passTimeoutToBackend {
		opts.Timeout = timeout
	}

	reply, err := f.backend.RunPrintQuiet(runCtx, prompt, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, ingoterrors.Newf(ingoterrors.KindAgentFetch, ingoterrors.SeverityMedium,
				"agent fetch timed out after %ds", int((timeout + outerTimeoutBuffer).Seconds()))
		}
		return nil, f.mapBackendError(err)
	}
	if strings.TrimSpace(reply) == "" {
		return nil, ingoterrors.Newf(ingoterrors.KindAgentFetch, ingoterrors.SeverityMedium,
			"%s returned an empty reply", f.displayName)
	}

	payload, ok := ExtractJSON(reply)
	if !ok {
		return nil, ingoterrors.Newf(ingoterrors.KindAgentResponseParse, ingoterrors.SeverityMedium,
			"%s reply contains no parseable JSON object", f.displayName).
			WithDetail("reply_prefix", prefix(reply, 256))
	}
	if err := validateRequired(platform, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (f *AgentFetcher) prompt(platform ticket.Platform, id string) (string, error) {
	provider, err := f.registry.Provider(platform)
	if err != nil {
		return "", err
	}
	template := provider.PromptTemplate()
	if template == "" {
		return "", ingoterrors.Newf(ingoterrors.KindPlatformNotSupported, ingoterrors.SeverityMedium,
			"%s has no agent prompt template", platform)
	}
	return strings.ReplaceAll(template, "{ticket_id}", id), nil
}

// mapBackendError folds the backend's typed errors into the agent error
// kinds the fallback policy understands.
func (f *AgentFetcher) mapBackendError(err error) error {
	switch ingoterrors.KindOf(err) {
	case ingoterrors.KindBackendNotInstalled, ingoterrors.KindBackendNotConfigured:
		return ingoterrors.Newf(ingoterrors.KindAgentIntegration, ingoterrors.SeverityHigh,
			"%s backend is not usable", f.displayName).WithCause(err)
	case ingoterrors.KindBackendTimeout, ingoterrors.KindBackendRateLimit:
		return ingoterrors.Newf(ingoterrors.KindAgentFetch, ingoterrors.SeverityMedium,
			"%s invocation failed", f.displayName).WithCause(err)
	case ingoterrors.KindAgentFetch, ingoterrors.KindAgentIntegration, ingoterrors.KindAgentResponseParse:
		return err
	default:
		return ingoterrors.Newf(ingoterrors.KindAgentFetch, ingoterrors.SeverityMedium,
			"%s invocation failed", f.displayName).WithCause(err)
	}
}

func validateRequired(platform ticket.Platform, payload map[string]interface{}) error {
	for _, field := range requiredFields[platform] {
		value, ok := payload[field]
		if !ok || value == nil {
			return ingoterrors.Newf(ingoterrors.KindAgentResponseParse, ingoterrors.SeverityMedium,
				"agent reply for %s is missing required field %q", platform, field)
		}
		if s, isString := value.(string); isString && strings.TrimSpace(s) == "" {
			return ingoterrors.Newf(ingoterrors.KindAgentResponseParse, ingoterrors.SeverityMedium,
				"agent reply for %s has empty required field %q", platform, field)
		}
	}
	return nil
}

// ExtractJSON pulls the first JSON object out of free-form agent text.
// Priority order: json-tagged fenced blocks, then untagged fenced blocks,
// then the first balanced brace span that parses as an object.
func ExtractJSON(text string) (map[string]interface{}, bool) {
	for _, m := range taggedFenceRe.FindAllStringSubmatch(text, -1) {
		if obj, ok := parseObject(m[1]); ok {
			return obj, true
		}
	}
	for _, m := range untaggedFenceRe.FindAllStringSubmatch(text, -1) {
		if obj, ok := parseObject(m[1]); ok {
			return obj, true
		}
	}
	if span := balancedBraceSpan(text); span != "" {
		if obj, ok := parseObject(span); ok {
			return obj, true
		}
	}
	return nil, false
}

func parseObject(candidate string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &obj); err != nil {
		return nil, false
	}
	if obj == nil {
		return nil, false
	}
	return obj, true
}

// balancedBraceSpan finds the first top-level { ... } span, tracking string
// literals so braces inside JSON strings do not unbalance the scan.
func balancedBraceSpan(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

func prefix(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
