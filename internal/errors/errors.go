package errors

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind discriminates the error taxonomy. The service layer makes fallback
// and surfacing decisions on Kind alone, never on concrete types.
type Kind string

const (
	// KindUnsupportedInput means no platform pattern claims the input string.
	KindUnsupportedInput Kind = "unsupported_input"
	// KindUnsupportedPlatform means the platform has no registered provider.
	KindUnsupportedPlatform Kind = "unsupported_platform"
	// KindTicketIDFormat means the input was claimed but could not be parsed
	// to a canonical ticket id.
	KindTicketIDFormat Kind = "ticket_id_format"
	// KindCredentialValidation means required credential keys are missing or
	// malformed.
	KindCredentialValidation Kind = "credential_validation"
	// KindPlatformNotFound means the platform answered and the ticket does
	// not exist.
	KindPlatformNotFound Kind = "platform_not_found"
	// KindPlatformAPI covers HTTP and GraphQL logical failures other than 404.
	KindPlatformAPI Kind = "platform_api"
	// KindPlatformNotSupported means no configured fetcher can serve the
	// platform.
	KindPlatformNotSupported Kind = "platform_not_supported"
	// KindAgentIntegration means the agent backend is misconfigured.
	KindAgentIntegration Kind = "agent_integration"
	// KindAgentFetch means the agent invocation failed or timed out.
	KindAgentFetch Kind = "agent_fetch"
	// KindAgentResponseParse means the agent reply was not the required JSON.
	KindAgentResponseParse Kind = "agent_response_parse"
	// KindBackendTimeout, KindBackendRateLimit, KindBackendNotInstalled, and
	// KindBackendNotConfigured originate outside the core and surface through
	// agent errors or service construction.
	KindBackendTimeout       Kind = "backend_timeout"
	KindBackendRateLimit     Kind = "backend_rate_limit"
	KindBackendNotInstalled  Kind = "backend_not_installed"
	KindBackendNotConfigured Kind = "backend_not_configured"
	// KindCacheConfiguration flags misuse of the shared cache test hook.
	KindCacheConfiguration Kind = "cache_configuration"
	// KindConfiguration covers service composition and config file problems.
	KindConfiguration Kind = "configuration"
	// KindInternal is the catch-all for bugs.
	KindInternal Kind = "internal"
)

// Severity represents how loudly an error should surface.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error is the structured error used throughout the ticket core.
type Error struct {
	Kind      Kind                   `json:"kind"`
	Severity  Severity               `json:"severity"`
	Message   string                 `json:"message"`
	Hint      string                 `json:"hint,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

// New creates a structured error of the given kind.
func New(kind Kind, severity Severity, message string) *Error {
	return &Error{
		Kind:      kind,
		Severity:  severity,
		Message:   message,
		Details:   make(map[string]interface{}),
		Timestamp: time.Now().UTC(),
	}
}

// Newf creates a structured error with a formatted message.
func Newf(kind Kind, severity Severity, format string, args ...interface{}) *Error {
	return New(kind, severity, fmt.Sprintf(format, args...))
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(cause error) *Error {
	e.cause = cause
	return e
}

// WithDetail attaches a key/value pair to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithHint attaches a user-actionable hint.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf returns the kind of an error, unwrapping as needed. Plain errors
// report KindInternal.
func KindOf(err error) Kind {
	var structured *Error
	if errors.As(err, &structured) {
		return structured.Kind
	}
	return KindInternal
}

// IsKind reports whether the error (or anything it wraps) has the kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FallbackEligible reports whether a primary-fetcher error justifies trying
// the fallback fetcher. The set is closed: agent integration, invocation,
// and parse failures only. Not-found, credential, and id-format errors
// represent conditions a different fetcher cannot fix, and cancellation is
// always re-raised.
func FallbackEligible(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	switch KindOf(err) {
	case KindAgentIntegration, KindAgentFetch, KindAgentResponseParse:
		return true
	default:
		return false
	}
}

// Convenience constructors for the kinds the core raises on hot paths.

// NewUnsupportedInput builds the detector's no-pattern-matched error.
func NewUnsupportedInput(input string, known []string) *Error {
	return Newf(KindUnsupportedInput, SeverityMedium, "no platform recognizes input %q", input).
		WithDetail("input", input).
		WithDetail("known_platforms", known)
}

// NewUnsupportedPlatform builds the registry's unknown-platform error.
func NewUnsupportedPlatform(platform string, registered []string) *Error {
	return Newf(KindUnsupportedPlatform, SeverityMedium, "platform %s has no registered provider", platform).
		WithDetail("platform", platform).
		WithDetail("registered_platforms", registered)
}

// NewTicketIDFormat builds a parse failure for a claimed input.
func NewTicketIDFormat(platform, input, reason string) *Error {
	return Newf(KindTicketIDFormat, SeverityMedium, "%s cannot parse %q: %s", platform, input, reason).
		WithDetail("platform", platform).
		WithDetail("input", input)
}

// NewPlatformNotFound builds the harmonized ticket-does-not-exist error.
func NewPlatformNotFound(platform, id string) *Error {
	return Newf(KindPlatformNotFound, SeverityMedium, "ticket %s not found on %s", id, platform).
		WithDetail("platform", platform).
		WithDetail("ticket_id", id)
}

// NewPlatformAPI builds a remote API failure carrying platform and id.
func NewPlatformAPI(platform, id, message string) *Error {
	return Newf(KindPlatformAPI, SeverityHigh, "%s API error for %s: %s", platform, id, message).
		WithDetail("platform", platform).
		WithDetail("ticket_id", id)
}

// NewCredentialValidation builds a missing-credentials error.
func NewCredentialValidation(platform, message string) *Error {
	return Newf(KindCredentialValidation, SeverityHigh, "%s credentials invalid: %s", platform, message).
		WithDetail("platform", platform)
}

// NewValidation builds a provider normalization failure (missing identifier
// and similar fatal shape problems). Reported as an id-format problem since
// the user-visible cause is the same.
func NewValidation(platform, message string) *Error {
	return Newf(KindTicketIDFormat, SeverityMedium, "%s: %s", platform, message).
		WithDetail("platform", platform)
}
