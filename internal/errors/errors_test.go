package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(KindPlatformAPI, SeverityHigh, "boom")
	assert.Equal(t, "platform_api: boom", err.Error())

	cause := stderrors.New("connection refused")
	err = err.WithCause(cause)
	assert.Equal(t, "platform_api: boom: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestKindOf(t *testing.T) {
	structured := New(KindAgentFetch, SeverityMedium, "x")
	assert.Equal(t, KindAgentFetch, KindOf(structured))
	assert.True(t, IsKind(structured, KindAgentFetch))
	assert.False(t, IsKind(structured, KindAgentIntegration))

	// Wrapped structured errors still report their kind.
	wrapped := fmt.Errorf("outer: %w", structured)
	assert.Equal(t, KindAgentFetch, KindOf(wrapped))

	// Plain errors fall back to internal.
	assert.Equal(t, KindInternal, KindOf(stderrors.New("plain")))
}

func TestWithDetailAndHint(t *testing.T) {
	err := Newf(KindTicketIDFormat, SeverityMedium, "cannot parse %q", "x").
		WithDetail("input", "x").
		WithHint("try PROJ-123")
	assert.Equal(t, "x", err.Details["input"])
	assert.Equal(t, "try PROJ-123", err.Hint)
	assert.False(t, err.Timestamp.IsZero())
}

func TestFallbackEligible(t *testing.T) {
	eligible := []Kind{KindAgentIntegration, KindAgentFetch, KindAgentResponseParse}
	for _, kind := range eligible {
		assert.True(t, FallbackEligible(New(kind, SeverityMedium, "x")), kind)
	}

	ineligible := []Kind{
		KindUnsupportedInput, KindUnsupportedPlatform, KindTicketIDFormat,
		KindCredentialValidation, KindPlatformNotFound, KindPlatformAPI,
		KindPlatformNotSupported, KindConfiguration, KindInternal,
	}
	for _, kind := range ineligible {
		assert.False(t, FallbackEligible(New(kind, SeverityMedium, "x")), kind)
	}

	assert.False(t, FallbackEligible(nil))
	assert.False(t, FallbackEligible(stderrors.New("plain")))
}

func TestFallbackEligibleCancellation(t *testing.T) {
	// Cancellation is never retried elsewhere, even when an otherwise
	// eligible kind wraps it.
	wrapped := New(KindAgentFetch, SeverityMedium, "interrupted").WithCause(context.Canceled)
	assert.False(t, FallbackEligible(wrapped))

	deadline := New(KindAgentFetch, SeverityMedium, "slow").WithCause(context.DeadlineExceeded)
	assert.False(t, FallbackEligible(deadline))
}

func TestConvenienceConstructors(t *testing.T) {
	notFound := NewPlatformNotFound("JIRA", "PROJ-404")
	assert.Equal(t, KindPlatformNotFound, notFound.Kind)
	assert.Equal(t, "JIRA", notFound.Details["platform"])
	assert.Equal(t, "PROJ-404", notFound.Details["ticket_id"])

	unsupported := NewUnsupportedInput("!!?", []string{"JIRA", "GITHUB"})
	assert.Equal(t, KindUnsupportedInput, unsupported.Kind)
	assert.Equal(t, []string{"JIRA", "GITHUB"}, unsupported.Details["known_platforms"])

	creds := NewCredentialValidation("LINEAR", "api_key missing")
	require.Equal(t, KindCredentialValidation, creds.Kind)
	assert.Equal(t, SeverityHigh, creds.Severity)
	assert.Contains(t, creds.Error(), "api_key missing")
}
