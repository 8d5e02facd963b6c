package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
)

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		stderr string
		want   bool
	}{
		{"Error: Rate limit exceeded, retry later", true},
		{"you are being rate-limited", true},
		{"HTTP 429 Too Many Requests", true},
		{"monthly quota exceeded", true},
		{"authentication failed", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRateLimited(tt.stderr), tt.stderr)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
	assert.Equal(t, "", truncate("", 5))
}

func TestBackendNames(t *testing.T) {
	assert.Equal(t, "auggie", NewAuggieBackend().Name())
	assert.Equal(t, "claude", NewClaudeBackend().Name())
	assert.Equal(t, "cursor", NewCursorBackend().Name())
	assert.Equal(t, "custom", NewCLIBackend("custom", "/opt/bin/agent").Name())
}

func TestRunPrintQuietMissingBinary(t *testing.T) {
	b := NewCLIBackend("test", "definitely-not-a-real-binary-8f2a")

	_, err := b.RunPrintQuiet(context.Background(), "hello", RunOptions{})
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindBackendNotInstalled))
}

func TestRunPrintQuietEchoesStdout(t *testing.T) {
	// echo prints its argv, so the reply carries the prompt back.
	b := NewCLIBackend("test", "echo")

	out, err := b.RunPrintQuiet(context.Background(), "ping", RunOptions{Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.Contains(t, out, "ping")
}

func TestRunPrintQuietDontSaveSessionFlag(t *testing.T) {
	b := NewCLIBackend("test", "echo")

	out, err := b.RunPrintQuiet(context.Background(), "ping", RunOptions{DontSaveSession: true})
	require.NoError(t, err)
	assert.Contains(t, out, "--no-session")
}

func TestRunPrintQuietCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewCLIBackend("test", "sleep")
	_, err := b.RunPrintQuiet(ctx, "5", RunOptions{})
	require.ErrorIs(t, err, context.Canceled)
}

func TestRunPrintQuietTimeout(t *testing.T) {
	b := NewCLIBackend("test", "sleep")

	_, err := b.RunPrintQuiet(context.Background(), "5", RunOptions{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindBackendTimeout))
}
