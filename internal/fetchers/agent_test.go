package fetchers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/ingot/internal/backend"
	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/logger"
	"github.com/catherinevee/ingot/internal/providers"
	"github.com/catherinevee/ingot/internal/ticket"
)

// scriptedBackend replays a canned reply or error and records its inputs.
type scriptedBackend struct {
	name    string
	reply   string
	err     error
	prompts []string
	opts    []backend.RunOptions
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) RunPrintQuiet(ctx context.Context, prompt string, opts backend.RunOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.prompts = append(b.prompts, prompt)
	b.opts = append(b.opts, opts)
	return b.reply, b.err
}

func testRegistry() *providers.Registry {
	return providers.NewRegistry(providers.Deps{Logger: logger.Nop()})
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   map[string]interface{}
		wantOK bool
	}{
		{
			name:   "tagged fence wins",
			text:   "Here you go:\n```json\n{\"key\": \"PROJ-1\"}\n```\nand also {\"key\": \"other\"}",
			want:   map[string]interface{}{"key": "PROJ-1"},
			wantOK: true,
		},
		{
			name:   "untagged fence",
			text:   "```\n{\"key\": \"PROJ-2\"}\n```",
			want:   map[string]interface{}{"key": "PROJ-2"},
			wantOK: true,
		},
		{
			name:   "bare braces",
			text:   "The issue is {\"key\": \"PROJ-3\", \"summary\": \"x\"} as requested.",
			want:   map[string]interface{}{"key": "PROJ-3", "summary": "x"},
			wantOK: true,
		},
		{
			name:   "braces inside strings do not unbalance",
			text:   `result: {"title": "use {braces} wisely", "key": "PROJ-4"}`,
			want:   map[string]interface{}{"title": "use {braces} wisely", "key": "PROJ-4"},
			wantOK: true,
		},
		{
			name:   "escaped quotes inside strings",
			text:   `{"title": "say \"hi\" {now}", "key": "PROJ-5"}`,
			want:   map[string]interface{}{"title": `say "hi" {now}`, "key": "PROJ-5"},
			wantOK: true,
		},
		{
			name:   "broken fence falls through to brace scan",
			text:   "```json\nnot json at all\n```\nbut {\"key\": \"PROJ-6\"} works",
			want:   map[string]interface{}{"key": "PROJ-6"},
			wantOK: true,
		},
		{name: "no json at all", text: "I could not find that ticket.", wantOK: false},
		{name: "array is not an object", text: "[1, 2, 3]", wantOK: false},
		{name: "empty", text: "", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestAgentFetcherSuccess(t *testing.T) {
	b := &scriptedBackend{name: "claude", reply: "```json\n{\"key\": \"PROJ-1\", \"summary\": \"hello\"}\n```"}
	f := NewClaudeFetcher(b, testRegistry())

	raw, err := f.Fetch(context.Background(), ticket.PlatformJira, "PROJ-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "hello", raw["summary"])

	require.Len(t, b.prompts, 1)
	assert.Contains(t, b.prompts[0], "PROJ-1", "template slot filled with the ticket id")
	assert.NotContains(t, b.prompts[0], "{ticket_id}")
	require.Len(t, b.opts, 1)
	assert.True(t, b.opts[0].DontSaveSession)
	assert.Equal(t, time.Minute, b.opts[0].Timeout, "claude variant forwards the timeout")
}

func TestAuggieFetcherDoesNotForwardTimeout(t *testing.T) {
	b := &scriptedBackend{name: "auggie", reply: `{"key": "PROJ-1", "summary": "x"}`}
	f := NewAuggieFetcher(b, testRegistry())

	_, err := f.Fetch(context.Background(), ticket.PlatformJira, "PROJ-1", time.Minute)
	require.NoError(t, err)
	require.Len(t, b.opts, 1)
	assert.Zero(t, b.opts[0].Timeout, "auggie relies on the outer deadline alone")
}

func TestAgentFetcherUnsupportedPlatform(t *testing.T) {
	f := NewClaudeFetcher(&scriptedBackend{name: "claude"}, testRegistry())

	assert.True(t, f.Supports(ticket.PlatformJira))
	assert.True(t, f.Supports(ticket.PlatformLinear))
	assert.True(t, f.Supports(ticket.PlatformGitHub))
	assert.False(t, f.Supports(ticket.PlatformTrello))

	_, err := f.Fetch(context.Background(), ticket.PlatformTrello, "aBcD1234", 0)
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindPlatformNotSupported))
}

func TestAgentFetcherEmptyReply(t *testing.T) {
	b := &scriptedBackend{name: "claude", reply: "   \n"}
	_, err := NewClaudeFetcher(b, testRegistry()).Fetch(context.Background(), ticket.PlatformJira, "PROJ-1", 0)
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindAgentFetch))
}

func TestAgentFetcherUnparseableReply(t *testing.T) {
	b := &scriptedBackend{name: "claude", reply: "Sorry, I could not find that ticket."}
	_, err := NewClaudeFetcher(b, testRegistry()).Fetch(context.Background(), ticket.PlatformJira, "PROJ-1", 0)
	require.Error(t, err)
	assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindAgentResponseParse))
}

func TestAgentFetcherRequiredFields(t *testing.T) {
	tests := []struct {
		name     string
		platform ticket.Platform
		reply    string
		wantErr  bool
	}{
		{name: "jira missing summary", platform: ticket.PlatformJira, reply: `{"key": "PROJ-1"}`, wantErr: true},
		{name: "jira empty summary", platform: ticket.PlatformJira, reply: `{"key": "PROJ-1", "summary": "  "}`, wantErr: true},
		{name: "linear complete", platform: ticket.PlatformLinear, reply: `{"identifier": "ENG-1", "title": "t"}`},
		{name: "github number may be numeric", platform: ticket.PlatformGitHub, reply: `{"number": 42, "title": "t"}`},
		{name: "github null title", platform: ticket.PlatformGitHub, reply: `{"number": 42, "title": null}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &scriptedBackend{name: "claude", reply: tt.reply}
			_, err := NewClaudeFetcher(b, testRegistry()).Fetch(context.Background(), tt.platform, "X-1", 0)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindAgentResponseParse))
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestAgentFetcherBackendErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		backendErr error
		wantKind   ingoterrors.Kind
	}{
		{
			name:       "not installed becomes integration",
			backendErr: ingoterrors.New(ingoterrors.KindBackendNotInstalled, ingoterrors.SeverityHigh, "missing"),
			wantKind:   ingoterrors.KindAgentIntegration,
		},
		{
			name:       "rate limit becomes agent fetch",
			backendErr: ingoterrors.New(ingoterrors.KindBackendRateLimit, ingoterrors.SeverityMedium, "limited"),
			wantKind:   ingoterrors.KindAgentFetch,
		},
		{
			name:       "timeout becomes agent fetch",
			backendErr: ingoterrors.New(ingoterrors.KindBackendTimeout, ingoterrors.SeverityMedium, "slow"),
			wantKind:   ingoterrors.KindAgentFetch,
		},
		{
			name:       "already-agent error passes through",
			backendErr: ingoterrors.New(ingoterrors.KindAgentFetch, ingoterrors.SeverityMedium, "boom"),
			wantKind:   ingoterrors.KindAgentFetch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &scriptedBackend{name: "claude", err: tt.backendErr}
			_, err := NewClaudeFetcher(b, testRegistry()).Fetch(context.Background(), ticket.PlatformJira, "PROJ-1", 0)
			require.Error(t, err)
			assert.True(t, ingoterrors.IsKind(err, tt.wantKind), "got %v", err)
			assert.True(t, ingoterrors.FallbackEligible(err), "all mapped agent errors are fallback-eligible")
		})
	}
}

func TestAgentFetcherCancellationNotEligible(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &scriptedBackend{name: "claude", reply: `{"key": "PROJ-1", "summary": "x"}`}
	_, err := NewClaudeFetcher(b, testRegistry()).Fetch(ctx, ticket.PlatformJira, "PROJ-1", 0)
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, ingoterrors.FallbackEligible(err))
}

func TestSupportsMediated(t *testing.T) {
	assert.True(t, SupportsMediated("auggie", ticket.PlatformJira))
	assert.True(t, SupportsMediated("cursor", ticket.PlatformGitHub))
	assert.False(t, SupportsMediated("auggie", ticket.PlatformTrello))
	assert.False(t, SupportsMediated("copilot", ticket.PlatformJira))
}

func TestAgentFetcherName(t *testing.T) {
	assert.Equal(t, "agent(Claude)", NewClaudeFetcher(&scriptedBackend{name: "claude"}, testRegistry()).Name())
}
