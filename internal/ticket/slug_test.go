package ticket

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{name: "simple", input: "Add OAuth login", max: 50, want: "add-oauth-login"},
		{name: "punctuation collapses", input: "Fix: crash!! (on startup)", max: 50, want: "fix-crash-on-startup"},
		{name: "unicode stripped", input: "héllo wörld", max: 50, want: "h-llo-w-rld"},
		{name: "emoji only", input: "🎫🎫", max: 50, want: ""},
		{name: "truncated at max", input: strings.Repeat("abc ", 30), max: 10, want: "abc-abc-ab"},
		{name: "no trailing dash after cut", input: "abcdefghi jklm", max: 10, want: "abcdefghi"},
		{name: "empty", input: "", max: 50, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.input, tt.max))
		})
	}
}

func TestBranchSlug(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		title string
		want  string
	}{
		{name: "id and title", id: "PROJ-123", title: "Add OAuth login", want: "proj-123-add-oauth-login"},
		{name: "id only", id: "PROJ-123", title: "", want: "proj-123"},
		{name: "title only symbols", id: "PROJ-123", title: "!!!", want: "proj-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BranchSlug(tt.id, tt.title))
		})
	}
}

func TestBranchSlugHashStubForEmptyID(t *testing.T) {
	got := BranchSlug("🎫🎫", "")
	assert.Regexp(t, `^ticket-[0-9a-f]{6}$`, got)
	assert.Equal(t, got, BranchSlug("🎫🎫", ""))
	assert.NotEqual(t, got, BranchSlug("🎟", ""), "different seeds give different stubs")
}

func TestBranchSlugGitRefRules(t *testing.T) {
	for _, slug := range []string{
		BranchSlug("PROJ-123", "rebase onto main..feature"),
		BranchSlug("PROJ-123", "watch the @{upstream}"),
		BranchSlug("a.lock", ""),
	} {
		assert.NotContains(t, slug, "..")
		assert.NotContains(t, slug, "@{")
		assert.False(t, strings.HasSuffix(slug, ".lock"))
		assert.False(t, strings.HasSuffix(slug, "."))
		assert.False(t, strings.HasSuffix(slug, "/"))
	}
}

func TestFileStem(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "passthrough", input: "PROJ-123", want: "PROJ-123"},
		{name: "slashes replaced", input: "owner/repo#42", want: "owner_repo_42"},
		{name: "windows reserved prefixed", input: "con", want: "_con"},
		{name: "leading dots trimmed", input: "..PROJ-1", want: "PROJ-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FileStem(tt.input))
		})
	}

	long := FileStem(strings.Repeat("a", 200))
	assert.Len(t, long, MaxFileStemLen)

	assert.Regexp(t, `^ticket-[0-9a-f]{6}$`, FileStem("🎫"))
}
