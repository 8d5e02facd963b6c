// Package detect classifies free-form user input strings to the issue
// tracking platform that owns them. Detection is purely format based: the
// detector looks at the shape of the string, never at its content on the
// remote platform.
package detect

import (
	"regexp"
	"strings"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

// MatchKind says which pattern tier claimed the input.
type MatchKind string

const (
	MatchURL MatchKind = "url"
	MatchID  MatchKind = "id"
)

// pattern binds a compiled regexp to the platform that declared it.
type pattern struct {
	platform ticket.Platform
	re       *regexp.Regexp
}

// URL patterns are anchored on scheme and host so that one platform's URL
// can never be claimed by another's pattern. Declared order is the ambiguity
// tie-break and is part of the contract.
var urlPatterns = []pattern{
	{ticket.PlatformJira, regexp.MustCompile(`^https?://[\w.-]+\.atlassian\.net/(?:browse|jira/software/projects/[^/]+/boards/\d+)/([A-Z][A-Z0-9]*-\d+)`)},
	{ticket.PlatformGitHub, regexp.MustCompile(`^https?://(?:www\.)?github\.com/([^/\s]+)/([^/\s]+)/(?:issues|pull)/(\d+)`)},
	{ticket.PlatformLinear, regexp.MustCompile(`^https?://linear\.app/[^/\s]+/issue/([A-Z][A-Z0-9]*-\d+)`)},
	{ticket.PlatformAzureDevOps, regexp.MustCompile(`^https?://dev\.azure\.com/([^/\s]+)/([^/\s]+)/_workitems/edit/(\d+)`)},
	{ticket.PlatformMonday, regexp.MustCompile(`^https?://([\w-]+)\.monday\.com/boards/(\d+)(?:/pulses/(\d+))?`)},
	{ticket.PlatformTrello, regexp.MustCompile(`^https?://trello\.com/c/([A-Za-z0-9]{8})`)},
}

// ID patterns require a full-string match: partial claims like ENG-123abc
// must not be accepted. Jira is declared before Linear; the two share the
// PROJECT-123 shape and disambiguation happens upstream.
var idPatterns = []pattern{
	{ticket.PlatformJira, regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)},
	{ticket.PlatformLinear, regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)},
	{ticket.PlatformAzureDevOps, regexp.MustCompile(`^AB#\d+$`)},
	{ticket.PlatformGitHub, regexp.MustCompile(`^[^/\s]+/[^/\s#]+#\d+$`)},
	{ticket.PlatformGitHub, regexp.MustCompile(`^#\d+$`)},
	{ticket.PlatformTrello, regexp.MustCompile(`^[A-Za-z0-9]{8}$`)},
}

// Detect classifies an input string to a platform. URL patterns win over ID
// patterns; inside a tier the first declared match wins.
func Detect(input string) (ticket.Platform, MatchKind, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", "", ingoterrors.NewUnsupportedInput(input, ticket.PlatformNames())
	}
	for _, p := range urlPatterns {
		if p.re.MatchString(trimmed) {
			return p.platform, MatchURL, nil
		}
	}
	for _, p := range idPatterns {
		if p.re.MatchString(trimmed) {
			return p.platform, MatchID, nil
		}
	}
	return "", "", ingoterrors.NewUnsupportedInput(trimmed, ticket.PlatformNames())
}

// Candidates returns every platform whose patterns claim the input, URL tier
// first, without duplicates. Callers that want to disambiguate the shared
// Jira/Linear id shape use this instead of Detect.
func Candidates(input string) []ticket.Platform {
	trimmed := strings.TrimSpace(input)
	var out []ticket.Platform
	seen := make(map[ticket.Platform]struct{})
	appendMatch := func(p ticket.Platform) {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, p := range urlPatterns {
		if p.re.MatchString(trimmed) {
			appendMatch(p.platform)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, p := range idPatterns {
		if p.re.MatchString(trimmed) {
			appendMatch(p.platform)
		}
	}
	return out
}
