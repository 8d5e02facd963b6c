package handlers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

var githubCanonicalRe = regexp.MustCompile(`^([^/\s]+)/([^/\s#]+)#(\d+)$`)

// GitHubHandler fetches one issue through the GitHub REST v3 API with a
// bearer token. An optional api_url credential points at a GitHub
// Enterprise API root.
type GitHubHandler struct{}

// NewGitHubHandler creates the GitHub REST handler.
func NewGitHubHandler() *GitHubHandler { return &GitHubHandler{} }

func (h *GitHubHandler) Platform() ticket.Platform { return ticket.PlatformGitHub }

func (h *GitHubHandler) RequiredCredentials() []string {
	return []string{"token"}
}

// Fetch GETs /repos/<owner>/<repo>/issues/<n>.
func (h *GitHubHandler) Fetch(ctx context.Context, id string, creds map[string]string, opts Options) (map[string]interface{}, error) {
	if err := validateCredentials("github", creds, h.RequiredCredentials()); err != nil {
		return nil, err
	}
	m := githubCanonicalRe.FindStringSubmatch(id)
	if m == nil {
		return nil, ingoterrors.NewTicketIDFormat("github", id, "expected owner/repo#n")
	}

	apiBase := strings.TrimRight(creds["api_url"], "/")
	if apiBase == "" {
		apiBase = "https://api.github.com"
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues/%s", apiBase, m[1], m[2], m[3])
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ingoterrors.NewPlatformAPI("github", id, err.Error()).WithCause(err)
	}
	req.Header.Set("Authorization", "Bearer "+creds["token"])
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	status, body, err := doJSON(ctx, req, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, ingoterrors.NewPlatformAPI("github", id, err.Error()).WithCause(err)
	}
	if status < 200 || status >= 300 {
		return nil, restError("github", id, status, body)
	}
	return body, nil
}
