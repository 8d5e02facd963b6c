package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

// JiraHandler fetches one issue through the Jira REST v2 API using basic
// auth with the account email and an API token.
type JiraHandler struct{}

// NewJiraHandler creates the Jira REST handler.
func NewJiraHandler() *JiraHandler { return &JiraHandler{} }

func (h *JiraHandler) Platform() ticket.Platform { return ticket.PlatformJira }

func (h *JiraHandler) RequiredCredentials() []string {
	return []string{"url", "email", "token"}
}

// Fetch GETs /rest/api/2/issue/<id>.
func (h *JiraHandler) Fetch(ctx context.Context, id string, creds map[string]string, opts Options) (map[string]interface{}, error) {
	if err := validateCredentials("jira", creds, h.RequiredCredentials()); err != nil {
		return nil, err
	}

	base := strings.TrimRight(creds["url"], "/")
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s", base, id)
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ingoterrors.NewPlatformAPI("jira", id, err.Error()).WithCause(err)
	}
	req.SetBasicAuth(creds["email"], creds["token"])
	req.Header.Set("Accept", "application/json")

	status, body, err := doJSON(ctx, req, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, ingoterrors.NewPlatformAPI("jira", id, err.Error()).WithCause(err)
	}
	if status < 200 || status >= 300 {
		return nil, restError("jira", id, status, body)
	}
	return body, nil
}
