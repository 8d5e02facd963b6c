package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

// graphqlRequest is the wire shape both GraphQL platforms accept.
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// graphqlClient is the shared half of the Linear and monday handlers: build
// the POST, check the error array, check for null data, then let the
// platform-specific extractor pull the entity out. A missing entity is the
// same not-found the REST handlers raise for 404.
type graphqlClient struct {
	platform string
	endpoint string
	// authorize sets the Authorization header. Both platforms use a bare
	// key with no Bearer prefix; that is their documented convention.
	authorize func(req *http.Request, creds map[string]string)
	// extract pulls the entity object out of the data payload, returning
	// nil when the entity does not exist.
	extract func(data map[string]interface{}) map[string]interface{}
}

// execute runs one GraphQL query and returns the extracted entity.
func (g *graphqlClient) execute(ctx context.Context, id string, creds map[string]string, payload graphqlRequest, opts Options) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, ingoterrors.NewPlatformAPI(g.platform, id, err.Error()).WithCause(err)
	}
	req, err := http.NewRequest(http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ingoterrors.NewPlatformAPI(g.platform, id, err.Error()).WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	g.authorize(req, creds)

	status, decoded, err := doJSON(ctx, req, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, ingoterrors.NewPlatformAPI(g.platform, id, err.Error()).WithCause(err)
	}
	if status < 200 || status >= 300 {
		return nil, restError(g.platform, id, status, decoded)
	}

	// GraphQL reports logical failures in-band after HTTP success.
	if errs := ticket.SliceAt(decoded, "errors"); len(errs) > 0 {
		message := "GraphQL error"
		if first, ok := errs[0].(map[string]interface{}); ok {
			if m := ticket.StringAt(first, "message", ""); m != "" {
				message = m
			}
		}
		return nil, ingoterrors.NewPlatformAPI(g.platform, id, message).
			WithDetail("graphql_errors", errs)
	}

	data := ticket.MapAt(decoded, "data")
	if data == nil {
		return nil, ingoterrors.NewPlatformAPI(g.platform, id, "response has no data object")
	}

	entity := g.extract(data)
	if entity == nil {
		return nil, ingoterrors.NewPlatformNotFound(g.platform, id)
	}
	return entity, nil
}

// LinearHandler fetches one issue through the Linear GraphQL API.
type LinearHandler struct {
	client graphqlClient
}

// NewLinearHandler creates the Linear GraphQL handler.
func NewLinearHandler() *LinearHandler {
	return &LinearHandler{
		client: graphqlClient{
			platform: "linear",
			endpoint: "https://api.linear.app/graphql",
			authorize: func(req *http.Request, creds map[string]string) {
				req.Header.Set("Authorization", creds["api_key"])
			},
			extract: func(data map[string]interface{}) map[string]interface{} {
				return ticket.MapAt(data, "issueByIdentifier")
			},
		},
	}
}

func (h *LinearHandler) Platform() ticket.Platform { return ticket.PlatformLinear }

func (h *LinearHandler) RequiredCredentials() []string {
	return []string{"api_key"}
}

const linearIssueQuery = `query IssueByIdentifier($id: String!) {
  issueByIdentifier(id: $id) {
    identifier
    title
    description
    url
    createdAt
    updatedAt
    state { name type }
    assignee { name displayName }
    labels { nodes { name } }
    team { key }
    priorityLabel
  }
}`

// Fetch queries issueByIdentifier for the given TEAM-123 identifier.
func (h *LinearHandler) Fetch(ctx context.Context, id string, creds map[string]string, opts Options) (map[string]interface{}, error) {
	if err := validateCredentials("linear", creds, h.RequiredCredentials()); err != nil {
		return nil, err
	}
	return h.client.execute(ctx, id, creds, graphqlRequest{
		Query:     linearIssueQuery,
		Variables: map[string]interface{}{"id": id},
	}, opts)
}

// MondayHandler fetches one board item through the monday.com GraphQL API.
type MondayHandler struct {
	client graphqlClient
}

// NewMondayHandler creates the monday.com GraphQL handler.
func NewMondayHandler() *MondayHandler {
	return &MondayHandler{
		client: graphqlClient{
			platform: "monday",
			endpoint: "https://api.monday.com/v2",
			authorize: func(req *http.Request, creds map[string]string) {
				req.Header.Set("Authorization", creds["api_token"])
			},
			extract: func(data map[string]interface{}) map[string]interface{} {
				items := ticket.SliceAt(data, "items")
				if len(items) == 0 {
					return nil
				}
				item, _ := items[0].(map[string]interface{})
				return item
			},
		},
	}
}

func (h *MondayHandler) Platform() ticket.Platform { return ticket.PlatformMonday }

func (h *MondayHandler) RequiredCredentials() []string {
	return []string{"api_token"}
}

const mondayItemQuery = `query Item($ids: [ID!]) {
  items(ids: $ids) {
    id
    name
    created_at
    updated_at
    url
    board { id name }
    group { title }
    column_values { id type text }
  }
}`

// Fetch queries items for the item half of the board:item canonical id.
func (h *MondayHandler) Fetch(ctx context.Context, id string, creds map[string]string, opts Options) (map[string]interface{}, error) {
	if err := validateCredentials("monday", creds, h.RequiredCredentials()); err != nil {
		return nil, err
	}
	itemID := id
	if m := mondayCanonicalID(id); m != "" {
		itemID = m
	}
	return h.client.execute(ctx, id, creds, graphqlRequest{
		Query:     mondayItemQuery,
		Variables: map[string]interface{}{"ids": []string{itemID}},
	}, opts)
}

// mondayCanonicalID extracts the item half of board:item, or empty when the
// id is not in canonical form.
func mondayCanonicalID(id string) string {
	if idx := strings.LastIndex(id, ":"); idx >= 0 {
		return id[idx+1:]
	}
	return ""
}
