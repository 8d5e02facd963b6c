package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

// TrelloHandler fetches one card through the Trello REST API. Trello
// authenticates with key and token query parameters rather than headers.
type TrelloHandler struct{}

// NewTrelloHandler creates the Trello REST handler.
func NewTrelloHandler() *TrelloHandler { return &TrelloHandler{} }

func (h *TrelloHandler) Platform() ticket.Platform { return ticket.PlatformTrello }

func (h *TrelloHandler) RequiredCredentials() []string {
	return []string{"key", "token"}
}

// Fetch GETs /1/cards/<shortLink> with the list, members, and labels
// expanded so normalization has the list name available.
func (h *TrelloHandler) Fetch(ctx context.Context, id string, creds map[string]string, opts Options) (map[string]interface{}, error) {
	if err := validateCredentials("trello", creds, h.RequiredCredentials()); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("key", creds["key"])
	query.Set("token", creds["token"])
	query.Set("list", "true")
	query.Set("members", "true")
	query.Set("labels", "all")

	endpoint := fmt.Sprintf("https://api.trello.com/1/cards/%s?%s", id, query.Encode())
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ingoterrors.NewPlatformAPI("trello", id, err.Error()).WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	status, body, err := doJSON(ctx, req, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, ingoterrors.NewPlatformAPI("trello", id, err.Error()).WithCause(err)
	}
	if status < 200 || status >= 300 {
		return nil, restError("trello", id, status, body)
	}
	return body, nil
}
