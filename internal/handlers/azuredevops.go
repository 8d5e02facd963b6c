package handlers

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

var azureCanonicalRe = regexp.MustCompile(`^([^/\s]+)/([^/\s#]+)#(\d+)$`)

// AzureDevOpsHandler fetches one work item through the Azure DevOps REST
// API. Auth is basic with an empty user and the PAT as password, and the
// api-version query parameter is mandatory.
type AzureDevOpsHandler struct{}

// NewAzureDevOpsHandler creates the Azure DevOps REST handler.
func NewAzureDevOpsHandler() *AzureDevOpsHandler { return &AzureDevOpsHandler{} }

func (h *AzureDevOpsHandler) Platform() ticket.Platform { return ticket.PlatformAzureDevOps }

func (h *AzureDevOpsHandler) RequiredCredentials() []string {
	return []string{"organization", "pat"}
}

// Fetch GETs /_apis/wit/workitems/<id>?api-version=7.0&$expand=links.
func (h *AzureDevOpsHandler) Fetch(ctx context.Context, id string, creds map[string]string, opts Options) (map[string]interface{}, error) {
	if err := validateCredentials("azure_devops", creds, h.RequiredCredentials()); err != nil {
		return nil, err
	}
	m := azureCanonicalRe.FindStringSubmatch(id)
	if m == nil {
		return nil, ingoterrors.NewTicketIDFormat("azure_devops", id, "expected org/project#id")
	}

	endpoint := fmt.Sprintf(
		"https://dev.azure.com/%s/%s/_apis/wit/workitems/%s?api-version=7.0&$expand=links",
		m[1], m[2], m[3])
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ingoterrors.NewPlatformAPI("azure_devops", id, err.Error()).WithCause(err)
	}
	req.SetBasicAuth("", creds["pat"])
	req.Header.Set("Accept", "application/json")

	status, body, err := doJSON(ctx, req, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, ingoterrors.NewPlatformAPI("azure_devops", id, err.Error()).WithCause(err)
	}
	if status < 200 || status >= 300 {
		return nil, restError("azure_devops", id, status, body)
	}
	return body, nil
}
