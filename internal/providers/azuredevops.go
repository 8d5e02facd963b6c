package providers

import (
	"fmt"
	"regexp"
	"strings"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

var (
	azureShortIDRe = regexp.MustCompile(`^AB#(\d+)$`)
	azureFullIDRe  = regexp.MustCompile(`^([^/\s]+)/([^/\s#]+)#(\d+)$`)
	azureURLRe     = regexp.MustCompile(`^https?://dev\.azure\.com/([^/\s]+)/([^/\s]+)/_workitems/edit/(\d+)`)
)

var azureStateTable = map[string]ticket.Status{
	"new":       ticket.StatusOpen,
	"to do":     ticket.StatusOpen,
	"proposed":  ticket.StatusOpen,
	"approved":  ticket.StatusOpen,
	"active":    ticket.StatusInProgress,
	"doing":     ticket.StatusInProgress,
	"committed": ticket.StatusInProgress,
	"resolved":  ticket.StatusReview,
	"done":      ticket.StatusDone,
	"closed":    ticket.StatusClosed,
	"removed":   ticket.StatusClosed,
	"blocked":   ticket.StatusBlocked,
}

var azureTypeTable = map[string]ticket.Type{
	"bug":        ticket.TypeBug,
	"user story": ticket.TypeFeature,
	"feature":    ticket.TypeFeature,
	"epic":       ticket.TypeFeature,
	"task":       ticket.TypeTask,
	"issue":      ticket.TypeTask,
}

// AzureDevOpsProvider recognizes Azure DevOps work item references and
// normalizes work item REST payloads. AB#n shorthand needs the organization
// and project configured since the canonical id carries both.
type AzureDevOpsProvider struct {
	organization string
	project      string
}

// NewAzureDevOpsProvider is the registry factory for Azure DevOps.
func NewAzureDevOpsProvider(deps Deps) (Provider, error) {
	return &AzureDevOpsProvider{
		organization: strings.TrimSpace(deps.AzureOrganization),
		project:      strings.TrimSpace(deps.AzureProject),
	}, nil
}

func (p *AzureDevOpsProvider) Platform() ticket.Platform { return ticket.PlatformAzureDevOps }
func (p *AzureDevOpsProvider) Name() string              { return "Azure DevOps" }

// PromptTemplate is empty: Azure DevOps has no mediated-fetch support.
func (p *AzureDevOpsProvider) PromptTemplate() string { return "" }

// CanHandle accepts work item URLs, org/project#n references, and AB#n when
// organization and project defaults are configured.
func (p *AzureDevOpsProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if azureURLRe.MatchString(input) || azureFullIDRe.MatchString(input) {
		return true
	}
	if azureShortIDRe.MatchString(input) {
		return p.organization != "" && p.project != ""
	}
	return false
}

// ParseInput converts an accepted input to the canonical org/project#id form.
func (p *AzureDevOpsProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if m := azureURLRe.FindStringSubmatch(input); m != nil {
		return fmt.Sprintf("%s/%s#%s", m[1], m[2], m[3]), nil
	}
	if m := azureFullIDRe.FindStringSubmatch(input); m != nil {
		return fmt.Sprintf("%s/%s#%s", m[1], m[2], m[3]), nil
	}
	if m := azureShortIDRe.FindStringSubmatch(input); m != nil {
		if p.organization == "" || p.project == "" {
			return "", ingoterrors.NewTicketIDFormat("azure_devops", input,
				"AB#n shorthand needs configured organization and project")
		}
		return fmt.Sprintf("%s/%s#%s", p.organization, p.project, m[1]), nil
	}
	return "", ingoterrors.NewTicketIDFormat("azure_devops", input, "not an Azure DevOps work item reference or URL")
}

// Normalize converts a work item REST payload to the common ticket shape.
func (p *AzureDevOpsProvider) Normalize(raw map[string]interface{}, id string) (*ticket.Ticket, error) {
	workItemID := strings.TrimSpace(ticket.StringAt(raw, "id", ""))
	canonical := strings.TrimSpace(id)
	if canonical == "" {
		if workItemID == "" {
			return nil, ingoterrors.NewValidation("azure_devops", "payload has no work item id")
		}
		if p.organization == "" || p.project == "" {
			return nil, ingoterrors.NewValidation("azure_devops", "cannot determine organization/project for work item")
		}
		canonical = fmt.Sprintf("%s/%s#%s", p.organization, p.project, workItemID)
	}

	fields := ticket.MapAt(raw, "fields")
	if fields == nil {
		fields = map[string]interface{}{}
	}

	// System.Tags is one semicolon-joined string.
	var labels []string
	if tags := stringField(fields, "System.Tags"); tags != "" {
		for _, tag := range strings.Split(tags, ";") {
			labels = append(labels, strings.TrimSpace(tag))
		}
	}

	assignee := ""
	if assigned, ok := fields["System.AssignedTo"].(map[string]interface{}); ok {
		assignee = ticket.StringAt(assigned, "displayName", "")
	} else {
		assignee = stringField(fields, "System.AssignedTo")
	}

	metadata := map[string]interface{}{
		"work_item_type": stringField(fields, "System.WorkItemType"),
		"state":          stringField(fields, "System.State"),
		"area_path":      stringField(fields, "System.AreaPath"),
		"iteration_path": stringField(fields, "System.IterationPath"),
	}

	t := &ticket.Ticket{
		ID:          canonical,
		Platform:    ticket.PlatformAzureDevOps,
		URL:         p.workItemURL(raw, canonical),
		Title:       stringField(fields, "System.Title"),
		Description: stringField(fields, "System.Description"),
		Status:      azureStatus(stringField(fields, "System.State")),
		Type:        azureType(stringField(fields, "System.WorkItemType")),
		Assignee:    assignee,
		Labels:      ticket.CleanLabels(labels),
		CreatedAt:   ticket.ParseTimestamp(stringField(fields, "System.CreatedDate")),
		UpdatedAt:   ticket.ParseTimestamp(stringField(fields, "System.ChangedDate")),
		Metadata:    metadata,
	}
	return t, nil
}

func (p *AzureDevOpsProvider) workItemURL(raw map[string]interface{}, canonical string) string {
	if href := ticket.StringAt(raw, "_links.html.href", ""); href != "" {
		return href
	}
	m := azureFullIDRe.FindStringSubmatch(canonical)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("https://dev.azure.com/%s/%s/_workitems/edit/%s", m[1], m[2], m[3])
}

// stringField reads a flat field whose key contains dots, which rules out
// the dotted-path helper.
func stringField(fields map[string]interface{}, key string) string {
	v, ok := fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func azureStatus(state string) ticket.Status {
	if status, ok := azureStateTable[strings.ToLower(strings.TrimSpace(state))]; ok {
		return status
	}
	return ticket.StatusUnknown
}

func azureType(name string) ticket.Type {
	if tt, ok := azureTypeTable[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tt
	}
	return ticket.TypeUnknown
}
