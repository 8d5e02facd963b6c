package providers

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

var (
	jiraIDRe      = regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)
	jiraNumericRe = regexp.MustCompile(`^\d+$`)
	jiraURLRe     = regexp.MustCompile(`^https?://[\w.-]+\.atlassian\.net/(?:browse|jira/software/projects/[^/]+/boards/\d+)/([A-Z][A-Z0-9]*-\d+)`)
)

var jiraStatusTable = map[string]ticket.Status{
	"to do":       ticket.StatusOpen,
	"open":        ticket.StatusOpen,
	"backlog":     ticket.StatusOpen,
	"selected":    ticket.StatusOpen,
	"in progress": ticket.StatusInProgress,
	"in review":   ticket.StatusReview,
	"code review": ticket.StatusReview,
	"review":      ticket.StatusReview,
	"done":        ticket.StatusDone,
	"resolved":    ticket.StatusDone,
	"closed":      ticket.StatusClosed,
	"won't do":    ticket.StatusClosed,
	"blocked":     ticket.StatusBlocked,
	"on hold":     ticket.StatusBlocked,
}

var jiraTypeTable = map[string]ticket.Type{
	"bug":         ticket.TypeBug,
	"defect":      ticket.TypeBug,
	"story":       ticket.TypeFeature,
	"new feature": ticket.TypeFeature,
	"feature":     ticket.TypeFeature,
	"epic":        ticket.TypeFeature,
	"task":        ticket.TypeTask,
	"sub-task":    ticket.TypeTask,
	"subtask":     ticket.TypeTask,
	"improvement": ticket.TypeMaintenance,
	"maintenance": ticket.TypeMaintenance,
	"chore":       ticket.TypeMaintenance,
}

const jiraPromptTemplate = `Fetch the Jira issue {ticket_id} using your available tools.
Respond with exactly one JSON object and nothing else. The object must contain
at least "key" and "summary", plus a "fields" object with summary, description,
status, issuetype, assignee, labels, created, and updated when available.`

// JiraProvider recognizes Jira issue keys and URLs and normalizes Jira REST
// payloads. Bare numeric ids are accepted only when a default project key is
// configured; an unconfigured provider must not claim ambiguous numbers.
type JiraProvider struct {
	defaultProject string
	baseURL        string
}

// NewJiraProvider is the registry factory for Jira.
func NewJiraProvider(deps Deps) (Provider, error) {
	return &JiraProvider{
		defaultProject: strings.TrimSpace(deps.JiraDefaultProject),
		baseURL:        strings.TrimRight(strings.TrimSpace(deps.JiraBaseURL), "/"),
	}, nil
}

func (p *JiraProvider) Platform() ticket.Platform { return ticket.PlatformJira }
func (p *JiraProvider) Name() string              { return "Jira" }
func (p *JiraProvider) PromptTemplate() string    { return jiraPromptTemplate }

// CanHandle accepts Jira browse URLs, full issue keys, and bare numbers when
// a default project is configured.
func (p *JiraProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if jiraURLRe.MatchString(input) || jiraIDRe.MatchString(input) {
		return true
	}
	return p.defaultProject != "" && jiraNumericRe.MatchString(input)
}

// ParseInput converts an accepted input to the canonical PROJECT-123 form.
func (p *JiraProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if m := jiraURLRe.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	if jiraIDRe.MatchString(input) {
		return input, nil
	}
	if jiraNumericRe.MatchString(input) {
		if p.defaultProject == "" {
			return "", ingoterrors.NewTicketIDFormat("jira", input,
				"bare numeric ids need a configured default project key")
		}
		return fmt.Sprintf("%s-%s", p.defaultProject, input), nil
	}
	return "", ingoterrors.NewTicketIDFormat("jira", input, "not a Jira issue key or URL")
}

// Normalize converts a Jira REST (or agent-relayed) payload to the common
// ticket shape. Nested fields may be missing, null, or the wrong type; only
// a missing issue key is fatal.
func (p *JiraProvider) Normalize(raw map[string]interface{}, id string) (*ticket.Ticket, error) {
	key := strings.TrimSpace(ticket.StringAt(raw, "key", ""))
	if key == "" {
		key = strings.TrimSpace(id)
	}
	if key == "" {
		return nil, ingoterrors.NewValidation("jira", "payload has no issue key")
	}

	fields := ticket.MapAt(raw, "fields")
	if fields == nil {
		fields = raw
	}

	title := ticket.StringAt(fields, "summary", "")
	if title == "" {
		title = ticket.StringAt(raw, "summary", "")
	}

	metadata := map[string]interface{}{
		"priority": ticket.StringAt(fields, "priority.name", ""),
		"project":  ticket.StringAt(fields, "project.key", ""),
	}

	description := ""
	switch desc := ticket.ValueAt(fields, "description").(type) {
	case string:
		description = desc
	case map[string]interface{}:
		// Atlassian Document Format body: keep the raw structure around and
		// surface a placeholder.
		description = "[rich text content]"
		metadata["description_adf"] = desc
	}

	browseURL := p.browseURL(raw, key)
	if self := ticket.StringAt(raw, "self", ""); self != "" {
		metadata["self"] = self
	}

	t := &ticket.Ticket{
		ID:          key,
		Platform:    ticket.PlatformJira,
		URL:         browseURL,
		Title:       title,
		Description: description,
		Status:      jiraStatus(ticket.StringAt(fields, "status.name", "")),
		Type:        jiraType(ticket.StringAt(fields, "issuetype.name", "")),
		Assignee:    ticket.StringAt(fields, "assignee.displayName", ""),
		Labels:      ticket.CleanLabels(ticket.StringsAt(fields, "labels", "name")),
		CreatedAt:   ticket.TimeAt(fields, "created"),
		UpdatedAt:   ticket.TimeAt(fields, "updated"),
		Metadata:    metadata,
	}
	return t, nil
}

// browseURL reconstructs the human URL from the REST self link, falling back
// to the configured base URL.
func (p *JiraProvider) browseURL(raw map[string]interface{}, key string) string {
	if self := ticket.StringAt(raw, "self", ""); self != "" {
		if parsed, err := url.Parse(self); err == nil && parsed.Host != "" {
			return fmt.Sprintf("%s://%s/browse/%s", parsed.Scheme, parsed.Host, key)
		}
	}
	if p.baseURL != "" {
		return fmt.Sprintf("%s/browse/%s", p.baseURL, key)
	}
	return ""
}

func jiraStatus(name string) ticket.Status {
	if status, ok := jiraStatusTable[strings.ToLower(strings.TrimSpace(name))]; ok {
		return status
	}
	return ticket.StatusUnknown
}

func jiraType(name string) ticket.Type {
	if tt, ok := jiraTypeTable[strings.ToLower(strings.TrimSpace(name))]; ok {
		return tt
	}
	return ticket.TypeUnknown
}
