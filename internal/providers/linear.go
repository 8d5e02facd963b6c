package providers

import (
	"regexp"
	"strings"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

var (
	linearIDRe  = regexp.MustCompile(`^[A-Z][A-Z0-9]*-\d+$`)
	linearURLRe = regexp.MustCompile(`^https?://linear\.app/[^/\s]+/issue/([A-Z][A-Z0-9]*-\d+)`)
)

// Specific state names win over the coarse state type: Linear reports an
// issue sitting in review as type "started", and only the name carries the
// distinction.
var linearStateNameTable = map[string]ticket.Status{
	"in review":      ticket.StatusReview,
	"code review":    ticket.StatusReview,
	"pending review": ticket.StatusReview,
	"todo":           ticket.StatusOpen,
	"backlog":        ticket.StatusOpen,
	"in progress":    ticket.StatusInProgress,
	"done":           ticket.StatusDone,
	"canceled":       ticket.StatusClosed,
	"cancelled":      ticket.StatusClosed,
	"blocked":        ticket.StatusBlocked,
}

var linearStateTypeTable = map[string]ticket.Status{
	"backlog":   ticket.StatusOpen,
	"unstarted": ticket.StatusOpen,
	"triage":    ticket.StatusOpen,
	"started":   ticket.StatusInProgress,
	"completed": ticket.StatusDone,
	"canceled":  ticket.StatusClosed,
}

const linearPromptTemplate = `Fetch the Linear issue {ticket_id} using your available tools.
Respond with exactly one JSON object and nothing else. The object must contain
at least "identifier" and "title", plus description, state (with name and
type), assignee, labels, url, createdAt, and updatedAt when available.`

// LinearProvider recognizes Linear issue identifiers and URLs and normalizes
// Linear GraphQL payloads.
type LinearProvider struct{}

// NewLinearProvider is the registry factory for Linear.
func NewLinearProvider(Deps) (Provider, error) {
	return &LinearProvider{}, nil
}

func (p *LinearProvider) Platform() ticket.Platform { return ticket.PlatformLinear }
func (p *LinearProvider) Name() string              { return "Linear" }
func (p *LinearProvider) PromptTemplate() string    { return linearPromptTemplate }

// CanHandle accepts Linear issue URLs and TEAM-123 identifiers. Identifiers
// must match the full string: ENG-123abc is rejected.
func (p *LinearProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	return linearURLRe.MatchString(input) || linearIDRe.MatchString(input)
}

// ParseInput converts an accepted input to the canonical TEAM-123 form.
func (p *LinearProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if m := linearURLRe.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	if linearIDRe.MatchString(input) {
		return input, nil
	}
	return "", ingoterrors.NewTicketIDFormat("linear", input, "not a Linear identifier or URL")
}

// Normalize converts a Linear GraphQL (or agent-relayed) payload to the
// common ticket shape.
func (p *LinearProvider) Normalize(raw map[string]interface{}, id string) (*ticket.Ticket, error) {
	identifier := strings.TrimSpace(ticket.StringAt(raw, "identifier", ""))
	if identifier == "" {
		identifier = strings.TrimSpace(id)
	}
	if identifier == "" {
		return nil, ingoterrors.NewValidation("linear", "payload has no identifier")
	}

	labels := linearLabels(raw)
	metadata := map[string]interface{}{
		"state_name": ticket.StringAt(raw, "state.name", ""),
		"state_type": ticket.StringAt(raw, "state.type", ""),
		"team":       ticket.StringAt(raw, "team.key", ""),
	}
	if priority := ticket.StringAt(raw, "priorityLabel", ""); priority != "" {
		metadata["priority"] = priority
	}

	assignee := ticket.StringAt(raw, "assignee.displayName", "")
	if assignee == "" {
		assignee = ticket.StringAt(raw, "assignee.name", "")
	}

	t := &ticket.Ticket{
		ID:          identifier,
		Platform:    ticket.PlatformLinear,
		URL:         ticket.StringAt(raw, "url", ""),
		Title:       ticket.StringAt(raw, "title", ""),
		Description: ticket.StringAt(raw, "description", ""),
		Status:      linearStatus(raw),
		Type:        labelType(labels, ticket.TypeFeature),
		Assignee:    assignee,
		Labels:      ticket.CleanLabels(labels),
		CreatedAt:   ticket.TimeAt(raw, "createdAt"),
		UpdatedAt:   ticket.TimeAt(raw, "updatedAt"),
		Metadata:    metadata,
	}
	return t, nil
}

// linearStatus applies the name-first priority rule: a recognized state name
// wins over the state type, so "In Review" maps to review even when Linear
// reports type "started".
func linearStatus(raw map[string]interface{}) ticket.Status {
	name := strings.ToLower(strings.TrimSpace(ticket.StringAt(raw, "state.name", "")))
	if status, ok := linearStateNameTable[name]; ok {
		return status
	}
	stateType := strings.ToLower(strings.TrimSpace(ticket.StringAt(raw, "state.type", "")))
	if status, ok := linearStateTypeTable[stateType]; ok {
		return status
	}
	return ticket.StatusUnknown
}

// linearLabels reads labels from either the GraphQL connection shape
// (labels.nodes) or a flat list.
func linearLabels(raw map[string]interface{}) []string {
	if nodes := ticket.SliceAt(raw, "labels.nodes"); nodes != nil {
		return ticket.StringsAt(raw, "labels.nodes", "name")
	}
	return ticket.StringsAt(raw, "labels", "name")
}

// labelType infers a ticket type by scanning label keywords, shared by the
// providers whose platforms have no native issue type.
func labelType(labels []string, fallback ticket.Type) ticket.Type {
	for _, label := range labels {
		switch strings.ToLower(strings.TrimSpace(label)) {
		case "bug", "defect", "regression":
			return ticket.TypeBug
		case "feature", "enhancement", "story":
			return ticket.TypeFeature
		case "task", "todo":
			return ticket.TypeTask
		case "maintenance", "chore", "refactor", "tech-debt", "dependencies":
			return ticket.TypeMaintenance
		}
	}
	return fallback
}
