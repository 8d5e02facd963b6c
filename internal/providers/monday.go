package providers

import (
	"fmt"
	"regexp"
	"strings"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

var (
	mondayURLRe = regexp.MustCompile(`^https?://([\w-]+)\.monday\.com/boards/(\d+)(?:/pulses/(\d+))?`)
	mondayIDRe  = regexp.MustCompile(`^(\d+):(\d+)$`)
)

// MondayProvider recognizes monday.com board item URLs and normalizes
// monday GraphQL payloads. The canonical id is board:item; the account slug
// travels only in metadata and URL reconstruction.
type MondayProvider struct {
	accountSlug string
}

// NewMondayProvider is the registry factory for monday.com.
func NewMondayProvider(deps Deps) (Provider, error) {
	return &MondayProvider{accountSlug: strings.TrimSpace(deps.MondayAccountSlug)}, nil
}

func (p *MondayProvider) Platform() ticket.Platform { return ticket.PlatformMonday }
func (p *MondayProvider) Name() string              { return "monday.com" }

// PromptTemplate is empty: monday.com has no mediated-fetch support.
func (p *MondayProvider) PromptTemplate() string { return "" }

// CanHandle accepts board item URLs and already-canonical board:item pairs.
// There is no free-form id shape for monday; detection is URL-only.
func (p *MondayProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if m := mondayURLRe.FindStringSubmatch(input); m != nil {
		return m[3] != ""
	}
	return mondayIDRe.MatchString(input)
}

// ParseInput converts an accepted input to the canonical board:item form. A
// board URL without an item segment cannot identify a single ticket.
func (p *MondayProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if m := mondayURLRe.FindStringSubmatch(input); m != nil {
		if m[3] == "" {
			return "", ingoterrors.NewTicketIDFormat("monday", input,
				"board URL has no item (pulse) segment")
		}
		return fmt.Sprintf("%s:%s", m[2], m[3]), nil
	}
	if mondayIDRe.MatchString(input) {
		return input, nil
	}
	return "", ingoterrors.NewTicketIDFormat("monday", input, "not a monday.com item URL")
}

// Normalize converts a monday items payload to the common ticket shape.
// Status comes from scanning status-type column labels.
func (p *MondayProvider) Normalize(raw map[string]interface{}, id string) (*ticket.Ticket, error) {
	itemID := strings.TrimSpace(ticket.StringAt(raw, "id", ""))
	boardID := strings.TrimSpace(ticket.StringAt(raw, "board.id", ""))
	canonical := strings.TrimSpace(id)
	if canonical == "" {
		if itemID == "" || boardID == "" {
			return nil, ingoterrors.NewValidation("monday", "payload has no board and item ids")
		}
		canonical = fmt.Sprintf("%s:%s", boardID, itemID)
	}

	status := ticket.StatusUnknown
	var labels []string
	for _, col := range ticket.SliceAt(raw, "column_values") {
		column, ok := col.(map[string]interface{})
		if !ok {
			continue
		}
		text := ticket.StringAt(column, "text", "")
		colType := ticket.StringAt(column, "type", "")
		if colType == "status" || strings.EqualFold(ticket.StringAt(column, "id", ""), "status") {
			if mapped := mondayStatus(text); mapped != ticket.StatusUnknown {
				status = mapped
			}
		}
		if colType == "tags" && text != "" {
			for _, tag := range strings.Split(text, ",") {
				labels = append(labels, strings.TrimSpace(tag))
			}
		}
	}

	metadata := map[string]interface{}{
		"board_id":   boardID,
		"board_name": ticket.StringAt(raw, "board.name", ""),
		"group":      ticket.StringAt(raw, "group.title", ""),
	}
	if p.accountSlug != "" {
		metadata["account_slug"] = p.accountSlug
	}

	labels = ticket.CleanLabels(labels)
	t := &ticket.Ticket{
		ID:          canonical,
		Platform:    ticket.PlatformMonday,
		URL:         p.itemURL(raw, canonical),
		Title:       ticket.StringAt(raw, "name", ""),
		Description: ticket.StringAt(raw, "description", ""),
		Status:      status,
		Type:        labelType(labels, ticket.TypeUnknown),
		Assignee:    mondayAssignee(raw),
		Labels:      labels,
		CreatedAt:   ticket.TimeAt(raw, "created_at"),
		UpdatedAt:   ticket.TimeAt(raw, "updated_at"),
		Metadata:    metadata,
	}
	return t, nil
}

func (p *MondayProvider) itemURL(raw map[string]interface{}, canonical string) string {
	if u := ticket.StringAt(raw, "url", ""); u != "" {
		return u
	}
	if p.accountSlug == "" {
		return ""
	}
	m := mondayIDRe.FindStringSubmatch(canonical)
	if m == nil {
		return ""
	}
	return fmt.Sprintf("https://%s.monday.com/boards/%s/pulses/%s", p.accountSlug, m[1], m[2])
}

func mondayAssignee(raw map[string]interface{}) string {
	for _, col := range ticket.SliceAt(raw, "column_values") {
		column, ok := col.(map[string]interface{})
		if !ok {
			continue
		}
		if ticket.StringAt(column, "type", "") == "people" {
			if text := ticket.StringAt(column, "text", ""); text != "" {
				return text
			}
		}
	}
	return ""
}

func mondayStatus(label string) ticket.Status {
	label = strings.ToLower(strings.TrimSpace(label))
	switch {
	case label == "":
		return ticket.StatusUnknown
	case strings.Contains(label, "done"), strings.Contains(label, "complete"):
		return ticket.StatusDone
	case strings.Contains(label, "working"), strings.Contains(label, "progress"), strings.Contains(label, "doing"):
		return ticket.StatusInProgress
	case strings.Contains(label, "review"):
		return ticket.StatusReview
	case strings.Contains(label, "stuck"), strings.Contains(label, "blocked"):
		return ticket.StatusBlocked
	case strings.Contains(label, "to do"), strings.Contains(label, "todo"), strings.Contains(label, "open"), strings.Contains(label, "backlog"):
		return ticket.StatusOpen
	default:
		return ticket.StatusUnknown
	}
}
