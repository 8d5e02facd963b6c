package providers

import (
	"fmt"
	"regexp"
	"strings"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

var (
	trelloShortLinkRe = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)
	trelloURLRe       = regexp.MustCompile(`^https?://trello\.com/c/([A-Za-z0-9]{8})`)
)

// TrelloProvider recognizes Trello card short links and URLs and normalizes
// Trello REST payloads. Status comes from the containing list's name; a
// closed card overrides whatever the list says.
type TrelloProvider struct{}

// NewTrelloProvider is the registry factory for Trello.
func NewTrelloProvider(Deps) (Provider, error) {
	return &TrelloProvider{}, nil
}

func (p *TrelloProvider) Platform() ticket.Platform { return ticket.PlatformTrello }
func (p *TrelloProvider) Name() string              { return "Trello" }

// PromptTemplate is empty: Trello has no mediated-fetch support.
func (p *TrelloProvider) PromptTemplate() string { return "" }

// CanHandle accepts card URLs and bare 8-character short links.
func (p *TrelloProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	return trelloURLRe.MatchString(input) || trelloShortLinkRe.MatchString(input)
}

// ParseInput converts an accepted input to the canonical short link form.
func (p *TrelloProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if m := trelloURLRe.FindStringSubmatch(input); m != nil {
		return m[1], nil
	}
	if trelloShortLinkRe.MatchString(input) {
		return input, nil
	}
	return "", ingoterrors.NewTicketIDFormat("trello", input, "not a Trello card short link or URL")
}

// Normalize converts a Trello card payload to the common ticket shape.
func (p *TrelloProvider) Normalize(raw map[string]interface{}, id string) (*ticket.Ticket, error) {
	shortLink := strings.TrimSpace(ticket.StringAt(raw, "shortLink", ""))
	if shortLink == "" {
		shortLink = strings.TrimSpace(id)
	}
	if shortLink == "" {
		return nil, ingoterrors.NewValidation("trello", "payload has no card short link")
	}

	labels := ticket.CleanLabels(ticket.StringsAt(raw, "labels", "name"))
	listName := ticket.StringAt(raw, "list.name", "")

	status := trelloStatus(listName)
	if closed, ok := ticket.ValueAt(raw, "closed").(bool); ok && closed {
		status = ticket.StatusClosed
	}

	metadata := map[string]interface{}{
		"card_id":   ticket.StringAt(raw, "id", ""),
		"board_id":  ticket.StringAt(raw, "idBoard", ""),
		"list_id":   ticket.StringAt(raw, "idList", ""),
		"list_name": listName,
	}

	cardURL := ticket.StringAt(raw, "shortUrl", "")
	if cardURL == "" {
		cardURL = ticket.StringAt(raw, "url", "")
	}
	if cardURL == "" {
		cardURL = fmt.Sprintf("https://trello.com/c/%s", shortLink)
	}

	t := &ticket.Ticket{
		ID:          shortLink,
		Platform:    ticket.PlatformTrello,
		URL:         cardURL,
		Title:       ticket.StringAt(raw, "name", ""),
		Description: ticket.StringAt(raw, "desc", ""),
		Status:      status,
		Type:        labelType(labels, ticket.TypeUnknown),
		Assignee:    trelloAssignee(raw),
		Labels:      labels,
		CreatedAt:   nil,
		UpdatedAt:   ticket.TimeAt(raw, "dateLastActivity"),
		Metadata:    metadata,
	}
	return t, nil
}

func trelloAssignee(raw map[string]interface{}) string {
	if members := ticket.SliceAt(raw, "members"); len(members) > 0 {
		if m, ok := members[0].(map[string]interface{}); ok {
			if name := ticket.StringAt(m, "fullName", ""); name != "" {
				return name
			}
			return ticket.StringAt(m, "username", "")
		}
	}
	return ""
}

func trelloStatus(listName string) ticket.Status {
	name := strings.ToLower(strings.TrimSpace(listName))
	switch {
	case name == "":
		return ticket.StatusUnknown
	case strings.Contains(name, "done"), strings.Contains(name, "complete"), strings.Contains(name, "finished"):
		return ticket.StatusDone
	case strings.Contains(name, "doing"), strings.Contains(name, "progress"):
		return ticket.StatusInProgress
	case strings.Contains(name, "review"), strings.Contains(name, "testing"):
		return ticket.StatusReview
	case strings.Contains(name, "blocked"), strings.Contains(name, "stuck"):
		return ticket.StatusBlocked
	case strings.Contains(name, "to do"), strings.Contains(name, "todo"), strings.Contains(name, "backlog"), strings.Contains(name, "open"), strings.Contains(name, "inbox"):
		return ticket.StatusOpen
	default:
		return ticket.StatusUnknown
	}
}
