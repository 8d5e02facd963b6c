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
	githubFullIDRe = regexp.MustCompile(`^([^/\s]+)/([^/\s#]+)#(\d+)$`)
	githubBareIDRe = regexp.MustCompile(`^#(\d+)$`)
	githubURLRe    = regexp.MustCompile(`^https?://([\w.-]+)/([^/\s]+)/([^/\s]+)/(?:issues|pull)/(\d+)`)
)

const githubPromptTemplate = `Fetch the GitHub issue {ticket_id} using your available tools.
Respond with exactly one JSON object and nothing else. The object must contain
at least "number" and "title", plus body, state, state_reason, labels,
assignee, html_url, created_at, and updated_at when available.`

// GitHubProvider recognizes GitHub issue and pull request references and
// normalizes GitHub REST payloads. Bare #123 references need both a default
// owner and repo; URLs on hosts other than github.com need the Enterprise
// host configured.
type GitHubProvider struct {
	defaultOwner string
	defaultRepo  string
	host         string
}

// NewGitHubProvider is the registry factory for GitHub.
func NewGitHubProvider(deps Deps) (Provider, error) {
	return &GitHubProvider{
		defaultOwner: strings.TrimSpace(deps.GitHubDefaultOwner),
		defaultRepo:  strings.TrimSpace(deps.GitHubDefaultRepo),
		host:         strings.TrimSpace(deps.GitHubHost),
	}, nil
}

func (p *GitHubProvider) Platform() ticket.Platform { return ticket.PlatformGitHub }
func (p *GitHubProvider) Name() string              { return "GitHub" }
func (p *GitHubProvider) PromptTemplate() string    { return githubPromptTemplate }

func (p *GitHubProvider) allowedHost(host string) bool {
	if host == "github.com" || host == "www.github.com" {
		return true
	}
	return p.host != "" && strings.EqualFold(host, p.host)
}

// CanHandle accepts issue URLs on allowed hosts, owner/repo#n references,
// and bare #n only when both defaults are configured.
func (p *GitHubProvider) CanHandle(input string) bool {
	input = strings.TrimSpace(input)
	if m := githubURLRe.FindStringSubmatch(input); m != nil {
		return p.allowedHost(m[1])
	}
	if githubFullIDRe.MatchString(input) {
		return true
	}
	if githubBareIDRe.MatchString(input) {
		return p.defaultOwner != "" && p.defaultRepo != ""
	}
	return false
}

// ParseInput converts an accepted input to the canonical owner/repo#n form.
// A URL on a host that is neither github.com nor the configured Enterprise
// host is an explicit error, not a silent pass.
func (p *GitHubProvider) ParseInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if m := githubURLRe.FindStringSubmatch(input); m != nil {
		if !p.allowedHost(m[1]) {
			return "", ingoterrors.NewTicketIDFormat("github", input,
				fmt.Sprintf("host %s is not github.com and no Enterprise host is configured", m[1]))
		}
		return fmt.Sprintf("%s/%s#%s", m[2], m[3], m[4]), nil
	}
	if m := githubFullIDRe.FindStringSubmatch(input); m != nil {
		return fmt.Sprintf("%s/%s#%s", m[1], m[2], m[3]), nil
	}
	if m := githubBareIDRe.FindStringSubmatch(input); m != nil {
		if p.defaultOwner == "" || p.defaultRepo == "" {
			return "", ingoterrors.NewTicketIDFormat("github", input,
				"bare #n references need configured default owner and repo")
		}
		return fmt.Sprintf("%s/%s#%s", p.defaultOwner, p.defaultRepo, m[1]), nil
	}
	return "", ingoterrors.NewTicketIDFormat("github", input, "not a GitHub issue reference or URL")
}

// Normalize converts a GitHub REST (or agent-relayed) payload to the common
// ticket shape. The canonical id comes from the id hint when present since
// the payload alone does not carry owner/repo.
func (p *GitHubProvider) Normalize(raw map[string]interface{}, id string) (*ticket.Ticket, error) {
	number := strings.TrimSpace(ticket.StringAt(raw, "number", ""))
	canonical := strings.TrimSpace(id)
	if canonical == "" {
		if number == "" {
			return nil, ingoterrors.NewValidation("github", "payload has no issue number")
		}
		owner, repo := p.ownerRepoFromPayload(raw)
		if owner == "" || repo == "" {
			return nil, ingoterrors.NewValidation("github", "cannot determine owner/repo for issue")
		}
		canonical = fmt.Sprintf("%s/%s#%s", owner, repo, number)
	}

	labels := ticket.StringsAt(raw, "labels", "name")
	assignee := ticket.StringAt(raw, "assignee.login", "")
	if assignee == "" {
		if members := ticket.SliceAt(raw, "assignees"); len(members) > 0 {
			if m, ok := members[0].(map[string]interface{}); ok {
				assignee = ticket.StringAt(m, "login", "")
			}
		}
	}

	metadata := map[string]interface{}{
		"state":        ticket.StringAt(raw, "state", ""),
		"state_reason": ticket.StringAt(raw, "state_reason", ""),
	}
	if merged := ticket.StringAt(raw, "pull_request.merged_at", ""); merged != "" {
		metadata["merged_at"] = merged
	}

	t := &ticket.Ticket{
		ID:          canonical,
		Platform:    ticket.PlatformGitHub,
		URL:         p.issueURL(raw, canonical),
		Title:       ticket.StringAt(raw, "title", ""),
		Description: ticket.StringAt(raw, "body", ""),
		Status:      githubStatus(raw),
		Type:        labelType(ticket.CleanLabels(labels), ticket.TypeUnknown),
		Assignee:    assignee,
		Labels:      ticket.CleanLabels(labels),
		CreatedAt:   ticket.TimeAt(raw, "created_at"),
		UpdatedAt:   ticket.TimeAt(raw, "updated_at"),
		Metadata:    metadata,
	}
	return t, nil
}

func (p *GitHubProvider) ownerRepoFromPayload(raw map[string]interface{}) (string, string) {
	// repository_url looks like https://api.github.com/repos/<owner>/<repo>
	if repoURL := ticket.StringAt(raw, "repository_url", ""); repoURL != "" {
		if parsed, err := url.Parse(repoURL); err == nil {
			parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
			if len(parts) >= 3 && parts[0] == "repos" {
				return parts[1], parts[2]
			}
		}
	}
	return p.defaultOwner, p.defaultRepo
}

func (p *GitHubProvider) issueURL(raw map[string]interface{}, canonical string) string {
	if htmlURL := ticket.StringAt(raw, "html_url", ""); htmlURL != "" {
		return htmlURL
	}
	m := githubFullIDRe.FindStringSubmatch(canonical)
	if m == nil {
		return ""
	}
	host := p.host
	if host == "" {
		host = "github.com"
	}
	return fmt.Sprintf("https://%s/%s/%s/issues/%s", host, m[1], m[2], m[3])
}

// githubStatus folds state, state_reason, and pull request merge state into
// the normalized status. A merged pull request counts as done regardless of
// the closed state reason.
func githubStatus(raw map[string]interface{}) ticket.Status {
	if merged := ticket.StringAt(raw, "pull_request.merged_at", ""); merged != "" {
		return ticket.StatusDone
	}
	state := strings.ToLower(ticket.StringAt(raw, "state", ""))
	reason := strings.ToLower(ticket.StringAt(raw, "state_reason", ""))
	switch state {
	case "open":
		return ticket.StatusOpen
	case "closed":
		switch reason {
		case "completed":
			return ticket.StatusDone
		case "not_planned":
			return ticket.StatusClosed
		default:
			return ticket.StatusClosed
		}
	case "merged":
		return ticket.StatusDone
	default:
		return ticket.StatusUnknown
	}
}
