package ticket

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Platform identifies the issue tracking platform a ticket came from.
type Platform string

const (
	PlatformJira        Platform = "jira"
	PlatformGitHub      Platform = "github"
	PlatformLinear      Platform = "linear"
	PlatformAzureDevOps Platform = "azure_devops"
	PlatformMonday      Platform = "monday"
	PlatformTrello      Platform = "trello"
)

// AllPlatforms returns every known platform in a stable order.
func AllPlatforms() []Platform {
	return []Platform{
		PlatformJira,
		PlatformGitHub,
		PlatformLinear,
		PlatformAzureDevOps,
		PlatformMonday,
		PlatformTrello,
	}
}

// PlatformNames returns the sorted serialized names of all known platforms.
func PlatformNames() []string {
	names := make([]string, 0, len(AllPlatforms()))
	for _, p := range AllPlatforms() {
		names = append(names, p.String())
	}
	sort.Strings(names)
	return names
}

// IsValid checks if the platform is a known value.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformJira, PlatformGitHub, PlatformLinear, PlatformAzureDevOps, PlatformMonday, PlatformTrello:
		return true
	default:
		return false
	}
}

// String returns the serialized form of the platform (uppercase name).
func (p Platform) String() string {
	return strings.ToUpper(string(p))
}

// ParsePlatform parses a platform from its serialized or lowercase form.
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if p.IsValid() {
		return p, true
	}
	return "", false
}

// Status represents the normalized state of a ticket.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
	StatusClosed     Status = "closed"
	StatusBlocked    Status = "blocked"
	StatusUnknown    Status = "unknown"
)

// IsValid checks if the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusReview, StatusDone, StatusClosed, StatusBlocked, StatusUnknown:
		return true
	default:
		return false
	}
}

// ParseStatus parses a status string; unknown values map to StatusUnknown.
func ParseStatus(s string) Status {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if st.IsValid() {
		return st
	}
	return StatusUnknown
}

// Type categorizes the nature of a ticket.
type Type string

const (
	TypeFeature     Type = "feature"
	TypeBug         Type = "bug"
	TypeTask        Type = "task"
	TypeMaintenance Type = "maintenance"
	TypeUnknown     Type = "unknown"
)

// IsValid checks if the type is a known value.
func (t Type) IsValid() bool {
	switch t {
	case TypeFeature, TypeBug, TypeTask, TypeMaintenance, TypeUnknown:
		return true
	default:
		return false
	}
}

// ParseType parses a type string; unknown values map to TypeUnknown.
func ParseType(s string) Type {
	tt := Type(strings.ToLower(strings.TrimSpace(s)))
	if tt.IsValid() {
		return tt
	}
	return TypeUnknown
}

// Ticket is the platform-agnostic ticket record produced by every provider.
// It is immutable by convention after creation; the cache layer enforces
// isolation by deep-copying on both store and load.
type Ticket struct {
	ID          string                 `json:"id"`
	Platform    Platform               `json:"-"`
	URL         string                 `json:"url"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Status      Status                 `json:"status"`
	Type        Type                   `json:"type"`
	Assignee    string                 `json:"assignee,omitempty"`
	Labels      []string               `json:"labels"`
	CreatedAt   *time.Time             `json:"created_at,omitempty"`
	UpdatedAt   *time.Time             `json:"updated_at,omitempty"`
	FullInfo    string                 `json:"full_info"`
	Metadata    map[string]interface{} `json:"platform_metadata,omitempty"`
}

// BranchSummary derives the git-safe short slug for the ticket. It prefers
// the title, falls back to the id, and finally to a deterministic hash stub.
func (t *Ticket) BranchSummary() string {
	if s := Slugify(t.Title, MaxSummaryLen); s != "" {
		return s
	}
	if s := Slugify(t.ID, MaxSummaryLen); s != "" {
		return s
	}
	return hashFallback(t.ID)
}

// Clone returns a deep copy of the ticket. Labels and metadata are copied
// recursively so mutations on the clone never reach the original.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	dup := *t
	if t.Labels != nil {
		dup.Labels = append([]string(nil), t.Labels...)
	}
	if t.CreatedAt != nil {
		created := *t.CreatedAt
		dup.CreatedAt = &created
	}
	if t.UpdatedAt != nil {
		updated := *t.UpdatedAt
		dup.UpdatedAt = &updated
	}
	dup.Metadata = cloneValue(t.Metadata).(map[string]interface{})
	return &dup
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if val == nil {
			return map[string]interface{}(nil)
		}
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = cloneValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// ToMap serializes the ticket to a JSON-safe map. Values that cannot be
// represented in JSON degrade to a marker object instead of failing.
func (t *Ticket) ToMap() map[string]interface{} {
	out := map[string]interface{}{
		"id":             t.ID,
		"platform":       t.Platform.String(),
		"url":            t.URL,
		"title":          t.Title,
		"description":    t.Description,
		"status":         string(t.Status),
		"type":           string(t.Type),
		"labels":         labelsOrEmpty(t.Labels),
		"branch_summary": t.BranchSummary(),
		"full_info":      t.FullInfo,
	}
	if t.Assignee != "" {
		out["assignee"] = t.Assignee
	} else {
		out["assignee"] = nil
	}
	out["created_at"] = formatTimestamp(t.CreatedAt)
	out["updated_at"] = formatTimestamp(t.UpdatedAt)
	out["platform_metadata"] = sanitizeValue(t.Metadata)
	return out
}

// MarshalJSON serializes through ToMap so metadata degradation applies.
func (t *Ticket) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToMap())
}

// FromMap reconstructs a ticket from its ToMap form. Unknown status or type
// values map to their unknown members rather than failing; a missing id or
// platform is an error.
func FromMap(m map[string]interface{}) (*Ticket, error) {
	id, _ := m["id"].(string)
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("ticket map has no id")
	}
	rawPlatform, _ := m["platform"].(string)
	platform, ok := ParsePlatform(rawPlatform)
	if !ok {
		return nil, fmt.Errorf("ticket map has unknown platform %q", rawPlatform)
	}

	t := &Ticket{
		ID:       id,
		Platform: platform,
		Status:   StatusUnknown,
		Type:     TypeUnknown,
	}
	if v, ok := m["url"].(string); ok {
		t.URL = v
	}
	if v, ok := m["title"].(string); ok {
		t.Title = v
	}
	if v, ok := m["description"].(string); ok {
		t.Description = v
	}
	if v, ok := m["status"].(string); ok {
		t.Status = ParseStatus(v)
	}
	if v, ok := m["type"].(string); ok {
		t.Type = ParseType(v)
	}
	if v, ok := m["assignee"].(string); ok {
		t.Assignee = v
	}
	if v, ok := m["full_info"].(string); ok {
		t.FullInfo = v
	}
	if raw, ok := m["labels"].([]interface{}); ok {
		for _, item := range raw {
			if s, ok := item.(string); ok {
				t.Labels = append(t.Labels, s)
			}
		}
	} else if raw, ok := m["labels"].([]string); ok {
		t.Labels = append([]string(nil), raw...)
	}
	if t.Labels == nil {
		t.Labels = []string{}
	}
	if v, ok := m["created_at"].(string); ok {
		t.CreatedAt = ParseTimestamp(v)
	}
	if v, ok := m["updated_at"].(string); ok {
		t.UpdatedAt = ParseTimestamp(v)
	}
	if meta, ok := m["platform_metadata"].(map[string]interface{}); ok {
		t.Metadata = cloneValue(meta).(map[string]interface{})
	}
	return t, nil
}

// UnmarshalJSON reconstructs a ticket via FromMap.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*t = *parsed
	return nil
}

func labelsOrEmpty(labels []string) []string {
	if labels == nil {
		return []string{}
	}
	return labels
}

func formatTimestamp(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02T15:04:05-07:00")
}

// sanitizeValue converts an arbitrary value into a JSON-safe one. Basic JSON
// shapes pass through with recursion, timestamps become ISO-8601 strings, and
// anything json cannot encode degrades to a marker object.
func sanitizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, json.Number:
		return val
	case time.Time:
		return val.UTC().Format("2006-01-02T15:04:05-07:00")
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.UTC().Format("2006-01-02T15:04:05-07:00")
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = sanitizeValue(inner)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = sanitizeValue(inner)
		}
		return out
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	default:
		if _, err := json.Marshal(val); err == nil {
			return val
		}
		return map[string]interface{}{
			"__non_serializable__": true,
			"type":                 fmt.Sprintf("%T", val),
			"repr":                 fmt.Sprintf("%v", val),
		}
	}
}
