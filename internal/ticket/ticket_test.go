package ticket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatform(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Platform
		ok    bool
	}{
		{name: "lowercase", input: "jira", want: PlatformJira, ok: true},
		{name: "serialized uppercase", input: "JIRA", want: PlatformJira, ok: true},
		{name: "azure devops", input: "AZURE_DEVOPS", want: PlatformAzureDevOps, ok: true},
		{name: "padded", input: "  linear  ", want: PlatformLinear, ok: true},
		{name: "unknown", input: "asana", ok: false},
		{name: "empty", input: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePlatform(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestParseStatusAndTypeUnknownFallback(t *testing.T) {
	assert.Equal(t, StatusInProgress, ParseStatus("in_progress"))
	assert.Equal(t, StatusUnknown, ParseStatus("half-done"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))

	assert.Equal(t, TypeBug, ParseType("bug"))
	assert.Equal(t, TypeUnknown, ParseType("incident"))
}

func TestPlatformNamesSortedUppercase(t *testing.T) {
	names := PlatformNames()
	require.Len(t, names, 6)
	assert.Equal(t, []string{"AZURE_DEVOPS", "GITHUB", "JIRA", "LINEAR", "MONDAY", "TRELLO"}, names)
}

func sampleTicket() *Ticket {
	created := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	updated := created.Add(48 * time.Hour)
	return &Ticket{
		ID:          "PROJ-123",
		Platform:    PlatformJira,
		URL:         "https://company.atlassian.net/browse/PROJ-123",
		Title:       "Add OAuth login",
		Description: "Support OAuth 2.0 login flows",
		Status:      StatusInProgress,
		Type:        TypeFeature,
		Assignee:    "Dana",
		Labels:      []string{"auth", "backend"},
		CreatedAt:   &created,
		UpdatedAt:   &updated,
		FullInfo:    "PROJ-123: Add OAuth login",
		Metadata: map[string]interface{}{
			"priority": "High",
			"project":  "PROJ",
		},
	}
}

func TestToMapShape(t *testing.T) {
	m := sampleTicket().ToMap()

	assert.Equal(t, "PROJ-123", m["id"])
	assert.Equal(t, "JIRA", m["platform"])
	assert.Equal(t, "in_progress", m["status"])
	assert.Equal(t, "feature", m["type"])
	assert.Equal(t, "2026-03-14T09:26:53+00:00", m["created_at"])
	assert.Equal(t, "add-oauth-login", m["branch_summary"])
	assert.Equal(t, []string{"auth", "backend"}, m["labels"])
}

func TestToMapNilFields(t *testing.T) {
	m := (&Ticket{ID: "X-1", Platform: PlatformLinear}).ToMap()

	assert.Nil(t, m["assignee"])
	assert.Nil(t, m["created_at"])
	assert.Nil(t, m["updated_at"])
	assert.Equal(t, []string{}, m["labels"])
}

type opaque struct{ ch chan int }

func TestToMapDegradesNonSerializableMetadata(t *testing.T) {
	tk := sampleTicket()
	tk.Metadata["handle"] = opaque{ch: make(chan int)}
	tk.Metadata["nested"] = map[string]interface{}{
		"fn": func() {},
		"ok": "fine",
	}

	m := tk.ToMap()
	data, err := json.Marshal(m)
	require.NoError(t, err, "ToMap output must always be JSON-serializable")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	meta := decoded["platform_metadata"].(map[string]interface{})
	marker := meta["handle"].(map[string]interface{})
	assert.Equal(t, true, marker["__non_serializable__"])
	assert.Contains(t, marker["type"], "opaque")
	nested := meta["nested"].(map[string]interface{})
	assert.Equal(t, "fine", nested["ok"])
}

func TestJSONRoundTrip(t *testing.T) {
	original := sampleTicket()
	data, err := json.Marshal(original)
	require.NoError(t, err)

	var restored Ticket
	require.NoError(t, json.Unmarshal(data, &restored))

	assert.Equal(t, original.ID, restored.ID)
	assert.Equal(t, original.Platform, restored.Platform)
	assert.Equal(t, original.Status, restored.Status)
	assert.Equal(t, original.Type, restored.Type)
	assert.Equal(t, original.Labels, restored.Labels)
	require.NotNil(t, restored.CreatedAt)
	assert.True(t, original.CreatedAt.Equal(*restored.CreatedAt))
}

func TestFromMapErrors(t *testing.T) {
	_, err := FromMap(map[string]interface{}{"platform": "JIRA"})
	assert.Error(t, err, "missing id")

	_, err = FromMap(map[string]interface{}{"id": "X-1", "platform": "bugzilla"})
	assert.Error(t, err, "unknown platform")
}

func TestFromMapUnknownEnumsDegrade(t *testing.T) {
	tk, err := FromMap(map[string]interface{}{
		"id":       "X-1",
		"platform": "LINEAR",
		"status":   "someday",
		"type":     "saga",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, tk.Status)
	assert.Equal(t, TypeUnknown, tk.Type)
}

func TestCloneIsDeep(t *testing.T) {
	original := sampleTicket()
	original.Metadata["nested"] = map[string]interface{}{"k": "v"}

	dup := original.Clone()
	dup.Labels[0] = "mutated"
	dup.Metadata["priority"] = "Low"
	dup.Metadata["nested"].(map[string]interface{})["k"] = "changed"
	*dup.CreatedAt = dup.CreatedAt.Add(time.Hour)

	assert.Equal(t, "auth", original.Labels[0])
	assert.Equal(t, "High", original.Metadata["priority"])
	assert.Equal(t, "v", original.Metadata["nested"].(map[string]interface{})["k"])
	assert.Equal(t, time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC), *original.CreatedAt)
}

func TestBranchSummaryFallbackChain(t *testing.T) {
	assert.Equal(t, "add-oauth-login", sampleTicket().BranchSummary())

	noTitle := &Ticket{ID: "PROJ-123", Platform: PlatformJira}
	assert.Equal(t, "proj-123", noTitle.BranchSummary())

	emojiOnly := &Ticket{ID: "🎫🎫🎫", Platform: PlatformJira}
	got := emojiOnly.BranchSummary()
	assert.Regexp(t, `^ticket-[0-9a-f]{6}$`, got)
	assert.Equal(t, got, (&Ticket{ID: "🎫🎫🎫"}).BranchSummary(), "hash stub is deterministic")
}
