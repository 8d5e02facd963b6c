package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ingoterrors "github.com/catherinevee/ingot/internal/errors"
	"github.com/catherinevee/ingot/internal/ticket"
)

func newMonday(t *testing.T, deps Deps) Provider {
	t.Helper()
	p, err := NewMondayProvider(deps)
	require.NoError(t, err)
	return p
}

func TestMondayParseInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "item url", input: "https://acme.monday.com/boards/123/pulses/456", want: "123:456"},
		{name: "canonical pair", input: "123:456", want: "123:456"},
		{name: "board url without item", input: "https://acme.monday.com/boards/123", wantErr: true},
		{name: "bare number", input: "456", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newMonday(t, Deps{}).ParseInput(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, ingoterrors.IsKind(err, ingoterrors.KindTicketIDFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMondayNormalize(t *testing.T) {
	raw := map[string]interface{}{
		"id":    "456",
		"name":  "Launch checklist",
		"board": map[string]interface{}{"id": "123", "name": "Roadmap"},
		"group": map[string]interface{}{"title": "This Sprint"},
		"column_values": []interface{}{
			map[string]interface{}{"id": "status", "type": "status", "text": "Working on it"},
			map[string]interface{}{"id": "tags", "type": "tags", "text": "feature, launch"},
			map[string]interface{}{"id": "people", "type": "people", "text": "Jordan"},
		},
		"updated_at": "2026-04-01T08:00:00Z",
	}
	tk, err := newMonday(t, Deps{MondayAccountSlug: "acme"}).Normalize(raw, "123:456")
	require.NoError(t, err)

	assert.Equal(t, "123:456", tk.ID)
	assert.Equal(t, ticket.StatusInProgress, tk.Status)
	assert.Equal(t, ticket.TypeFeature, tk.Type)
	assert.Equal(t, "Jordan", tk.Assignee)
	assert.Equal(t, []string{"feature", "launch"}, tk.Labels)
	assert.Equal(t, "https://acme.monday.com/boards/123/pulses/456", tk.URL)
	assert.Equal(t, "acme", tk.Metadata["account_slug"], "slug travels in metadata, not the id")
}

func TestMondayNormalizeNoSlugNoURL(t *testing.T) {
	raw := map[string]interface{}{"id": "456", "name": "x", "board": map[string]interface{}{"id": "123"}}
	tk, err := newMonday(t, Deps{}).Normalize(raw, "123:456")
	require.NoError(t, err)
	assert.Empty(t, tk.URL)
	assert.NotContains(t, tk.Metadata, "account_slug")
}

func TestMondayStatusKeywords(t *testing.T) {
	tests := []struct {
		label string
		want  ticket.Status
	}{
		{"Done", ticket.StatusDone},
		{"Working on it", ticket.StatusInProgress},
		{"Waiting for review", ticket.StatusReview},
		{"Stuck", ticket.StatusBlocked},
		{"To Do", ticket.StatusOpen},
		{"Purple", ticket.StatusUnknown},
		{"", ticket.StatusUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mondayStatus(tt.label), tt.label)
	}
}
