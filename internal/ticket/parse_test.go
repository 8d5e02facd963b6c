package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
		nilOK bool
	}{
		{name: "rfc3339 zulu", input: "2026-03-14T09:26:53Z", want: time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)},
		{name: "offset with colon", input: "2026-03-14T09:26:53+02:00", want: time.Date(2026, 3, 14, 7, 26, 53, 0, time.UTC)},
		{name: "jira offset no colon", input: "2026-03-14T09:26:53.000+0200", want: time.Date(2026, 3, 14, 7, 26, 53, 0, time.UTC)},
		{name: "fractional", input: "2026-03-14T09:26:53.123456Z", want: time.Date(2026, 3, 14, 9, 26, 53, 123456000, time.UTC)},
		{name: "date only", input: "2026-03-14", want: time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)},
		{name: "garbage", input: "yesterday", nilOK: true},
		{name: "empty", input: "", nilOK: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTimestamp(tt.input)
			if tt.nilOK {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v", got)
		})
	}
}

func TestStringAt(t *testing.T) {
	m := map[string]interface{}{
		"fields": map[string]interface{}{
			"status": map[string]interface{}{"name": "In Progress"},
			"count":  float64(42),
			"ratio":  1.5,
			"flag":   true,
			"empty":  nil,
		},
	}

	assert.Equal(t, "In Progress", StringAt(m, "fields.status.name", ""))
	assert.Equal(t, "42", StringAt(m, "fields.count", ""), "whole floats render without suffix")
	assert.Equal(t, "1.5", StringAt(m, "fields.ratio", ""))
	assert.Equal(t, "true", StringAt(m, "fields.flag", ""))
	assert.Equal(t, "dflt", StringAt(m, "fields.missing", "dflt"))
	assert.Equal(t, "dflt", StringAt(m, "fields.status", "dflt"), "maps are not coerced")
	assert.Equal(t, "dflt", StringAt(nil, "anything", "dflt"))
}

func TestValueAtStopsOnNonMap(t *testing.T) {
	m := map[string]interface{}{"a": "leaf"}
	assert.Nil(t, ValueAt(m, "a.b"))
	assert.Nil(t, ValueAt(m, ""))
}

func TestCleanLabels(t *testing.T) {
	got := CleanLabels([]string{" bug ", "", "bug", "ui", "  ", "ui", "backend"})
	assert.Equal(t, []string{"bug", "ui", "backend"}, got)
}

func TestStringsAt(t *testing.T) {
	m := map[string]interface{}{
		"labels": []interface{}{
			"plain",
			map[string]interface{}{"name": "from-object"},
			map[string]interface{}{"other": "ignored"},
			float64(7),
		},
	}
	assert.Equal(t, []string{"plain", "from-object", "7"}, StringsAt(m, "labels", "name"))
	assert.Empty(t, StringsAt(m, "missing", "name"))
}
