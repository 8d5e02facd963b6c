package ticket

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts covers the ISO-8601 shapes the platforms emit: Z suffix,
// offsets with and without colon, optional fractional seconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp into UTC. A value that fails
// every known layout yields nil rather than an error; missing timestamps are
// not worth failing a whole ticket over.
func ParseTimestamp(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

// ValueAt walks a dotted path through nested maps and returns the raw value
// at the end, or nil when any hop is missing, nil, or not a map.
func ValueAt(m map[string]interface{}, path string) interface{} {
	if m == nil || path == "" {
		return nil
	}
	parts := strings.Split(path, ".")
	var current interface{} = m
	for _, part := range parts {
		node, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current, ok = node[part]
		if !ok {
			return nil
		}
	}
	return current
}

// StringAt walks a dotted path and coerces the value at the end to a string.
// Scalars are always coerced (numbers render without a float suffix); maps,
// slices, and missing values yield the default.
func StringAt(m map[string]interface{}, path, def string) string {
	v := ValueAt(m, path)
	if v == nil {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case map[string]interface{}, []interface{}:
		return def
	default:
		return fmt.Sprintf("%v", val)
	}
}

// MapAt walks a dotted path and returns the map at the end, or nil.
func MapAt(m map[string]interface{}, path string) map[string]interface{} {
	v, _ := ValueAt(m, path).(map[string]interface{})
	return v
}

// SliceAt walks a dotted path and returns the slice at the end, or nil.
func SliceAt(m map[string]interface{}, path string) []interface{} {
	v, _ := ValueAt(m, path).([]interface{})
	return v
}

// TimeAt walks a dotted path and parses the string at the end as a timestamp.
func TimeAt(m map[string]interface{}, path string) *time.Time {
	s := StringAt(m, path, "")
	if s == "" {
		return nil
	}
	return ParseTimestamp(s)
}

// CleanLabels trims, drops empties, and deduplicates a label list while
// keeping first-seen order.
func CleanLabels(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, label := range raw {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}

// StringsAt collects string members (coercing scalars) from the slice at a
// dotted path, optionally reading a field from each object member.
func StringsAt(m map[string]interface{}, path, field string) []string {
	raw := SliceAt(m, path)
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		switch val := item.(type) {
		case string:
			out = append(out, val)
		case map[string]interface{}:
			if field != "" {
				if s := StringAt(val, field, ""); s != "" {
					out = append(out, s)
				}
			}
		case float64, int, int64, bool:
			out = append(out, fmt.Sprintf("%v", val))
		}
	}
	return out
}
