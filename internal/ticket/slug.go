package ticket

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// MaxSummaryLen caps the summary part of a branch slug.
const MaxSummaryLen = 50

// MaxFileStemLen caps the filesystem stem derived from a ticket id.
const MaxFileStemLen = 64

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9]+`)
	dashCollapse = regexp.MustCompile(`-{2,}`)

	// Names Windows refuses as file names regardless of extension.
	windowsReserved = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[1-9]|lpt[1-9])$`)
)

// Slugify lowers a string to git-branch-safe characters: lowercase
// alphanumerics joined by single dashes, no leading or trailing dash,
// truncated to max runes. Returns empty when nothing survives.
func Slugify(s string, max int) string {
	out := strings.ToLower(strings.TrimSpace(s))
	out = slugStrip.ReplaceAllString(out, "-")
	out = dashCollapse.ReplaceAllString(out, "-")
	out = strings.Trim(out, "-")
	if max > 0 && len(out) > max {
		out = out[:max]
		out = strings.Trim(out, "-")
	}
	return out
}

// BranchSlug builds a full git-safe branch component from a ticket id and
// title. The id part comes first; when the id sanitizes to nothing a
// deterministic ticket-<6hex> stub keeps the ref valid.
func BranchSlug(id, title string) string {
	idPart := Slugify(id, MaxSummaryLen)
	if idPart == "" {
		idPart = hashFallback(id)
	}
	summary := Slugify(title, MaxSummaryLen)
	slug := idPart
	if summary != "" {
		slug = idPart + "-" + summary
	}
	return sanitizeRef(slug)
}

// sanitizeRef enforces the git ref rules the slug alphabet alone does not:
// no "..", no "@{", no ".lock" suffix, no trailing slash or dot.
func sanitizeRef(ref string) string {
	ref = strings.ReplaceAll(ref, "..", "-")
	ref = strings.ReplaceAll(ref, "@{", "-")
	ref = strings.TrimSuffix(ref, ".lock")
	ref = strings.TrimRight(ref, "/.")
	ref = strings.Trim(ref, "-")
	if ref == "" {
		ref = hashFallback(ref)
	}
	return ref
}

// FileStem derives a filesystem-safe stem from a ticket id: path separators
// and shell-hostile characters become underscores, Windows reserved device
// names are neutralized, and the result is capped at 64 runes and never empty.
func FileStem(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	stem := strings.Trim(b.String(), "._")
	if windowsReserved.MatchString(stem) {
		stem = "_" + stem
	}
	if len(stem) > MaxFileStemLen {
		stem = stem[:MaxFileStemLen]
	}
	if stem == "" {
		stem = hashFallback(id)
	}
	return stem
}

func hashFallback(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return fmt.Sprintf("ticket-%s", hex.EncodeToString(sum[:])[:6])
}
