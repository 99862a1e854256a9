package def

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DedupKey derives the stable fired-event deduplication key for a
// message subject. Keys are NFC-normalized, trimmed, and lowercased so
// the same logical message produces the same key regardless of how the
// authoring tool encoded it.
func DedupKey(subject string) string {
	return norm.NFC.String(strings.ToLower(strings.TrimSpace(subject)))
}
