package timing

import (
	"strings"

	"github.com/bobarin/narrator/internal/models"
)

// Marker tokens are emitted upstream from SSML <mark> tags, either wrapped
// (__MARK_{section}_start__) or bare ({section}_start).
const (
	markerPrefix = "__MARK_"
	markerTail   = "__"
	startSuffix  = "_start"
	endSuffix    = "_end"
)

// ParseMarker classifies a timing-track word. ok is false for ordinary words.
func ParseMarker(word string) (kind models.MarkerKind, section string, ok bool) {
	token := word
	if strings.HasPrefix(token, markerPrefix) {
		token = strings.TrimPrefix(token, markerPrefix)
		token = strings.TrimSuffix(token, markerTail)
	}

	switch {
	case strings.HasSuffix(token, startSuffix):
		kind, section = models.MarkerStart, strings.TrimSuffix(token, startSuffix)
	case strings.HasSuffix(token, endSuffix):
		kind, section = models.MarkerEnd, strings.TrimSuffix(token, endSuffix)
	default:
		return 0, "", false
	}

	if section == "" || strings.ContainsAny(section, " \t\n") {
		return 0, "", false
	}
	return kind, section, true
}

// MarkerToken renders the canonical wrapped token for a section boundary.
func MarkerToken(kind models.MarkerKind, section string) string {
	suffix := startSuffix
	if kind == models.MarkerEnd {
		suffix = endSuffix
	}
	return markerPrefix + section + suffix + markerTail
}

// StripMarkers removes marker tokens from free text.
func StripMarkers(text string) string {
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if _, _, ok := ParseMarker(f); ok {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}
