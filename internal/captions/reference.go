package captions

import (
	"strings"

	"github.com/bobarin/narrator/internal/models"
	"github.com/bobarin/narrator/internal/timing"
)

// ReferenceText collects the words of a parallel reference-language track
// that lie inside [startMs, endMs) and joins them into one marker-free line.
func ReferenceText(ref *models.Track, startMs, endMs int64) string {
	if ref == nil {
		return ""
	}
	var parts []string
	for i, w := range ref.Entries {
		if ref.IsMarker(i) {
			continue
		}
		if w.StartMs >= startMs && w.EndMs <= endMs && w.StartMs < endMs {
			parts = append(parts, w.Word)
		}
	}
	return timing.StripMarkers(strings.Join(parts, " "))
}
