package timing

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"

	"github.com/bobarin/narrator/internal/models"
)

// fileEntry is the on-disk layout: times in ms, duration informational only.
type fileEntry struct {
	Word      string  `json:"word"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Duration  float64 `json:"duration,omitempty"`
}

// Load reads a timing track file.
func Load(path string) (*models.Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &models.MissingInputError{Kind: "timing", Path: path}
		}
		return nil, fmt.Errorf("failed to read timing file: %w", err)
	}

	var raw []fileEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse timing file %s: %w", path, err)
	}

	entries := make([]models.WordTiming, len(raw))
	for i, e := range raw {
		entries[i] = models.WordTiming{
			Word:    e.Word,
			StartMs: int64(math.Round(e.StartTime)),
			EndMs:   int64(math.Round(e.EndTime)),
		}
	}
	return NewTrack(entries), nil
}

// Save writes entries in the on-disk layout.
func Save(path string, entries []models.WordTiming) error {
	out := make([]fileEntry, len(entries))
	for i, w := range entries {
		out[i] = fileEntry{
			Word:      w.Word,
			StartTime: float64(w.StartMs),
			EndTime:   float64(w.EndMs),
			Duration:  float64(w.EndMs - w.StartMs),
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal timings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing file: %w", err)
	}
	return nil
}

// NewTrack copies entries, orders them by start time, removes overlap between
// consecutive spoken words and parses markers.
func NewTrack(entries []models.WordTiming) *models.Track {
	words := make([]models.WordTiming, len(entries))
	copy(words, entries)
	sort.SliceStable(words, func(i, j int) bool { return words[i].StartMs < words[j].StartMs })

	track := &models.Track{Entries: words}
	spoken := make([]int, 0, len(words))
	for i := range words {
		if words[i].EndMs < words[i].StartMs {
			words[i].EndMs = words[i].StartMs
		}
		kind, section, ok := ParseMarker(words[i].Word)
		if !ok {
			spoken = append(spoken, i)
			continue
		}
		at := words[i].StartMs
		if kind == models.MarkerEnd {
			at = words[i].EndMs
		}
		track.Markers = append(track.Markers, models.Marker{
			Kind:    kind,
			Section: section,
			Index:   i,
			TimeMs:  at,
		})
	}

	// Markers are zero-width and never displayed, so only spoken words are
	// clipped against each other.
	for k := 0; k+1 < len(spoken); k++ {
		cur, next := &words[spoken[k]], words[spoken[k+1]]
		if cur.EndMs > next.StartMs {
			cur.EndMs = next.StartMs
			if cur.EndMs < cur.StartMs {
				cur.EndMs = cur.StartMs
			}
		}
	}
	return track
}

// TrimToCap drops entries starting at or after capMs and clips the end of any
// entry straddling it. A word that has already begun is never dropped.
func TrimToCap(track *models.Track, capMs int64) *models.Track {
	kept := make([]models.WordTiming, 0, len(track.Entries))
	for _, w := range track.Entries {
		if w.StartMs >= capMs {
			continue
		}
		if w.EndMs > capMs {
			w.EndMs = capMs
		}
		kept = append(kept, w)
	}
	return NewTrack(kept)
}

// Bounds returns the first spoken start and the last spoken end.
func Bounds(track *models.Track) (first, last int64, ok bool) {
	words, _ := track.Spoken()
	if len(words) == 0 {
		return 0, 0, false
	}
	return words[0].StartMs, words[len(words)-1].EndMs, true
}
