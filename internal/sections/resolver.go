// Package sections maps the section markers of a timing track to time ranges
// and the background images shown during them.
package sections

import (
	"log/slog"
	"sort"

	"github.com/bobarin/narrator/internal/models"
)

// bound is one harvested marker of a section.
type bound struct {
	index int
	time  int64
	ok    bool
}

type harvest struct {
	start bound
	end   bound
}

// Resolver turns marker pairs into section time ranges. Sections are never
// invented: a range exists only when both ends are known or can be inferred
// from a neighbouring marker.
type Resolver struct {
	logger *slog.Logger
}

func NewResolver(logger *slog.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve computes the section ranges of track and attaches the cached image
// of every resolved section. cache may be nil, in which case ranges carry no
// image.
func (r *Resolver) Resolve(track *models.Track, cache *ImageCache) map[string]models.SectionTimeRange {
	marks := harvestMarkers(track)

	names := make([]string, 0, len(marks))
	for name := range marks {
		names = append(names, name)
	}
	sort.Strings(names)

	ranges := make(map[string]models.SectionTimeRange, len(marks))
	for _, name := range names {
		h := marks[name]
		var start, end int64

		switch {
		case h.start.ok && h.end.ok:
			start, end = h.start.time, h.end.time

		case h.start.ok:
			next, found := nextStart(marks, name, h.start.index)
			if !found {
				r.warn(name, "start marker without end marker or later section")
				continue
			}
			start, end = h.start.time, next
			r.logger.Debug("inferred section end", "section", name, "end_ms", end)

		default:
			prev, found := previousEnd(marks, name, h.end.index)
			if !found {
				r.warn(name, "end marker without start marker or earlier section")
				continue
			}
			start, end = prev, h.end.time
			r.logger.Debug("inferred section start", "section", name, "start_ms", start)
		}

		if end <= start {
			r.warn(name, "section range is empty")
			continue
		}
		ranges[name] = models.SectionTimeRange{Name: name, StartMs: start, EndMs: end}
	}

	for _, name := range cache.Available() {
		if _, ok := ranges[name]; !ok {
			r.warn(name, "image present but no usable marker pair")
		}
	}

	for name, rng := range ranges {
		img, err := cache.Get(name)
		if err != nil {
			r.logger.Warn("section image unusable, using solid background", "section", name, "error", err)
			continue
		}
		if img != nil {
			rng.Image = img
			ranges[name] = rng
		}
	}

	r.logger.Info("sections resolved", "count", len(ranges), "markers", len(track.Markers), "images", cache.Len())
	return ranges
}

// Ordered returns ranges sorted by start time, then name.
func Ordered(ranges map[string]models.SectionTimeRange) []models.SectionTimeRange {
	out := make([]models.SectionTimeRange, 0, len(ranges))
	for _, rng := range ranges {
		out = append(out, rng)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartMs != out[j].StartMs {
			return out[i].StartMs < out[j].StartMs
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *Resolver) warn(section, reason string) {
	failure := &models.PartialTimingFailure{Section: section, Reason: reason}
	r.logger.Warn("section excluded from rendering", "section", section, "reason", failure.Error())
}

// harvestMarkers buckets the track's markers per section. A repeated marker
// replaces the earlier one.
func harvestMarkers(track *models.Track) map[string]*harvest {
	marks := map[string]*harvest{}
	for _, m := range track.Markers {
		h, ok := marks[m.Section]
		if !ok {
			h = &harvest{}
			marks[m.Section] = h
		}
		b := bound{index: m.Index, time: m.TimeMs, ok: true}
		if m.Kind == models.MarkerStart {
			h.start = b
		} else {
			h.end = b
		}
	}
	return marks
}

// nextStart finds the start marker of another section closest after index.
func nextStart(marks map[string]*harvest, self string, index int) (int64, bool) {
	best, found := -1, false
	var at int64
	for name, h := range marks {
		if name == self || !h.start.ok || h.start.index <= index {
			continue
		}
		if !found || h.start.index < best {
			best, at, found = h.start.index, h.start.time, true
		}
	}
	return at, found
}

// previousEnd finds the end marker of another section closest before index.
func previousEnd(marks map[string]*harvest, self string, index int) (int64, bool) {
	best, found := -1, false
	var at int64
	for name, h := range marks {
		if name == self || !h.end.ok || h.end.index >= index {
			continue
		}
		if !found || h.end.index > best {
			best, at, found = h.end.index, h.end.time, true
		}
	}
	return at, found
}
