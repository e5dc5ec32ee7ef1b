package models

import (
	"image"
	"sort"
)

// WordTiming is one spoken word (or marker entry) of a timing track, in ms.
type WordTiming struct {
	Word    string `json:"word"`
	StartMs int64  `json:"start_time"`
	EndMs   int64  `json:"end_time"`
}

// Contains reports whether t falls inside [StartMs, EndMs).
func (w WordTiming) Contains(t int64) bool {
	return t >= w.StartMs && t < w.EndMs
}

type MarkerKind int

const (
	MarkerStart MarkerKind = iota
	MarkerEnd
)

func (k MarkerKind) String() string {
	if k == MarkerEnd {
		return "end"
	}
	return "start"
}

// Marker is a section boundary token, parsed once when the track is built.
// Index is the entry's position in Track.Entries.
type Marker struct {
	Kind    MarkerKind
	Section string
	Index   int
	TimeMs  int64
}

// Track is an ordered timing track. Entries keeps markers in place so that
// inference can reason about track positions; Markers is sorted by Index.
type Track struct {
	Entries []WordTiming
	Markers []Marker
}

// IsMarker reports whether entry i is a marker.
func (t *Track) IsMarker(i int) bool {
	n := sort.Search(len(t.Markers), func(k int) bool { return t.Markers[k].Index >= i })
	return n < len(t.Markers) && t.Markers[n].Index == i
}

// Spoken returns the non-marker entries together with their track indexes.
func (t *Track) Spoken() ([]WordTiming, []int) {
	words := make([]WordTiming, 0, len(t.Entries)-len(t.Markers))
	idx := make([]int, 0, len(t.Entries)-len(t.Markers))
	for i, w := range t.Entries {
		if t.IsMarker(i) {
			continue
		}
		words = append(words, w)
		idx = append(idx, i)
	}
	return words, idx
}

// CaptionSegment is one on-screen caption unit. Indexes holds the track
// index of each word so the active word can be matched by identity.
type CaptionSegment struct {
	Words   []WordTiming
	Indexes []int
	StartMs int64
	EndMs   int64
}

// Contains reports whether t falls inside [StartMs, EndMs).
func (s CaptionSegment) Contains(t int64) bool {
	return t >= s.StartMs && t < s.EndMs
}

// Text joins the segment's words with single spaces.
func (s CaptionSegment) Text() string {
	out := make([]byte, 0, len(s.Words)*8)
	for i, w := range s.Words {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, w.Word...)
	}
	return string(out)
}

// SectionTimeRange maps a named section to the time span its image is shown.
// Image is nil when the section resolved but no image file exists.
type SectionTimeRange struct {
	Name    string
	StartMs int64
	EndMs   int64
	Image   image.Image
}

func (r SectionTimeRange) Contains(t int64) bool {
	return t >= r.StartMs && t < r.EndMs
}

// Format is the target canvas orientation.
type Format string

const (
	FormatStandard Format = "standard"
	FormatShorts   Format = "shorts"
)

// Size returns the canvas dimensions for the format.
func (f Format) Size() (int, int) {
	if f == FormatShorts {
		return 1080, 1920
	}
	return 1920, 1080
}

// ShortsMaxDurationMs caps every vertical output.
const ShortsMaxDurationMs int64 = 60000
