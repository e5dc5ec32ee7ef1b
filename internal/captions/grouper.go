// Package captions turns a timing track into on-screen caption units and
// formats their text into lines.
package captions

import (
	"strings"

	"github.com/bobarin/narrator/internal/models"
)

// Grouper partitions the spoken words of a track into caption segments of at
// most MaxWordsPerLine*MaxLines words.
type Grouper struct {
	MaxWordsPerLine int
	MaxLines        int
}

// Capacity is the number of words one segment may hold.
func (g Grouper) Capacity() int {
	n := g.MaxWordsPerLine * g.MaxLines
	if n < 1 {
		return 1
	}
	return n
}

// Group skips markers and closes a segment every Capacity words. A pause
// between two segments is absorbed by the earlier one so the timeline from
// the first to the last word is covered without gaps or overlap.
func (g Grouper) Group(track *models.Track) []models.CaptionSegment {
	words, indexes := track.Spoken()
	if len(words) == 0 {
		return nil
	}

	capacity := g.Capacity()
	segments := make([]models.CaptionSegment, 0, len(words)/capacity+1)
	for start := 0; start < len(words); start += capacity {
		end := start + capacity
		if end > len(words) {
			end = len(words)
		}
		segments = append(segments, models.CaptionSegment{
			Words:   words[start:end],
			Indexes: indexes[start:end],
			StartMs: words[start].StartMs,
			EndMs:   words[end-1].EndMs,
		})
	}

	for i := 0; i+1 < len(segments); i++ {
		if segments[i].EndMs < segments[i+1].StartMs {
			segments[i].EndMs = segments[i+1].StartMs
		}
	}
	return segments
}

// FormatLines breaks words into lines of perLine words, keeping at most maxLines.
func FormatLines(words []string, perLine, maxLines int) [][]string {
	if perLine < 1 {
		perLine = 1
	}
	var lines [][]string
	for i := 0; i < len(words) && len(lines) < maxLines; i += perLine {
		end := i + perLine
		if end > len(words) {
			end = len(words)
		}
		lines = append(lines, words[i:end])
	}
	return lines
}

// SplitTwoLines wraps text into at most two lines no wider than maxWidth as
// reported by measure. An even split by word count is preferred; when either
// half is too wide the text is wrapped greedily instead, and an overflowing
// second line is shortened with an ellipsis.
func SplitTwoLines(text string, maxWidth int, measure func(string) int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	joined := strings.Join(words, " ")
	if measure(joined) <= maxWidth || len(words) == 1 {
		return []string{joined}
	}

	mid := (len(words) + 1) / 2
	first, second := strings.Join(words[:mid], " "), strings.Join(words[mid:], " ")
	if measure(first) <= maxWidth && measure(second) <= maxWidth {
		return []string{first, second}
	}

	n := 1
	for n < len(words) && measure(strings.Join(words[:n+1], " ")) <= maxWidth {
		n++
	}
	lines := []string{strings.Join(words[:n], " ")}
	if n == len(words) {
		return lines
	}

	rest := words[n:]
	tail := strings.Join(rest, " ")
	for len(rest) > 1 && measure(tail) > maxWidth {
		rest = rest[:len(rest)-1]
		tail = strings.Join(rest, " ") + "..."
	}
	return append(lines, tail)
}
