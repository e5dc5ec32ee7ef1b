package captions

import (
	"fmt"
	"image/color"
	"os"
	"strings"

	"github.com/bobarin/narrator/internal/models"
)

// ---------------------------------------------------------------------------
// ASS sidecar subtitles
//
// Mirrors what is burned into the frames: one dialogue event per spoken word,
// the whole segment visible, the active word recoloured. Players that cannot
// show burned-in captions (or translators reviewing timing) use this file.
// ---------------------------------------------------------------------------

// ASSStyle configures the sidecar header.
type ASSStyle struct {
	PlayResX  int
	PlayResY  int
	FontName  string
	FontSize  int
	Outline   int
	MarginV   int
	Text      color.RGBA
	OutlineC  color.RGBA
	Highlight color.RGBA
}

// WriteASS writes segments as an ASS subtitle file.
func WriteASS(outputPath string, segments []models.CaptionSegment, style ASSStyle) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments to generate subtitles from")
	}

	var sb strings.Builder

	sb.WriteString("[Script Info]\n")
	sb.WriteString("ScriptType: v4.00+\n")
	sb.WriteString(fmt.Sprintf("PlayResX: %d\n", style.PlayResX))
	sb.WriteString(fmt.Sprintf("PlayResY: %d\n", style.PlayResY))
	sb.WriteString("WrapStyle: 0\n")
	sb.WriteString("ScaledBorderAndShadow: yes\n")
	sb.WriteString("\n")

	sb.WriteString("[V4+ Styles]\n")
	sb.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")

	// Alignment 2 = bottom centre
	sb.WriteString(fmt.Sprintf(
		"Style: Default,%s,%d,%s,%s,%s,&H80000000,0,0,0,0,100,100,0,0,1,%d,0,2,40,40,%d,1\n",
		style.FontName, style.FontSize,
		assColor(style.Text),     // PrimaryColour
		assColor(style.Text),     // SecondaryColour
		assColor(style.OutlineC), // OutlineColour
		style.Outline,
		style.MarginV,
	))
	sb.WriteString("\n")

	sb.WriteString("[Events]\n")
	sb.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")

	highlight := assColor(style.Highlight)
	for _, seg := range segments {
		for i, word := range seg.Words {
			// Hold each word until the next one starts so the line never flickers
			end := seg.EndMs
			if i < len(seg.Words)-1 {
				end = seg.Words[i+1].StartMs
			}
			sb.WriteString(fmt.Sprintf(
				"Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
				formatASSTime(word.StartMs),
				formatASSTime(end),
				buildHighlightedText(seg.Words, i, highlight),
			))
		}
	}

	if err := os.WriteFile(outputPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write ASS subtitle file: %w", err)
	}
	return nil
}

// buildHighlightedText renders the segment with the word at activeIdx recoloured.
//
// Output example: "the {\c&H0000FFFF&}history{\r} of coffee"
func buildHighlightedText(words []models.WordTiming, activeIdx int, highlight string) string {
	parts := make([]string, 0, len(words))
	for i, w := range words {
		clean := strings.TrimSpace(w.Word)
		if clean == "" {
			continue
		}
		if i == activeIdx {
			parts = append(parts, fmt.Sprintf("{\\c%s&}%s{\\r}", highlight, clean))
		} else {
			parts = append(parts, clean)
		}
	}
	return strings.Join(parts, " ")
}

// assColor converts to the &HAABBGGRR form (alpha inverted: 00 = opaque).
func assColor(c color.RGBA) string {
	return fmt.Sprintf("&H%02X%02X%02X%02X", 255-c.A, c.B, c.G, c.R)
}

// formatASSTime converts milliseconds to ASS timestamp format: H:MM:SS.CC
func formatASSTime(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	cs := ms / 10
	hours := cs / 360000
	minutes := (cs % 360000) / 6000
	secs := (cs % 6000) / 100
	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, cs%100)
}
