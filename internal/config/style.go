package config

import (
	"errors"
	"fmt"
	"image/color"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/bobarin/narrator/internal/models"
)

// HexColor is an opaque colour written as "#RRGGBB" in the style profile.
type HexColor struct {
	color.RGBA
}

func (h *HexColor) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimSpace(string(text)), "#")
	if len(s) != 6 {
		return fmt.Errorf("colour %q: want #RRGGBB", string(text))
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fmt.Errorf("colour %q: %w", string(text), err)
	}
	h.RGBA = color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}
	return nil
}

func (h HexColor) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("#%02X%02X%02X", h.R, h.G, h.B)), nil
}

func rgb(r, g, b uint8) HexColor { return HexColor{color.RGBA{R: r, G: g, B: b, A: 255}} }

// Style holds every caption and layout constant. Values come from
// DefaultStyle and may be overridden by a TOML profile.
type Style struct {
	FontSize              int               `toml:"font_size"`
	ShortsFontScale       float64           `toml:"shorts_font_scale"`
	MaxWordsPerLine       int               `toml:"max_words_per_line"`
	ShortsMaxWordsPerLine int               `toml:"shorts_max_words_per_line"`
	MaxLines              int               `toml:"max_lines"`
	LineSpacing           int               `toml:"line_spacing"`
	OutlineThickness      int               `toml:"outline_thickness"`
	TextColor             HexColor          `toml:"text_color"`
	OutlineColor          HexColor          `toml:"outline_color"`
	HighlightColor        HexColor          `toml:"highlight_color"`
	BackgroundColor       HexColor          `toml:"background_color"`
	BackdropAlpha         int               `toml:"backdrop_alpha"`
	BackdropPaddingX      int               `toml:"backdrop_padding_x"`
	BackdropPaddingY      int               `toml:"backdrop_padding_y"`
	BackdropRadius        int               `toml:"backdrop_radius"`
	ShortsCaptionAnchor   float64           `toml:"shorts_caption_anchor"` // fraction of canvas height
	SecondaryFontScale    float64           `toml:"secondary_font_scale"`
	SecondaryMargin       int               `toml:"secondary_margin"`
	DefaultFont           string            `toml:"default_font"`
	LanguageFonts         map[string]string `toml:"language_fonts"`
}

func DefaultStyle() Style {
	return Style{
		FontSize:              60,
		ShortsFontScale:       0.8,
		MaxWordsPerLine:       4,
		ShortsMaxWordsPerLine: 3,
		MaxLines:              3,
		LineSpacing:           20,
		OutlineThickness:      2,
		TextColor:             rgb(255, 255, 255),
		OutlineColor:          rgb(0, 0, 0),
		HighlightColor:        rgb(255, 255, 0),
		BackgroundColor:       rgb(0, 0, 0),
		BackdropAlpha:         160,
		BackdropPaddingX:      50,
		BackdropPaddingY:      30,
		BackdropRadius:        20,
		ShortsCaptionAnchor:   0.65,
		SecondaryFontScale:    0.6,
		SecondaryMargin:       60,
		DefaultFont:           "NotoSans-Regular.ttf",
		LanguageFonts: map[string]string{
			"ko": "NotoSerifKR-VariableFont_wght.ttf",
		},
	}
}

// LoadStyle returns DefaultStyle overlaid with the TOML profile at path.
// An empty path yields the defaults.
func LoadStyle(path string) (Style, error) {
	style := DefaultStyle()
	if path == "" {
		return style, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return style, fmt.Errorf("style profile not found: %s", path)
		}
		return style, fmt.Errorf("failed to read style profile: %w", err)
	}

	if err := toml.Unmarshal(data, &style); err != nil {
		return style, fmt.Errorf("failed to parse style profile %s: %w", path, err)
	}

	if style.MaxWordsPerLine < 1 || style.ShortsMaxWordsPerLine < 1 || style.MaxLines < 1 {
		return style, fmt.Errorf("style profile %s: words per line and max lines must be positive", path)
	}
	if style.BackdropAlpha < 0 || style.BackdropAlpha > 255 {
		return style, fmt.Errorf("style profile %s: backdrop_alpha must be within 0-255", path)
	}
	return style, nil
}

// FontFile returns the font file name for a base language code.
func (s Style) FontFile(lang string) string {
	if f, ok := s.LanguageFonts[lang]; ok && f != "" {
		return f
	}
	return s.DefaultFont
}

// WordsPerLine returns the caption line width in words for the format.
func (s Style) WordsPerLine(f models.Format) int {
	if f == models.FormatShorts {
		return s.ShortsMaxWordsPerLine
	}
	return s.MaxWordsPerLine
}

// FontSizeFor returns the caption font size in pixels for the format.
func (s Style) FontSizeFor(f models.Format) float64 {
	if f == models.FormatShorts {
		return float64(s.FontSize) * s.ShortsFontScale
	}
	return float64(s.FontSize)
}
