// Package render draws single video frames: a section background plus the
// caption block with the active word highlighted.
package render

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/bobarin/narrator/internal/captions"
	"github.com/bobarin/narrator/internal/config"
	"github.com/bobarin/narrator/internal/lang"
	"github.com/bobarin/narrator/internal/models"
)

// NoActiveWord marks a frame where nobody is speaking.
const NoActiveWord = -1

// Options configures a Renderer for one job.
type Options struct {
	Format   models.Format
	Language string
	FontDir  string
	Style    config.Style
}

// Frame describes what one frame shows.
type Frame struct {
	Segment     *models.CaptionSegment // nil when no caption is on screen
	ActiveIndex int                    // track index of the spoken word, or NoActiveWord
	TimeMs      int64
	Sections    []models.SectionTimeRange // ordered, see sections.Ordered
	Secondary   string                    // reference-language text, optional
}

// placedWord is a word with its precomputed baseline origin.
type placedWord struct {
	text  string
	index int // track index
	x, y  int
}

type layoutKey struct {
	startMs int64
	count   int
	first   int
}

type captionLayout struct {
	key      layoutKey
	words    []placedWord
	backdrop image.Rectangle
}

// Renderer is owned by one job and is not safe for concurrent use.
type Renderer struct {
	logger *slog.Logger
	format models.Format
	style  config.Style
	width  int
	height int

	face      font.Face
	metrics   metrics
	subFace   font.Face
	subMetric metrics

	text, outline, highlight, background, shade color.RGBA

	backgrounds map[string]*image.RGBA
	layout      *captionLayout
}

// New loads fonts for the job's language and prepares colours.
func New(opts Options, logger *slog.Logger) (*Renderer, error) {
	w, h := opts.Format.Size()
	code := lang.Base(opts.Language)
	fontFile := opts.Style.FontFile(code)

	size := opts.Style.FontSizeFor(opts.Format)
	face, err := loadFace(opts.FontDir, fontFile, size, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load caption font: %w", err)
	}
	subFace, err := loadFace(opts.FontDir, fontFile, size*opts.Style.SecondaryFontScale, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load subtitle font: %w", err)
	}

	logger.Debug("renderer ready", "format", opts.Format, "width", w, "height", h, "font", fontFile, "size", size)

	return &Renderer{
		logger:      logger,
		format:      opts.Format,
		style:       opts.Style,
		width:       w,
		height:      h,
		face:        face,
		metrics:     faceMetrics(face),
		subFace:     subFace,
		subMetric:   faceMetrics(subFace),
		text:        opts.Style.TextColor.RGBA,
		outline:     opts.Style.OutlineColor.RGBA,
		highlight:   opts.Style.HighlightColor.RGBA,
		background:  opts.Style.BackgroundColor.RGBA,
		shade:       color.RGBA{A: uint8(opts.Style.BackdropAlpha)},
		backgrounds: map[string]*image.RGBA{},
	}, nil
}

// Size returns the canvas dimensions.
func (r *Renderer) Size() (int, int) { return r.width, r.height }

// Render draws one frame into a fresh bitmap.
func (r *Renderer) Render(f Frame) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	r.drawBackground(dst, f.TimeMs, f.Sections)

	if f.Segment != nil && len(f.Segment.Words) > 0 {
		r.drawCaption(dst, f.Segment, f.ActiveIndex)
	}
	if f.Secondary != "" {
		r.drawSecondary(dst, f.Secondary)
	}
	return dst
}

// Close releases the fitted background bitmaps and font faces.
func (r *Renderer) Close() {
	for k := range r.backgrounds {
		delete(r.backgrounds, k)
	}
	r.layout = nil
	if r.face != nil {
		r.face.Close()
	}
	if r.subFace != nil {
		r.subFace.Close()
	}
}

func (r *Renderer) drawBackground(dst *image.RGBA, t int64, ranges []models.SectionTimeRange) {
	for _, s := range ranges {
		if !s.Contains(t) || s.Image == nil {
			continue
		}
		fitted, ok := r.backgrounds[s.Name]
		if !ok {
			if r.format == models.FormatShorts {
				fitted = fitContain(s.Image, r.width, r.height, r.background)
			} else {
				fitted = fitCover(s.Image, r.width, r.height)
			}
			r.backgrounds[s.Name] = fitted
		}
		copy(dst.Pix, fitted.Pix)
		return
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
}

// layoutFor computes word positions once per segment. Positions use the
// word advance plus a fixed space advance so highlighting never moves text.
func (r *Renderer) layoutFor(seg *models.CaptionSegment) *captionLayout {
	key := layoutKey{startMs: seg.StartMs, count: len(seg.Words), first: trackIndex(seg, 0)}
	if r.layout != nil && r.layout.key == key {
		return r.layout
	}

	texts := make([]string, len(seg.Words))
	for i, w := range seg.Words {
		texts[i] = w.Word
	}
	lines := captions.FormatLines(texts, r.style.WordsPerLine(r.format), r.style.MaxLines)

	m := r.metrics
	spacing := r.style.LineSpacing
	totalH := len(lines)*m.lineHeight + (len(lines)-1)*spacing

	top := (r.height - totalH) / 2
	if r.format == models.FormatShorts {
		top = int(float64(r.height)*r.style.ShortsCaptionAnchor) - totalH/2
	}

	widths := make([][]int, len(lines))
	lineWidths := make([]int, len(lines))
	maxW := 0
	for i, line := range lines {
		widths[i] = make([]int, len(line))
		for j, word := range line {
			widths[i][j] = measure(r.face, word)
			lineWidths[i] += widths[i][j]
		}
		lineWidths[i] += (len(line) - 1) * m.space
		if lineWidths[i] > maxW {
			maxW = lineWidths[i]
		}
	}

	layout := &captionLayout{key: key}
	k := 0
	y := top
	for i, line := range lines {
		x := (r.width - lineWidths[i]) / 2
		for j, word := range line {
			layout.words = append(layout.words, placedWord{
				text:  word,
				index: trackIndex(seg, k),
				x:     x,
				y:     y + m.ascent,
			})
			x += widths[i][j] + m.space
			k++
		}
		y += m.lineHeight + spacing
	}

	padX, padY := r.style.BackdropPaddingX, r.style.BackdropPaddingY
	layout.backdrop = image.Rect(
		(r.width-maxW)/2-padX, top-padY,
		(r.width+maxW)/2+padX, top+totalH+padY,
	)

	r.layout = layout
	return layout
}

// trackIndex returns the track index of the k-th segment word, or a value
// no active index can equal when the segment carries no indexes.
func trackIndex(seg *models.CaptionSegment, k int) int {
	if k < len(seg.Indexes) {
		return seg.Indexes[k]
	}
	return NoActiveWord - 1
}

func (r *Renderer) drawCaption(dst *image.RGBA, seg *models.CaptionSegment, active int) {
	layout := r.layoutFor(seg)
	drawBackdrop(dst, layout.backdrop, r.style.BackdropRadius, r.shade)

	for _, w := range layout.words {
		fill := r.text
		if active != NoActiveWord && w.index == active {
			fill = r.highlight
		}
		r.drawOutlined(dst, r.face, w.text, w.x, w.y, fill)
	}
}

// drawOutlined draws s with its baseline origin at (x, y): the outline colour
// at small offsets along both axes first, then the fill on top.
func (r *Renderer) drawOutlined(dst *image.RGBA, face font.Face, s string, x, y int, fill color.RGBA) {
	d := font.Drawer{Dst: dst, Src: image.NewUniform(r.outline), Face: face}
	t := r.style.OutlineThickness
	for off := -t; off <= t; off++ {
		d.Dot = fixed.P(x+off, y)
		d.DrawString(s)
		d.Dot = fixed.P(x, y+off)
		d.DrawString(s)
	}
	d.Src = image.NewUniform(fill)
	d.Dot = fixed.P(x, y)
	d.DrawString(s)
}

// secondaryBox returns the fixed container anchored to the bottom margin.
// Its height always fits two lines so captions above never shift.
func (r *Renderer) secondaryBox() image.Rectangle {
	m := r.subMetric
	padY := r.style.BackdropPaddingY / 2
	h := 2*m.lineHeight + r.style.LineSpacing/2 + 2*padY
	bottom := r.height - r.style.SecondaryMargin
	return image.Rect(r.style.SecondaryMargin, bottom-h, r.width-r.style.SecondaryMargin, bottom)
}

// SecondaryLines wraps reference text the way the subtitle band will show it.
func (r *Renderer) SecondaryLines(text string) []string {
	box := r.secondaryBox()
	maxW := box.Dx() - 2*r.style.BackdropPaddingX
	return captions.SplitTwoLines(text, maxW, func(s string) int { return measure(r.subFace, s) })
}

func (r *Renderer) drawSecondary(dst *image.RGBA, text string) {
	lines := r.SecondaryLines(strings.TrimSpace(text))
	if len(lines) == 0 {
		return
	}

	box := r.secondaryBox()
	m := r.subMetric
	gap := r.style.LineSpacing / 2
	padY := r.style.BackdropPaddingY / 2
	textH := len(lines)*m.lineHeight + (len(lines)-1)*gap

	maxW := 0
	for _, l := range lines {
		if w := measure(r.subFace, l); w > maxW {
			maxW = w
		}
	}

	// Lines sit on the bottom of the box.
	top := box.Max.Y - padY - textH
	backdrop := image.Rect(
		(r.width-maxW)/2-r.style.BackdropPaddingX/2, top-padY,
		(r.width+maxW)/2+r.style.BackdropPaddingX/2, box.Max.Y,
	)
	drawBackdrop(dst, backdrop, r.style.BackdropRadius/2, r.shade)

	y := top + m.ascent
	for _, l := range lines {
		x := (r.width - measure(r.subFace, l)) / 2
		r.drawOutlined(dst, r.subFace, l, x, y, r.text)
		y += m.lineHeight + gap
	}
}
