package render

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
)

// fitCover scales src to fill a w x h canvas, cropping the centred excess.
func fitCover(src image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()

	// Crop the source to the canvas aspect ratio, then scale the crop.
	crop := b
	if sw*h > sh*w {
		cw := sh * w / h
		x0 := b.Min.X + (sw-cw)/2
		crop = image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	} else {
		ch := sw * h / w
		y0 := b.Min.Y + (sh-ch)/2
		crop = image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return dst
}

// fitContain scales src to fit entirely inside a w x h canvas of colour bg.
func fitContain(src image.Image, w, h int, bg color.Color) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	b := src.Bounds()
	sw, sh := b.Dx(), b.Dy()
	nw, nh := w, sh*w/sw
	if nh > h {
		nw, nh = sw*h/sh, h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	x0, y0 := (w-nw)/2, (h-nh)/2
	draw.ApproxBiLinear.Scale(dst, image.Rect(x0, y0, x0+nw, y0+nh), src, b, draw.Src, nil)
	return dst
}

// roundedRect is an alpha mask for a rectangle with rounded corners.
type roundedRect struct {
	rect   image.Rectangle
	radius int
}

func newRoundedRect(r image.Rectangle, radius int) roundedRect {
	if half := r.Dx() / 2; radius > half {
		radius = half
	}
	if half := r.Dy() / 2; radius > half {
		radius = half
	}
	if radius < 0 {
		radius = 0
	}
	return roundedRect{rect: r, radius: radius}
}

func (m roundedRect) ColorModel() color.Model { return color.AlphaModel }

func (m roundedRect) Bounds() image.Rectangle { return m.rect }

func (m roundedRect) At(x, y int) color.Color {
	if !(image.Point{x, y}).In(m.rect) {
		return color.Transparent
	}
	r := m.radius
	if r == 0 {
		return color.Opaque
	}

	// Distance checks only inside the four corner squares.
	cx, cy := x, y
	switch {
	case x < m.rect.Min.X+r:
		cx = m.rect.Min.X + r
	case x >= m.rect.Max.X-r:
		cx = m.rect.Max.X - r - 1
	}
	switch {
	case y < m.rect.Min.Y+r:
		cy = m.rect.Min.Y + r
	case y >= m.rect.Max.Y-r:
		cy = m.rect.Max.Y - r - 1
	}
	dx, dy := x-cx, y-cy
	if dx*dx+dy*dy > r*r {
		return color.Transparent
	}
	return color.Opaque
}

// drawBackdrop alpha-composites a rounded translucent box onto dst.
func drawBackdrop(dst *image.RGBA, r image.Rectangle, radius int, c color.RGBA) {
	r = r.Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	mask := newRoundedRect(r, radius)
	draw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, mask, r.Min, draw.Over)
}
