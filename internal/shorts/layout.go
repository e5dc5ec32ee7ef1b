// Package shorts derives a capped vertical cut from a rendered landscape video.
package shorts

import "fmt"

const (
	// outscale is the share of the canvas the content occupies.
	outscale = 0.5
	// wideRatio is the aspect ratio above which the sides are cropped.
	wideRatio = 1.5
	// wideCrop is the fraction of the source width cropped from very wide input.
	wideCrop = 0.15
)

// Geometry places a (possibly cropped) source inside the vertical canvas.
type Geometry struct {
	CropX, CropW  int // horizontal source crop; CropW equals the source width when nothing is cropped
	SrcH          int
	Width, Height int // scaled content size
	X, Y          int // content offset on the canvas
	CanvasW       int
	CanvasH       int
}

// Cropped reports whether the source is cropped before scaling.
func (g Geometry) Cropped() bool { return g.CropX > 0 }

// Layout computes the vertical placement of a srcW x srcH video on a dstW x
// dstH canvas. Every dimension it returns is even.
func Layout(srcW, srcH, dstW, dstH int) (Geometry, error) {
	if srcW <= 0 || srcH <= 0 {
		return Geometry{}, fmt.Errorf("invalid source size %dx%d", srcW, srcH)
	}
	dstW, dstH = even(dstW), even(dstH)
	if dstW < 2 || dstH < 2 {
		return Geometry{}, fmt.Errorf("invalid canvas size %dx%d", dstW, dstH)
	}

	g := Geometry{CropW: srcW, SrcH: srcH, CanvasW: dstW, CanvasH: dstH}
	ratio := float64(srcW) / float64(srcH)

	var w, h float64
	switch {
	case ratio > wideRatio:
		crop := int(float64(srcW) * wideCrop)
		g.CropX = crop / 2
		g.CropW = srcW - 2*g.CropX
		h = float64(dstH) * outscale
		w = h * float64(g.CropW) / float64(srcH)
	case ratio >= 1:
		h = float64(dstH) * outscale
		w = h * ratio
	default:
		w = float64(dstW) * outscale
		h = w / ratio
	}

	// Keep the content inside the canvas.
	if w > float64(dstW) {
		h = h * float64(dstW) / w
		w = float64(dstW)
	}
	if h > float64(dstH) {
		w = w * float64(dstH) / h
		h = float64(dstH)
	}

	g.Width = max(even(int(w)), 2)
	g.Height = max(even(int(h)), 2)
	g.CropW = max(even(g.CropW), 2)
	g.X = even((dstW - g.Width) / 2)
	g.Y = even((dstH - g.Height) / 2)
	return g, nil
}

// Filter is the crop+scale+pad video chain for g.
func (g Geometry) Filter() string {
	chain := ""
	if g.Cropped() {
		chain = fmt.Sprintf("crop=%d:%d:%d:0,", g.CropW, g.SrcH, g.CropX)
	}
	return chain + fmt.Sprintf("scale=%d:%d,pad=%d:%d:%d:%d:black,setsar=1,format=yuv420p",
		g.Width, g.Height, g.CanvasW, g.CanvasH, g.X, g.Y)
}

func even(n int) int {
	return n - n%2
}
