// Package imgops has the per-frame raster primitives the operators delegate to.
// They have no frame-to-frame state.
package imgops

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wader/ffedit/internal/frame"
)

// Interpolator used by Resize
var Interpolator xdraw.Interpolator = xdraw.ApproxBiLinear

// Resize returns f scaled to width x height. Returns f itself if it already
// has that size.
func Resize(f *image.RGBA, width, height int) *image.RGBA {
	if f.Rect.Dx() == width && f.Rect.Dy() == height && f.Rect.Min == (image.Point{}) {
		return f
	}
	if width <= 0 || height <= 0 {
		return frame.New(0, 0)
	}
	dst := frame.New(width, height)
	Interpolator.Scale(dst, dst.Rect, f, f.Rect, draw.Src, nil)
	return dst
}

// TextStyle describes how DrawText renders
type TextStyle struct {
	Scale     float64
	Color     color.RGBA
	Thickness int
}

// DefaultTextStyle is white, scale 1 and thickness 2
var DefaultTextStyle = TextStyle{
	Scale:     1,
	Color:     color.RGBA{R: 255, G: 255, B: 255, A: 255},
	Thickness: 2,
}

var textFace = basicfont.Face7x13

// DrawText draws text onto f in place with the baseline left point at pt
func DrawText(f *image.RGBA, text string, pt image.Point, style TextStyle) {
	if text == "" {
		return
	}
	scale := style.Scale
	if scale <= 0 {
		scale = 1
	}

	// render at native face size into a mask, scale the mask, then use it
	// to paint the color at every thickness offset
	metrics := textFace.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := ascent + metrics.Descent.Ceil()
	width := font.MeasureString(textFace, text).Ceil()
	if width <= 0 || height <= 0 {
		return
	}

	mask := image.NewAlpha(image.Rect(0, 0, width, height))
	d := font.Drawer{
		Dst:  mask,
		Src:  image.Opaque,
		Face: textFace,
		Dot:  fixed.P(0, ascent),
	}
	d.DrawString(text)

	sw := int(float64(width)*scale + 0.5)
	sh := int(float64(height)*scale + 0.5)
	if sw <= 0 || sh <= 0 {
		return
	}
	scaled := image.NewAlpha(image.Rect(0, 0, sw, sh))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Rect, mask, mask.Rect, draw.Src, nil)

	origin := image.Pt(pt.X, pt.Y-int(float64(ascent)*scale+0.5))
	src := image.NewUniform(style.Color)
	r := style.Thickness / 2
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			o := origin.Add(image.Pt(dx, dy))
			draw.DrawMask(f, scaled.Rect.Add(o), src, image.Point{}, scaled, image.Point{}, draw.Over)
		}
	}
}
