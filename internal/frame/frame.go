// Package frame has the raster frame and frame sequence types shared by
// sources, sinks and operators.
//
// A frame is an *image.RGBA anchored at (0,0). Frames are treated as immutable
// once produced: operators that need to change pixels Clone first, operators
// that only reorder may share the same *image.RGBA between sequences.
package frame

import (
	"bytes"
	"image"
	"image/draw"
)

// Channels is the number of interleaved channels in a frame pixel buffer (RGBA)
const Channels = 4

// Sequence is an ordered list of frames, index 0..N-1
type Sequence []*image.RGBA

// New allocates a zeroed width x height frame
func New(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// FromImage converts any image into a frame anchored at (0,0)
func FromImage(m image.Image) *image.RGBA {
	if f, ok := m.(*image.RGBA); ok && f.Rect.Min == (image.Point{}) {
		return f
	}
	b := m.Bounds()
	f := New(b.Dx(), b.Dy())
	draw.Draw(f, f.Rect, m, b.Min, draw.Src)
	return f
}

// FromPix wraps a tightly packed RGBA pixel buffer, copying it
func FromPix(width, height int, pix []byte) *image.RGBA {
	f := New(width, height)
	copy(f.Pix, pix)
	return f
}

// Clone returns an independent copy of f
func Clone(f *image.RGBA) *image.RGBA {
	c := New(f.Rect.Dx(), f.Rect.Dy())
	if f.Stride == c.Stride && f.Rect.Min == (image.Point{}) {
		copy(c.Pix, f.Pix)
		return c
	}
	draw.Draw(c, c.Rect, f, f.Rect.Min, draw.Src)
	return c
}

// Size returns frame width and height
func Size(f *image.RGBA) (width, height int) {
	return f.Rect.Dx(), f.Rect.Dy()
}

// SameSize reports if a and b have the same width and height
func SameSize(a, b *image.RGBA) bool {
	return a.Rect.Dx() == b.Rect.Dx() && a.Rect.Dy() == b.Rect.Dy()
}

// Equal reports if a and b have the same size and pixel values
func Equal(a, b *image.RGBA) bool {
	if !SameSize(a, b) {
		return false
	}
	for y := 0; y < a.Rect.Dy(); y++ {
		if !bytes.Equal(Row(a, y), Row(b, y)) {
			return false
		}
	}
	return true
}

// Row returns the pixel bytes of row y (relative to the frame origin)
func Row(f *image.RGBA, y int) []byte {
	off := f.PixOffset(f.Rect.Min.X, f.Rect.Min.Y+y)
	return f.Pix[off : off+f.Rect.Dx()*Channels]
}

// Clone returns a new sequence sharing the same frames
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	c := make(Sequence, len(s))
	copy(c, s)
	return c
}

// Equal reports if both sequences have the same length and equal frames
func (s Sequence) Equal(o Sequence) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !Equal(s[i], o[i]) {
			return false
		}
	}
	return true
}
