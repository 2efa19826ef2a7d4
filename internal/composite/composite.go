// Package composite has operators that combine two sequences or blend a
// sequence over time. Input sequences and frames are never modified, frames
// that need new pixels are cloned or freshly allocated.
package composite

import (
	"image"
	"image/draw"

	"github.com/wader/ffedit/internal/frame"
	"github.com/wader/ffedit/internal/imgops"
)

// StackHorizontal joins frame i of a and b side by side, b resized to the
// height of a. Output length is the shorter of the two.
func StackHorizontal(a, b frame.Sequence) frame.Sequence {
	n := min(len(a), len(b))
	r := make(frame.Sequence, 0, n)
	for i := 0; i < n; i++ {
		aw, ah := frame.Size(a[i])
		bw, _ := frame.Size(b[i])
		bf := imgops.Resize(b[i], bw, ah)
		bw, _ = frame.Size(bf)

		f := frame.New(aw+bw, ah)
		draw.Draw(f, a[i].Rect.Sub(a[i].Rect.Min), a[i], a[i].Rect.Min, draw.Src)
		draw.Draw(f, image.Rect(aw, 0, aw+bw, ah), bf, bf.Rect.Min, draw.Src)
		r = append(r, f)
	}
	return r
}

// StackVertical joins frame i of a above frame i of b, b resized to the
// width of a. Output length is the shorter of the two.
func StackVertical(a, b frame.Sequence) frame.Sequence {
	n := min(len(a), len(b))
	r := make(frame.Sequence, 0, n)
	for i := 0; i < n; i++ {
		aw, ah := frame.Size(a[i])
		_, bh := frame.Size(b[i])
		bf := imgops.Resize(b[i], aw, bh)
		_, bh = frame.Size(bf)

		f := frame.New(aw, ah+bh)
		draw.Draw(f, a[i].Rect.Sub(a[i].Rect.Min), a[i], a[i].Rect.Min, draw.Src)
		draw.Draw(f, image.Rect(0, ah, aw, ah+bh), bf, bf.Rect.Min, draw.Src)
		r = append(r, f)
	}
	return r
}

// Overlay pastes frame i of b onto a copy of frame i of a with its top left
// corner at pt. Pixels are replaced, not blended, and clipped to a. Frames of a
// past the end of b are passed through.
func Overlay(a, b frame.Sequence, pt image.Point) frame.Sequence {
	r := make(frame.Sequence, 0, len(a))
	for i, af := range a {
		if i >= len(b) {
			r = append(r, af)
			continue
		}
		f := frame.Clone(af)
		bf := b[i]
		draw.Draw(f, bf.Rect.Sub(bf.Rect.Min).Add(pt), bf, bf.Rect.Min, draw.Src)
		r = append(r, f)
	}
	return r
}

// TextOverlay draws text on a copy of every frame
func TextOverlay(s frame.Sequence, text string, pt image.Point, style imgops.TextStyle) frame.Sequence {
	r := make(frame.Sequence, 0, len(s))
	for _, f := range s {
		c := frame.Clone(f)
		imgops.DrawText(c, text, pt, style)
		r = append(r, c)
	}
	return r
}
