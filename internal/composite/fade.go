package composite

import (
	"image"
	"math"

	"github.com/wader/ffedit/internal/frame"
	"github.com/wader/ffedit/internal/imgops"
)

// scale returns a copy of f with the color channels multiplied by alpha, the
// alpha channel is kept
func scale(f *image.RGBA, alpha float64) *image.RGBA {
	c := frame.Clone(f)
	for i := 0; i < len(c.Pix); i += frame.Channels {
		for j := 0; j < 3; j++ {
			c.Pix[i+j] = clampByte(float64(c.Pix[i+j]) * alpha)
		}
	}
	return c
}

// blend returns a*(1-t) + b*t per channel, a and b must have the same size
func blend(a, b *image.RGBA, t float64) *image.RGBA {
	f := frame.New(frame.Size(a))
	w, h := frame.Size(a)
	for y := 0; y < h; y++ {
		ar, br := frame.Row(a, y), frame.Row(b, y)
		fr := frame.Row(f, y)
		for x := 0; x < w*frame.Channels; x++ {
			fr[x] = clampByte(float64(ar[x])*(1-t) + float64(br[x])*t)
		}
	}
	return f
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	} else if v > 255 {
		return 255
	}
	return uint8(v)
}

// fadeLength is min(duration, n), 0 means no fade
func fadeLength(duration, n int) int {
	if duration <= 0 {
		return 0
	}
	return min(duration, n)
}

// FadeIn ramps frame i by alpha min(1, i/d) where d = min(duration, len(s)).
// duration <= 0 returns the frames unchanged.
func FadeIn(s frame.Sequence, duration int) frame.Sequence {
	d := fadeLength(duration, len(s))
	r := make(frame.Sequence, 0, len(s))
	for i, f := range s {
		if i >= d {
			r = append(r, f)
			continue
		}
		r = append(r, scale(f, float64(i)/float64(d)))
	}
	return r
}

// FadeOut ramps the last d = min(duration, len(s)) frames from alpha 1 toward 0.
// duration <= 0 returns the frames unchanged.
func FadeOut(s frame.Sequence, duration int) frame.Sequence {
	d := fadeLength(duration, len(s))
	start := len(s) - d
	r := make(frame.Sequence, 0, len(s))
	for i, f := range s {
		if i < start {
			r = append(r, f)
			continue
		}
		r = append(r, scale(f, 1-float64(i-start)/float64(d)))
	}
	return r
}

// Crossfade joins a and b with d = min(duration, len(a), len(b)) blended
// frames in between. The result is a[:len(a)-d], then d frames blending
// a[len(a)-d+i] into b[i] with weight i/d, then b[d:]. Frames of b are resized
// to the size of the last frame of a.
func Crossfade(a, b frame.Sequence, duration int) frame.Sequence {
	if len(a) == 0 {
		return b.Clone()
	}
	d := min(max(duration, 0), len(a), len(b))
	head := len(a) - d
	w, h := frame.Size(a[len(a)-1])
	r := make(frame.Sequence, 0, len(a)+len(b)-d)
	r = append(r, a[:head]...)
	for i := 0; i < d; i++ {
		af := a[head+i]
		bf := imgops.Resize(b[i], af.Rect.Dx(), af.Rect.Dy())
		r = append(r, blend(af, bf, float64(i)/float64(d)))
	}
	for _, bf := range b[d:] {
		r = append(r, imgops.Resize(bf, w, h))
	}
	return r
}
