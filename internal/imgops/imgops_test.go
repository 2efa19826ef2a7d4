package imgops_test

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wader/ffedit/internal/frame"
	"github.com/wader/ffedit/internal/imgops"
)

func TestResize(t *testing.T) {
	f := frame.New(10, 20)
	for i := range f.Pix {
		f.Pix[i] = 128
	}

	r := imgops.Resize(f, 5, 7)
	assert.Equal(t, image.Rect(0, 0, 5, 7), r.Rect)
	c := r.RGBAAt(2, 3)
	assert.InDelta(t, 128, int(c.R), 1)
	assert.InDelta(t, 128, int(c.A), 1)

	assert.Same(t, f, imgops.Resize(f, 10, 20))
	assert.Equal(t, 0, imgops.Resize(f, 0, 3).Rect.Dx())
}

func TestDrawText(t *testing.T) {
	f := frame.New(120, 40)
	orig := frame.Clone(f)

	imgops.DrawText(f, "Hi", image.Pt(10, 30), imgops.DefaultTextStyle)
	assert.False(t, frame.Equal(orig, f))

	// nothing drawn left of the start point minus thickness
	for y := 0; y < 40; y++ {
		assert.Equal(t, color.RGBA{}, f.RGBAAt(0, y))
	}

	blank := frame.New(10, 10)
	imgops.DrawText(blank, "", image.Pt(0, 0), imgops.DefaultTextStyle)
	assert.True(t, frame.Equal(frame.New(10, 10), blank))
}
