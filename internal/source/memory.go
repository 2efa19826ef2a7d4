package source

import (
	"context"
	"image"

	"github.com/wader/ffedit/internal/frame"
)

// InMemory is a source over an existing frame sequence, reads are slicing
type InMemory struct {
	frames frame.Sequence
	rate   int
	width  int
	height int
}

var _ Source = (*InMemory)(nil)

// NewInMemory creates a source over frames. Size is taken from the first frame,
// a rate <= 0 means DefaultFrameRate.
func NewInMemory(frames frame.Sequence, rate int) *InMemory {
	if rate <= 0 {
		rate = DefaultFrameRate
	}
	m := &InMemory{frames: frames.Clone(), rate: rate}
	if len(frames) > 0 {
		m.width, m.height = frame.Size(frames[0])
	}
	return m
}

func (m *InMemory) Width() int      { return m.width }
func (m *InMemory) Height() int     { return m.height }
func (m *InMemory) FrameRate() int  { return m.rate }
func (m *InMemory) FrameCount() int { return len(m.frames) }

// ReadAll returns a copy of the frame list
func (m *InMemory) ReadAll(ctx context.Context) (frame.Sequence, error) {
	return m.ReadRange(ctx, 0, len(m.frames))
}

func (m *InMemory) ReadRange(ctx context.Context, start, end int) (frame.Sequence, error) {
	start, end = clampRange(start, end, len(m.frames))
	return m.frames[start:end].Clone(), nil
}

func (m *InMemory) ExtractFrame(ctx context.Context, index int) (*image.RGBA, bool, error) {
	if index < 0 || index >= len(m.frames) {
		return nil, false, nil
	}
	return m.frames[index], true, nil
}

func (m *InMemory) Close() error { return nil }
