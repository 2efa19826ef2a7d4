// Package source turns a video file or an in-memory frame list into an
// ordered, randomly addressable frame sequence.
//
// Metadata (size, frame rate, frame count) is fixed when a source is created.
// Reads are fully materialized, there is no lazy or streaming read.
package source

import (
	"context"
	"errors"
	"image"

	"github.com/wader/ffedit/internal/frame"
)

// DefaultFrameRate is used for in-memory frames and files without a usable rate
const DefaultFrameRate = 30

// ErrClosed is returned when reading from a closed source
var ErrClosed = errors.New("source closed")

// Source is a random access, sequential read frame source
type Source interface {
	Width() int
	Height() int
	FrameRate() int
	FrameCount() int

	// ReadAll reads every remaining frame in order. For file-backed sources
	// this resumes from the current read position.
	ReadAll(ctx context.Context) (frame.Sequence, error)
	// ReadRange reads frames with index in [start, end). Reading past the
	// end truncates.
	ReadRange(ctx context.Context, start, end int) (frame.Sequence, error)
	// ExtractFrame returns the frame at index, ok is false if the index is
	// outside [0, FrameCount()).
	ExtractFrame(ctx context.Context, index int) (f *image.RGBA, ok bool, err error)

	Close() error
}

// clampRange clamps [start, end) to [0, n)
func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	return start, end
}

// Use opens path, calls fn and always closes the source afterwards
func Use(ctx context.Context, path string, opts Options, fn func(s Source) error) error {
	s, err := Open(ctx, path, opts)
	if err != nil {
		return err
	}
	return With(s, fn)
}

// With calls fn with s and closes s afterwards. A close error is returned
// only if fn succeeded.
func With(s Source, fn func(s Source) error) (err error) {
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
