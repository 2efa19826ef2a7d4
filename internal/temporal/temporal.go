// Package temporal has operators that reorder, resample or repeat frames in a
// sequence. Operators never modify their input, frames are shared when only
// reordered and cloned when a copy must be independent.
package temporal

import (
	"errors"
	"fmt"

	"github.com/wader/ffedit/internal/frame"
)

// ErrInvalidFactor is returned by SpeedUp for a factor below 1 or NaN
var ErrInvalidFactor = errors.New("invalid speed factor")

// Reverse returns frames in reverse order
func Reverse(s frame.Sequence) frame.Sequence {
	r := make(frame.Sequence, len(s))
	for i, f := range s {
		r[len(s)-1-i] = f
	}
	return r
}

// SpeedUp keeps every floor(factor)-th frame starting at index 0.
// Frame rate is left unchanged.
func SpeedUp(s frame.Sequence, factor float64) (frame.Sequence, error) {
	if !(factor >= 1) {
		return nil, fmt.Errorf("speed up %v: %w", factor, ErrInvalidFactor)
	}
	// stride >= len(s) keeps only frame 0, also bounds int(factor)
	stride := max(len(s), 1)
	if factor < float64(stride) {
		stride = int(factor)
	}
	r := make(frame.Sequence, 0, (len(s)+stride-1)/stride)
	for i := 0; i < len(s); i += stride {
		r = append(r, s[i])
	}
	return r, nil
}

// SlowDown returns the frames unchanged, slower playback is done by writing
// with SlowDownRate instead of the source rate
func SlowDown(s frame.Sequence) frame.Sequence {
	return s.Clone()
}

// SlowDownRate is the output frame rate for playing at factor speed, at least 1
func SlowDownRate(rate int, factor float64) int {
	r := int(float64(rate) * factor)
	if r < 1 {
		return 1
	}
	return r
}

// Freeze inserts duration independent copies of frame index right after
// index. An out of range index returns the input unchanged.
func Freeze(s frame.Sequence, index int, duration int) frame.Sequence {
	if index < 0 || index >= len(s) {
		return s.Clone()
	}
	if duration < 0 {
		duration = 0
	}
	r := make(frame.Sequence, 0, len(s)+duration)
	r = append(r, s[:index]...)
	for i := 0; i < duration; i++ {
		r = append(r, frame.Clone(s[index]))
	}
	return append(r, s[index:]...)
}

// Loop repeats the sequence count times, count <= 0 gives an empty sequence
func Loop(s frame.Sequence, count int) frame.Sequence {
	if count <= 0 || len(s) == 0 {
		return frame.Sequence{}
	}
	r := make(frame.Sequence, 0, capHint(len(s), count))
	for i := 0; i < count; i++ {
		r = append(r, s...)
	}
	return r
}

// Duplicate repeats each frame factor times in a row, each repeat an
// independent copy. factor <= 0 gives an empty sequence.
func Duplicate(s frame.Sequence, factor int) frame.Sequence {
	if factor <= 0 || len(s) == 0 {
		return frame.Sequence{}
	}
	r := make(frame.Sequence, 0, capHint(len(s), factor))
	for _, f := range s {
		for i := 0; i < factor; i++ {
			r = append(r, frame.Clone(f))
		}
	}
	return r
}

// maxCapHint bounds preallocation, larger results grow with append
const maxCapHint = 1 << 16

func capHint(n, count int) int {
	if count > maxCapHint/n {
		return maxCapHint
	}
	return n * count
}
