package source_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wader/osleaktest"

	"github.com/wader/ffedit/internal/frame"
	"github.com/wader/ffedit/internal/goffmpeg"
	"github.com/wader/ffedit/internal/source"
)

func leakChecks(t *testing.T) func() {
	leakFn := leaktest.Check(t)
	osLeakFn := osleaktest.Check(t)
	return func() {
		leakFn()
		osLeakFn()
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, p := range []string{goffmpeg.FFmpegPath, goffmpeg.FFprobePath} {
		if _, err := exec.LookPath(p); err != nil {
			t.Skipf("%s not found", p)
		}
	}
}

func generateTestVideo(t *testing.T, path string, size string, rate int, frames int) {
	t.Helper()
	i := &goffmpeg.Input{
		Format: "lavfi",
		File:   "testsrc=size=" + size + ":rate=" + strconv.Itoa(rate),
	}
	c := &goffmpeg.FFmpegCmd{
		Context: context.Background(),
		Flags:   []string{"-y", "-v", "error"},
		Inputs:  []*goffmpeg.Input{i},
		Outputs: []*goffmpeg.Output{
			{
				Maps:  []*goffmpeg.Map{{Input: i, Specifier: "v:0", Codec: "mpeg4"}},
				Flags: []string{"-frames:v", strconv.Itoa(frames)},
				File:  path,
			},
		},
	}
	require.NoError(t, c.Run())
}

// numbered returns n 2x2 frames where frame i has red value i
func numbered(n int) frame.Sequence {
	seq := frame.Sequence{}
	for i := 0; i < n; i++ {
		f := frame.New(2, 2)
		f.SetRGBA(0, 0, color.RGBA{R: uint8(i), A: 255})
		seq = append(seq, f)
	}
	return seq
}

func TestInMemory(t *testing.T) {
	ctx := context.Background()
	frames := numbered(5)
	s := source.NewInMemory(frames, 0)

	assert.Equal(t, 2, s.Width())
	assert.Equal(t, 2, s.Height())
	assert.Equal(t, source.DefaultFrameRate, s.FrameRate())
	assert.Equal(t, 5, s.FrameCount())

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.True(t, all.Equal(frames))

	// ReadAll returns a copy of the list
	all[0] = nil
	again, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, again[0])

	f, ok, err := s.ExtractFrame(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Same(t, frames[3], f)

	assert.NoError(t, s.Close())
}

func TestInMemoryRate(t *testing.T) {
	assert.Equal(t, 12, source.NewInMemory(numbered(1), 12).FrameRate())
}

func TestInMemoryEmpty(t *testing.T) {
	s := source.NewInMemory(nil, 25)
	assert.Equal(t, 0, s.Width())
	assert.Equal(t, 0, s.FrameCount())
	all, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestInMemoryReadRange(t *testing.T) {
	frames := numbered(5)
	s := source.NewInMemory(frames, 0)

	testCases := []struct {
		start, end int
		expected   frame.Sequence
	}{
		{start: 0, end: 5, expected: frames},
		{start: 1, end: 3, expected: frames[1:3]},
		{start: 3, end: 100, expected: frames[3:]},
		{start: -2, end: 2, expected: frames[0:2]},
		{start: 4, end: 2, expected: frame.Sequence{}},
		{start: 10, end: 20, expected: frame.Sequence{}},
	}
	for _, tC := range testCases {
		t.Run(strconv.Itoa(tC.start)+"-"+strconv.Itoa(tC.end), func(t *testing.T) {
			actual, err := s.ReadRange(context.Background(), tC.start, tC.end)
			require.NoError(t, err)
			assert.True(t, tC.expected.Equal(actual), "expected %d frames, got %d", len(tC.expected), len(actual))
		})
	}
}

func TestInMemoryExtractOutOfRange(t *testing.T) {
	s := source.NewInMemory(numbered(3), 0)
	for _, i := range []int{-1, 3, 100} {
		f, ok, err := s.ExtractFrame(context.Background(), i)
		assert.NoError(t, err)
		assert.False(t, ok, "index %d", i)
		assert.Nil(t, f)
	}
}

func TestFileBacked(t *testing.T) {
	requireFFmpeg(t)
	defer leakChecks(t)()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "in.mp4")
	generateTestVideo(t, path, "32x16", 25, 10)

	s, err := source.Open(ctx, path, source.Options{})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 32, s.Width())
	assert.Equal(t, 16, s.Height())
	assert.Equal(t, 25, s.FrameRate())
	assert.Equal(t, 10, s.FrameCount())

	all, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 10)
	assert.Equal(t, image.Rect(0, 0, 32, 16), all[0].Rect)

	r, err := s.ReadRange(ctx, 2, 5)
	require.NoError(t, err)
	assert.True(t, all[2:5].Equal(r))

	r, err = s.ReadRange(ctx, 8, 20)
	require.NoError(t, err)
	assert.True(t, all[8:].Equal(r))

	f, ok, err := s.ExtractFrame(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, frame.Equal(all[3], f))

	// reads continue after the extracted frame
	rest, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.True(t, all[4:].Equal(rest))

	_, ok, err = s.ExtractFrame(ctx, 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileBackedClosed(t *testing.T) {
	requireFFmpeg(t)
	defer leakChecks(t)()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "in.mp4")
	generateTestVideo(t, path, "16x16", 10, 5)

	s, err := source.Open(ctx, path, source.Options{})
	require.NoError(t, err)

	// leaves a decoder running mid stream
	_, err = s.ReadRange(ctx, 0, 1)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.ReadAll(ctx)
	assert.ErrorIs(t, err, source.ErrClosed)
	_, _, err = s.ExtractFrame(ctx, 0)
	assert.ErrorIs(t, err, source.ErrClosed)
}

func TestOpenMissing(t *testing.T) {
	_, err := source.Open(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"), source.Options{})
	assert.Error(t, err)
}

func TestUse(t *testing.T) {
	requireFFmpeg(t)
	defer leakChecks(t)()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "in.mp4")
	generateTestVideo(t, path, "16x16", 10, 3)

	var n int
	err := source.Use(ctx, path, source.Options{}, func(s source.Source) error {
		all, err := s.ReadAll(ctx)
		n = len(all)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

type failClose struct {
	source.Source
	closed *int
	err    error
}

func (f failClose) Close() error {
	*f.closed++
	return f.err
}

func TestWith(t *testing.T) {
	closeErr := errors.New("close")
	fnErr := errors.New("fn")
	testCases := []struct {
		name     string
		closeErr error
		fnErr    error
		expected error
	}{
		{name: "ok"},
		{name: "close error", closeErr: closeErr, expected: closeErr},
		{name: "fn error", fnErr: fnErr, expected: fnErr},
		{name: "fn error wins", closeErr: closeErr, fnErr: fnErr, expected: fnErr},
	}
	for _, tC := range testCases {
		t.Run(tC.name, func(t *testing.T) {
			var closed int
			s := failClose{Source: source.NewInMemory(numbered(2), 0), closed: &closed, err: tC.closeErr}
			err := source.With(s, func(s source.Source) error {
				assert.Equal(t, 0, closed)
				return tC.fnErr
			})
			assert.Equal(t, 1, closed)
			if tC.expected == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tC.expected)
			}
		})
	}
}
