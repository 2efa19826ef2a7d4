// Package sink writes frame sequences to video files by piping raw rgba frames
// into an ffmpeg encoder, and single frames to still image files.
package sink

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/wader/ffedit/internal/frame"
	"github.com/wader/ffedit/internal/goffmpeg"
	"github.com/wader/ffedit/internal/logging"
)

// Defaults used when Options leaves them empty
const (
	DefaultCodec  = "mpeg4"
	DefaultPixFmt = "yuv420p"
)

// ErrFrameSize is returned when a frame differs in size from the first frame
var ErrFrameSize = errors.New("frame size differs from first frame")

// Options for a sink
type Options struct {
	Codec  string
	PixFmt string
	// Comment is written as container metadata, usually the operation name
	Comment string
	Logger  logrus.FieldLogger
}

// Sink encodes frame sequences at the frame rate of the source they came from
type Sink struct {
	rate int
	opts Options
	log  logrus.FieldLogger
}

// New sink writing at rate frames per second unless overridden with WriteWithRate
func New(rate int, opts Options) *Sink {
	if opts.Codec == "" {
		opts.Codec = DefaultCodec
	}
	if opts.PixFmt == "" {
		opts.PixFmt = DefaultPixFmt
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &Sink{rate: rate, opts: opts, log: log}
}

// Rate is the frame rate used by Write
func (s *Sink) Rate() int { return s.rate }

// Write encodes seq to dst at the sink rate. Empty seq is a no-op.
func (s *Sink) Write(ctx context.Context, dst string, seq frame.Sequence) error {
	return s.WriteWithRate(ctx, dst, seq, s.rate)
}

// WriteWithRate encodes seq to dst at rate, rate < 1 is clamped to 1.
// The encoder is always waited on so dst is finalized also on error.
func (s *Sink) WriteWithRate(ctx context.Context, dst string, seq frame.Sequence, rate int) error {
	if len(seq) == 0 {
		return nil
	}
	if rate < 1 {
		rate = 1
	}
	w, h := frame.Size(seq[0])
	for i, f := range seq {
		if fw, fh := frame.Size(f); fw != w || fh != h {
			return fmt.Errorf("frame %d is %dx%d, expected %dx%d: %w", i, fw, fh, w, h, ErrFrameSize)
		}
	}

	log := s.log.WithFields(logrus.Fields{"output": dst, "rate": rate})

	pr, pw, err := os.Pipe()
	if err != nil {
		return err
	}

	input := &goffmpeg.Input{
		File:   pr,
		Format: "rawvideo",
		Options: map[string]string{
			"framerate":  strconv.Itoa(rate),
			"pix_fmt":    "rgba",
			"video_size": strconv.Itoa(w) + "x" + strconv.Itoa(h),
		},
	}
	var metadata *goffmpeg.Metadata
	if s.opts.Comment != "" {
		metadata = &goffmpeg.Metadata{Comment: s.opts.Comment}
	}
	cmd := &goffmpeg.FFmpegCmd{
		Context: ctx,
		Flags:   []string{"-y", "-loglevel", "error"},
		Inputs:  []*goffmpeg.Input{input},
		Outputs: []*goffmpeg.Output{
			{
				File: dst,
				Maps: []*goffmpeg.Map{
					{
						Input:     input,
						Specifier: "v:0",
						Codec:     s.opts.Codec,
						Options:   map[string]string{"pix_fmt": s.opts.PixFmt},
					},
				},
				Metadata: metadata,
			},
		},
		CloseAfterStart: []io.Closer{pr},
		DebugLog:        logging.DebugPrinter(log),
	}
	if err := cmd.Start(); err != nil {
		pw.Close()
		return fmt.Errorf("start encoder: %w", err)
	}

	writeErr := writeFrames(pw, seq)
	pw.Close()
	// encoder error has the stderr lines so prefer it over a broken pipe
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("encode %s: %w", dst, err)
	}
	if writeErr != nil {
		return fmt.Errorf("encode %s: %w", dst, writeErr)
	}

	log.WithField("frames", len(seq)).Debug("encoded")

	return nil
}

func writeFrames(w io.Writer, seq frame.Sequence) error {
	for _, f := range seq {
		fw, fh := frame.Size(f)
		if f.Stride == fw*frame.Channels && f.Rect.Min == (image.Point{}) {
			if _, err := w.Write(f.Pix[:fh*f.Stride]); err != nil {
				return err
			}
			continue
		}
		for y := 0; y < fh; y++ {
			if _, err := w.Write(frame.Row(f, y)); err != nil {
				return err
			}
		}
	}
	return nil
}
