package source

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/wader/ffedit/internal/frame"
	"github.com/wader/ffedit/internal/goffmpeg"
	"github.com/wader/ffedit/internal/logging"
)

// Options for opening a file-backed source
type Options struct {
	// DefaultFrameRate is used when the file has no usable frame rate, <= 0 means DefaultFrameRate
	DefaultFrameRate int
	Logger           logrus.FieldLogger
}

// FileBacked decodes frames from a video file using ffmpeg.
//
// A decoder process is kept running between reads. Reading at the current
// position continues with the same decoder, any other position restarts the
// decoder at that frame. After ExtractFrame or ReadRange subsequent reads
// continue after the last returned frame.
type FileBacked struct {
	path   string
	width  int
	height int
	rate   int
	count  int
	log    logrus.FieldLogger

	dec    *decoder
	next   int
	eof    bool
	closed bool
}

var _ Source = (*FileBacked)(nil)

// Open probes path and returns a source positioned at the first frame
func Open(ctx context.Context, path string, opts Options) (*FileBacked, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithField("input", path)

	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	probe := &goffmpeg.FFProbeCmd{
		Context:  ctx,
		Input:    goffmpeg.Input{File: path},
		DebugLog: logging.DebugPrinter(log),
	}
	pr, err := probe.Result()
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", path, err)
	}
	vs, ok := pr.FirstVideoStream()
	if !ok {
		return nil, fmt.Errorf("probe %s: no video stream", path)
	}

	f := &FileBacked{
		path:   path,
		width:  int(vs.DisplayWidth()),
		height: int(vs.DisplayHeight()),
		log:    log,
	}
	if f.width <= 0 || f.height <= 0 {
		return nil, fmt.Errorf("probe %s: invalid video size %dx%d", path, f.width, f.height)
	}

	defaultRate := opts.DefaultFrameRate
	if defaultRate <= 0 {
		defaultRate = DefaultFrameRate
	}
	if r, ok := vs.FrameRate(); ok && int(r) > 0 {
		f.rate = int(r)
	} else {
		log.WithField("default_fps", defaultRate).Warn("no usable frame rate, using default")
		f.rate = defaultRate
	}

	if n, ok := vs.FrameCount(); ok {
		f.count = n
	} else {
		d, _ := strconv.ParseFloat(vs.Duration, 64)
		if d <= 0 {
			d = pr.Duration().Seconds()
		}
		if r, ok := vs.FrameRate(); ok {
			f.count = int(math.Round(d * r))
		} else {
			f.count = int(math.Round(d * float64(f.rate)))
		}
		log.WithField("frame_count", f.count).Warn("frame count not declared, estimated from duration")
	}

	log.WithFields(logrus.Fields{
		"width":       f.width,
		"height":      f.height,
		"fps":         f.rate,
		"frame_count": f.count,
	}).Debug("opened")

	return f, nil
}

func (f *FileBacked) Width() int      { return f.width }
func (f *FileBacked) Height() int     { return f.height }
func (f *FileBacked) FrameRate() int  { return f.rate }
func (f *FileBacked) FrameCount() int { return f.count }

// ReadAll reads from the current position until end of stream
func (f *FileBacked) ReadAll(ctx context.Context) (frame.Sequence, error) {
	if f.closed {
		return nil, ErrClosed
	}
	if err := f.seek(f.next); err != nil {
		return nil, err
	}
	return f.read(ctx, -1)
}

// ReadRange only decodes the frames in [start, end) and truncates at end of stream
func (f *FileBacked) ReadRange(ctx context.Context, start, end int) (frame.Sequence, error) {
	if f.closed {
		return nil, ErrClosed
	}
	if start < 0 {
		start = 0
	}
	if end <= start {
		return frame.Sequence{}, nil
	}
	if err := f.seek(start); err != nil {
		return nil, err
	}
	return f.read(ctx, end-start)
}

func (f *FileBacked) ExtractFrame(ctx context.Context, index int) (*image.RGBA, bool, error) {
	if f.closed {
		return nil, false, ErrClosed
	}
	if index < 0 || index >= f.count {
		return nil, false, nil
	}
	if err := f.seek(index); err != nil {
		return nil, false, err
	}
	seq, err := f.read(ctx, 1)
	if err != nil {
		return nil, false, err
	}
	// declared frame count can be larger than what actually decodes
	if len(seq) == 0 {
		return nil, false, nil
	}
	return seq[0], true, nil
}

// Close stops any running decoder. Closing more than once is a no-op.
func (f *FileBacked) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.stopDecoder()
	return nil
}

func (f *FileBacked) seek(index int) error {
	if f.dec != nil && f.next == index {
		return nil
	}
	f.stopDecoder()
	dec, err := startDecoder(f.path, index, f.width, f.height, f.log)
	if err != nil {
		return err
	}
	f.dec = dec
	f.next = index
	f.eof = false
	return nil
}

// read up to n frames from the decoder, n < 0 reads until end of stream
func (f *FileBacked) read(ctx context.Context, n int) (frame.Sequence, error) {
	seq := frame.Sequence{}
	for n < 0 || len(seq) < n {
		if f.eof {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fr, err := f.dec.readFrame()
		if errors.Is(err, io.EOF) {
			f.eof = true
			if werr := f.dec.wait(); werr != nil {
				return nil, fmt.Errorf("decode %s: %w", f.path, werr)
			}
			break
		} else if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.path, err)
		}
		seq = append(seq, fr)
		f.next++
	}
	return seq, nil
}

func (f *FileBacked) stopDecoder() {
	if f.dec == nil {
		return
	}
	f.dec.stop()
	f.dec = nil
}

// decoder is a running ffmpeg process writing raw rgba frames starting at a frame index
type decoder struct {
	cmd    *goffmpeg.FFmpegCmd
	r      *os.File
	cancel context.CancelFunc
	width  int
	height int
	waited bool
	err    error
}

func startDecoder(path string, start, width, height int, log logrus.FieldLogger) (*decoder, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	// decoder lifetime spans multiple reads so it is not bound to a read context
	ctx, cancel := context.WithCancel(context.Background())

	input := &goffmpeg.Input{File: path}
	cmd := &goffmpeg.FFmpegCmd{
		Context: ctx,
		Flags:   []string{"-loglevel", "error"},
		Inputs:  []*goffmpeg.Input{input},
		FilterGraph: &goffmpeg.FilterGraph{
			{
				{
					Name:    "select",
					Inputs:  []string{"0:v:0"},
					Outputs: []string{"out"},
					Options: map[string]string{"expr": "gte(n," + strconv.Itoa(start) + ")"},
				},
			},
		},
		Outputs: []*goffmpeg.Output{
			{
				File:   pw,
				Maps:   []*goffmpeg.Map{{Specifier: "[out]"}},
				Format: "rawvideo",
				Options: map[string]string{
					"pix_fmt":  "rgba",
					"fps_mode": "passthrough",
				},
			},
		},
		CloseAfterStart: []io.Closer{pw},
		DebugLog:        logging.DebugPrinter(log),
	}
	if err := cmd.Start(); err != nil {
		cancel()
		pr.Close()
		return nil, fmt.Errorf("start decoder: %w", err)
	}

	log.WithField("start", start).Debug("decoder started")

	return &decoder{
		cmd:    cmd,
		r:      pr,
		cancel: cancel,
		width:  width,
		height: height,
	}, nil
}

// readFrame returns io.EOF at end of stream, a trailing partial frame is dropped
func (d *decoder) readFrame() (*image.RGBA, error) {
	f := frame.New(d.width, d.height)
	if _, err := io.ReadFull(d.r, f.Pix); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return f, nil
}

func (d *decoder) wait() error {
	if d.waited {
		return d.err
	}
	d.waited = true
	d.err = d.cmd.Wait()
	d.r.Close()
	d.cancel()
	return d.err
}

// stop kills the process if still running, exit errors are ignored
func (d *decoder) stop() {
	if d.waited {
		return
	}
	d.cancel()
	d.r.Close()
	d.wait()
}
