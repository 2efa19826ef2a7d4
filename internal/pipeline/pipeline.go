// Package pipeline resolves a named operation, opens the sources it needs,
// runs it and writes the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/wader/ffedit/internal/frame"
	"github.com/wader/ffedit/internal/logging"
	"github.com/wader/ffedit/internal/sink"
	"github.com/wader/ffedit/internal/source"
)

var (
	// ErrUnknownOperation is returned for an operation name not in the registry
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrArgument is returned for missing, extra or mistyped arguments
	ErrArgument = errors.New("invalid argument")
)

// Writer encodes a sequence to a destination
type Writer interface {
	WriteWithRate(ctx context.Context, dst string, seq frame.Sequence, rate int) error
}

// Request is an operation name, output destination and positional arguments
// already converted to int, float64 or string
type Request struct {
	Op     string
	Output string
	Args   []interface{}
}

// Result of a dispatched request
type Result struct {
	Op     string
	Frames int
	Rate   int
	// Preview is the first written frame, nil if nothing was written
	Preview  *image.RGBA
	NotFound bool
}

// Dispatcher runs requests against a registry. Fields can be replaced to
// change how sources are opened and results written.
type Dispatcher struct {
	Registry *Registry
	Log      logrus.FieldLogger

	Open       func(ctx context.Context, path string) (source.Source, error)
	NewWriter  func(op string) Writer
	WriteImage func(dst string, f *image.RGBA) error
}

// Options for New
type Options struct {
	Source source.Options
	Sink   sink.Options
	Logger logrus.FieldLogger
}

// New dispatcher using ffmpeg backed sources and sinks
func New(reg *Registry, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	opts.Source.Logger = log
	opts.Sink.Logger = log

	return &Dispatcher{
		Registry: reg,
		Log:      log,
		Open: func(ctx context.Context, path string) (source.Source, error) {
			return source.Open(ctx, path, opts.Source)
		},
		NewWriter: func(op string) Writer {
			so := opts.Sink
			so.Comment = op
			// rate always comes from WriteWithRate
			return sink.New(0, so)
		},
		WriteImage: sink.WriteImage,
	}
}

// RunFile opens input as the primary source and runs req
func (d *Dispatcher) RunFile(ctx context.Context, input string, req Request) (Result, error) {
	// resolve before opening so bad requests fail without running ffprobe
	if _, _, err := d.resolve(req); err != nil {
		return Result{}, err
	}
	src, err := d.Open(ctx, input)
	if err != nil {
		return Result{}, err
	}
	var res Result
	err = source.With(src, func(s source.Source) error {
		var err error
		res, err = d.run(ctx, s, req, d.Log.WithField("input", input))
		return err
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Run req with src as primary source. src is not closed.
func (d *Dispatcher) Run(ctx context.Context, src source.Source, req Request) (Result, error) {
	return d.run(ctx, src, req, d.Log)
}

func (d *Dispatcher) resolve(req Request) (*Operation, Args, error) {
	op, ok := d.Registry.Lookup(req.Op)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", req.Op, ErrUnknownOperation)
	}
	args, err := op.ResolveArgs(req.Args)
	if err != nil {
		return nil, nil, err
	}
	return op, args, nil
}

func (d *Dispatcher) run(ctx context.Context, src source.Source, req Request, log logrus.FieldLogger) (Result, error) {
	op, args, err := d.resolve(req)
	if err != nil {
		return Result{}, err
	}

	log = log.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"op":         op.Name,
		"output":     req.Output,
	})

	inputs := map[string]source.Source{}
	defer func() {
		for name, s := range inputs {
			if cerr := s.Close(); cerr != nil {
				log.WithError(cerr).WithField("param", name).Warn("close secondary source")
			}
		}
	}()
	for _, p := range op.Params {
		if p.Kind != KindPath {
			continue
		}
		path := args.String(p.Name)
		s, err := d.Open(ctx, path)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %s: %w", op.Name, p.Name, err)
		}
		inputs[p.Name] = s
	}

	out, err := op.Run(ctx, &Call{
		Source: src,
		Args:   args,
		Inputs: inputs,
		Log:    log,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op.Name, err)
	}

	res := Result{Op: op.Name}
	switch {
	case out.NotFound:
		res.NotFound = true
		log.Warn("frame not found, nothing written")
		return res, nil
	case out.Image != nil:
		if err := d.WriteImage(req.Output, out.Image); err != nil {
			return Result{}, err
		}
		res.Frames = 1
		res.Preview = out.Image
	default:
		rate := src.FrameRate()
		if out.Rate > 0 {
			rate = out.Rate
		}
		if err := d.NewWriter(op.Name).WriteWithRate(ctx, req.Output, out.Frames, rate); err != nil {
			return Result{}, err
		}
		res.Frames = len(out.Frames)
		res.Rate = rate
		if len(out.Frames) > 0 {
			res.Preview = out.Frames[0]
		}
	}

	log.WithFields(logrus.Fields{"frames": res.Frames, "rate": res.Rate}).Info("done")

	return res, nil
}
