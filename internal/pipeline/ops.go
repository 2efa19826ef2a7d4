package pipeline

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/wader/ffedit/internal/composite"
	"github.com/wader/ffedit/internal/frame"
	"github.com/wader/ffedit/internal/imgops"
	"github.com/wader/ffedit/internal/temporal"
)

var defaultRegistry = mustRegistry(Builtins()...)

func mustRegistry(ops ...Operation) *Registry {
	r, err := NewRegistry(ops...)
	if err != nil {
		panic(err)
	}
	return r
}

// DefaultRegistry has all built-in operations
func DefaultRegistry() *Registry { return defaultRegistry }

// Builtins returns the built-in operations
func Builtins() []Operation {
	return []Operation{
		{
			Name:  "reverse",
			Usage: "Play frames in reverse order",
			Run: readAll(func(c *Call, s frame.Sequence) (Output, error) {
				return Output{Frames: temporal.Reverse(s)}, nil
			}),
		},
		{
			Name:   "speed",
			Usage:  "Change playback speed, >= 1 drops frames, < 1 lowers the frame rate",
			Params: []Param{{Name: "factor", Kind: KindFloat, Required: true}},
			Run:    runSpeed,
		},
		{
			Name:  "trim",
			Usage: "Keep frames in [start, end)",
			Params: []Param{
				{Name: "start", Kind: KindInt, Required: true},
				{Name: "end", Kind: KindInt, Required: true},
			},
			Run: func(ctx context.Context, c *Call) (Output, error) {
				s, err := c.Source.ReadRange(ctx, c.Args.Int("start"), c.Args.Int("end"))
				if err != nil {
					return Output{}, err
				}
				return Output{Frames: s}, nil
			},
		},
		{
			Name:  "freeze",
			Usage: "Hold frame index for duration extra frames",
			Params: []Param{
				{Name: "index", Kind: KindInt, Default: 0},
				{Name: "duration", Kind: KindInt, Default: 30},
			},
			Run: readAll(func(c *Call, s frame.Sequence) (Output, error) {
				return Output{Frames: temporal.Freeze(s, c.Args.Int("index"), c.Args.Int("duration"))}, nil
			}),
		},
		{
			Name:   "loop",
			Usage:  "Repeat the clip count times",
			Params: []Param{{Name: "count", Kind: KindInt, Default: 2}},
			Run: readAll(func(c *Call, s frame.Sequence) (Output, error) {
				return Output{Frames: temporal.Loop(s, c.Args.Int("count"))}, nil
			}),
		},
		{
			Name:   "duplicate",
			Usage:  "Repeat every frame factor times",
			Params: []Param{{Name: "factor", Kind: KindInt, Default: 2}},
			Run: readAll(func(c *Call, s frame.Sequence) (Output, error) {
				return Output{Frames: temporal.Duplicate(s, c.Args.Int("factor"))}, nil
			}),
		},
		{
			Name:   "fade_in",
			Usage:  "Fade from black over the first duration frames",
			Params: []Param{{Name: "duration", Kind: KindInt, Default: 30}},
			Run: readAll(func(c *Call, s frame.Sequence) (Output, error) {
				return Output{Frames: composite.FadeIn(s, c.Args.Int("duration"))}, nil
			}),
		},
		{
			Name:   "fade_out",
			Usage:  "Fade to black over the last duration frames",
			Params: []Param{{Name: "duration", Kind: KindInt, Default: 30}},
			Run: readAll(func(c *Call, s frame.Sequence) (Output, error) {
				return Output{Frames: composite.FadeOut(s, c.Args.Int("duration"))}, nil
			}),
		},
		{
			Name:  "crossfade",
			Usage: "Blend into the clip at path over duration frames",
			Params: []Param{
				{Name: "path", Kind: KindPath, Required: true},
				{Name: "duration", Kind: KindInt, Default: 30},
			},
			Run: readWith("path", func(c *Call, a, b frame.Sequence) (Output, error) {
				return Output{Frames: composite.Crossfade(a, b, c.Args.Int("duration"))}, nil
			}),
		},
		{
			Name:   "stack",
			Usage:  "Put the clip at path to the right",
			Params: []Param{{Name: "path", Kind: KindPath, Required: true}},
			Run: readWith("path", func(c *Call, a, b frame.Sequence) (Output, error) {
				return Output{Frames: composite.StackHorizontal(a, b)}, nil
			}),
		},
		{
			Name:   "stack_v",
			Usage:  "Put the clip at path below",
			Params: []Param{{Name: "path", Kind: KindPath, Required: true}},
			Run: readWith("path", func(c *Call, a, b frame.Sequence) (Output, error) {
				return Output{Frames: composite.StackVertical(a, b)}, nil
			}),
		},
		{
			Name:  "overlay",
			Usage: "Paste the clip at path with its top left corner at x,y",
			Params: []Param{
				{Name: "path", Kind: KindPath, Required: true},
				{Name: "x", Kind: KindInt, Default: 0},
				{Name: "y", Kind: KindInt, Default: 0},
			},
			Run: readWith("path", func(c *Call, a, b frame.Sequence) (Output, error) {
				pt := image.Pt(c.Args.Int("x"), c.Args.Int("y"))
				return Output{Frames: composite.Overlay(a, b, pt)}, nil
			}),
		},
		{
			Name:  "text",
			Usage: "Draw text with its baseline starting at x,y",
			Params: []Param{
				{Name: "text", Kind: KindString, Default: "Text"},
				{Name: "x", Kind: KindInt, Default: 10},
				{Name: "y", Kind: KindInt, Default: 30},
				{Name: "scale", Kind: KindFloat, Default: 1.0},
				{Name: "r", Kind: KindInt, Default: 255},
				{Name: "g", Kind: KindInt, Default: 255},
				{Name: "b", Kind: KindInt, Default: 255},
				{Name: "thickness", Kind: KindInt, Default: 2},
			},
			Run: readAll(func(c *Call, s frame.Sequence) (Output, error) {
				style := imgops.TextStyle{
					Scale: c.Args.Float("scale"),
					Color: color.RGBA{
						R: colorByte(c.Args.Int("r")),
						G: colorByte(c.Args.Int("g")),
						B: colorByte(c.Args.Int("b")),
						A: 255,
					},
					Thickness: c.Args.Int("thickness"),
				}
				pt := image.Pt(c.Args.Int("x"), c.Args.Int("y"))
				return Output{Frames: composite.TextOverlay(s, c.Args.String("text"), pt, style)}, nil
			}),
		},
		{
			Name:   "extract",
			Usage:  "Write frame index as an image (png, jpg, bmp or tiff)",
			Params: []Param{{Name: "index", Kind: KindInt, Default: 0}},
			Run: func(ctx context.Context, c *Call) (Output, error) {
				index := c.Args.Int("index")
				f, ok, err := c.Source.ExtractFrame(ctx, index)
				if err != nil {
					return Output{}, err
				}
				if !ok {
					c.Log.WithFields(logrus.Fields{"index": index, "frame_count": c.Source.FrameCount()}).Warn("frame out of range")
					return Output{NotFound: true}, nil
				}
				return Output{Image: f}, nil
			},
		},
		{
			Name:  "resize",
			Usage: "Scale every frame to width x height",
			Params: []Param{
				{Name: "width", Kind: KindInt, Required: true},
				{Name: "height", Kind: KindInt, Required: true},
			},
			Run: func(ctx context.Context, c *Call) (Output, error) {
				w, h := c.Args.Int("width"), c.Args.Int("height")
				if w <= 0 || h <= 0 {
					return Output{}, fmt.Errorf("size %dx%d: %w", w, h, ErrArgument)
				}
				s, err := c.Source.ReadAll(ctx)
				if err != nil {
					return Output{}, err
				}
				r := make(frame.Sequence, 0, len(s))
				for _, f := range s {
					r = append(r, imgops.Resize(f, w, h))
				}
				return Output{Frames: r}, nil
			},
		},
	}
}

func runSpeed(ctx context.Context, c *Call) (Output, error) {
	factor := c.Args.Float("factor")
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return Output{}, fmt.Errorf("factor %v: %w", factor, ErrArgument)
	}
	s, err := c.Source.ReadAll(ctx)
	if err != nil {
		return Output{}, err
	}
	if factor >= 1 {
		r, err := temporal.SpeedUp(s, factor)
		if err != nil {
			return Output{}, err
		}
		return Output{Frames: r}, nil
	}
	return Output{
		Frames: temporal.SlowDown(s),
		Rate:   temporal.SlowDownRate(c.Source.FrameRate(), factor),
	}, nil
}

func colorByte(v int) uint8 {
	return uint8(max(0, min(255, v)))
}

// readAll runs fn with all frames of the primary source
func readAll(fn func(c *Call, s frame.Sequence) (Output, error)) func(ctx context.Context, c *Call) (Output, error) {
	return func(ctx context.Context, c *Call) (Output, error) {
		s, err := c.Source.ReadAll(ctx)
		if err != nil {
			return Output{}, err
		}
		return fn(c, s)
	}
}

// readWith runs fn with all frames of the primary source and of the input for param
func readWith(param string, fn func(c *Call, a, b frame.Sequence) (Output, error)) func(ctx context.Context, c *Call) (Output, error) {
	return func(ctx context.Context, c *Call) (Output, error) {
		a, err := c.Source.ReadAll(ctx)
		if err != nil {
			return Output{}, err
		}
		in, ok := c.Inputs[param]
		if !ok {
			return Output{}, fmt.Errorf("%s: no input: %w", param, ErrArgument)
		}
		b, err := in.ReadAll(ctx)
		if err != nil {
			return Output{}, fmt.Errorf("%s: %w", param, err)
		}
		return fn(c, a, b)
	}
}
