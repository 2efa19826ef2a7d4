package goffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/wader/ffedit/internal/goffmpeg/internal/kvargs"
	"github.com/wader/ffedit/internal/goffmpeg/internal/linebuffer"
)

// FFmpegPath to ffmpeg binary. Will be used as name to cmd.Command.
var FFmpegPath = "ffmpeg"

// ErrPipeInUse is returned when more than one input reads from, or more than
// one output writes to, a pipe. Only stdin and stdout are used for piping.
var ErrPipeInUse = errors.New("only one piped input and one piped output supported")

// FFmpegCmd is a ffmpeg command
// ffmpeg
//   Input
//     -i io.Reader/string
//   ...
//   Output
//     Map
//       -map *Input/Specifier
//     ...
//     io.Writer/string
//   ...
type FFmpegCmd struct {
	Flags       []string     `json:"flags"`
	Inputs      []*Input     `json:"inputs"`
	FilterGraph *FilterGraph `json:"filter_graph"`
	Outputs     []*Output    `json:"outputs"`

	Context             context.Context `json:"-"`
	CloseAfterStart     []io.Closer     `json:"-"`
	CloseAfterWait      []io.Closer     `json:"-"`
	StderrBufferNrLines int             `json:"-"`
	Stderr              io.Writer       `json:"-"`
	DebugLog            Printer         `json:"-"`

	cmd             *exec.Cmd
	stderrLastLines *linebuffer.LastLines
}

// Input is a ffmpeg input, File is a path string or io.Reader (piped to stdin)
type Input struct {
	File    interface{}       `json:"file"`
	Format  string            `json:"format"`
	Options map[string]string `json:"options"`
	Flags   []string          `json:"flags"`
}

// Output is a ffmpeg output, File is a path string or io.Writer (stdout)
type Output struct {
	File     interface{}       `json:"file"`
	Maps     []*Map            `json:"maps"`
	Format   string            `json:"format"`
	Metadata *Metadata         `json:"metadata"`
	Options  map[string]string `json:"options"`
	Flags    []string          `json:"flags"`
}

// Map selects a stream for an output
type Map struct {
	Input     *Input            `json:"input"`
	Specifier string            `json:"specifier"`
	Codec     string            `json:"codec"`
	Options   map[string]string `json:"options"`
	Flags     []string          `json:"flags"`
}

type FilterGraph []FilterChain

type FilterChain []Filter

type Filter struct {
	Name    string            `json:"name"`
	Inputs  []string          `json:"inputs"`
	Outputs []string          `json:"outputs"`
	Options map[string]string `json:"options"`
}

var filterGraphValueEscapeRe = regexp.MustCompile(`[,:]`)

// String filter graph in -filter_complex syntax
func (fg FilterGraph) String() string {
	var argsGraph []string

	for _, chain := range fg {
		var argsChain []string

		for _, filter := range chain {
			var argsFilter []string
			for _, input := range filter.Inputs {
				argsFilter = append(argsFilter, "[", strings.ReplaceAll(input, `]`, `\]`), "]")
			}
			argsFilter = append(argsFilter, filter.Name)
			// uses MapToSortedArgs to keep options in stable order
			filterOpts := kvargs.MapToSortedArgs(filter.Options, func(k, v string) []string {
				escapedV := filterGraphValueEscapeRe.ReplaceAllString(v, `\$0`)
				return []string{k + "=" + escapedV}
			})
			if len(filterOpts) > 0 {
				argsFilter = append(argsFilter, "=", strings.Join(filterOpts, ":"))
			}
			for _, output := range filter.Outputs {
				argsFilter = append(argsFilter, "[", strings.ReplaceAll(output, `]`, `\]`), "]")
			}

			argsChain = append(argsChain, strings.Join(argsFilter, ""))
		}
		argsGraph = append(argsGraph, strings.Join(argsChain, ","))
	}

	return strings.Join(argsGraph, ";")
}

func (fm *FFmpegCmd) buildArgs() (args []string, stdin io.Reader, stdout io.Writer, err error) {
	inputToIndex := map[*Input]int{}

	args = []string{
		"-nostdin",
		"-hide_banner",
	}
	args = append(args, fm.Flags...)

	if fm.FilterGraph != nil {
		args = append(args, "-filter_complex", fm.FilterGraph.String())
	}

	for inputIndex, input := range fm.Inputs {
		inputToIndex[input] = inputIndex

		args = append(args, kvargs.MapToSortedArgs(input.Options, kvargs.OptionArg(""))...)
		args = append(args, input.Flags...)
		if input.Format != "" {
			args = append(args, "-f", input.Format)
		}
		args = append(args, "-i")
		switch file := input.File.(type) {
		case string:
			args = append(args, file)
		case io.Reader:
			if stdin != nil {
				return nil, nil, nil, ErrPipeInUse
			}
			stdin = file
			args = append(args, "pipe:0")
		default:
			return nil, nil, nil, fmt.Errorf("unknown input file type %#v should be string or io.Reader", file)
		}
	}

	for _, output := range fm.Outputs {
		for streamIndex, m := range output.Maps {
			args = append(args, "-map")
			var specifier []string
			if m.Input != nil {
				inputIndex, ok := inputToIndex[m.Input]
				if !ok {
					return nil, nil, nil, fmt.Errorf("can't find input %#v for map %#v", m.Input, m)
				}
				specifier = append(specifier, strconv.Itoa(inputIndex))
			}
			if m.Specifier != "" {
				specifier = append(specifier, m.Specifier)
			}
			args = append(args, strings.Join(specifier, ":"))

			streamIndexStr := strconv.Itoa(streamIndex)
			if m.Codec != "" {
				args = append(args, "-codec:"+streamIndexStr, m.Codec)
			}
			args = append(args, kvargs.MapToSortedArgs(m.Options, kvargs.OptionArg(":"+streamIndexStr))...)
			args = append(args, m.Flags...)
		}

		if output.Format != "" {
			args = append(args, "-f", output.Format)
		}
		if output.Metadata != nil {
			args = append(args,
				kvargs.MapToSortedArgs(output.Metadata.ToMap(),
					func(k, v string) []string {
						return []string{"-metadata", k + "=" + v}
					},
				)...,
			)
		}
		args = append(args, kvargs.MapToSortedArgs(output.Options, kvargs.OptionArg(""))...)
		args = append(args, output.Flags...)

		switch file := output.File.(type) {
		case string:
			args = append(args, file)
		case io.Writer:
			if stdout != nil {
				return nil, nil, nil, ErrPipeInUse
			}
			stdout = file
			args = append(args, "pipe:1")
		default:
			return nil, nil, nil, fmt.Errorf("unknown output file type %#v should be string or io.Writer", file)
		}
	}

	return args, stdin, stdout, nil
}

// Args returns the argument list (without the binary name)
func (fm *FFmpegCmd) Args() ([]string, error) {
	args, _, _, err := fm.buildArgs()
	return args, err
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		c.Close()
	}
}

// Start ffmpeg. CloseAfterStart closers are closed after start, also on error.
func (fm *FFmpegCmd) Start() error {
	args, stdin, stdout, err := fm.buildArgs()
	if err != nil {
		closeAll(fm.CloseAfterStart)
		closeAll(fm.CloseAfterWait)
		return err
	}

	if fm.Context != nil {
		fm.cmd = exec.CommandContext(fm.Context, FFmpegPath, args...)
	} else {
		fm.cmd = exec.Command(FFmpegPath, args...)
	}
	fm.cmd.Stdin = stdin
	fm.cmd.Stdout = stdout

	var stderrws []io.Writer
	nrLines := fm.StderrBufferNrLines
	if nrLines == 0 {
		nrLines = 100
	}
	fm.stderrLastLines = linebuffer.NewLastLines(nrLines)
	stderrws = append(stderrws, fm.stderrLastLines)
	if fm.Stderr != nil {
		stderrws = append(stderrws, fm.Stderr)
	}
	fm.cmd.Stderr = io.MultiWriter(stderrws...)

	if fm.DebugLog != nil {
		fm.DebugLog.Printf("%s %s", FFmpegPath, strings.Join(args, " "))
	}

	err = fm.cmd.Start()
	closeAll(fm.CloseAfterStart)
	if err != nil {
		closeAll(fm.CloseAfterWait)
		return err
	}

	return nil
}

// Wait for cmd to finish
// Note that the error message might include command details that are sensitive
func (fm *FFmpegCmd) Wait() error {
	err := fm.cmd.Wait()
	closeAll(fm.CloseAfterWait)
	fm.stderrLastLines.Close()

	if err != nil {
		return fmt.Errorf("%w: %s", err, fm.stderrLastLines.String())
	}

	return nil
}

// Run starts and waits for ffmpeg to finish
// Note that the error message might include command details that are sensitive
func (fm *FFmpegCmd) Run() error {
	if err := fm.Start(); err != nil {
		return err
	}
	return fm.Wait()
}

// StderrBuffer returns the last stderr lines as a string
// Note that the stderr might include command details that are sensitive
func (fm *FFmpegCmd) StderrBuffer() string {
	return fm.stderrLastLines.String()
}
