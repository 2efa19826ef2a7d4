package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/wader/ffedit/internal/config"
	"github.com/wader/ffedit/internal/goffmpeg"
	"github.com/wader/ffedit/internal/iterm2"
	"github.com/wader/ffedit/internal/logging"
	"github.com/wader/ffedit/internal/pipeline"
	"github.com/wader/ffedit/internal/sink"
	"github.com/wader/ffedit/internal/source"
)

var debugFlag = flag.Bool("d", false, "Debug")
var verboseFlag = flag.Bool("v", false, "Verbose")
var previewFlag = flag.Bool("p", false, "Preview first output frame inline (iTerm2)")
var codecFlag = flag.String("codec", "", "Video codec (default from FFEDIT_CODEC)")
var envFlag = flag.String("env", config.DotEnvFile, "Dotenv file")

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <input> <command> <output> [args...]\n\nFlags:\n", os.Args[0])
	flag.PrintDefaults()
	fmt.Fprintf(out, "\nCommands:\n")
	for _, o := range pipeline.DefaultRegistry().Operations() {
		fmt.Fprintf(out, "  %-40s %s\n", o.Synopsis(), o.Usage)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 3 {
		flag.Usage()
		os.Exit(1)
	}

	if err := func() error {
		cfg, err := config.Load(*envFlag)
		if err != nil {
			return err
		}

		level := cfg.LogLevel
		if *verboseFlag {
			level = logrus.InfoLevel.String()
		}
		if *debugFlag {
			level = logrus.DebugLevel.String()
		}
		log := logging.New(os.Stderr, level, cfg.LogFormat)

		goffmpeg.FFmpegPath = cfg.FFmpegPath
		goffmpeg.FFprobePath = cfg.FFprobePath
		codec := cfg.Codec
		if *codecFlag != "" {
			codec = *codecFlag
		}

		input, command, output := flag.Arg(0), flag.Arg(1), flag.Arg(2)
		reg := pipeline.DefaultRegistry()
		op, ok := reg.Lookup(command)
		if !ok {
			return fmt.Errorf("%s: %w", command, pipeline.ErrUnknownOperation)
		}
		values, err := convertArgs(op.Params, flag.Args()[3:])
		if err != nil {
			return fmt.Errorf("%s: %w", command, err)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		d := pipeline.New(reg, pipeline.Options{
			Source: source.Options{DefaultFrameRate: cfg.DefaultFPS},
			Sink:   sink.Options{Codec: codec, PixFmt: cfg.PixFmt},
			Logger: log,
		})
		res, err := d.RunFile(ctx, input, pipeline.Request{
			Op:     command,
			Output: output,
			Args:   values,
		})
		if err != nil {
			return err
		}

		if res.NotFound {
			fmt.Fprintf(os.Stdout, "Frame not found, %s not written\n", output)
			return nil
		}
		fmt.Fprintf(os.Stdout, "Done: %s\n", output)

		if *previewFlag && res.Preview != nil {
			if !iterm2.IsCompatible() {
				log.Warn("not iterm2 terminal, skipping preview")
				return nil
			}
			if err := iterm2.Preview(os.Stdout, os.Stdin, res.Preview); err != nil {
				log.WithError(err).Warn("preview")
			}
		}

		return nil
	}(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
