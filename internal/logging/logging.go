// Package logging sets up the logrus logger and adapts it to the ffmpeg
// command debug printer
package logging

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/wader/ffedit/internal/goffmpeg"
)

const timestampFormat = "2006-01-02 15:04:05.999"

// New creates a logger writing to w. Unknown levels fall back to info,
// format is "json" or anything else for text.
func New(w io.Writer, level string, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)

	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	} else {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: timestampFormat, FullTimestamp: true})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return l
}

// Discard is a logger that drops everything, used as default by components
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

type debugPrinter struct {
	l logrus.FieldLogger
}

func (p debugPrinter) Printf(format string, v ...interface{}) {
	p.l.Debugf(format, v...)
}

// DebugPrinter logs ffmpeg/ffprobe command lines at debug level
func DebugPrinter(l logrus.FieldLogger) goffmpeg.Printer {
	if l == nil {
		return goffmpeg.NopPrinter{}
	}
	return debugPrinter{l: l}
}
