// Package linebuffer keeps the tail of a process output, used to give ffmpeg
// errors some context
package linebuffer

import (
	"bytes"
	"strings"
)

// LastLines is a io.Writer that buffers the last n lines written
type LastLines struct {
	partial bytes.Buffer
	current int
	lines   []string
}

// NewLastLines creates a new limited line buffer that buffers the last n lines
func NewLastLines(limit int) *LastLines {
	if limit < 1 {
		limit = 1
	}
	return &LastLines{lines: make([]string, limit)}
}

func (lb *LastLines) addLine(line string) {
	lb.lines[lb.current] = line
	lb.current = (lb.current + 1) % len(lb.lines)
}

// Write splits on \n and \r, \r is used by ffmpeg for status lines
func (lb *LastLines) Write(p []byte) (n int, err error) {
	lb.partial.Write(p)
	b := lb.partial.Bytes()
	pos := 0
	for {
		i := bytes.IndexAny(b[pos:], "\n\r")
		if i < 0 {
			break
		}
		lb.addLine(string(b[pos : pos+i+1]))
		pos += i + 1
	}
	rest := append([]byte(nil), b[pos:]...)
	lb.partial.Reset()
	lb.partial.Write(rest)

	return len(p), nil
}

// Close flushes any data left in the buffer as a line
func (lb *LastLines) Close() error {
	if lb.partial.Len() > 0 {
		lb.addLine(lb.partial.String())
	}
	lb.partial.Reset()
	return nil
}

// String returns last n lines as a string
func (lb *LastLines) String() string {
	var sb strings.Builder
	for i := 0; i < len(lb.lines); i++ {
		sb.WriteString(lb.lines[(lb.current+i)%len(lb.lines)])
	}
	return sb.String()
}
