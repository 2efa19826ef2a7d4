// Package iterm2 shows frames inline in iTerm2 compatible terminals
package iterm2

import (
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/wader/ffedit/internal/imgops"
)

// ErrCellSizeReport is returned when the terminal cell size reply can't be parsed
var ErrCellSizeReport = errors.New("invalid cell size report")

// IsCompatible reports if the terminal looks like iTerm2
func IsCompatible() bool {
	return os.Getenv("TERM_PROGRAM") == "iTerm.app"
}

// Image writes m as an inline image escape sequence
func Image(w io.Writer, m image.Image) error {
	if _, err := io.WriteString(w, "\x1b]1337;File=inline=1:"); err != nil {
		return err
	}
	bw := base64.NewEncoder(base64.StdEncoding, w)
	if err := png.Encode(bw, m); err != nil {
		return err
	}
	if err := bw.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\x07\n")
	return err
}

type CellSize struct {
	Width  float64
	Height float64
	Scale  float64
}

// parseCellSize parses a reply like "\x1b]1337;ReportCellSize=14.0;6.0;1.0\x1b\\",
// note order is height;width[;scale]
func parseCellSize(s string) (CellSize, error) {
	const p = "ReportCellSize="
	start := strings.Index(s, p)
	if start == -1 {
		return CellSize{}, ErrCellSizeReport
	}
	s = s[start+len(p):]
	if stop := strings.Index(s, "\x1b\\"); stop != -1 {
		s = s[:stop]
	}
	parts := strings.Split(s, ";")
	if len(parts) < 2 {
		return CellSize{}, ErrCellSizeReport
	}

	sz := CellSize{Scale: 1}
	var err error
	if sz.Height, err = strconv.ParseFloat(parts[0], 64); err != nil {
		return CellSize{}, ErrCellSizeReport
	}
	if sz.Width, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return CellSize{}, ErrCellSizeReport
	}
	if len(parts) > 2 {
		if sz.Scale, err = strconv.ParseFloat(parts[2], 64); err != nil {
			return CellSize{}, ErrCellSizeReport
		}
	}
	return sz, nil
}

// ReportCellSize asks the terminal connected to f for its cell size
func ReportCellSize(f *os.File) (sz CellSize, err error) {
	old, err := term.MakeRaw(int(f.Fd()))
	if err != nil {
		return CellSize{}, err
	}
	defer func() {
		if rerr := term.Restore(int(f.Fd()), old); rerr != nil && err == nil {
			err = rerr
		}
	}()

	if _, err := f.WriteString("\x1b]1337;ReportCellSize\x07"); err != nil {
		return CellSize{}, err
	}
	b := make([]byte, 64)
	n, err := f.Read(b)
	if err != nil {
		return CellSize{}, err
	}
	return parseCellSize(string(b[:n]))
}

// Resolution of the terminal in pixels
type Resolution struct {
	Width  int
	Height int
}

// PixelResolution of the terminal connected to f
func PixelResolution(f *os.File) (Resolution, error) {
	w, h, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return Resolution{}, err
	}
	sz, err := ReportCellSize(f)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{
		Width:  w * int(sz.Width*sz.Scale),
		Height: h * int(sz.Height*sz.Scale),
	}, nil
}

// FitWidth returns m scaled down to at most maxWidth keeping aspect ratio
func FitWidth(m *image.RGBA, maxWidth int) *image.RGBA {
	w, h := m.Rect.Dx(), m.Rect.Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return m
	}
	nh := max(1, h*maxWidth/w)
	return imgops.Resize(m, maxWidth, nh)
}

// Preview writes m to w scaled to fit the terminal connected to tty
func Preview(w io.Writer, tty *os.File, m *image.RGBA) error {
	r, err := PixelResolution(tty)
	if err != nil {
		return err
	}
	return Image(w, FitWidth(m, r.Width))
}
