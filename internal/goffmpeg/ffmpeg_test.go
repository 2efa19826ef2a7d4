package goffmpeg_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"

	"github.com/wader/ffedit/internal/goffmpeg"
)

func TestArgs(t *testing.T) {
	i1 := &goffmpeg.Input{File: "in.mp4"}
	i2 := &goffmpeg.Input{
		Format:  "rawvideo",
		Options: map[string]string{"pix_fmt": "rgba", "video_size": "4x2", "framerate": "25"},
		File:    &bytes.Buffer{},
	}

	c := &goffmpeg.FFmpegCmd{
		Flags:  []string{"-y"},
		Inputs: []*goffmpeg.Input{i1, i2},
		Outputs: []*goffmpeg.Output{
			{
				Maps: []*goffmpeg.Map{
					{Input: i2, Specifier: "v:0", Codec: "mpeg4", Options: map[string]string{"pix_fmt": "yuv420p"}},
				},
				Metadata: &goffmpeg.Metadata{Comment: "reverse"},
				File:     "out.mp4",
			},
		},
	}

	args, err := c.Args()
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{
		"-nostdin", "-hide_banner", "-y",
		"-i", "in.mp4",
		"-framerate", "25", "-pix_fmt", "rgba", "-video_size", "4x2", "-f", "rawvideo", "-i", "pipe:0",
		"-map", "1:v:0", "-codec:0", "mpeg4", "-pix_fmt:0", "yuv420p",
		"-metadata", "comment=reverse",
		"out.mp4",
	}
	if !reflect.DeepEqual(expected, args) {
		t.Errorf("expected %q, got %q", expected, args)
	}
}

func TestArgsPipeInUse(t *testing.T) {
	c := &goffmpeg.FFmpegCmd{
		Inputs: []*goffmpeg.Input{{File: &bytes.Buffer{}}, {File: &bytes.Buffer{}}},
	}
	if _, err := c.Args(); !errors.Is(err, goffmpeg.ErrPipeInUse) {
		t.Errorf("expected ErrPipeInUse, got %v", err)
	}

	c = &goffmpeg.FFmpegCmd{
		Outputs: []*goffmpeg.Output{{File: &bytes.Buffer{}}, {File: &bytes.Buffer{}}},
	}
	if _, err := c.Args(); !errors.Is(err, goffmpeg.ErrPipeInUse) {
		t.Errorf("expected ErrPipeInUse, got %v", err)
	}
}

func TestArgsUnknownMapInput(t *testing.T) {
	c := &goffmpeg.FFmpegCmd{
		Outputs: []*goffmpeg.Output{{
			Maps: []*goffmpeg.Map{{Input: &goffmpeg.Input{File: "other"}}},
			File: "out",
		}},
	}
	if _, err := c.Args(); err == nil {
		t.Error("expected error")
	}
}

func TestFilterGraphString(t *testing.T) {
	testCases := []struct {
		fg       goffmpeg.FilterGraph
		expected string
	}{
		{
			fg: goffmpeg.FilterGraph{{
				{Name: "select", Inputs: []string{"0:v:0"}, Options: map[string]string{"expr": "gte(n,5)"}, Outputs: []string{"out"}},
			}},
			expected: `[0:v:0]select=expr=gte(n\,5)[out]`,
		},
		{
			fg: goffmpeg.FilterGraph{
				{{Name: "testsrc", Options: map[string]string{"size": "4x2", "rate": "25"}}, {Name: "null", Outputs: []string{"a"}}},
				{{Name: "copy", Inputs: []string{"a"}, Outputs: []string{"b"}}},
			},
			expected: `testsrc=rate=25:size=4x2,null[a];[a]copy[b]`,
		},
	}
	for i, tC := range testCases {
		t.Run(strconv.Itoa(i), func(t *testing.T) {
			if actual := tC.fg.String(); actual != tC.expected {
				t.Errorf("expected %q, got %q", tC.expected, actual)
			}
		})
	}
}

func TestRunError(t *testing.T) {
	requireFFmpeg(t)
	defer leakChecks(t)()

	c := &goffmpeg.FFmpegCmd{
		Context: context.Background(),
		Flags:   []string{"-v", "error"},
		Inputs:  []*goffmpeg.Input{{File: filepath.Join(t.TempDir(), "does-not-exist.mp4")}},
		Outputs: []*goffmpeg.Output{{Format: "null", File: "-"}},
	}
	err := c.Run()
	if err == nil {
		t.Fatal("expected error")
	}
	if c.StderrBuffer() == "" {
		t.Error("expected stderr lines")
	}
}

func TestRawVideoPipe(t *testing.T) {
	requireFFmpeg(t)
	defer leakChecks(t)()

	out := &bytes.Buffer{}
	c := &goffmpeg.FFmpegCmd{
		Context: context.Background(),
		Flags:   []string{"-v", "error"},
		FilterGraph: &goffmpeg.FilterGraph{{
			{Name: "testsrc", Options: map[string]string{"size": "4x2", "rate": "10"}},
			{Name: "trim", Options: map[string]string{"end_frame": "3"}, Outputs: []string{"out"}},
		}},
		Outputs: []*goffmpeg.Output{{
			Maps:    []*goffmpeg.Map{{Specifier: "[out]"}},
			Format:  "rawvideo",
			Options: map[string]string{"pix_fmt": "rgba"},
			File:    out,
		}},
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if expected := 3 * 4 * 2 * 4; out.Len() != expected {
		t.Errorf("expected %d bytes, got %d", expected, out.Len())
	}
}

func TestStdinPipe(t *testing.T) {
	requireFFmpeg(t)
	defer leakChecks(t)()

	pr, pw, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.mp4")
	c := &goffmpeg.FFmpegCmd{
		Context: context.Background(),
		Flags:   []string{"-y", "-v", "error"},
		Inputs: []*goffmpeg.Input{{
			Format:  "rawvideo",
			Options: map[string]string{"pix_fmt": "rgba", "video_size": "4x2", "framerate": "10"},
			File:    pr,
		}},
		Outputs:         []*goffmpeg.Output{{Maps: []*goffmpeg.Map{{Specifier: "0:v:0", Codec: "mpeg4"}}, File: path}},
		CloseAfterStart: []io.Closer{pr},
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := pw.Write(make([]byte, 4*2*4)); err != nil {
			t.Fatal(err)
		}
	}
	pw.Close()
	if err := c.Wait(); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(path); err != nil || fi.Size() == 0 {
		t.Errorf("expected non-empty output, got %v %v", fi, err)
	}
}
