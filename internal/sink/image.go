package sink

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ErrImageFormat is returned for an image file extension with no encoder
var ErrImageFormat = errors.New("unsupported image format")

// JPEGQuality used when writing .jpg files
var JPEGQuality = 95

var imageEncoders = map[string]func(w io.Writer, m image.Image) error{
	".png":  png.Encode,
	".jpg":  encodeJPEG,
	".jpeg": encodeJPEG,
	".bmp":  bmp.Encode,
	".tif":  encodeTIFF,
	".tiff": encodeTIFF,
}

func encodeJPEG(w io.Writer, m image.Image) error {
	return jpeg.Encode(w, m, &jpeg.Options{Quality: JPEGQuality})
}

func encodeTIFF(w io.Writer, m image.Image) error {
	return tiff.Encode(w, m, &tiff.Options{Compression: tiff.Deflate})
}

// WriteImage writes f to dst, format is chosen by file extension
func WriteImage(dst string, f *image.RGBA) (err error) {
	ext := strings.ToLower(filepath.Ext(dst))
	enc, ok := imageEncoders[ext]
	if !ok {
		return fmt.Errorf("%s: %w", dst, ErrImageFormat)
	}

	file, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := enc(file, f); err != nil {
		return fmt.Errorf("%s: %w", dst, err)
	}
	return nil
}
