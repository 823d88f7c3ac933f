package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"
)

// captionSize is the caption font size in pixels.
const captionSize = 14

// scaleImage resamples img to the given width, keeping the aspect ratio.
// A non-positive width or the current width returns img unchanged.
func scaleImage(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || width == b.Dx() {
		return img
	}
	height := max(1, b.Dy()*width/b.Dx())
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst
}

// drawCaption writes text in the top-left corner of img.
func drawCaption(img *image.RGBA, text string) error {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return fmt.Errorf("parse caption font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    captionSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("caption face: %w", err)
	}
	defer func() {
		_ = face.Close()
	}()

	ascent := face.Metrics().Ascent
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 0x80, G: 0xc0, B: 0xff, A: 0xff}),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(4), Y: ascent + fixed.I(4)},
	}
	d.DrawString(text)
	return nil
}

// encodeImage writes img in the format named by the extension of path.
func encodeImage(w io.Writer, path string, img image.Image) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		return png.Encode(w, img)
	case ".bmp":
		return bmp.Encode(w, img)
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("unsupported snapshot format %q", ext)
	}
}

// saveSnapshot scales, captions and writes img to path.
func saveSnapshot(path string, img *image.RGBA, width int, caption string) error {
	if caption != "" {
		if err := drawCaption(img, caption); err != nil {
			return err
		}
	}
	out := scaleImage(img, width)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeImage(f, path, out); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
