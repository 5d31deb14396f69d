package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

var (
	// Marker is the top-left quadrant color of Quadrants images.
	Marker = color.RGBA{R: 220, G: 20, B: 20, A: 255}
	// Fill is the color of the other three quadrants.
	Fill = color.RGBA{R: 20, G: 20, B: 220, A: 255}
)

// Quadrants returns a w x h image whose top-left quadrant is Marker and
// the rest Fill, so rotations can be checked after lossy encoding.
func Quadrants(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := Fill
			if x < w/2 && y < h/2 {
				c = Marker
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// JPEG encodes a Quadrants image and, when exif is non-nil, splices its
// APP1 segment directly after the SOI marker.
func JPEG(t testing.TB, w, h int, exif *EXIF) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Quadrants(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	data := buf.Bytes()
	if exif == nil {
		return data
	}
	out := make([]byte, 0, len(data)+256)
	out = append(out, data[:2]...)
	out = append(out, exif.Segment()...)
	out = append(out, data[2:]...)
	return out
}

// PNG encodes a w x h image. With alpha, the left half is fully
// transparent.
func PNG(t testing.TB, w, h int, alpha bool) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: 10, G: 200, B: 10, A: 255}
			if alpha && x < w/2 {
				c.A = 0
			}
			img.SetNRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data under dir, creating parent directories, and
// returns the full path.
func WriteFile(t testing.TB, dir, rel string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// AverageColor averages the pixels of img inside r.
func AverageColor(img image.Image, r image.Rectangle) color.RGBA {
	r = r.Intersect(img.Bounds())
	var sr, sg, sb, n uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			sr += uint64(cr >> 8)
			sg += uint64(cg >> 8)
			sb += uint64(cb >> 8)
			n++
		}
	}
	if n == 0 {
		return color.RGBA{}
	}
	return color.RGBA{R: uint8(sr / n), G: uint8(sg / n), B: uint8(sb / n), A: 255}
}

// IsReddish reports whether c is closer to Marker than to Fill.
func IsReddish(c color.RGBA) bool {
	return int(c.R) > int(c.B)
}
