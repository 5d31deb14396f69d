package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"time"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/filesystem"
	"photo-indexer/internal/fingerprint"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/memory"
	"photo-indexer/internal/metrics"

	"github.com/disintegration/imaging"
)

const (
	// DefaultSize bounds both thumbnail dimensions.
	DefaultSize = 400
	// DefaultQuality is the JPEG quality of written artifacts.
	DefaultQuality = 85
	// Ext is the artifact file extension.
	Ext = ".jpg"
)

// Generator writes one normalized JPEG per content hash under a sharded
// directory tree. It is safe for concurrent use.
type Generator struct {
	root    string
	size    int
	quality int
	decoder Decoder
	monitor *memory.Monitor
}

// Option configures a Generator.
type Option func(*Generator)

// WithSize sets the bounding box edge.
func WithSize(size int) Option {
	return func(g *Generator) {
		if size > 0 {
			g.size = size
		}
	}
}

// WithQuality sets the JPEG quality (1-100).
func WithQuality(quality int) Option {
	return func(g *Generator) {
		if quality >= 1 && quality <= 100 {
			g.quality = quality
		}
	}
}

// WithDecoder replaces the default imaging decoder.
func WithDecoder(d Decoder) Option {
	return func(g *Generator) {
		if d != nil {
			g.decoder = d
		}
	}
}

// WithMemoryMonitor makes Ensure wait while the monitor reports memory
// pressure before decoding.
func WithMemoryMonitor(m *memory.Monitor) Option {
	return func(g *Generator) {
		g.monitor = m
	}
}

// New creates a Generator rooted at root. The directory is created on the
// first write.
func New(root string, opts ...Option) *Generator {
	g := &Generator{
		root:    root,
		size:    DefaultSize,
		quality: DefaultQuality,
		decoder: NewImagingDecoder(),
	}
	for _, opt := range opts {
		opt(g)
	}
	logging.Debug("Thumbnail generator: root=%s size=%d quality=%d decoder=%s",
		g.root, g.size, g.quality, g.decoder.Name())
	return g
}

// Root returns the thumbnail directory.
func (g *Generator) Root() string { return g.root }

// Size returns the bounding box edge.
func (g *Generator) Size() int { return g.size }

// Path returns the artifact location for hash:
// <root>/<h[0:2]>/<h[2:4]>/<h>.jpg. It returns "" for malformed hashes.
func (g *Generator) Path(hash string) string {
	if !fingerprint.Valid(hash) {
		return ""
	}
	return filepath.Join(g.root, hash[0:2], hash[2:4], hash+Ext)
}

// Exists reports whether the artifact for hash is present.
func (g *Generator) Exists(hash string) bool {
	p := g.Path(hash)
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// Open returns the artifact for hash, or an error wrapping
// catalog.ErrNotFound when there is none.
func (g *Generator) Open(hash string) (io.ReadCloser, error) {
	p := g.Path(hash)
	if p == "" {
		return nil, fmt.Errorf("%w: invalid content hash %q", catalog.ErrNotFound, hash)
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: thumbnail %s", catalog.ErrNotFound, hash)
		}
		return nil, fmt.Errorf("%w: open thumbnail %s: %v", catalog.ErrIOFailure, hash, err)
	}
	return f, nil
}

// Ensure makes sure the artifact for hash exists, rendering it from srcPath
// when it does not. orientation is the EXIF orientation of the source; 3, 6
// and 8 are corrected, everything else is left as stored.
//
// Failures wrap catalog.ErrDecodeFailure or catalog.ErrIOFailure and leave
// no partial artifact behind.
func (g *Generator) Ensure(ctx context.Context, srcPath, hash string, orientation int) (err error) {
	dest := g.Path(hash)
	if dest == "" {
		return fmt.Errorf("%w: invalid content hash %q for %s", catalog.ErrIOFailure, hash, srcPath)
	}
	if g.Exists(hash) {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("cached").Inc()
		return nil
	}

	if err := g.monitor.WaitIfPaused(ctx); err != nil {
		return err
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic rendering %s: %v", catalog.ErrDecodeFailure, srcPath, r)
		}
		switch {
		case err == nil:
			metrics.ThumbnailGenerationsTotal.WithLabelValues("generated").Inc()
			metrics.ThumbnailGenerationDuration.WithLabelValues(g.decoder.Name()).Observe(time.Since(start).Seconds())
		case errors.Is(err, catalog.ErrDecodeFailure):
			metrics.ThumbnailGenerationsTotal.WithLabelValues("error_decode").Inc()
		case errors.Is(err, catalog.ErrIOFailure):
			metrics.ThumbnailGenerationsTotal.WithLabelValues("error_io").Inc()
		}
	}()

	img, err := g.decoder.Decode(ctx, srcPath, g.size)
	if err != nil {
		return err
	}

	out := Flatten(imaging.Fit(Orient(img, orientation), g.size, g.size, imaging.Lanczos))

	if err := g.write(dest, out); err != nil {
		return err
	}
	logging.Debug("Thumbnail written: %s -> %s (%dx%d)", srcPath, dest, out.Bounds().Dx(), out.Bounds().Dy())
	return nil
}

// write encodes img to a temp file beside dest and renames it into place.
func (g *Generator) write(dest string, img image.Image) error {
	dir := filepath.Dir(dest)
	return filesystem.Observe(dest, "write", func() (err error) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", catalog.ErrIOFailure, dir, err)
		}

		tmp, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
		if err != nil {
			return fmt.Errorf("%w: create temp in %s: %v", catalog.ErrIOFailure, dir, err)
		}
		tmpName := tmp.Name()
		defer func() {
			if err != nil {
				tmp.Close()
				os.Remove(tmpName)
			}
		}()

		if err := imaging.Encode(tmp, img, imaging.JPEG, imaging.JPEGQuality(g.quality)); err != nil {
			return fmt.Errorf("%w: encode %s: %v", catalog.ErrIOFailure, dest, err)
		}
		if err := tmp.Sync(); err != nil {
			return fmt.Errorf("%w: sync %s: %v", catalog.ErrIOFailure, tmpName, err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("%w: close %s: %v", catalog.ErrIOFailure, tmpName, err)
		}
		if err := os.Rename(tmpName, dest); err != nil {
			return fmt.Errorf("%w: rename %s: %v", catalog.ErrIOFailure, dest, err)
		}
		return nil
	})
}

// Orient applies the rotation for an EXIF orientation value. Mirrored
// orientations (2, 4, 5, 7) and unknown values return img unchanged.
func Orient(img image.Image, orientation int) image.Image {
	switch orientation {
	case 3:
		return imaging.Rotate180(img)
	case 6:
		return imaging.Rotate270(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Flatten composites img over opaque white so the result has no alpha.
func Flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}
