package thumbnail

import (
	"context"
	"fmt"
	"image"
	"io"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/filesystem"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/metrics"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// DefaultMaxPixels rejects images whose declared size would need more than
// roughly 600MB of decoded RGBA.
const DefaultMaxPixels = 150_000_000

// Decoder turns a source file into pixels. The returned image must be in
// stored orientation; bound is a hint that decoders able to shrink while
// decoding may use.
type Decoder interface {
	Name() string
	Decode(ctx context.Context, path string, bound int) (image.Image, error)
}

// ImagingDecoder decodes with the standard library codecs through imaging.
type ImagingDecoder struct {
	Retry     filesystem.RetryConfig
	MaxPixels int
}

// NewImagingDecoder returns the default decoder.
func NewImagingDecoder() *ImagingDecoder {
	return &ImagingDecoder{
		Retry:     filesystem.DefaultRetryConfig(),
		MaxPixels: DefaultMaxPixels,
	}
}

// Name implements Decoder.
func (d *ImagingDecoder) Name() string { return "imaging" }

// Decode implements Decoder. Embedded orientation is ignored.
func (d *ImagingDecoder) Decode(ctx context.Context, path string, _ int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := filesystem.OpenWithRetry(path, d.Retry)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", catalog.ErrIOFailure, path, err)
	}
	defer f.Close()

	var img image.Image
	err = filesystem.Observe(path, "read", func() error {
		cfg, format, err := image.DecodeConfig(f)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", catalog.ErrDecodeFailure, path, err)
		}
		if d.MaxPixels > 0 && cfg.Width*cfg.Height > d.MaxPixels {
			return fmt.Errorf("%w: %s: %dx%d exceeds %d pixels",
				catalog.ErrDecodeFailure, path, cfg.Width, cfg.Height, d.MaxPixels)
		}
		metrics.ThumbnailImageDecodeByFormat.WithLabelValues(format).Inc()

		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("%w: seek %s: %v", catalog.ErrIOFailure, path, err)
		}

		img, err = imaging.Decode(f, imaging.AutoOrientation(false))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", catalog.ErrDecodeFailure, path, err)
		}
		logging.Debug("Decoded %s (%s, %dx%d)", path, format, cfg.Width, cfg.Height)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}
