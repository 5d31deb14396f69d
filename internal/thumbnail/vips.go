package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path/filepath"
	"sync"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/metrics"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/disintegration/imaging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// InitVips initializes the libvips library.
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	// Configure vips logging BEFORE Startup() so it follows LOG_LEVEL
	var vipsLogLevel vips.LogLevel
	switch logging.GetLevel() {
	case logging.LevelDebug:
		vipsLogLevel = vips.LogLevelInfo
	case logging.LevelInfo:
		vipsLogLevel = vips.LogLevelWarning
	case logging.LevelWarn:
		vipsLogLevel = vips.LogLevelError
	default:
		vipsLogLevel = vips.LogLevelCritical
	}

	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch {
		case level <= vips.LogLevelCritical:
			logging.Error("[%s] %s", domain, msg)
		case level == vips.LogLevelWarning:
			logging.Warn("[%s] %s", domain, msg)
		default:
			logging.Debug("[%s] %s", domain, msg)
		}
	}, vipsLogLevel)

	// Scan workers already run in parallel; keep each vips call single threaded.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
		ReportLeaks:      false,
		CacheTrace:       false,
		CollectStats:     false,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources. govips cannot be restarted in the
// same process afterwards.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsDecoder shrinks images while decoding with libvips. Formats libvips
// cannot load are handed to Fallback when set.
type VipsDecoder struct {
	Fallback Decoder
}

// NewVipsDecoder returns a VipsDecoder that falls back to the imaging
// decoder.
func NewVipsDecoder() *VipsDecoder {
	return &VipsDecoder{Fallback: NewImagingDecoder()}
}

// Name implements Decoder.
func (d *VipsDecoder) Name() string { return "vips" }

// Decode implements Decoder.
func (d *VipsDecoder) Decode(ctx context.Context, path string, bound int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !IsVipsAvailable() {
		if d.Fallback != nil {
			return d.Fallback.Decode(ctx, path, bound)
		}
		return nil, fmt.Errorf("%w: libvips not available", catalog.ErrDecodeFailure)
	}

	img, err := d.decode(path, bound)
	if err != nil && d.Fallback != nil {
		logging.Debug("vips decode failed for %s, falling back to %s: %v", path, d.Fallback.Name(), err)
		return d.Fallback.Decode(ctx, path, bound)
	}
	return img, err
}

func (d *VipsDecoder) decode(path string, bound int) (image.Image, error) {
	// Orientation is applied by the generator, so vips must not rotate.
	params := vips.NewImportParams()
	params.AutoRotate.Set(false)

	ref, err := vips.LoadImageFromFile(path, params)
	if err != nil {
		return nil, fmt.Errorf("%w: vips load %s: %v", catalog.ErrDecodeFailure, path, err)
	}
	defer ref.Close()

	metrics.ThumbnailImageDecodeByFormat.WithLabelValues(vips.ImageTypes[ref.Format()]).Inc()

	// ref.Thumbnail would also honour the orientation tag, so resize instead.
	w, h := ref.Width(), ref.Height()
	if longest := max(w, h); bound > 0 && longest > bound {
		scale := float64(bound) / float64(longest)
		if err := ref.Resize(scale, vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("%w: vips resize %s: %v", catalog.ErrDecodeFailure, path, err)
		}
	}

	// JPEG export would composite transparency onto black
	if ref.HasAlpha() {
		if err := ref.Flatten(&vips.Color{R: 255, G: 255, B: 255}); err != nil {
			return nil, fmt.Errorf("%w: vips flatten %s: %v", catalog.ErrDecodeFailure, path, err)
		}
	}

	imgBytes, _, err := ref.ExportJpeg(&vips.JpegExportParams{
		Quality:        95,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: vips export %s: %v", catalog.ErrDecodeFailure, path, err)
	}

	img, err := imaging.Decode(bytes.NewReader(imgBytes), imaging.AutoOrientation(false))
	if err != nil {
		return nil, fmt.Errorf("%w: decode vips output for %s: %v", catalog.ErrDecodeFailure, path, err)
	}

	logging.Debug("Vips decoded %s: %dx%d -> %dx%d",
		filepath.Base(path), w, h, img.Bounds().Dx(), img.Bounds().Dy())
	return img, nil
}
