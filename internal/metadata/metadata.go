package metadata

import (
	"image"
	"io"
	"io/fs"
	"os"
	"time"

	// Decoders for the supported formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/rwcarlsen/goexif/exif"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/filesystem"
	"photo-indexer/internal/logging"
	"photo-indexer/internal/mediatypes"
)

// Metadata is the display metadata extracted from one file.
type Metadata struct {
	Width            *int
	Height           *int
	Format           string
	CaptureTimestamp time.Time
	TimestampSource  catalog.TimestampSource
	Orientation      int
	Raw              string
}

// Extractor reads dimensions, EXIF tags and the capture timestamp.
type Extractor struct {
	// Strategies is the timestamp resolution order.
	Strategies []TimestampStrategy
	// Location is the zone EXIF dates are interpreted in (EXIF carries no offset).
	Location *time.Location
	// Retry configures the NFS retry policy for opening sources.
	Retry filesystem.RetryConfig
}

// NewExtractor returns an Extractor with the default strategies, local
// time and the default retry policy. now may be nil.
func NewExtractor(now func() time.Time) *Extractor {
	return &Extractor{
		Strategies: DefaultStrategies(now),
		Location:   time.Local,
		Retry:      filesystem.DefaultRetryConfig(),
	}
}

// Extract reads metadata for the file at path. info supplies the
// modification time and may be nil.
func (e *Extractor) Extract(path string, info fs.FileInfo) Metadata {
	md := Metadata{Orientation: 1, Raw: "{}"}

	src := Source{Path: path, Location: e.Location}
	if info != nil {
		src.ModTime = info.ModTime()
	}

	f, err := filesystem.OpenWithRetry(path, e.Retry)
	if err != nil {
		logging.Warn("Metadata: cannot open %s: %v", path, err)
	} else {
		defer f.Close()
		e.readImage(f, path, &md, &src)
	}

	md.CaptureTimestamp, md.TimestampSource = ResolveTimestamp(e.Strategies, src)
	return md
}

func (e *Extractor) readImage(f *os.File, path string, md *Metadata, src *Source) {
	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		logging.Debug("Metadata: no dimensions for %s: %v", path, err)
	} else {
		w, h := cfg.Width, cfg.Height
		md.Width, md.Height = &w, &h
		md.Format = format
	}

	if !hasExifContainer(format, path) {
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		logging.Debug("Metadata: cannot rewind %s: %v", path, err)
		return
	}

	x, err := exif.Decode(f)
	if x == nil || (err != nil && exif.IsCriticalError(err)) {
		logging.Debug("Metadata: no EXIF in %s: %v", path, err)
		return
	}
	if err != nil {
		logging.Debug("Metadata: partial EXIF in %s: %v", path, err)
	}

	src.Exif = x
	md.Orientation = Orientation(x)
	if raw, err := x.MarshalJSON(); err == nil {
		md.Raw = string(raw)
	}
}

// hasExifContainer limits EXIF parsing to formats that carry it. goexif
// would otherwise scan every byte of a PNG or GIF looking for an APP1
// marker.
func hasExifContainer(format, path string) bool {
	switch format {
	case "jpeg", "tiff":
		return true
	case "":
		switch mediatypes.Ext(path) {
		case ".jpg", ".jpeg", ".tiff":
			return true
		}
	}
	return false
}

// Orientation returns the EXIF orientation, or 1 when it is absent or
// outside 1..8.
func Orientation(x *exif.Exif) int {
	if x == nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return 1
	}
	return v
}
