package metadata

import (
	"fmt"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/logging"
)

// ExifTimeLayout is the fixed textual pattern of EXIF date tags.
const ExifTimeLayout = "2006:01:02 15:04:05"

// Source is what a timestamp strategy can look at for one file.
type Source struct {
	Path     string
	Exif     *exif.Exif
	ModTime  time.Time
	Location *time.Location
}

// TimestampStrategy resolves a capture timestamp from one source of
// evidence. ok is false when the evidence is absent or unusable.
type TimestampStrategy interface {
	Name() catalog.TimestampSource
	Resolve(src Source) (t time.Time, ok bool)
}

// ExifTag reads a date tag in ExifTimeLayout.
type ExifTag struct {
	Field  exif.FieldName
	Source catalog.TimestampSource
}

func (s ExifTag) Name() catalog.TimestampSource { return s.Source }

func (s ExifTag) Resolve(src Source) (time.Time, bool) {
	if src.Exif == nil {
		return time.Time{}, false
	}
	tag, err := src.Exif.Get(s.Field)
	if err != nil {
		return time.Time{}, false
	}
	raw, err := tag.StringVal()
	if err != nil {
		logging.Warn("Ignoring %s in %s: %v", s.Field, src.Path, fmt.Errorf("%w: %v", catalog.ErrMetadataParse, err))
		return time.Time{}, false
	}
	t, err := ParseExifTime(raw, src.Location)
	if err != nil {
		logging.Warn("Ignoring %s in %s: %v", s.Field, src.Path, err)
		return time.Time{}, false
	}
	return t, true
}

// ModTime uses the filesystem modification time.
type ModTime struct{}

func (ModTime) Name() catalog.TimestampSource { return catalog.TimestampModTime }

func (ModTime) Resolve(src Source) (time.Time, bool) {
	if src.ModTime.IsZero() {
		return time.Time{}, false
	}
	return src.ModTime, true
}

// ScanTime uses the clock at scan time. It always resolves.
type ScanTime struct {
	Now func() time.Time
}

func (ScanTime) Name() catalog.TimestampSource { return catalog.TimestampScanTime }

func (s ScanTime) Resolve(Source) (time.Time, bool) {
	if s.Now != nil {
		return s.Now(), true
	}
	return time.Now(), true
}

// DefaultStrategies returns the standard resolution order.
func DefaultStrategies(now func() time.Time) []TimestampStrategy {
	return []TimestampStrategy{
		ExifTag{Field: exif.DateTimeOriginal, Source: catalog.TimestampExifOriginal},
		ExifTag{Field: exif.DateTimeDigitized, Source: catalog.TimestampExifDigitized},
		ExifTag{Field: exif.DateTime, Source: catalog.TimestampExifDateTime},
		ModTime{},
		ScanTime{Now: now},
	}
}

// ResolveTimestamp walks the strategies in order and returns the first
// match. With no match (only possible without a ScanTime strategy) it
// returns the zero time and an empty source.
func ResolveTimestamp(strategies []TimestampStrategy, src Source) (time.Time, catalog.TimestampSource) {
	for _, s := range strategies {
		if t, ok := s.Resolve(src); ok {
			return t, s.Name()
		}
	}
	return time.Time{}, ""
}

// ParseExifTime parses an EXIF date string in loc. Trailing NULs and
// spaces are trimmed. Failures wrap catalog.ErrMetadataParse.
func ParseExifTime(raw string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	s := strings.TrimRight(raw, "\x00 ")
	t, err := time.ParseInLocation(ExifTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", catalog.ErrMetadataParse, s, err)
	}
	return t, nil
}
