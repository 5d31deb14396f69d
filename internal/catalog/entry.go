package catalog

import (
	"path"
	"strings"
	"time"
)

// TimestampSource names the strategy that resolved an entry's capture time.
type TimestampSource string

const (
	TimestampExifOriginal  TimestampSource = "exif_original"
	TimestampExifDigitized TimestampSource = "exif_digitized"
	TimestampExifDateTime  TimestampSource = "exif_datetime"
	TimestampModTime       TimestampSource = "mod_time"
	TimestampScanTime      TimestampSource = "scan_time"
)

// Entry is one catalog record per indexed file.
type Entry struct {
	ID               int64           `json:"id"`
	RelativePath     string          `json:"relativePath"`
	Filename         string          `json:"filename"`
	ContentHash      string          `json:"contentHash,omitempty"`
	MimeType         string          `json:"mimeType,omitempty"`
	CaptureTimestamp time.Time       `json:"captureTimestamp"`
	TimestampSource  TimestampSource `json:"timestampSource,omitempty"`
	Width            *int            `json:"width,omitempty"`
	Height           *int            `json:"height,omitempty"`
	Orientation      int             `json:"orientation"`
	FileSizeBytes    int64           `json:"fileSizeBytes"`
	ThumbnailReady   bool            `json:"thumbnailReady"`
	RawMetadata      string          `json:"rawMetadata,omitempty"`
	AddedAt          time.Time       `json:"addedAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Filter narrows a catalog listing. Zero values mean "no constraint".
type Filter struct {
	PathPrefix  string
	ContentHash string
	Limit       int
	Offset      int
}

// Stats summarizes catalog contents.
type Stats struct {
	TotalEntries    int       `json:"totalEntries"`
	ThumbnailsReady int       `json:"thumbnailsReady"`
	DistinctHashes  int       `json:"distinctHashes"`
	TotalBytes      int64     `json:"totalBytes"`
	LastUpdated     time.Time `json:"lastUpdated"`
}

// NormalizePath converts an OS relative path into the catalog key form:
// forward slashes, no leading "./" or "/".
func NormalizePath(rel string) string {
	p := strings.ReplaceAll(rel, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "." {
		return ""
	}
	return p
}
