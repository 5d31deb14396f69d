package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"photo-indexer/internal/catalog"
	"photo-indexer/internal/filesystem"
)

// BufferSize is the fixed read buffer used when streaming file contents.
const BufferSize = 64 * 1024

// Size is the length of a hex fingerprint.
const Size = sha256.Size * 2

// Reader hashes everything read from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, BufferSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// File hashes the file at path. Open and read errors wrap
// catalog.ErrIOFailure.
func File(path string) (string, error) {
	return FileWithRetry(path, filesystem.DefaultRetryConfig())
}

// FileWithRetry is File with an explicit NFS retry policy for the open.
func FileWithRetry(path string, retry filesystem.RetryConfig) (string, error) {
	f, err := filesystem.OpenWithRetry(path, retry)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", catalog.ErrIOFailure, path, err)
	}
	defer f.Close()

	var sum string
	err = filesystem.Observe(path, "read", func() error {
		var rerr error
		sum, rerr = Reader(onlyReader{f})
		return rerr
	})
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", catalog.ErrIOFailure, path, err)
	}
	return sum, nil
}

// Valid reports whether s looks like a fingerprint produced by this package.
func Valid(s string) bool {
	if len(s) != Size {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// onlyReader hides WriterTo so io.CopyBuffer uses the fixed buffer.
type onlyReader struct {
	r io.Reader
}

func (o onlyReader) Read(p []byte) (int, error) {
	return o.r.Read(p)
}
