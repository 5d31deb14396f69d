package catalog

import "errors"

var (
	// ErrConfiguration reports missing or invalid required paths. It aborts a
	// run before any file is touched.
	ErrConfiguration = errors.New("configuration error")

	// ErrIOFailure reports an unreadable source file or an unwritable
	// thumbnail directory. It is scoped to a single file.
	ErrIOFailure = errors.New("i/o failure")

	// ErrDecodeFailure reports a corrupt or unsupported image.
	ErrDecodeFailure = errors.New("decode failure")

	// ErrMetadataParse reports a malformed embedded tag. The timestamp chain
	// treats it as an absent tag.
	ErrMetadataParse = errors.New("metadata parse failure")

	// ErrCommitFailure reports a rejected batch write. The whole batch is
	// rolled back.
	ErrCommitFailure = errors.New("commit failure")

	// ErrStorageUnavailable reports that the catalog store cannot be reached
	// or written.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrConstraintViolation reports a write rejected by a store constraint.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrNotFound reports a missing catalog entry or thumbnail artifact.
	ErrNotFound = errors.New("not found")
)

// IsFileScoped reports whether err only affects the file being processed,
// as opposed to the whole run.
func IsFileScoped(err error) bool {
	return errors.Is(err, ErrIOFailure) ||
		errors.Is(err, ErrDecodeFailure) ||
		errors.Is(err, ErrMetadataParse)
}
