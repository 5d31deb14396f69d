// Package fingerprint computes content hashes for library files.
//
// A fingerprint is the lowercase hex SHA-256 of a file's bytes. Identical
// bytes always give the same fingerprint regardless of name or location,
// which is what the catalog uses for change detection and what the
// thumbnail store uses as its key.
package fingerprint
