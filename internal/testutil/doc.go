// Package testutil builds small image fixtures for tests: JPEGs with an
// EXIF APP1 segment carrying orientation and date tags, and PNGs with or
// without alpha. It is imported only from _test.go files.
package testutil
