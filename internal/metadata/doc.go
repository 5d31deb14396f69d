// Package metadata extracts display metadata from library images.
//
// Extract never fails. Each piece degrades on its own:
//   - Dimensions come from image.DecodeConfig; an unreadable header leaves
//     width and height nil.
//   - EXIF tags are read with goexif for JPEG and TIFF sources; a missing or
//     corrupt block means no tags.
//   - The capture timestamp is resolved by an ordered list of strategies,
//     first match wins: EXIF DateTimeOriginal, DateTimeDigitized, DateTime,
//     the file modification time, and finally the scan clock.
//   - Orientation is read from the EXIF Orientation tag; anything outside
//     1..8 is treated as 1 (upright).
//
// A tag that does not match the "2006:01:02 15:04:05" layout is logged and
// treated as absent so resolution falls through to the next strategy.
package metadata
