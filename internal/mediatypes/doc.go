// Package mediatypes holds the supported image formats for the photo
// indexer.
//
// This package is dependency-free so it can be imported from anywhere in
// the module without creating import cycles.
//
// # Extension Detection
//
// The allow-list is fixed: .jpg .jpeg .png .gif .bmp .tiff, matched
// case-insensitively.
//
//	if mediatypes.IsSupported(entry.Name()) {
//	    // index the file
//	}
//
// # MIME Types
//
//	mimeType := mediatypes.GetMimeType(mediatypes.Ext(name)) // e.g., "image/jpeg"
package mediatypes
