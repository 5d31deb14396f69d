// Package thumbnail renders and stores the catalog's preview images.
//
// Artifacts are keyed by content hash, not by path, so identical files share
// one thumbnail and a moved file keeps its preview. They live under a
// two-level shard tree:
//
//	<root>/ab/cd/abcd...ef.jpg
//
// Every artifact is an upright, opaque RGB JPEG that fits inside the
// configured bounding box with the source aspect ratio preserved. Writes go
// through a temp file and a rename, so readers never observe a partial file.
//
// Decoding is pluggable. ImagingDecoder uses the Go image codecs and is the
// default; VipsDecoder uses libvips to shrink large images while decoding.
package thumbnail
