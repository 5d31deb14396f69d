package testutil

import (
	"bytes"
	"encoding/binary"
)

// EXIF describes the tags written into a fixture's APP1 segment. Zero
// values are omitted.
type EXIF struct {
	Orientation       int
	Make              string
	Model             string
	DateTime          string
	DateTimeOriginal  string
	DateTimeDigitized string
}

const (
	tagMake              = 0x010F
	tagModel             = 0x0110
	tagOrientation       = 0x0112
	tagDateTime          = 0x0132
	tagExifIFDPointer    = 0x8769
	tagDateTimeOriginal  = 0x9003
	tagDateTimeDigitized = 0x9004

	typeASCII = 2
	typeShort = 3
	typeLong  = 4
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	short uint16
	long  uint32
	ascii []byte
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(b)), ascii: b}
}

// TIFF returns the big-endian TIFF block holding the tags.
func (e EXIF) TIFF() []byte {
	var ifd0, sub []ifdEntry
	if e.Make != "" {
		ifd0 = append(ifd0, asciiEntry(tagMake, e.Make))
	}
	if e.Model != "" {
		ifd0 = append(ifd0, asciiEntry(tagModel, e.Model))
	}
	if e.Orientation != 0 {
		ifd0 = append(ifd0, ifdEntry{tag: tagOrientation, typ: typeShort, count: 1, short: uint16(e.Orientation)})
	}
	if e.DateTime != "" {
		ifd0 = append(ifd0, asciiEntry(tagDateTime, e.DateTime))
	}
	if e.DateTimeOriginal != "" {
		sub = append(sub, asciiEntry(tagDateTimeOriginal, e.DateTimeOriginal))
	}
	if e.DateTimeDigitized != "" {
		sub = append(sub, asciiEntry(tagDateTimeDigitized, e.DateTimeDigitized))
	}

	ifdSize := func(n int) uint32 { return uint32(2 + 12*n + 4) }

	ifd0Off := uint32(8)
	n0 := len(ifd0)
	if len(sub) > 0 {
		n0++
	}
	subOff := ifd0Off + ifdSize(n0)
	dataOff := subOff
	if len(sub) > 0 {
		dataOff += ifdSize(len(sub))
	}
	if len(sub) > 0 {
		ifd0 = append(ifd0, ifdEntry{tag: tagExifIFDPointer, typ: typeLong, count: 1, long: subOff})
	}

	var data bytes.Buffer
	order := binary.BigEndian

	writeIFD := func(buf *bytes.Buffer, entries []ifdEntry) {
		_ = binary.Write(buf, order, uint16(len(entries)))
		for _, en := range entries {
			_ = binary.Write(buf, order, en.tag)
			_ = binary.Write(buf, order, en.typ)
			_ = binary.Write(buf, order, en.count)
			switch en.typ {
			case typeShort:
				_ = binary.Write(buf, order, en.short)
				_ = binary.Write(buf, order, uint16(0))
			case typeLong:
				_ = binary.Write(buf, order, en.long)
			case typeASCII:
				if len(en.ascii) <= 4 {
					var inline [4]byte
					copy(inline[:], en.ascii)
					buf.Write(inline[:])
					continue
				}
				_ = binary.Write(buf, order, dataOff+uint32(data.Len()))
				data.Write(en.ascii)
				if data.Len()%2 == 1 {
					data.WriteByte(0)
				}
			}
		}
		_ = binary.Write(buf, order, uint32(0))
	}

	var out bytes.Buffer
	out.WriteString("MM")
	_ = binary.Write(&out, order, uint16(42))
	_ = binary.Write(&out, order, ifd0Off)
	writeIFD(&out, ifd0)
	if len(sub) > 0 {
		writeIFD(&out, sub)
	}
	out.Write(data.Bytes())
	return out.Bytes()
}

// Segment returns the complete JPEG APP1 segment, marker included.
func (e EXIF) Segment() []byte {
	payload := append([]byte("Exif\x00\x00"), e.TIFF()...)
	seg := []byte{0xFF, 0xE1, 0, 0}
	binary.BigEndian.PutUint16(seg[2:], uint16(len(payload)+2))
	return append(seg, payload...)
}
