package exif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrNoExif is returned by ParseJPEG when the file carries no
	// EXIF APP1 segment at all.
	ErrNoExif = errors.New("no EXIF metadata")

	// ErrCorruptExif is returned by ParseJPEG when an EXIF APP1
	// segment is present but cannot be decoded. Callers that can
	// degrade should fall back to an empty container.
	ErrCorruptExif = errors.New("corrupt EXIF metadata")
)

var exifPreamble = []byte("Exif\x00\x00")

const (
	markerSOI  = 0xD8
	markerEOI  = 0xD9
	markerSOS  = 0xDA
	markerAPP1 = 0xE1
	markerTEM  = 0x01
)

// segment is one JPEG marker segment. For the SOS segment, data also
// carries the entire entropy-coded stream up to and including EOI;
// the scanner never looks inside it.
type segment struct {
	marker byte
	data   []byte
}

// scanJPEG splits a JPEG byte stream into marker segments. It fails
// on anything that is not structurally a JPEG; pixel data is not
// decoded.
func scanJPEG(data []byte) ([]segment, error) {
	if len(data) < 2 || data[0] != 0xFF || data[1] != markerSOI {
		return nil, errors.New("not a JPEG file")
	}

	var segments []segment
	pos := 2
	for {
		if pos >= len(data) {
			return nil, errors.New("unexpected end of file")
		}
		if data[pos] != 0xFF {
			return nil, fmt.Errorf("invalid marker byte 0x%02X at offset %d", data[pos], pos)
		}

		// Fill bytes before a marker are legal.
		for pos < len(data) && data[pos] == 0xFF {
			pos++
		}
		if pos >= len(data) {
			return nil, errors.New("unexpected end of file")
		}

		marker := data[pos]
		pos++

		switch {
		case marker == markerEOI:
			return append(segments, segment{marker: markerEOI}), nil

		case marker == markerSOS:
			// Entropy-coded data follows the SOS header and is kept
			// verbatim through to the end of the stream.
			segments = append(segments, segment{marker: markerSOS, data: data[pos:]})
			return segments, nil

		case marker == markerTEM || (marker >= 0xD0 && marker <= 0xD7):
			segments = append(segments, segment{marker: marker})

		default:
			if pos+2 > len(data) {
				return nil, errors.New("truncated segment length")
			}
			length := int(binary.BigEndian.Uint16(data[pos:]))
			if length < 2 || pos+length > len(data) {
				return nil, fmt.Errorf("invalid segment length %d at offset %d", length, pos)
			}
			segments = append(segments, segment{marker: marker, data: data[pos+2 : pos+length]})
			pos += length
		}
	}
}

func isExifSegment(s segment) bool {
	return s.marker == markerAPP1 && bytes.HasPrefix(s.data, exifPreamble)
}

// ParseJPEG extracts and decodes the EXIF container from a JPEG byte
// stream. It returns ErrNoExif when no EXIF APP1 segment is present
// and a decode error when the segment exists but cannot be parsed;
// callers that can degrade should fall back to an empty container in
// the latter case.
func ParseJPEG(data []byte) (*Container, error) {
	segments, err := scanJPEG(data)
	if err != nil {
		return nil, err
	}

	for _, s := range segments {
		if isExifSegment(s) {
			c, err := DecodeTIFF(s.data[len(exifPreamble):])
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrCorruptExif, err)
			}
			return c, nil
		}
	}
	return nil, ErrNoExif
}

// WriteJPEG re-emits the source JPEG with its EXIF APP1 segment
// replaced by the encoded container. The new segment goes directly
// after SOI; every other segment, including the entropy-coded stream,
// is copied through byte for byte. Any pre-existing EXIF segment is
// dropped, never merged.
func WriteJPEG(src []byte, c *Container) ([]byte, error) {
	segments, err := scanJPEG(src)
	if err != nil {
		return nil, err
	}

	payload := c.EncodeTIFF()
	app1Len := len(exifPreamble) + len(payload) + 2
	if app1Len > 0xFFFF {
		return nil, fmt.Errorf("EXIF payload too large: %d bytes", app1Len)
	}

	var out bytes.Buffer
	out.Grow(len(src) + app1Len + 4)
	out.Write([]byte{0xFF, markerSOI})

	out.Write([]byte{0xFF, markerAPP1})
	appendUint16BE(&out, uint16(app1Len))
	out.Write(exifPreamble)
	out.Write(payload)

	for _, s := range segments {
		if isExifSegment(s) {
			continue
		}

		out.WriteByte(0xFF)
		out.WriteByte(s.marker)
		switch {
		case s.marker == markerSOS:
			// Captured raw from the length header through the end of
			// the entropy stream.
			out.Write(s.data)
		case s.marker == markerEOI || s.marker == markerTEM || (s.marker >= 0xD0 && s.marker <= 0xD7):
			// standalone marker, no payload
		default:
			appendUint16BE(&out, uint16(len(s.data)+2))
			out.Write(s.data)
		}
	}

	return out.Bytes(), nil
}

func appendUint16BE(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}
