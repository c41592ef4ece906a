package exif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const tiffHeaderSize = 8

var errShortData = errors.New("truncated TIFF data")

// DecodeTIFF parses a TIFF-structured EXIF payload (the APP1 body
// after the "Exif\0\0" preamble) into a Container. Both byte orders
// are accepted on input; field payloads are canonicalized to
// little-endian. Thumbnail (IFD1) directories are ignored.
func DecodeTIFF(data []byte) (*Container, error) {
	if len(data) < tiffHeaderSize {
		return nil, errShortData
	}

	var order binary.ByteOrder
	switch {
	case data[0] == 'I' && data[1] == 'I':
		order = binary.LittleEndian
	case data[0] == 'M' && data[1] == 'M':
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid byte order mark %q", data[:2])
	}
	if order.Uint16(data[2:]) != 42 {
		return nil, fmt.Errorf("invalid TIFF magic %d", order.Uint16(data[2:]))
	}

	c := NewContainer()

	ifd0Offset := order.Uint32(data[4:])
	if err := decodeIFD(data, order, ifd0Offset, c.IFD0); err != nil {
		return nil, fmt.Errorf("decoding IFD0: %w", err)
	}

	if ptr, ok := takePointer(c.IFD0, TagExifIFDPointer); ok {
		if err := decodeIFD(data, order, ptr, c.Exif); err != nil {
			return nil, fmt.Errorf("decoding Exif IFD: %w", err)
		}
	}
	if ptr, ok := takePointer(c.IFD0, TagGPSIFDPointer); ok {
		if err := decodeIFD(data, order, ptr, c.GPS); err != nil {
			return nil, fmt.Errorf("decoding GPS IFD: %w", err)
		}
	}

	return c, nil
}

// takePointer removes a sub-IFD pointer tag from the directory and
// returns its offset. Pointer tags are re-synthesized on encode.
func takePointer(ifd IFD, tag uint16) (uint32, bool) {
	f, ok := ifd[tag]
	if !ok {
		return 0, false
	}
	delete(ifd, tag)

	if f.Count != 1 || len(f.data) < 4 || (f.Type != TypeLong && f.Type != TypeShort) {
		return 0, false
	}
	if f.Type == TypeShort {
		return uint32(binary.LittleEndian.Uint16(f.data)), true
	}
	return binary.LittleEndian.Uint32(f.data), true
}

func decodeIFD(data []byte, order binary.ByteOrder, offset uint32, dst IFD) error {
	if int64(offset)+2 > int64(len(data)) {
		return errShortData
	}

	count := int(order.Uint16(data[offset:]))
	entries := data[offset+2:]
	if len(entries) < count*12 {
		return errShortData
	}

	for i := 0; i < count; i++ {
		entry := entries[i*12 : i*12+12]

		tag := order.Uint16(entry)
		typ := DataType(order.Uint16(entry[2:]))
		num := order.Uint32(entry[4:])

		elemSize := typ.Size()
		if elemSize == 0 {
			continue // unknown type, drop the field
		}
		size := uint64(num) * uint64(elemSize)
		if size > uint64(len(data)) {
			return errShortData
		}

		var raw []byte
		if size <= 4 {
			raw = entry[8 : 8+size]
		} else {
			valOffset := order.Uint32(entry[8:])
			if uint64(valOffset)+size > uint64(len(data)) {
				return errShortData
			}
			raw = data[valOffset : uint64(valOffset)+size]
		}

		dst[tag] = Field{
			Type:  typ,
			Count: num,
			data:  canonicalize(raw, typ, order),
		}
	}

	return nil
}

// canonicalize rewrites a field payload element by element into
// little-endian form.
func canonicalize(raw []byte, typ DataType, order binary.ByteOrder) []byte {
	data := make([]byte, len(raw))
	if order == binary.LittleEndian || typ.Size() == 1 {
		copy(data, raw)
		return data
	}

	switch typ {
	case TypeShort:
		for i := 0; i+2 <= len(raw); i += 2 {
			binary.LittleEndian.PutUint16(data[i:], order.Uint16(raw[i:]))
		}
	case TypeLong, TypeSLong:
		for i := 0; i+4 <= len(raw); i += 4 {
			binary.LittleEndian.PutUint32(data[i:], order.Uint32(raw[i:]))
		}
	case TypeRational, TypeSRational:
		for i := 0; i+4 <= len(raw); i += 4 {
			binary.LittleEndian.PutUint32(data[i:], order.Uint32(raw[i:]))
		}
	}
	return data
}

// EncodeTIFF serializes the container into a TIFF-structured EXIF
// payload. Output is always little-endian with tags in ascending
// order and directories laid out IFD0, Exif, GPS, then out-of-line
// values, so equal containers always produce identical bytes.
func (c *Container) EncodeTIFF() []byte {
	ifd0 := make(IFD, len(c.IFD0)+2)
	for tag, f := range c.IFD0 {
		ifd0[tag] = f
	}

	// Sub-IFD pointer values depend on directory sizes, computed first.
	numIFD0 := len(c.IFD0)
	if len(c.Exif) > 0 {
		numIFD0++
	}
	if len(c.GPS) > 0 {
		numIFD0++
	}

	ifd0Offset := uint32(tiffHeaderSize)
	exifOffset := ifd0Offset + ifdSize(numIFD0)
	gpsOffset := exifOffset
	if len(c.Exif) > 0 {
		gpsOffset += ifdSize(len(c.Exif))
		ifd0[TagExifIFDPointer] = Longs(exifOffset)
	}
	dataOffset := gpsOffset
	if len(c.GPS) > 0 {
		dataOffset += ifdSize(len(c.GPS))
		ifd0[TagGPSIFDPointer] = Longs(gpsOffset)
	}

	var buf bytes.Buffer
	buf.WriteString("II")
	appendUint16(&buf, 42)
	appendUint32(&buf, ifd0Offset)

	var dataArea bytes.Buffer
	encodeIFD(&buf, ifd0, dataOffset, &dataArea)
	if len(c.Exif) > 0 {
		encodeIFD(&buf, c.Exif, dataOffset, &dataArea)
	}
	if len(c.GPS) > 0 {
		encodeIFD(&buf, c.GPS, dataOffset, &dataArea)
	}
	buf.Write(dataArea.Bytes())

	return buf.Bytes()
}

// ifdSize returns the encoded size of a directory with n entries:
// entry count, n 12-byte entries, next-IFD offset.
func ifdSize(n int) uint32 {
	return 2 + uint32(n)*12 + 4
}

func encodeIFD(buf *bytes.Buffer, ifd IFD, dataOffset uint32, dataArea *bytes.Buffer) {
	tags := ifd.sortedTags()

	appendUint16(buf, uint16(len(tags)))
	for _, tag := range tags {
		f := ifd[tag]

		appendUint16(buf, tag)
		appendUint16(buf, uint16(f.Type))
		appendUint32(buf, f.Count)

		if len(f.data) <= 4 {
			var inline [4]byte
			copy(inline[:], f.data)
			buf.Write(inline[:])
			continue
		}

		appendUint32(buf, dataOffset+uint32(dataArea.Len()))
		dataArea.Write(f.data)
		if len(f.data)%2 != 0 {
			dataArea.WriteByte(0) // keep offsets word-aligned
		}
	}
	appendUint32(buf, 0) // no next IFD
}

func appendUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func appendUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}
