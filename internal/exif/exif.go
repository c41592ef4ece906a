// Package exif implements the metadata container codec used for
// geotag injection: a tolerant reader and a deterministic writer for
// the EXIF APP1 (TIFF) block embedded in JPEG files. Only the
// metadata segment is ever touched; pixel data passes through
// untouched.
package exif

import (
	"encoding/binary"
	"sort"
)

// Tags used by the geotagging pipeline. IFD0 and Exif tags follow the
// TIFF/EXIF numbering, GPS tags the GPS Info IFD numbering.
const (
	TagDateTime          uint16 = 0x0132 // IFD0, modification timestamp
	TagExifIFDPointer    uint16 = 0x8769 // IFD0, offset of the Exif IFD
	TagGPSIFDPointer     uint16 = 0x8825 // IFD0, offset of the GPS IFD
	TagDateTimeOriginal  uint16 = 0x9003 // Exif IFD
	TagDateTimeDigitized uint16 = 0x9004 // Exif IFD

	TagGPSLatitudeRef  uint16 = 0x0001
	TagGPSLatitude     uint16 = 0x0002
	TagGPSLongitudeRef uint16 = 0x0003
	TagGPSLongitude    uint16 = 0x0004
	TagGPSAltitudeRef  uint16 = 0x0005
	TagGPSAltitude     uint16 = 0x0006
)

// TimestampLayout is the EXIF timestamp format for DateTime,
// DateTimeOriginal and DateTimeDigitized.
const TimestampLayout = "2006:01:02 15:04:05"

// DataType is a TIFF field data type.
type DataType uint16

const (
	TypeByte      DataType = 1
	TypeASCII     DataType = 2
	TypeShort     DataType = 3
	TypeLong      DataType = 4
	TypeRational  DataType = 5
	TypeUndefined DataType = 7
	TypeSLong     DataType = 9
	TypeSRational DataType = 10
)

// Size returns the byte size of a single element of the type, or 0
// for unknown types.
func (t DataType) Size() uint32 {
	switch t {
	case TypeByte, TypeASCII, TypeUndefined:
		return 1
	case TypeShort:
		return 2
	case TypeLong, TypeSLong:
		return 4
	case TypeRational, TypeSRational:
		return 8
	default:
		return 0
	}
}

// Rational is an unsigned TIFF rational value.
type Rational struct {
	Num uint32
	Den uint32
}

// Field is a single IFD entry. The payload is held in canonical
// little-endian form regardless of the byte order it was parsed from,
// so re-encoding is independent of the source file.
type Field struct {
	Type  DataType
	Count uint32
	data  []byte
}

// IFD is one image file directory, keyed by tag.
type IFD map[uint16]Field

// Container is the parsed metadata block: the primary directory, the
// Exif sub-directory and the GPS sub-directory. Thumbnail directories
// are not carried; an injected container is rebuilt from these three.
type Container struct {
	IFD0 IFD
	Exif IFD
	GPS  IFD
}

// NewContainer returns an empty container with all directories
// allocated.
func NewContainer() *Container {
	return &Container{
		IFD0: make(IFD),
		Exif: make(IFD),
		GPS:  make(IFD),
	}
}

// ASCII builds an ASCII field. The terminating NUL required by TIFF
// is appended here, not by the caller.
func ASCII(s string) Field {
	data := make([]byte, len(s)+1)
	copy(data, s)
	return Field{Type: TypeASCII, Count: uint32(len(data)), data: data}
}

// Rationals builds an unsigned rational field.
func Rationals(values ...Rational) Field {
	data := make([]byte, 0, len(values)*8)
	for _, v := range values {
		data = binary.LittleEndian.AppendUint32(data, v.Num)
		data = binary.LittleEndian.AppendUint32(data, v.Den)
	}
	return Field{Type: TypeRational, Count: uint32(len(values)), data: data}
}

// Shorts builds an unsigned 16-bit field.
func Shorts(values ...uint16) Field {
	data := make([]byte, 0, len(values)*2)
	for _, v := range values {
		data = binary.LittleEndian.AppendUint16(data, v)
	}
	return Field{Type: TypeShort, Count: uint32(len(values)), data: data}
}

// Longs builds an unsigned 32-bit field.
func Longs(values ...uint32) Field {
	data := make([]byte, 0, len(values)*4)
	for _, v := range values {
		data = binary.LittleEndian.AppendUint32(data, v)
	}
	return Field{Type: TypeLong, Count: uint32(len(values)), data: data}
}

// Bytes builds a BYTE field.
func Bytes(values ...byte) Field {
	data := make([]byte, len(values))
	copy(data, values)
	return Field{Type: TypeByte, Count: uint32(len(values)), data: data}
}

// Undefined builds an UNDEFINED field from raw bytes.
func Undefined(data []byte) Field {
	d := make([]byte, len(data))
	copy(d, data)
	return Field{Type: TypeUndefined, Count: uint32(len(d)), data: d}
}

// Text returns the field value as a string with the trailing NUL
// stripped. ok is false when the field is not ASCII.
func (f Field) Text() (value string, ok bool) {
	if f.Type != TypeASCII {
		return "", false
	}
	data := f.data
	for len(data) > 0 && data[len(data)-1] == 0 {
		data = data[:len(data)-1]
	}
	return string(data), true
}

// Rationals returns the field value as unsigned rationals. ok is
// false when the field is not RATIONAL.
func (f Field) Rationals() (values []Rational, ok bool) {
	if f.Type != TypeRational || len(f.data) < int(f.Count)*8 {
		return nil, false
	}
	values = make([]Rational, f.Count)
	for i := range values {
		values[i].Num = binary.LittleEndian.Uint32(f.data[i*8:])
		values[i].Den = binary.LittleEndian.Uint32(f.data[i*8+4:])
	}
	return values, true
}

// Raw returns a copy of the canonical little-endian payload.
func (f Field) Raw() []byte {
	data := make([]byte, len(f.data))
	copy(data, f.data)
	return data
}

func (d IFD) sortedTags() []uint16 {
	tags := make([]uint16, 0, len(d))
	for tag := range d {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
