package exif

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// minimalJPEG builds a structurally valid JPEG with the given extra
// segments between SOI and EOI.
func minimalJPEG(extra ...segment) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8}) // SOI

	// A bare APP0/JFIF segment so the file looks like camera output.
	jfif := []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	buf.Write([]byte{0xFF, 0xE0})
	appendUint16BE(&buf, uint16(len(jfif)+2))
	buf.Write(jfif)

	for _, s := range extra {
		buf.WriteByte(0xFF)
		buf.WriteByte(s.marker)
		appendUint16BE(&buf, uint16(len(s.data)+2))
		buf.Write(s.data)
	}

	buf.Write([]byte{0xFF, 0xD9}) // EOI
	return buf.Bytes()
}

func exifSegment(c *Container) segment {
	return segment{
		marker: markerAPP1,
		data:   append(append([]byte{}, exifPreamble...), c.EncodeTIFF()...),
	}
}

func testContainer() *Container {
	c := NewContainer()
	c.IFD0[TagDateTime] = ASCII("2024:06:15 10:30:00")
	c.Exif[TagDateTimeOriginal] = ASCII("2024:06:15 10:30:00")
	c.Exif[TagDateTimeDigitized] = ASCII("2024:06:15 10:30:00")
	c.GPS[TagGPSLatitudeRef] = ASCII("N")
	c.GPS[TagGPSLatitude] = Rationals(Rational{14, 1}, Rational{30, 1}, Rational{0, 100})
	c.GPS[TagGPSAltitude] = Rationals(Rational{10000, 100})
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := testContainer()

	decoded, err := DecodeTIFF(c.EncodeTIFF())
	if err != nil {
		t.Fatalf("DecodeTIFF failed: %v", err)
	}

	if got, _ := decoded.IFD0[TagDateTime].Text(); got != "2024:06:15 10:30:00" {
		t.Errorf("DateTime round trip: got %q", got)
	}
	if got, _ := decoded.Exif[TagDateTimeOriginal].Text(); got != "2024:06:15 10:30:00" {
		t.Errorf("DateTimeOriginal round trip: got %q", got)
	}
	if got, _ := decoded.GPS[TagGPSLatitudeRef].Text(); got != "N" {
		t.Errorf("GPSLatitudeRef round trip: got %q", got)
	}

	lat, ok := decoded.GPS[TagGPSLatitude].Rationals()
	if !ok || len(lat) != 3 {
		t.Fatalf("GPSLatitude round trip: got %v, ok=%v", lat, ok)
	}
	if lat[0] != (Rational{14, 1}) || lat[1] != (Rational{30, 1}) || lat[2] != (Rational{0, 100}) {
		t.Errorf("GPSLatitude values changed: %v", lat)
	}

	if _, ok := decoded.IFD0[TagExifIFDPointer]; ok {
		t.Error("sub-IFD pointer tag must not survive decoding")
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a := testContainer().EncodeTIFF()
	b := testContainer().EncodeTIFF()
	if !bytes.Equal(a, b) {
		t.Error("identical containers must encode to identical bytes")
	}
}

func TestDecodeBigEndian(t *testing.T) {
	// Hand-built big-endian TIFF with a single SHORT field in IFD0.
	var buf bytes.Buffer
	buf.WriteString("MM")
	_ = binary.Write(&buf, binary.BigEndian, uint16(42))
	_ = binary.Write(&buf, binary.BigEndian, uint32(8))
	_ = binary.Write(&buf, binary.BigEndian, uint16(1)) // one entry
	_ = binary.Write(&buf, binary.BigEndian, uint16(0x0112))
	_ = binary.Write(&buf, binary.BigEndian, uint16(TypeShort))
	_ = binary.Write(&buf, binary.BigEndian, uint32(1))
	_ = binary.Write(&buf, binary.BigEndian, uint16(6)) // value
	_ = binary.Write(&buf, binary.BigEndian, uint16(0)) // padding
	_ = binary.Write(&buf, binary.BigEndian, uint32(0)) // next IFD

	c, err := DecodeTIFF(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeTIFF failed: %v", err)
	}

	f, ok := c.IFD0[0x0112]
	if !ok {
		t.Fatal("orientation tag missing")
	}
	if got := binary.LittleEndian.Uint16(f.Raw()); got != 6 {
		t.Errorf("big-endian SHORT not canonicalized: got %d, want 6", got)
	}
}

func TestDecodeCorrupt(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad order mark", []byte("XX\x2a\x00\x08\x00\x00\x00")},
		{"bad magic", []byte("II\x00\x00\x08\x00\x00\x00")},
		{"IFD offset out of range", []byte("II\x2a\x00\xff\x00\x00\x00")},
		{"truncated entries", []byte("II\x2a\x00\x08\x00\x00\x00\x10\x00")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeTIFF(tc.data); err == nil {
				t.Error("expected decode error")
			}
		})
	}
}

func TestParseJPEG(t *testing.T) {
	c := testContainer()
	data := minimalJPEG(exifSegment(c))

	decoded, err := ParseJPEG(data)
	if err != nil {
		t.Fatalf("ParseJPEG failed: %v", err)
	}
	if got, _ := decoded.Exif[TagDateTimeOriginal].Text(); got != "2024:06:15 10:30:00" {
		t.Errorf("DateTimeOriginal: got %q", got)
	}
}

func TestParseJPEG_NoExif(t *testing.T) {
	_, err := ParseJPEG(minimalJPEG())
	if !errors.Is(err, ErrNoExif) {
		t.Fatalf("expected ErrNoExif, got %v", err)
	}
}

func TestParseJPEG_NotAJPEG(t *testing.T) {
	if _, err := ParseJPEG([]byte("PNG rather than JPEG")); err == nil {
		t.Error("expected structural error")
	}
}

func TestParseJPEG_CorruptExif(t *testing.T) {
	corrupt := segment{
		marker: markerAPP1,
		data:   append(append([]byte{}, exifPreamble...), "garbage"...),
	}

	_, err := ParseJPEG(minimalJPEG(corrupt))
	if !errors.Is(err, ErrCorruptExif) {
		t.Fatalf("expected ErrCorruptExif, got %v", err)
	}
}

func TestWriteJPEG_ReplacesExif(t *testing.T) {
	old := NewContainer()
	old.GPS[TagGPSLatitudeRef] = ASCII("S")
	old.GPS[TagGPSLongitudeRef] = ASCII("W")
	old.GPS[TagGPSAltitudeRef] = Bytes(1)
	src := minimalJPEG(exifSegment(old))

	replacement := testContainer()
	out, err := WriteJPEG(src, replacement)
	if err != nil {
		t.Fatalf("WriteJPEG failed: %v", err)
	}

	decoded, err := ParseJPEG(out)
	if err != nil {
		t.Fatalf("ParseJPEG of output failed: %v", err)
	}

	// Stale GPS fields must not survive the replacement.
	if _, ok := decoded.GPS[TagGPSLongitudeRef]; ok {
		t.Error("stale GPSLongitudeRef survived injection")
	}
	if _, ok := decoded.GPS[TagGPSAltitudeRef]; ok {
		t.Error("stale GPSAltitudeRef survived injection")
	}
	if got, _ := decoded.GPS[TagGPSLatitudeRef].Text(); got != "N" {
		t.Errorf("GPSLatitudeRef: got %q, want N", got)
	}
}

func TestWriteJPEG_Reproducible(t *testing.T) {
	src := minimalJPEG()
	c := testContainer()

	a, err := WriteJPEG(src, c)
	if err != nil {
		t.Fatalf("WriteJPEG failed: %v", err)
	}
	b, err := WriteJPEG(src, c)
	if err != nil {
		t.Fatalf("WriteJPEG failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("same inputs must produce identical output bytes")
	}
}

func TestWriteJPEG_PreservesOtherSegments(t *testing.T) {
	comment := segment{marker: 0xFE, data: []byte("survey flight 12")}
	src := minimalJPEG(comment)

	out, err := WriteJPEG(src, testContainer())
	if err != nil {
		t.Fatalf("WriteJPEG failed: %v", err)
	}

	if !bytes.Contains(out, comment.data) {
		t.Error("comment segment was lost")
	}
	segments, err := scanJPEG(out)
	if err != nil {
		t.Fatalf("output does not scan as JPEG: %v", err)
	}
	if !isExifSegment(segments[0]) {
		t.Errorf("EXIF APP1 must be the first segment after SOI, got marker 0x%02X", segments[0].marker)
	}
}

func TestDegreesToDMS_RoundTrip(t *testing.T) {
	// Sub-meter at the equator: 1/360000 of a degree.
	const maxErr = 1.0 / 360000

	values := []float64{0, 14.5, 121.0, -33.865143, 151.209900, 89.999999, 0.000277}
	for _, v := range values {
		dms := DegreesToDMS(v)
		got := DMSToDegrees(dms)
		if diff := math.Abs(got - math.Abs(v)); diff > maxErr {
			t.Errorf("DMS round trip of %v drifted by %v (got %v)", v, diff, got)
		}
	}
}

func TestDegreesToDMS_Values(t *testing.T) {
	dms := DegreesToDMS(14.5)
	want := [3]Rational{{14, 1}, {30, 1}, {0, 100}}
	if dms != want {
		t.Errorf("DegreesToDMS(14.5) = %v, want %v", dms, want)
	}

	dms = DegreesToDMS(-121.0)
	want = [3]Rational{{121, 1}, {0, 1}, {0, 100}}
	if dms != want {
		t.Errorf("DegreesToDMS(-121.0) = %v, want %v", dms, want)
	}
}
