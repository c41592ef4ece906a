package geotag

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aeroview/geotag/internal/exif"
)

// bareJPEG builds a structurally valid JPEG with no metadata
// container, the shape of a stripped camera file.
func bareJPEG() []byte {
	jfif := []byte("JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8, 0xFF, 0xE0})
	binary.Write(&buf, binary.BigEndian, uint16(len(jfif)+2))
	buf.Write(jfif)
	buf.Write([]byte{0xFF, 0xD9})
	return buf.Bytes()
}

func jpegWithTimestamp(t *testing.T, stamp string) []byte {
	t.Helper()

	c := exif.NewContainer()
	c.Exif[exif.TagDateTimeOriginal] = exif.ASCII(stamp)
	out, err := exif.WriteJPEG(bareJPEG(), c)
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	return out
}

func jpegWithoutTimestamp(t *testing.T) []byte {
	t.Helper()

	c := exif.NewContainer()
	c.IFD0[exif.TagDateTime] = exif.ASCII("2024:06:15 10:30:00")
	out, err := exif.WriteJPEG(bareJPEG(), c)
	if err != nil {
		t.Fatalf("building fixture: %v", err)
	}
	return out
}

// corruptExifJPEG carries an Exif APP1 whose TIFF body is garbage.
func corruptExifJPEG() []byte {
	payload := []byte("Exif\x00\x00not a tiff body")

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	binary.Write(&buf, binary.BigEndian, uint16(len(payload)+2))
	buf.Write(payload)
	buf.Write([]byte{0xFF, 0xD9})
	return buf.Bytes()
}

func writeImage(t *testing.T, dir, name string, data []byte) {
	t.Helper()

	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "b.jpg", bareJPEG())
	writeImage(t, dir, "A.JPEG", bareJPEG())
	writeImage(t, dir, "c.jpg", bareJPEG())
	writeImage(t, dir, "notes.txt", []byte("not an image"))
	writeImage(t, dir, "flight.ulg", []byte{0x01})

	names, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}

	want := []string{"A.JPEG", "b.jpg", "c.jpg"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestListImages_Empty(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "notes.txt", []byte("nothing here"))

	if _, err := ListImages(dir); !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "valid.jpg", jpegWithTimestamp(t, "2024:06:15 10:30:00"))
	writeImage(t, dir, "truncated.jpg", []byte{0xFF, 0xD8, 0xFF})
	writeImage(t, dir, "stripped.jpg", bareJPEG())
	writeImage(t, dir, "corrupt_exif.jpg", corruptExifJPEG())
	writeImage(t, dir, "no_timestamp.jpg", jpegWithoutTimestamp(t))
	writeImage(t, dir, "bad_format.jpg", jpegWithTimestamp(t, "15/06/2024 10:30"))
	writeImage(t, dir, "epoch.jpg", jpegWithTimestamp(t, "1970:01:01 00:00:00"))

	tests := []struct {
		name       string
		file       string
		wantStatus Status
		wantReason string
	}{
		{"valid image accepted", "valid.jpg", StatusValid, ""},
		{"missing file", "missing.jpg", StatusRejected, "Cannot open image"},
		{"truncated file", "truncated.jpg", StatusRejected, "Cannot open image"},
		{"no metadata container", "stripped.jpg", StatusRejected, "Invalid EXIF"},
		{"corrupt container, no timestamp", "corrupt_exif.jpg", StatusRejected, "Missing DateTimeOriginal"},
		{"container without timestamp", "no_timestamp.jpg", StatusRejected, "Missing DateTimeOriginal"},
		{"unparsable timestamp", "bad_format.jpg", StatusRejected, "Invalid date format"},
		{"camera clock never set", "epoch.jpg", StatusRejected, "Invalid camera date: 1970"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Validate(dir, tt.file)
			if rec.Status != tt.wantStatus {
				t.Fatalf("status = %v, want %v (reason %q)", rec.Status, tt.wantStatus, rec.Reason)
			}
			if rec.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", rec.Reason, tt.wantReason)
			}
		})
	}
}

func TestValidate_CaptureTimeUTC(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "img.jpg", jpegWithTimestamp(t, "2024:06:15 10:30:00"))

	rec := Validate(dir, "img.jpg")
	if rec.Status != StatusValid {
		t.Fatalf("unexpected rejection: %s", rec.Reason)
	}

	want := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	if !rec.CaptureTime.Equal(want) {
		t.Errorf("capture time = %v, want %v", rec.CaptureTime, want)
	}
}
