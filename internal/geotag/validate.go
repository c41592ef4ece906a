package geotag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aeroview/geotag/internal/exif"
)

// ErrNoImages is returned when the input directory holds no JPEG
// files at all.
var ErrNoImages = errors.New("no JPG images found")

// Validation rejection reasons, in check order. The first failing
// check wins and short-circuits the rest.
const (
	reasonCannotOpen       = "Cannot open image"
	reasonInvalidMetadata  = "Invalid EXIF"
	reasonMissingTimestamp = "Missing DateTimeOriginal"
	reasonBadFormat        = "Invalid date format"
)

// ListImages returns the JPEG file names in dir, sorted by name so
// reports are reproducible. Extension matching is case-insensitive.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading image directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg":
			names = append(names, entry.Name())
		}
	}
	if len(names) == 0 {
		return nil, ErrNoImages
	}

	sort.Strings(names)
	return names, nil
}

// Validate classifies one candidate image. It is a read-only scan:
// metadata bytes are re-read by the injector from the same source
// file, never carried over from here.
func Validate(dir, name string) ImageRecord {
	rec := ImageRecord{FileName: name, Status: StatusPending}

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return rejected(rec, reasonCannotOpen)
	}

	container, err := exif.ParseJPEG(data)
	switch {
	case err == nil:
	case errors.Is(err, exif.ErrNoExif):
		// No metadata container at all: nothing to recover from.
		return rejected(rec, reasonInvalidMetadata)
	case errors.Is(err, exif.ErrCorruptExif):
		// Unparsable container degrades to an empty one; the missing
		// timestamp check below then decides.
		container = exif.NewContainer()
	default:
		return rejected(rec, reasonCannotOpen)
	}

	field, ok := container.Exif[exif.TagDateTimeOriginal]
	if !ok {
		return rejected(rec, reasonMissingTimestamp)
	}
	value, ok := field.Text()
	if !ok {
		return rejected(rec, reasonMissingTimestamp)
	}

	captureTime, err := time.ParseInLocation(exif.TimestampLayout, value, time.UTC)
	if err != nil {
		return rejected(rec, reasonBadFormat)
	}

	// Cameras with a dead clock stamp their epoch default; such dates
	// must be rejected, not silently geotagged.
	if captureTime.Year() < 2000 {
		return rejected(rec, fmt.Sprintf("Invalid camera date: %d", captureTime.Year()))
	}

	rec.CaptureTime = captureTime
	rec.Status = StatusValid
	return rec
}

func rejected(rec ImageRecord, reason string) ImageRecord {
	rec.Status = StatusRejected
	rec.Reason = reason
	return rec
}
