package geotag

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aeroview/geotag/internal/exif"
)

// Injector writes matched telemetry into image metadata. The source
// file is never mutated; output goes to a mirror path inside the
// output directory.
type Injector struct {
	sourceDir string
	outputDir string
}

// NewInjector creates an injector reading from sourceDir and writing
// to outputDir. The output directory must exist.
func NewInjector(sourceDir, outputDir string) *Injector {
	return &Injector{sourceDir: sourceDir, outputDir: outputDir}
}

// Inject rewrites the image's metadata container from the match and
// writes the result. It returns the number of bytes written.
func (i *Injector) Inject(m *Match) (int64, error) {
	src, err := os.ReadFile(filepath.Join(i.sourceDir, m.FileName))
	if err != nil {
		return 0, fmt.Errorf("reading source image: %w", err)
	}

	container, err := exif.ParseJPEG(src)
	if err != nil {
		// A corrupt or absent container never blocks injection; the
		// output must carry the new fields regardless.
		container = exif.NewContainer()
	}

	stamp := exif.ASCII(m.CorrectedTime.Format(exif.TimestampLayout))
	container.IFD0[exif.TagDateTime] = stamp
	container.Exif[exif.TagDateTimeOriginal] = stamp
	container.Exif[exif.TagDateTimeDigitized] = stamp

	// The GPS directory is replaced wholesale so stale fields from a
	// previous tagging run cannot survive.
	container.GPS = buildGPSIFD(m)

	out, err := exif.WriteJPEG(src, container)
	if err != nil {
		return 0, fmt.Errorf("encoding metadata: %w", err)
	}

	dst := filepath.Join(i.outputDir, m.FileName)
	if err := os.WriteFile(dst, out, 0o644); err != nil {
		return 0, fmt.Errorf("writing %s: %w", dst, err)
	}

	return int64(len(out)), nil
}

func buildGPSIFD(m *Match) exif.IFD {
	latRef, lonRef := "N", "E"
	if m.Sample.Lat < 0 {
		latRef = "S"
	}
	if m.Sample.Lon < 0 {
		lonRef = "W"
	}

	lat := exif.DegreesToDMS(m.Sample.Lat)
	lon := exif.DegreesToDMS(m.Sample.Lon)

	// Altitude is stored as a positive magnitude at centimeter
	// precision.
	altCm := m.Sample.AltM * 100
	if altCm < 0 {
		altCm = -altCm
	}

	return exif.IFD{
		exif.TagGPSLatitudeRef:  exif.ASCII(latRef),
		exif.TagGPSLatitude:     exif.Rationals(lat[0], lat[1], lat[2]),
		exif.TagGPSLongitudeRef: exif.ASCII(lonRef),
		exif.TagGPSLongitude:    exif.Rationals(lon[0], lon[1], lon[2]),
		exif.TagGPSAltitude:     exif.Rationals(exif.Rational{Num: uint32(altCm), Den: 100}),
	}
}
