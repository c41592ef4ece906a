package geotag

import (
	"fmt"
	"time"

	"github.com/aeroview/geotag/internal/telemetry"
)

const (
	// DefaultTolerance is the maximum time delta between an image
	// and its matched telemetry sample.
	DefaultTolerance = 3 * time.Second

	// DefaultFixedOffset compensates for the known camera-clock skew
	// of the reference deployment's gimbal camera.
	DefaultFixedOffset = 8 * time.Hour
)

// Correlator matches validated images against an immutable telemetry
// table. It is safe to share across workers.
type Correlator struct {
	table     *telemetry.Table
	offset    time.Duration
	tolerance time.Duration
}

// NewCorrelator creates a correlator over the table. offset is the
// fixed capture-time correction to apply (zero to disable).
func NewCorrelator(table *telemetry.Table, offset, tolerance time.Duration) *Correlator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Correlator{table: table, offset: offset, tolerance: tolerance}
}

// Correlate matches a single valid image. Exactly one of the returns
// is non-nil. The flight-window gate runs before the tolerance check
// so that an image from another flight can never ride in on a
// wraparound coincidence.
func (c *Correlator) Correlate(rec ImageRecord) (*Match, *Rejection) {
	corrected := rec.CaptureTime.Add(c.offset)

	usec := corrected.UnixMicro()
	if !time.UnixMicro(usec).UTC().Equal(corrected) {
		return nil, &Rejection{FileName: rec.FileName, Reason: "Timestamp conversion failed"}
	}

	start, end := c.table.Window()
	if usec < start || usec > end {
		return nil, &Rejection{FileName: rec.FileName, Reason: "Outside flight window"}
	}

	sample, delta := c.table.Nearest(usec)
	if delta > c.tolerance.Microseconds() {
		return nil, &Rejection{
			FileName: rec.FileName,
			Reason:   fmt.Sprintf("No telemetry within tolerance: off by %.1fs", float64(delta)/1e6),
		}
	}

	return &Match{
		FileName:      rec.FileName,
		Sample:        sample,
		CorrectedTime: corrected,
		DeltaUsec:     delta,
	}, nil
}
