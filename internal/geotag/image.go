// Package geotag implements the geotagging pipeline: image timestamp
// validation, correlation against a telemetry table and metadata
// injection, sequenced by the Pipeline orchestrator.
package geotag

import (
	"fmt"
	"time"

	"github.com/aeroview/geotag/internal/telemetry"
)

// Status is the validation state of a candidate image.
type Status int

const (
	StatusPending Status = iota
	StatusValid
	StatusRejected
)

// ImageRecord is one candidate image. CaptureTime carries no zone of
// its own and is held in UTC; the fixed camera offset is applied
// later by the correlator.
type ImageRecord struct {
	FileName    string
	CaptureTime time.Time
	Status      Status
	Reason      string
}

// Rejection names an image that failed validation, correlation or
// injection, with a human-readable reason.
type Rejection struct {
	FileName string
	Reason   string
}

func (r Rejection) String() string {
	return fmt.Sprintf("%s (%s)", r.FileName, r.Reason)
}

// Match is the correlation result for one accepted image.
type Match struct {
	FileName      string
	Sample        telemetry.Sample
	CorrectedTime time.Time
	DeltaUsec     int64
}
