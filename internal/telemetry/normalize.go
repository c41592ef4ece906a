package telemetry

import (
	"errors"
	"math"
	"sort"
)

// ErrEmptyTelemetry is returned when no usable samples remain after
// filtering out fixes without a UTC clock.
var ErrEmptyTelemetry = errors.New("telemetry is empty")

// Table is a time-ordered, deduplicated telemetry table. It is
// immutable after Normalize and safe to share across goroutines.
type Table struct {
	samples []Sample
}

// Normalize joins position and orientation streams into a sorted
// telemetry table. Each position fix takes the orientation sample
// whose device-local timestamp is nearest (asof join, ties broken
// toward the earlier orientation sample), converted from a unit
// quaternion to yaw/pitch/roll. Fixes without a UTC clock are
// dropped; duplicate UTC timestamps keep the later fix.
func Normalize(positions []PositionFix, orientations []OrientationFix) (*Table, error) {
	pos := make([]PositionFix, len(positions))
	copy(pos, positions)
	sort.SliceStable(pos, func(i, j int) bool { return pos[i].Timestamp < pos[j].Timestamp })

	att := make([]OrientationFix, len(orientations))
	copy(att, orientations)
	sort.SliceStable(att, func(i, j int) bool { return att[i].Timestamp < att[j].Timestamp })

	samples := make([]Sample, 0, len(pos))
	for _, p := range pos {
		if p.UTCUsec <= 0 {
			continue
		}

		s := Sample{
			UTCUsec: p.UTCUsec,
			Lat:     p.Lat,
			Lon:     p.Lon,
			AltM:    p.AltM,
		}
		if o, ok := nearestOrientation(att, p.Timestamp); ok {
			s.YawDeg, s.PitchDeg, s.RollDeg = QuaternionToEuler(o.Q0, o.Q1, o.Q2, o.Q3)
		}
		samples = append(samples, s)
	}
	if len(samples) == 0 {
		return nil, ErrEmptyTelemetry
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].UTCUsec < samples[j].UTCUsec })

	// Deduplicate in place, later sample wins.
	deduped := samples[:0]
	for _, s := range samples {
		if n := len(deduped); n > 0 && deduped[n-1].UTCUsec == s.UTCUsec {
			deduped[n-1] = s
			continue
		}
		deduped = append(deduped, s)
	}

	return &Table{samples: deduped}, nil
}

// nearestOrientation finds the orientation fix closest to ts in the
// device-local clock. The earlier fix wins an exact tie.
func nearestOrientation(att []OrientationFix, ts int64) (OrientationFix, bool) {
	if len(att) == 0 {
		return OrientationFix{}, false
	}

	i := sort.Search(len(att), func(i int) bool { return att[i].Timestamp >= ts })
	switch {
	case i == 0:
		return att[0], true
	case i == len(att):
		return att[len(att)-1], true
	}

	before, after := att[i-1], att[i]
	if ts-before.Timestamp <= after.Timestamp-ts {
		return before, true
	}
	return after, true
}

// QuaternionToEuler converts a quaternion to aerospace (ZYX)
// yaw/pitch/roll angles in degrees. The quaternion is renormalized
// first, so scaling the input by a positive constant yields the same
// angles; the pitch term is clamped before asin to absorb
// floating-point overshoot past ±1.
func QuaternionToEuler(q0, q1, q2, q3 float64) (yaw, pitch, roll float64) {
	if norm := math.Sqrt(q0*q0 + q1*q1 + q2*q2 + q3*q3); norm > 0 {
		q0, q1, q2, q3 = q0/norm, q1/norm, q2/norm, q3/norm
	}

	sinrCosp := 2 * (q0*q1 + q2*q3)
	cosrCosp := 1 - 2*(q1*q1+q2*q2)
	roll = degrees(math.Atan2(sinrCosp, cosrCosp))

	sinp := 2 * (q0*q2 - q3*q1)
	pitch = degrees(math.Asin(clamp(sinp, -1, 1)))

	sinyCosp := 2 * (q0*q3 + q1*q2)
	cosyCosp := 1 - 2*(q2*q2+q3*q3)
	yaw = degrees(math.Atan2(sinyCosp, cosyCosp))

	return yaw, pitch, roll
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Len returns the number of samples in the table.
func (t *Table) Len() int {
	return len(t.samples)
}

// Samples returns the underlying sample slice in UTC order. Callers
// must not modify it.
func (t *Table) Samples() []Sample {
	return t.samples
}

// Window returns the inclusive flight window, the UTC span from the
// first to the last sample.
func (t *Table) Window() (startUsec, endUsec int64) {
	return t.samples[0].UTCUsec, t.samples[len(t.samples)-1].UTCUsec
}

// Nearest returns the sample with the minimum absolute UTC distance
// from usec and that distance. When two samples are equidistant the
// earlier one wins, so repeated runs always resolve identically.
func (t *Table) Nearest(usec int64) (Sample, int64) {
	i := sort.Search(len(t.samples), func(i int) bool { return t.samples[i].UTCUsec >= usec })
	switch {
	case i == 0:
		s := t.samples[0]
		return s, abs64(s.UTCUsec - usec)
	case i == len(t.samples):
		s := t.samples[len(t.samples)-1]
		return s, abs64(s.UTCUsec - usec)
	}

	before, after := t.samples[i-1], t.samples[i]
	db, da := usec-before.UTCUsec, after.UTCUsec-usec
	if db <= da {
		return before, db
	}
	return after, da
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
