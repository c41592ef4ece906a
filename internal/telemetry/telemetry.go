package telemetry

import "context"

// Source supplies the two raw sample streams recorded during a flight.
// Concrete implementations wrap a flight-log parser or a file export;
// the pipeline never touches the underlying log format.
type Source interface {
	Samples(ctx context.Context) (positions []PositionFix, orientations []OrientationFix, err error)
}

// PositionFix is a single raw GPS fix. Timestamp is the device-local
// monotonic clock in microseconds and is only used to asof-join the
// two streams; UTCUsec is the UTC wall clock in microseconds since
// epoch and stays at zero until the receiver has a fix.
type PositionFix struct {
	Timestamp int64   // Device-local clock, usec
	UTCUsec   int64   // UTC microseconds since epoch, <= 0 means no fix
	Lat       float64 // Latitude in degrees
	Lon       float64 // Longitude in degrees
	AltM      float64 // Altitude MSL in meters
}

// OrientationFix is a single raw attitude sample as a unit quaternion.
type OrientationFix struct {
	Timestamp int64 // Device-local clock, usec
	Q0        float64
	Q1        float64
	Q2        float64
	Q3        float64
}

// Sample is one instant of normalized vehicle state. Samples are
// immutable once produced by Normalize.
type Sample struct {
	UTCUsec  int64   // UTC microseconds since epoch
	Lat      float64 // Latitude in degrees
	Lon      float64 // Longitude in degrees
	AltM     float64 // Altitude MSL in meters
	YawDeg   float64 // (-180, 180]
	PitchDeg float64 // [-90, 90]
	RollDeg  float64 // (-180, 180]
}
