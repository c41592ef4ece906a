package storage

import (
	"database/sql"
	"time"
)

// Session is one recorded geotagging run. FinishTime is nil while
// the run is still in flight.
type Session struct {
	ID         int64
	StartTime  time.Time
	FinishTime *time.Time
	ImageDir   string
	OutputDir  string
	Config     *string
}

// TelemetryRow is one normalized telemetry sample as persisted.
type TelemetryRow struct {
	UTCUsec   int64
	Latitude  float64
	Longitude float64
	Altitude  float64
	Yaw       float64
	Pitch     float64
	Roll      float64
}

// MatchRow is one image successfully correlated with telemetry.
type MatchRow struct {
	FileName      string
	UTCUsec       int64
	Latitude      float64
	Longitude     float64
	Altitude      float64
	CorrectedTime time.Time
	DeltaUsec     int64
}

// RejectionRow is one image excluded from the run, with the phase
// that excluded it.
type RejectionRow struct {
	FileName string
	Reason   string
	Phase    string
}

type sessionData struct {
	ID         int64
	StartTime  time.Time
	FinishTime sql.NullTime
	ImageDir   string
	OutputDir  string
	Config     sql.NullString
}
