package app

import (
	"context"

	"github.com/aeroview/geotag/internal/geotag"
	"github.com/aeroview/geotag/internal/storage"
	"github.com/aeroview/geotag/internal/telemetry"
)

// runRecorder adapts the store to the pipeline's recorder contract
// for a single session.
type runRecorder struct {
	store     *storage.Store
	sessionID int64
}

func (r *runRecorder) RecordTelemetry(ctx context.Context, samples []telemetry.Sample) error {
	rows := make([]storage.TelemetryRow, len(samples))
	for i, s := range samples {
		rows[i] = storage.TelemetryRow{
			UTCUsec:   s.UTCUsec,
			Latitude:  s.Lat,
			Longitude: s.Lon,
			Altitude:  s.AltM,
			Yaw:       s.YawDeg,
			Pitch:     s.PitchDeg,
			Roll:      s.RollDeg,
		}
	}
	return r.store.StoreTelemetry(ctx, r.sessionID, rows)
}

func (r *runRecorder) RecordMatches(ctx context.Context, matches []geotag.Match) error {
	rows := make([]storage.MatchRow, len(matches))
	for i, m := range matches {
		rows[i] = storage.MatchRow{
			FileName:      m.FileName,
			UTCUsec:       m.Sample.UTCUsec,
			Latitude:      m.Sample.Lat,
			Longitude:     m.Sample.Lon,
			Altitude:      m.Sample.AltM,
			CorrectedTime: m.CorrectedTime,
			DeltaUsec:     m.DeltaUsec,
		}
	}
	return r.store.StoreMatches(ctx, r.sessionID, rows)
}

func (r *runRecorder) RecordRejections(ctx context.Context, rejections []geotag.Rejection, phase string) error {
	rows := make([]storage.RejectionRow, len(rejections))
	for i, rej := range rejections {
		rows[i] = storage.RejectionRow{
			FileName: rej.FileName,
			Reason:   rej.Reason,
			Phase:    phase,
		}
	}
	return r.store.StoreRejections(ctx, r.sessionID, rows)
}
