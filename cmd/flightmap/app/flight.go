package app

import (
	"fmt"
	"math"
	"time"

	"github.com/aeroview/geotag/internal/storage"
)

const earthRadiusM = 6_371_000.0

// FlightData aggregates one recorded session for rendering.
type FlightData struct {
	Session *storage.Session
	Samples []storage.TelemetryRow
	Matches []storage.MatchRow

	MinLat, MaxLat float64
	MinLon, MaxLon float64
	MinAlt, MaxAlt float64
}

// NewFlightData computes the geographic bounds of a recorded flight.
// At least two samples are required to span a track.
func NewFlightData(session *storage.Session, samples []storage.TelemetryRow, matches []storage.MatchRow) (*FlightData, error) {
	if len(samples) < 2 {
		return nil, fmt.Errorf("session %d has %d telemetry samples, need at least 2", session.ID, len(samples))
	}

	f := FlightData{
		Session: session,
		Samples: samples,
		Matches: matches,
		MinLat:  samples[0].Latitude,
		MaxLat:  samples[0].Latitude,
		MinLon:  samples[0].Longitude,
		MaxLon:  samples[0].Longitude,
		MinAlt:  samples[0].Altitude,
		MaxAlt:  samples[0].Altitude,
	}
	for _, s := range samples[1:] {
		f.MinLat = math.Min(f.MinLat, s.Latitude)
		f.MaxLat = math.Max(f.MaxLat, s.Latitude)
		f.MinLon = math.Min(f.MinLon, s.Longitude)
		f.MaxLon = math.Max(f.MaxLon, s.Longitude)
		f.MinAlt = math.Min(f.MinAlt, s.Altitude)
		f.MaxAlt = math.Max(f.MaxAlt, s.Altitude)
	}

	// A hover produces a degenerate bounding box; pad it so the
	// projection still has area.
	if f.MaxLat-f.MinLat < 1e-5 {
		f.MinLat -= 5e-6
		f.MaxLat += 5e-6
	}
	if f.MaxLon-f.MinLon < 1e-5 {
		f.MinLon -= 5e-6
		f.MaxLon += 5e-6
	}

	return &f, nil
}

// Start and End are the UTC span of the recorded telemetry.
func (f *FlightData) Start() time.Time {
	return time.UnixMicro(f.Samples[0].UTCUsec).UTC()
}

func (f *FlightData) End() time.Time {
	return time.UnixMicro(f.Samples[len(f.Samples)-1].UTCUsec).UTC()
}

// PathLength returns the flown ground distance in meters.
func (f *FlightData) PathLength() float64 {
	var total float64
	for i := 1; i < len(f.Samples); i++ {
		total += groundDistance(f.Samples[i-1], f.Samples[i])
	}
	return total
}

// groundDistance is the haversine distance between two samples.
func groundDistance(a, b storage.TelemetryRow) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}
