package app

import (
	"image/color"
	"testing"
	"time"

	"github.com/aeroview/geotag/internal/storage"
)

func testFlight(t *testing.T) *FlightData {
	t.Helper()

	base := time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	samples := []storage.TelemetryRow{
		{UTCUsec: base.UnixMicro(), Latitude: 14.5000, Longitude: 121.0000, Altitude: 50},
		{UTCUsec: base.Add(time.Second).UnixMicro(), Latitude: 14.5005, Longitude: 121.0005, Altitude: 60},
		{UTCUsec: base.Add(2 * time.Second).UnixMicro(), Latitude: 14.5010, Longitude: 121.0010, Altitude: 70},
	}
	matches := []storage.MatchRow{
		{FileName: "dji_0001.jpg", Latitude: 14.5005, Longitude: 121.0005, Altitude: 60},
	}

	flight, err := NewFlightData(&storage.Session{ID: 1}, samples, matches)
	if err != nil {
		t.Fatalf("NewFlightData failed: %v", err)
	}
	return flight
}

func TestNewFlightData_Bounds(t *testing.T) {
	flight := testFlight(t)

	if flight.MinLat != 14.5 || flight.MaxLat != 14.501 {
		t.Errorf("lat bounds = [%v, %v]", flight.MinLat, flight.MaxLat)
	}
	if flight.MinAlt != 50 || flight.MaxAlt != 70 {
		t.Errorf("alt bounds = [%v, %v]", flight.MinAlt, flight.MaxAlt)
	}
	if d := flight.End().Sub(flight.Start()); d != 2*time.Second {
		t.Errorf("duration = %v", d)
	}
}

func TestNewFlightData_TooFewSamples(t *testing.T) {
	_, err := NewFlightData(&storage.Session{ID: 1}, []storage.TelemetryRow{{UTCUsec: 1}}, nil)
	if err == nil {
		t.Fatal("expected error for single-sample flight")
	}
}

func TestFlightData_PathLength(t *testing.T) {
	flight := testFlight(t)

	// Two ~78 m hops along the diagonal.
	length := flight.PathLength()
	if length < 140 || length > 180 {
		t.Errorf("path length = %.1f m", length)
	}
}

func TestTrackRenderer_Render(t *testing.T) {
	flight := testFlight(t)
	renderer := NewTrackRenderer(RenderConfig{Width: 256})

	img, err := renderer.Render(flight)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() != 256+defaultLeftBorder+defaultRightBorder {
		t.Errorf("image width = %d", bounds.Dx())
	}

	// The track must have painted over the white background.
	painted := false
	for y := bounds.Min.Y; y < bounds.Max.Y && !painted; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.RGBAAt(x, y) != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
				painted = true
				break
			}
		}
	}
	if !painted {
		t.Error("rendered image is entirely white")
	}
}

func TestCalculateNiceDegreeStep(t *testing.T) {
	tests := []struct {
		span   float64
		pixels int
		want   float64
	}{
		{0.001, 1024, 0.0002},
		{0.01, 1024, 0.002},
		{1.0, 512, 0.5},
	}

	for _, tt := range tests {
		got := calculateNiceDegreeStep(tt.span, tt.pixels)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("calculateNiceDegreeStep(%v, %d) = %v, want %v", tt.span, tt.pixels, got, tt.want)
		}
	}
}
