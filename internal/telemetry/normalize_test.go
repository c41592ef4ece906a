package telemetry

import (
	"errors"
	"math"
	"testing"
)

func TestQuaternionToEuler(t *testing.T) {
	testCases := []struct {
		name                  string
		q0, q1, q2, q3        float64
		wantYaw, wantPitch, wantRoll float64
	}{
		{"identity", 1, 0, 0, 0, 0, 0, 0},
		{"yaw 90", math.Sqrt2 / 2, 0, 0, math.Sqrt2 / 2, 90, 0, 0},
		{"pitch 90", math.Sqrt2 / 2, 0, math.Sqrt2 / 2, 0, 0, 90, 0},
		{"roll 90", math.Sqrt2 / 2, math.Sqrt2 / 2, 0, 0, 0, 0, 90},
		{"yaw -90", math.Sqrt2 / 2, 0, 0, -math.Sqrt2 / 2, -90, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			yaw, pitch, roll := QuaternionToEuler(tc.q0, tc.q1, tc.q2, tc.q3)
			if !closeTo(yaw, tc.wantYaw) || !closeTo(pitch, tc.wantPitch) || !closeTo(roll, tc.wantRoll) {
				t.Errorf("got (%.4f, %.4f, %.4f), want (%.1f, %.1f, %.1f)",
					yaw, pitch, roll, tc.wantYaw, tc.wantPitch, tc.wantRoll)
			}
		})
	}
}

func TestQuaternionToEuler_ScaleInvariant(t *testing.T) {
	q0, q1, q2, q3 := 0.82, 0.21, -0.34, 0.41

	yaw, pitch, roll := QuaternionToEuler(q0, q1, q2, q3)

	for _, scale := range []float64{0.5, 2, 1000} {
		yawS, pitchS, rollS := QuaternionToEuler(q0*scale, q1*scale, q2*scale, q3*scale)
		if !closeTo(yaw, yawS) || !closeTo(pitch, pitchS) || !closeTo(roll, rollS) {
			t.Errorf("scale %v changed angles: (%.6f, %.6f, %.6f) vs (%.6f, %.6f, %.6f)",
				scale, yaw, pitch, roll, yawS, pitchS, rollS)
		}
	}
}

func TestQuaternionToEuler_PitchSingularity(t *testing.T) {
	// At pitch 90 the asin argument sits exactly on 1 and float error
	// can overshoot it; the clamp must keep the result finite.
	_, pitch, _ := QuaternionToEuler(math.Sqrt2/2, 0, math.Sqrt2/2, 0)
	if math.IsNaN(pitch) {
		t.Fatal("pitch must not be NaN at the gimbal singularity")
	}
	if !closeTo(pitch, 90) {
		t.Errorf("expected pitch 90, got %.4f", pitch)
	}
}

func TestNormalize_DropsNoFixSamples(t *testing.T) {
	positions := []PositionFix{
		{Timestamp: 100, UTCUsec: 0, Lat: 1, Lon: 1},
		{Timestamp: 200, UTCUsec: -1, Lat: 2, Lon: 2},
		{Timestamp: 300, UTCUsec: 3_000_000, Lat: 3, Lon: 3},
	}

	table, err := Normalize(positions, nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if table.Len() != 1 {
		t.Fatalf("expected 1 sample, got %d", table.Len())
	}
	if got := table.Samples()[0].Lat; got != 3 {
		t.Errorf("expected surviving sample lat 3, got %v", got)
	}
}

func TestNormalize_EmptyTelemetry(t *testing.T) {
	_, err := Normalize([]PositionFix{{Timestamp: 1, UTCUsec: 0}}, nil)
	if !errors.Is(err, ErrEmptyTelemetry) {
		t.Fatalf("expected ErrEmptyTelemetry, got %v", err)
	}

	_, err = Normalize(nil, nil)
	if !errors.Is(err, ErrEmptyTelemetry) {
		t.Fatalf("expected ErrEmptyTelemetry for no input, got %v", err)
	}
}

func TestNormalize_SortsAndDeduplicates(t *testing.T) {
	positions := []PositionFix{
		{Timestamp: 300, UTCUsec: 3_000_000, AltM: 30},
		{Timestamp: 100, UTCUsec: 1_000_000, AltM: 10},
		{Timestamp: 200, UTCUsec: 1_000_000, AltM: 11}, // duplicate UTC, later wins
	}

	table, err := Normalize(positions, nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 samples after dedup, got %d", table.Len())
	}

	samples := table.Samples()
	if samples[0].UTCUsec != 1_000_000 || samples[1].UTCUsec != 3_000_000 {
		t.Errorf("samples not sorted by UTC: %+v", samples)
	}
	if samples[0].AltM != 11 {
		t.Errorf("expected later duplicate to win (alt 11), got %v", samples[0].AltM)
	}
}

func TestNormalize_AsofJoin(t *testing.T) {
	positions := []PositionFix{
		{Timestamp: 1000, UTCUsec: 1_000_000},
		{Timestamp: 2000, UTCUsec: 2_000_000},
		{Timestamp: 3500, UTCUsec: 3_000_000},
	}
	orientations := []OrientationFix{
		{Timestamp: 900, Q0: 1},                            // identity: yaw 0
		{Timestamp: 3000, Q0: math.Sqrt2 / 2, Q3: math.Sqrt2 / 2}, // yaw 90
	}

	table, err := Normalize(positions, orientations)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	samples := table.Samples()
	if !closeTo(samples[0].YawDeg, 0) {
		t.Errorf("sample at 1000 should join orientation at 900, got yaw %.2f", samples[0].YawDeg)
	}
	// 2000 is 1100 from 900 and 1000 from 3000: nearest is 3000.
	if !closeTo(samples[1].YawDeg, 90) {
		t.Errorf("sample at 2000 should join orientation at 3000, got yaw %.2f", samples[1].YawDeg)
	}
	if !closeTo(samples[2].YawDeg, 90) {
		t.Errorf("sample at 3500 should join orientation at 3000, got yaw %.2f", samples[2].YawDeg)
	}
}

func TestNormalize_AsofJoinTieBreaksEarlier(t *testing.T) {
	positions := []PositionFix{{Timestamp: 2000, UTCUsec: 1_000_000}}
	orientations := []OrientationFix{
		{Timestamp: 1000, Q0: 1},                                  // yaw 0
		{Timestamp: 3000, Q0: math.Sqrt2 / 2, Q3: math.Sqrt2 / 2}, // yaw 90
	}

	table, err := Normalize(positions, orientations)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if yaw := table.Samples()[0].YawDeg; !closeTo(yaw, 0) {
		t.Errorf("equidistant orientations must resolve to the earlier one, got yaw %.2f", yaw)
	}
}

func TestTable_Window(t *testing.T) {
	table := mustTable(t, 1_000_000, 3_000_000, 5_000_000)

	start, end := table.Window()
	if start != 1_000_000 || end != 5_000_000 {
		t.Errorf("expected window [1000000, 5000000], got [%d, %d]", start, end)
	}
}

func TestTable_Nearest(t *testing.T) {
	table := mustTable(t, 1_000_000, 3_000_000, 5_000_000)

	testCases := []struct {
		name      string
		query     int64
		wantUsec  int64
		wantDelta int64
	}{
		{"exact hit", 3_000_000, 3_000_000, 0},
		{"before first", 500_000, 1_000_000, 500_000},
		{"after last", 6_000_000, 5_000_000, 1_000_000},
		{"nearest below", 3_000_500, 3_000_000, 500},
		{"nearest above", 4_999_000, 5_000_000, 1_000},
		{"equidistant picks earlier", 4_000_000, 3_000_000, 1_000_000},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sample, delta := table.Nearest(tc.query)
			if sample.UTCUsec != tc.wantUsec || delta != tc.wantDelta {
				t.Errorf("Nearest(%d) = (%d, %d), want (%d, %d)",
					tc.query, sample.UTCUsec, delta, tc.wantUsec, tc.wantDelta)
			}
		})
	}
}

func TestTable_NearestDeterministic(t *testing.T) {
	table := mustTable(t, 1_000_000, 3_000_000)

	first, _ := table.Nearest(2_000_000)
	for i := 0; i < 100; i++ {
		s, _ := table.Nearest(2_000_000)
		if s.UTCUsec != first.UTCUsec {
			t.Fatalf("tie-break is unstable: run %d picked %d, first run picked %d", i, s.UTCUsec, first.UTCUsec)
		}
	}
}

func mustTable(t *testing.T, utcUsec ...int64) *Table {
	t.Helper()

	positions := make([]PositionFix, len(utcUsec))
	for i, u := range utcUsec {
		positions[i] = PositionFix{Timestamp: u, UTCUsec: u}
	}

	table, err := Normalize(positions, nil)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	return table
}

func closeTo(got, want float64) bool {
	return math.Abs(got-want) < 1e-6
}
