package telemetry

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVSource reads position and orientation fixes from two CSV exports
// of a flight log. It exists so the pipeline can run without linking a
// proprietary log parser; any flight-log tool able to dump
// vehicle_gps_position and vehicle_attitude rows to CSV can feed it.
//
// Expected position columns: timestamp, utc_usec, lat, lon, alt.
// Expected orientation columns: timestamp, q0, q1, q2, q3.
// Header names are case-insensitive; extra columns are ignored.
type CSVSource struct {
	positionPath    string
	orientationPath string
}

// NewCSVSource creates a Source backed by two CSV files.
func NewCSVSource(positionPath, orientationPath string) *CSVSource {
	return &CSVSource{
		positionPath:    positionPath,
		orientationPath: orientationPath,
	}
}

func (s *CSVSource) Samples(ctx context.Context) ([]PositionFix, []OrientationFix, error) {
	positions, err := readCSV(ctx, s.positionPath, parsePositionRecord)
	if err != nil {
		return nil, nil, fmt.Errorf("reading position fixes: %w", err)
	}

	// Orientation is optional; position-only logs still geotag.
	var orientations []OrientationFix
	if s.orientationPath != "" {
		if orientations, err = readCSV(ctx, s.orientationPath, parseOrientationRecord); err != nil {
			return nil, nil, fmt.Errorf("reading orientation fixes: %w", err)
		}
	}

	return positions, orientations, nil
}

func readCSV[T any](ctx context.Context, path string, parse func([]string, map[string]int) (T, error)) ([]T, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	indices := make(map[string]int, len(header))
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var results []T
	for line := 2; ; line++ {
		if err = ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := parse(record, indices)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		results = append(results, row)
	}

	return results, nil
}

func parsePositionRecord(record []string, indices map[string]int) (PositionFix, error) {
	var p PositionFix
	var err error

	if p.Timestamp, err = fieldInt(record, indices, "timestamp"); err != nil {
		return p, err
	}
	if p.UTCUsec, err = fieldInt(record, indices, "utc_usec"); err != nil {
		return p, err
	}
	if p.Lat, err = fieldFloat(record, indices, "lat"); err != nil {
		return p, err
	}
	if p.Lon, err = fieldFloat(record, indices, "lon"); err != nil {
		return p, err
	}
	if p.AltM, err = fieldFloat(record, indices, "alt"); err != nil {
		return p, err
	}
	return p, nil
}

func parseOrientationRecord(record []string, indices map[string]int) (OrientationFix, error) {
	var o OrientationFix
	var err error

	if o.Timestamp, err = fieldInt(record, indices, "timestamp"); err != nil {
		return o, err
	}
	if o.Q0, err = fieldFloat(record, indices, "q0"); err != nil {
		return o, err
	}
	if o.Q1, err = fieldFloat(record, indices, "q1"); err != nil {
		return o, err
	}
	if o.Q2, err = fieldFloat(record, indices, "q2"); err != nil {
		return o, err
	}
	if o.Q3, err = fieldFloat(record, indices, "q3"); err != nil {
		return o, err
	}
	return o, nil
}

func field(record []string, indices map[string]int, name string) (string, error) {
	idx, ok := indices[name]
	if !ok || idx >= len(record) {
		return "", fmt.Errorf("missing column %q", name)
	}
	return strings.TrimSpace(record[idx]), nil
}

func fieldInt(record []string, indices map[string]int, name string) (int64, error) {
	s, err := field(record, indices, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return v, nil
}

func fieldFloat(record []string, indices map[string]int, name string) (float64, error) {
	s, err := field(record, indices, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return v, nil
}
