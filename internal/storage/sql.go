package storage

import (
	_ "embed"
)

const (
	insertSessionSQL = `
INSERT INTO sessions (start_time,
                      image_dir,
                      output_dir,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    finish_time,
    image_dir,
    output_dir,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    finish_time,
    image_dir,
    output_dir,
    config
FROM sessions
ORDER BY id`

	finishSessionSQL = `
UPDATE sessions
SET finish_time = CURRENT_TIMESTAMP
WHERE
    id = ?`

	insertTelemetrySQL = `
INSERT INTO telemetry (session_id,
                       utc_usec,
                       latitude,
                       longitude,
                       altitude,
                       yaw,
                       pitch,
                       roll)
VALUES `

	telemetryPlaceholder = `(?, ?, ?, ?, ?, ?, ?, ?)`

	selectTelemetrySQL = `
SELECT
    utc_usec,
    latitude,
    longitude,
    altitude,
    yaw,
    pitch,
    roll
FROM telemetry
WHERE
    session_id = ?
ORDER BY utc_usec`

	insertMatchSQL = `
INSERT INTO matches (session_id,
                     file_name,
                     utc_usec,
                     latitude,
                     longitude,
                     altitude,
                     corrected_time,
                     delta_usec)
VALUES `

	matchPlaceholder = `(?, ?, ?, ?, ?, ?, ?, ?)`

	selectMatchesSQL = `
SELECT
    file_name,
    utc_usec,
    latitude,
    longitude,
    altitude,
    corrected_time,
    delta_usec
FROM matches
WHERE
    session_id = ?
ORDER BY file_name`

	insertRejectionSQL = `
INSERT INTO rejections (session_id,
                        file_name,
                        reason,
                        phase)
VALUES (?, ?, ?, ?)`

	selectRejectionsSQL = `
SELECT
    file_name,
    reason,
    phase
FROM rejections
WHERE
    session_id = ?
ORDER BY file_name`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_telemetry_session ON telemetry (session_id, utc_usec);
CREATE INDEX IF NOT EXISTS idx_matches_session ON matches (session_id, file_name);
CREATE INDEX IF NOT EXISTS idx_rejections_session ON rejections (session_id);`
)

//go:embed schema.sql
var schemaSQL string
