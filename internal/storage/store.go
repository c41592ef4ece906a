// Package storage persists geotagging runs to SQLite so later tools
// can inspect a flight without re-reading logs and images.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const defaultBatchSize = 100

// Store handles database operations for recorded runs. Write and
// read connections are opened lazily and independently so a
// read-only consumer never creates the schema.
type Store struct {
	dbPath    string
	batchSize int

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// WithBatchSize bounds the number of rows per batch INSERT.
func WithBatchSize(n int) func(*Store) {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewStore creates a store over the SQLite database at dbPath. The
// file is created on first write.
func NewStore(dbPath string, options ...func(*Store)) *Store {
	s := Store{dbPath: dbPath, batchSize: defaultBatchSize}
	for _, option := range options {
		option(&s)
	}
	return &s
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *Store) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}

		if err = runSQLCommand(db, schemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *Store) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// CreateSession records the start of a run and returns its ID.
// config may be a string, raw JSON bytes or any JSON-marshalable
// value; nil stores NULL.
func (s *Store) CreateSession(ctx context.Context, imageDir, outputDir string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	switch v := config.(type) {
	case nil:
	case string:
		configData.Valid = true
		configData.String = v
	case []byte:
		configData.Valid = true
		configData.String = string(v)
	default:
		var p []byte
		if p, err = json.Marshal(config); err != nil {
			err = fmt.Errorf("marshaling config: %w", err)
			return
		}
		configData.Valid = true
		configData.String = string(p)
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, imageDir, outputDir, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

// FinishSession stamps a run as complete.
func (s *Store) FinishSession(ctx context.Context, sessionID int64) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, finishSessionSQL, sessionID); err != nil {
		return fmt.Errorf("finishing session: %w", err)
	}
	return nil
}

// StoreTelemetry persists the normalized telemetry table of a run in
// batched inserts.
func (s *Store) StoreTelemetry(ctx context.Context, sessionID int64, rows []TelemetryRow) (err error) {
	if len(rows) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for chunk := range slices.Chunk(rows, s.batchSize) {
		values := make([]any, 0, len(chunk)*8)
		for _, r := range chunk {
			values = append(values, sessionID, r.UTCUsec, r.Latitude, r.Longitude, r.Altitude, r.Yaw, r.Pitch, r.Roll)
		}
		if _, err = tx.ExecContext(ctx, batchInsertSQL(insertTelemetrySQL, telemetryPlaceholder, len(chunk)), values...); err != nil {
			return fmt.Errorf("batch inserting telemetry: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// StoreMatches persists the correlated images of a run.
func (s *Store) StoreMatches(ctx context.Context, sessionID int64, rows []MatchRow) (err error) {
	if len(rows) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for chunk := range slices.Chunk(rows, s.batchSize) {
		values := make([]any, 0, len(chunk)*8)
		for _, r := range chunk {
			values = append(values, sessionID, r.FileName, r.UTCUsec, r.Latitude, r.Longitude, r.Altitude, r.CorrectedTime.UTC(), r.DeltaUsec)
		}
		if _, err = tx.ExecContext(ctx, batchInsertSQL(insertMatchSQL, matchPlaceholder, len(chunk)), values...); err != nil {
			return fmt.Errorf("batch inserting matches: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// StoreRejections persists the excluded images of a run.
func (s *Store) StoreRejections(ctx context.Context, sessionID int64, rows []RejectionRow) (err error) {
	if len(rows) == 0 {
		return nil
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	stmt, err := db.PrepareContext(ctx, insertRejectionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	for _, r := range rows {
		if _, err = stmt.ExecContext(ctx, sessionID, r.FileName, r.Reason, r.Phase); err != nil {
			return fmt.Errorf("inserting rejection: %w", err)
		}
	}
	return nil
}

// Session returns one recorded run.
func (s *Store) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data sessionData
	if err = stmt.QueryRowContext(ctx, id).Scan(&data.ID, &data.StartTime, &data.FinishTime, &data.ImageDir, &data.OutputDir, &data.Config); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}

	return toSession(data), nil
}

// Sessions returns every recorded run in ID order.
func (s *Store) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data sessionData
		if err = rows.Scan(&data.ID, &data.StartTime, &data.FinishTime, &data.ImageDir, &data.OutputDir, &data.Config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, toSession(data))
	}
	err = rows.Err()
	return
}

// Telemetry returns a session's telemetry samples in UTC order.
func (s *Store) Telemetry(ctx context.Context, sessionID int64) (samples []TelemetryRow, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectTelemetrySQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying telemetry: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r TelemetryRow
		if err = rows.Scan(&r.UTCUsec, &r.Latitude, &r.Longitude, &r.Altitude, &r.Yaw, &r.Pitch, &r.Roll); err != nil {
			err = fmt.Errorf("scanning telemetry: %w", err)
			return
		}
		samples = append(samples, r)
	}
	err = rows.Err()
	return
}

// Matches returns a session's correlated images in file-name order.
func (s *Store) Matches(ctx context.Context, sessionID int64) (matches []MatchRow, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectMatchesSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying matches: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r MatchRow
		if err = rows.Scan(&r.FileName, &r.UTCUsec, &r.Latitude, &r.Longitude, &r.Altitude, &r.CorrectedTime, &r.DeltaUsec); err != nil {
			err = fmt.Errorf("scanning match: %w", err)
			return
		}
		matches = append(matches, r)
	}
	err = rows.Err()
	return
}

// Rejections returns a session's excluded images in file-name order.
func (s *Store) Rejections(ctx context.Context, sessionID int64) (rejections []RejectionRow, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectRejectionsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying rejections: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var r RejectionRow
		if err = rows.Scan(&r.FileName, &r.Reason, &r.Phase); err != nil {
			err = fmt.Errorf("scanning rejection: %w", err)
			return
		}
		rejections = append(rejections, r)
	}
	err = rows.Err()
	return
}

// Close creates the read indexes on the write connection and closes
// both connections. Safe to call more than once.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		switch {
		case writeErr != nil && readErr != nil:
			s.closeErr = errors.Join(writeErr, readErr)
		case writeErr != nil:
			s.closeErr = writeErr
		case readErr != nil:
			s.closeErr = readErr
		}
	})

	return s.closeErr
}

func batchInsertSQL(insert, placeholder string, n int) string {
	var sb strings.Builder
	sb.WriteString(insert)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(placeholder)
	}
	return sb.String()
}

func toSession(data sessionData) *Session {
	sess := Session{
		ID:        data.ID,
		StartTime: data.StartTime,
		ImageDir:  data.ImageDir,
		OutputDir: data.OutputDir,
	}
	if data.FinishTime.Valid {
		sess.FinishTime = &data.FinishTime.Time
	}
	if data.Config.Valid {
		sess.Config = &data.Config.String
	}
	return &sess
}
