// Package store persists controller sessions and per-command outcomes
// to sqlite for offline tuning analysis. The controller runs fine
// without it; wiring it in is the caller's choice.
package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/servotrack/servotrack/internal/command"
)

// Store wraps the controller outcome database.
type Store struct {
	*sql.DB
}

//go:embed schema.sql
var schemaSQL string

// Open opens (creating if needed) the outcome database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db}, nil
}

// StartSession creates a new session record and returns its ID.
func (s *Store) StartSession(notes string) (string, error) {
	id := uuid.NewString()
	query := `
		INSERT INTO sessions (id, notes)
		VALUES (?, ?)
	`
	if _, err := s.Exec(query, id, notes); err != nil {
		return "", fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// EndSession closes a session and fills in its sample count.
func (s *Store) EndSession(sessionID string) error {
	query := `
		UPDATE sessions
		SET
			ended_at = UNIXEPOCH('subsec'),
			sample_count = (SELECT COUNT(*) FROM samples WHERE session_id = ?)
		WHERE id = ?
	`
	if _, err := s.Exec(query, sessionID, sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

// RecordSample stores one command-sequence outcome.
func (s *Store) RecordSample(sessionID, strategy string, sample command.PerformanceSample) error {
	query := `
		INSERT INTO samples (session_id, strategy, bucket, error_px, duration_ms, success)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.Exec(query, sessionID, strategy, string(sample.Bucket), sample.ErrorPx, sample.DurationMs, sample.Success)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// BucketAccuracy returns the success fraction per distance bucket for
// a session.
func (s *Store) BucketAccuracy(sessionID string) (map[command.DistanceBucket]float64, error) {
	query := `
		SELECT bucket, AVG(success)
		FROM samples
		WHERE session_id = ?
		GROUP BY bucket
	`
	rows, err := s.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query bucket accuracy: %w", err)
	}
	defer rows.Close()

	out := make(map[command.DistanceBucket]float64)
	for rows.Next() {
		var bucket string
		var accuracy float64
		if err := rows.Scan(&bucket, &accuracy); err != nil {
			return nil, fmt.Errorf("failed to scan accuracy row: %w", err)
		}
		out[command.DistanceBucket(bucket)] = accuracy
	}
	return out, rows.Err()
}

// Session represents a stored controller session.
type Session struct {
	ID          string   `json:"id"`
	StartedAt   float64  `json:"started_at"`
	EndedAt     *float64 `json:"ended_at,omitempty"`
	SampleCount int      `json:"sample_count"`
	Notes       string   `json:"notes"`
}

// GetSession retrieves one session record.
func (s *Store) GetSession(sessionID string) (*Session, error) {
	query := `
		SELECT id, started_at, ended_at, sample_count, notes
		FROM sessions
		WHERE id = ?
	`
	var sess Session
	err := s.QueryRow(query, sessionID).Scan(&sess.ID, &sess.StartedAt, &sess.EndedAt, &sess.SampleCount, &sess.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &sess, nil
}

// RecentSamples retrieves the most recent outcomes for a session,
// newest first.
func (s *Store) RecentSamples(sessionID string, limit int) ([]StoredSample, error) {
	query := `
		SELECT id, recorded_at, strategy, bucket, error_px, duration_ms, success
		FROM samples
		WHERE session_id = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.Query(query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []StoredSample
	for rows.Next() {
		var rec StoredSample
		if err := rows.Scan(&rec.ID, &rec.RecordedAt, &rec.Strategy, &rec.Bucket, &rec.ErrorPx, &rec.DurationMs, &rec.Success); err != nil {
			return nil, fmt.Errorf("failed to scan sample row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StoredSample represents one persisted command-sequence outcome.
type StoredSample struct {
	ID         int64   `json:"id"`
	RecordedAt float64 `json:"recorded_at"`
	Strategy   string  `json:"strategy"`
	Bucket     string  `json:"bucket"`
	ErrorPx    float64 `json:"error_px"`
	DurationMs float64 `json:"duration_ms"`
	Success    bool    `json:"success"`
}
