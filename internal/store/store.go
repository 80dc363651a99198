// Package store archives finished live sessions in SQLite for later
// review: one row per session, the final transcript of each turn, and
// every detection set the model displayed.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/spotter-ai/spotter/internal/store/migrations"
	"github.com/spotter-ai/spotter/pkg/core/live"
)

// SessionRecord is one archived session. EndedAt is the zero time while
// the session is still open.
type SessionRecord struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Utterance is one turn's final transcript.
type Utterance struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// DetectionRecord is one archived overlay object.
type DetectionRecord struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Box       live.BoundingBox `json:"box"`
	CreatedAt time.Time        `json:"created_at"`
}

// SessionLog is the full replay of one archived session.
type SessionLog struct {
	Session    SessionRecord     `json:"session"`
	Utterances []Utterance       `json:"utterances"`
	Detections []DetectionRecord `json:"detections"`
}

// Store is a SQLite-backed session archive. All access is serialized
// through a single connection; SQLite does not take concurrent writers.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the archive at path and migrates its schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=cache_size(1000000000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate archive database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginSession records a new session and returns its id.
func (s *Store) BeginSession(model string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.Exec(
		`INSERT INTO sessions (id, model, started_at) VALUES (?, ?, ?)`,
		id, model, time.Now().Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("begin archive session: %w", err)
	}
	return id, nil
}

// EndSession stamps the session's end time. Ending an already-ended
// session keeps the original stamp; an unknown id is an error.
func (s *Store) EndSession(id string) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET ended_at = COALESCE(ended_at, ?) WHERE id = ?`,
		time.Now().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("end archive session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end archive session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("archive session %s not found", id)
	}
	return nil
}

// AppendUtterance records one turn's final transcript. Blank text is
// skipped; turns without input transcription produce nothing to keep.
func (s *Store) AppendUtterance(sessionID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO utterances (id, session_id, text, created_at) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), sessionID, text, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("append utterance: %w", err)
	}
	return nil
}

// RecordDetections archives one displayed detection set atomically.
func (s *Store) RecordDetections(sessionID string, objects []live.DetectedObject) error {
	if len(objects) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record detections: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		`INSERT INTO detections (id, session_id, name, x, y, width, height, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("record detections: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, obj := range objects {
		_, err := stmt.Exec(
			uuid.New().String(), sessionID, obj.Name,
			obj.Box.X, obj.Box.Y, obj.Box.Width, obj.Box.Height, now,
		)
		if err != nil {
			return fmt.Errorf("record detection %q: %w", obj.Name, err)
		}
	}
	return tx.Commit()
}

// SessionLog replays one archived session in insertion order.
func (s *Store) SessionLog(id string) (*SessionLog, error) {
	var (
		log       SessionLog
		startedAt int64
		endedAt   sql.NullInt64
	)
	err := s.db.QueryRow(
		`SELECT id, model, started_at, ended_at FROM sessions WHERE id = ?`, id,
	).Scan(&log.Session.ID, &log.Session.Model, &startedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("archive session %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load archive session: %w", err)
	}
	log.Session.StartedAt = time.Unix(startedAt, 0)
	if endedAt.Valid {
		log.Session.EndedAt = time.Unix(endedAt.Int64, 0)
	}

	rows, err := s.db.Query(
		`SELECT id, text, created_at FROM utterances WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load utterances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			u  Utterance
			at int64
		)
		if err := rows.Scan(&u.ID, &u.Text, &at); err != nil {
			return nil, fmt.Errorf("scan utterance: %w", err)
		}
		u.CreatedAt = time.Unix(at, 0)
		log.Utterances = append(log.Utterances, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load utterances: %w", err)
	}

	drows, err := s.db.Query(
		`SELECT id, name, x, y, width, height, created_at FROM detections WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("load detections: %w", err)
	}
	defer drows.Close()
	for drows.Next() {
		var (
			d  DetectionRecord
			at int64
		)
		if err := drows.Scan(&d.ID, &d.Name, &d.Box.X, &d.Box.Y, &d.Box.Width, &d.Box.Height, &at); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		d.CreatedAt = time.Unix(at, 0)
		log.Detections = append(log.Detections, d)
	}
	if err := drows.Err(); err != nil {
		return nil, fmt.Errorf("load detections: %w", err)
	}

	return &log, nil
}

// ListSessions returns the most recent sessions, newest first.
func (s *Store) ListSessions(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, model, started_at, ended_at FROM sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list archive sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRecord
	for rows.Next() {
		var (
			rec       SessionRecord
			startedAt int64
			endedAt   sql.NullInt64
		)
		if err := rows.Scan(&rec.ID, &rec.Model, &startedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan archive session: %w", err)
		}
		rec.StartedAt = time.Unix(startedAt, 0)
		if endedAt.Valid {
			rec.EndedAt = time.Unix(endedAt.Int64, 0)
		}
		sessions = append(sessions, rec)
	}
	return sessions, rows.Err()
}
