// Package store persists session rows and recording metadata in SQLite.
// The pure-Go driver keeps the build CGO-free.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/castform/castform/internal/domain"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	host_id    TEXT NOT NULL,
	join_code  TEXT NOT NULL UNIQUE,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS recordings (
	id           TEXT PRIMARY KEY,
	session_id   TEXT NOT NULL REFERENCES sessions(id),
	type         TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	metadata     TEXT,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recordings_session ON recordings(session_id);
`

type Store struct {
	db *sql.DB
}

// Open connects, enables foreign keys and WAL, and bootstraps the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, ":memory:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// CreateSession inserts a new session with a generated id and a short
// human-shareable join code (first group of a uuid).
func (s *Store) CreateSession(ctx context.Context, name string, hostID domain.UserID) (*domain.Session, error) {
	sess := &domain.Session{
		ID:        domain.SessionID(uuid.NewString()),
		Name:      name,
		HostID:    hostID,
		JoinCode:  strings.SplitN(uuid.NewString(), "-", 2)[0],
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, host_id, join_code, created_at) VALUES (?, ?, ?, ?, ?)`,
		sess.ID, sess.Name, sess.HostID, sess.JoinCode, sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *Store) SessionByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx,
		`SELECT id, name, host_id, join_code, created_at FROM sessions WHERE id = ?`, id))
}

func (s *Store) SessionByJoinCode(ctx context.Context, code string) (*domain.Session, error) {
	return s.scanSession(s.db.QueryRowContext(ctx,
		`SELECT id, name, host_id, join_code, created_at FROM sessions WHERE join_code = ?`, code))
}

func (s *Store) SessionsByHost(ctx context.Context, hostID domain.UserID) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, host_id, join_code, created_at FROM sessions
		 WHERE host_id = ? ORDER BY created_at DESC`, hostID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(&sess.ID, &sess.Name, &sess.HostID, &sess.JoinCode, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *Store) scanSession(row *sql.Row) (*domain.Session, error) {
	sess := &domain.Session{}
	err := row.Scan(&sess.ID, &sess.Name, &sess.HostID, &sess.JoinCode, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// CreateRecording persists metadata for an uploaded artifact.
func (s *Store) CreateRecording(ctx context.Context, rec *domain.Recording) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings (id, session_id, type, storage_path, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Type, rec.StoragePath, rec.Metadata, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	return nil
}

func (s *Store) RecordingsBySession(ctx context.Context, sid domain.SessionID) ([]domain.Recording, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, type, storage_path, metadata, created_at FROM recordings
		 WHERE session_id = ? ORDER BY created_at DESC`, sid)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []domain.Recording
	for rows.Next() {
		var rec domain.Recording
		var meta sql.NullString
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Type, &rec.StoragePath, &meta, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan recording: %w", err)
		}
		rec.Metadata = meta.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
