// Package history keeps saved chat transcripts in a SQLite database in the
// per-user data directory.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dbtai-dev/dbtai/internal/llm"
)

const DBFile = "history.db"

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

var ErrEmptyTranscript = errors.New("transcript has no messages")

type Transcript struct {
	ID       int64         `json:"id"`
	Model    string        `json:"model"`
	SavedAt  time.Time     `json:"saved_at"`
	Messages []llm.Message `json:"messages"`
}

type Store struct {
	db   *sql.DB
	path string
}

// Open creates dir if needed and opens dir/history.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	path := filepath.Join(dir, DBFile)
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

func (s *Store) Path() string { return s.path }

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS transcripts (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			model    TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			transcript_id INTEGER NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
			position      INTEGER NOT NULL,
			role          TEXT    NOT NULL,
			content       TEXT    NOT NULL,
			PRIMARY KEY (transcript_id, position)
		);

		CREATE INDEX IF NOT EXISTS idx_transcripts_model ON transcripts(model, id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save stores a snapshot of t and returns its id. SavedAt defaults to now.
func (s *Store) Save(ctx context.Context, t Transcript) (int64, error) {
	if len(t.Messages) == 0 {
		return 0, ErrEmptyTranscript
	}
	savedAt := t.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("history: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO transcripts (model, saved_at) VALUES (?, ?)`,
		t.Model, savedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert transcript: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: transcript id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (transcript_id, position, role, content) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("history: prepare messages: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for i, msg := range t.Messages {
		if _, err := stmt.ExecContext(ctx, id, i, string(msg.Role), msg.Content); err != nil {
			return 0, fmt.Errorf("history: insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: commit: %w", err)
	}
	return id, nil
}

// List returns the transcripts saved for model, newest first. An empty model
// lists every transcript.
func (s *Store) List(ctx context.Context, model string) ([]Transcript, error) {
	query := `SELECT id, model, saved_at FROM transcripts`
	args := []any{}
	if strings.TrimSpace(model) != "" {
		query += " WHERE model = ?"
		args = append(args, model)
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Transcript
	for rows.Next() {
		var t Transcript
		var savedAt string
		if err := rows.Scan(&t.ID, &t.Model, &savedAt); err != nil {
			return nil, fmt.Errorf("history: scan transcript: %w", err)
		}
		t.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt)
		if err != nil {
			return nil, fmt.Errorf("history: parse saved_at %q: %w", savedAt, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}

	for i := range out {
		messages, err := s.messages(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Messages = messages
	}
	return out, nil
}

func (s *Store) messages(ctx context.Context, id int64) ([]llm.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM messages WHERE transcript_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("history: messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []llm.Message
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("history: scan message: %w", err)
		}
		out = append(out, llm.Message{Role: llm.Role(role), Content: content})
	}
	return out, rows.Err()
}
