// Package sqlite provides the SQLite-backed journal store.
// Uses ncruces/go-sqlite3/driver which exposes a database/sql interface
// without cgo.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/zhouzirui/daybook/internal/calendar"
	"github.com/zhouzirui/daybook/internal/model/journal"
)

// schema defines the three journal tables. Days are stored in ISO text form
// so the (subject, day) uniqueness constraints sort naturally.
const schema = `
CREATE TABLE IF NOT EXISTS subjects (
    id TEXT PRIMARY KEY,
    fingerprint TEXT UNIQUE NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
    subject_id TEXT NOT NULL,
    entry_date TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (subject_id, entry_date)
);

CREATE TABLE IF NOT EXISTS questions (
    subject_id TEXT NOT NULL,
    for_date TEXT NOT NULL,
    question TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    PRIMARY KEY (subject_id, for_date)
);

CREATE INDEX IF NOT EXISTS idx_entries_subject_date ON entries(subject_id, entry_date DESC);
`

// Store is the SQLite-backed journal store.
type Store struct {
	db *sql.DB
}

var _ journal.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for ephemeral storage.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Every pooled connection gets its own private in-memory database;
		// pin the pool to the one that ran the schema.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrCreateSubject provisions a subject in a single upsert-if-absent
// statement, so two concurrent first contacts cannot race.
func (s *Store) GetOrCreateSubject(ctx context.Context, fingerprint string) (journal.Subject, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return journal.Subject{}, journal.ErrFingerprintRequired
	}

	var (
		subject   journal.Subject
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO subjects (id, fingerprint, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (fingerprint) DO UPDATE SET fingerprint = excluded.fingerprint
		RETURNING id, fingerprint, created_at
	`, uuid.NewString(), fingerprint, time.Now().Unix()).Scan(&subject.ID, &subject.Fingerprint, &createdAt)
	if err != nil {
		return journal.Subject{}, fmt.Errorf("get or create subject: %w", err)
	}

	subject.CreatedAt = time.Unix(createdAt, 0).UTC()
	return subject, nil
}

// GetEntry retrieves the entry for one subject and day.
func (s *Store) GetEntry(ctx context.Context, subjectID string, day calendar.Day) (journal.Entry, error) {
	var (
		body                 string
		createdAt, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT body, created_at, updated_at FROM entries
		WHERE subject_id = ? AND entry_date = ?
	`, subjectID, day.String()).Scan(&body, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Entry{}, journal.ErrNotFound
	}
	if err != nil {
		return journal.Entry{}, fmt.Errorf("get entry: %w", err)
	}

	return journal.Entry{
		SubjectID: subjectID,
		Day:       day,
		Body:      body,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
		UpdatedAt: time.Unix(updatedAt, 0).UTC(),
	}, nil
}

// UpsertEntry writes the single entry for (subject, day). The ON CONFLICT
// clause makes concurrent saves resolve last-write-wins.
func (s *Store) UpsertEntry(ctx context.Context, subjectID string, day calendar.Day, body string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entries (subject_id, entry_date, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (subject_id, entry_date) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at
	`, subjectID, day.String(), body, now, now)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}
	return nil
}

// ListRecentEntries returns previews newest-first, at most limit rows.
func (s *Store) ListRecentEntries(ctx context.Context, subjectID string, limit, truncate int) ([]journal.EntryPreview, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_date, body FROM entries
		WHERE subject_id = ?
		ORDER BY entry_date DESC
		LIMIT ?
	`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	previews := make([]journal.EntryPreview, 0, limit)
	for rows.Next() {
		var dayText, body string
		if err := rows.Scan(&dayText, &body); err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		day, err := calendar.ParseDay(dayText)
		if err != nil {
			return nil, fmt.Errorf("list entries: %w", err)
		}
		previews = append(previews, journal.EntryPreview{Day: day, Preview: journal.Preview(body, truncate)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return previews, nil
}

// GetQuestion retrieves the prompt for one subject and day.
func (s *Store) GetQuestion(ctx context.Context, subjectID string, day calendar.Day) (journal.Question, error) {
	var (
		text      string
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT question, created_at FROM questions
		WHERE subject_id = ? AND for_date = ?
	`, subjectID, day.String()).Scan(&text, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Question{}, journal.ErrNotFound
	}
	if err != nil {
		return journal.Question{}, fmt.Errorf("get question: %w", err)
	}

	return journal.Question{
		SubjectID: subjectID,
		Day:       day,
		Text:      text,
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}, nil
}

// UpsertQuestion writes the single question for (subject, day).
func (s *Store) UpsertQuestion(ctx context.Context, subjectID string, day calendar.Day, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO questions (subject_id, for_date, question, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (subject_id, for_date) DO UPDATE SET question = excluded.question
	`, subjectID, day.String(), text, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("upsert question: %w", err)
	}
	return nil
}

// Counts reports aggregate row counts for the admin surface.
func (s *Store) Counts(ctx context.Context) (int, int, error) {
	var subjects, entries int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects`).Scan(&subjects); err != nil {
		return 0, 0, fmt.Errorf("count subjects: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&entries); err != nil {
		return 0, 0, fmt.Errorf("count entries: %w", err)
	}
	return subjects, entries, nil
}
