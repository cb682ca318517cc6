package journal

import (
	"context"
	"errors"

	"github.com/zhouzirui/daybook/internal/calendar"
)

var (
	// ErrNotFound marks an absent entry or question row.
	ErrNotFound = errors.New("journal: not found")
	// ErrFingerprintRequired rejects subject provisioning without an identity.
	ErrFingerprintRequired = errors.New("journal: fingerprint is required")
)

// Store is the persistence contract. Upserts are atomic per (subject, day)
// key with last-write-wins semantics; there is at most one entry and one
// question per key. Any I/O failure comes back as an ordinary error the
// caller reports without tearing the session down.
type Store interface {
	// GetOrCreateSubject provisions a subject on first contact. One atomic
	// upsert-if-absent, not a lookup followed by an insert.
	GetOrCreateSubject(ctx context.Context, fingerprint string) (Subject, error)

	GetEntry(ctx context.Context, subjectID string, day calendar.Day) (Entry, error)
	UpsertEntry(ctx context.Context, subjectID string, day calendar.Day, body string) error

	// ListRecentEntries returns at most limit rows, newest day first, each
	// body truncated to truncate runes via Preview.
	ListRecentEntries(ctx context.Context, subjectID string, limit, truncate int) ([]EntryPreview, error)

	GetQuestion(ctx context.Context, subjectID string, day calendar.Day) (Question, error)
	UpsertQuestion(ctx context.Context, subjectID string, day calendar.Day, text string) error
}

// Counter reports aggregate row counts for the admin surface. Optional:
// stores that cannot count cheaply simply do not implement it.
type Counter interface {
	Counts(ctx context.Context) (subjects, entries int, err error)
}
