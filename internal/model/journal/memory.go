package journal

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/daybook/internal/calendar"
)

type entryKey struct {
	subjectID string
	day       calendar.Day
}

// MemoryStore implements Store with mutex-guarded maps. It backs tests and
// serves as a degraded fallback when the database cannot be opened.
type MemoryStore struct {
	mu        sync.RWMutex
	subjects  map[string]Subject // fingerprint -> subject
	entries   map[entryKey]Entry
	questions map[entryKey]Question
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subjects:  make(map[string]Subject),
		entries:   make(map[entryKey]Entry),
		questions: make(map[entryKey]Question),
	}
}

// GetOrCreateSubject provisions a subject keyed by fingerprint.
func (s *MemoryStore) GetOrCreateSubject(_ context.Context, fingerprint string) (Subject, error) {
	if strings.TrimSpace(fingerprint) == "" {
		return Subject{}, ErrFingerprintRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if subject, ok := s.subjects[fingerprint]; ok {
		return subject, nil
	}

	subject := Subject{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
	}
	s.subjects[fingerprint] = subject
	return subject, nil
}

// GetEntry retrieves the entry for one subject and day.
func (s *MemoryStore) GetEntry(_ context.Context, subjectID string, day calendar.Day) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[entryKey{subjectID: subjectID, day: day}]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

// UpsertEntry writes the single entry for (subject, day), last write wins.
func (s *MemoryStore) UpsertEntry(_ context.Context, subjectID string, day calendar.Day, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{subjectID: subjectID, day: day}
	now := time.Now().UTC()
	entry, ok := s.entries[key]
	if !ok {
		entry = Entry{SubjectID: subjectID, Day: day, CreatedAt: now}
	}
	entry.Body = body
	entry.UpdatedAt = now
	s.entries[key] = entry
	return nil
}

// ListRecentEntries returns previews newest-first, at most limit rows.
func (s *MemoryStore) ListRecentEntries(_ context.Context, subjectID string, limit, truncate int) ([]EntryPreview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	previews := make([]EntryPreview, 0, limit)
	for key, entry := range s.entries {
		if key.subjectID != subjectID {
			continue
		}
		previews = append(previews, EntryPreview{Day: entry.Day, Preview: Preview(entry.Body, truncate)})
	}

	sort.Slice(previews, func(i, j int) bool {
		return previews[i].Day.After(previews[j].Day)
	})

	if len(previews) > limit {
		previews = previews[:limit]
	}
	return previews, nil
}

// GetQuestion retrieves the prompt for one subject and day.
func (s *MemoryStore) GetQuestion(_ context.Context, subjectID string, day calendar.Day) (Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	question, ok := s.questions[entryKey{subjectID: subjectID, day: day}]
	if !ok {
		return Question{}, ErrNotFound
	}
	return question, nil
}

// UpsertQuestion writes the single question for (subject, day).
func (s *MemoryStore) UpsertQuestion(_ context.Context, subjectID string, day calendar.Day, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{subjectID: subjectID, day: day}
	question, ok := s.questions[key]
	if !ok {
		question = Question{SubjectID: subjectID, Day: day, CreatedAt: time.Now().UTC()}
	}
	question.Text = text
	s.questions[key] = question
	return nil
}

// Counts reports aggregate sizes for the admin surface.
func (s *MemoryStore) Counts(_ context.Context) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subjects), len(s.entries), nil
}
