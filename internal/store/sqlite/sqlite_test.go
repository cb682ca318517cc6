package sqlite

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/daybook/internal/calendar"
	"github.com/zhouzirui/daybook/internal/model/journal"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open err: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSubjectUpsertIfAbsent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.GetOrCreateSubject(ctx, "SHA256:abc")
	if err != nil {
		t.Fatalf("GetOrCreateSubject err: %v", err)
	}
	second, err := store.GetOrCreateSubject(ctx, "SHA256:abc")
	if err != nil {
		t.Fatalf("GetOrCreateSubject err: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("identity not stable: %s vs %s", first.ID, second.ID)
	}

	other, err := store.GetOrCreateSubject(ctx, "SHA256:def")
	if err != nil {
		t.Fatalf("GetOrCreateSubject err: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("distinct fingerprints must get distinct subjects")
	}

	if _, err := store.GetOrCreateSubject(ctx, ""); err == nil {
		t.Fatal("expected error for empty fingerprint")
	}
}

func TestEntryUpsertLastWriteWins(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	day := calendar.NewDay(2024, time.March, 1)

	if _, err := store.GetEntry(ctx, "s1", day); err != journal.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.UpsertEntry(ctx, "s1", day, "b1"); err != nil {
		t.Fatalf("UpsertEntry err: %v", err)
	}
	if err := store.UpsertEntry(ctx, "s1", day, "b2"); err != nil {
		t.Fatalf("UpsertEntry err: %v", err)
	}

	entry, err := store.GetEntry(ctx, "s1", day)
	if err != nil {
		t.Fatalf("GetEntry err: %v", err)
	}
	if entry.Body != "b2" {
		t.Fatalf("body = %q, want b2", entry.Body)
	}
}

func TestListRecentEntriesOrderLimitTruncate(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	day := calendar.NewDay(2024, time.February, 20)
	for i := 0; i < 9; i++ {
		if err := store.UpsertEntry(ctx, "s1", day, strings.Repeat("x", 100)); err != nil {
			t.Fatalf("UpsertEntry err: %v", err)
		}
		day = day.Next()
	}

	previews, err := store.ListRecentEntries(ctx, "s1", 7, 80)
	if err != nil {
		t.Fatalf("ListRecentEntries err: %v", err)
	}
	if len(previews) != 7 {
		t.Fatalf("expected 7 rows, got %d", len(previews))
	}
	if got := previews[0].Day.String(); got != "2024-02-28" {
		t.Fatalf("newest day = %s, want 2024-02-28", got)
	}
	for i := 1; i < len(previews); i++ {
		if !previews[i-1].Day.After(previews[i].Day) {
			t.Fatalf("rows not descending at %d", i)
		}
	}
	for _, p := range previews {
		if !strings.HasSuffix(p.Preview, "…") {
			t.Fatalf("preview not truncated: %q", p.Preview)
		}
		if n := len([]rune(p.Preview)); n != 81 {
			t.Fatalf("preview rune length = %d, want 81", n)
		}
	}
}

func TestQuestionUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	day := calendar.NewDay(2024, time.March, 2)

	if _, err := store.GetQuestion(ctx, "s1", day); err != journal.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.UpsertQuestion(ctx, "s1", day, "q1"); err != nil {
		t.Fatalf("UpsertQuestion err: %v", err)
	}
	if err := store.UpsertQuestion(ctx, "s1", day, "q2"); err != nil {
		t.Fatalf("UpsertQuestion err: %v", err)
	}

	question, err := store.GetQuestion(ctx, "s1", day)
	if err != nil {
		t.Fatalf("GetQuestion err: %v", err)
	}
	if question.Text != "q2" {
		t.Fatalf("question = %q, want q2", question.Text)
	}
}

func TestMemoryDatabasePinsSingleConnection(t *testing.T) {
	store := openTestStore(t)

	if got := store.db.Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("MaxOpenConnections = %d, want 1 for :memory:", got)
	}

	// A second connection from the pool would see an empty private database;
	// with a pinned pool the schema stays visible across operations.
	ctx := context.Background()
	if _, err := store.GetOrCreateSubject(ctx, "SHA256:pin"); err != nil {
		t.Fatalf("GetOrCreateSubject err: %v", err)
	}
	if err := store.UpsertEntry(ctx, "s1", calendar.NewDay(2024, time.March, 1), "body"); err != nil {
		t.Fatalf("UpsertEntry err: %v", err)
	}
}

func TestCounts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.GetOrCreateSubject(ctx, "SHA256:abc"); err != nil {
		t.Fatalf("GetOrCreateSubject err: %v", err)
	}
	if err := store.UpsertEntry(ctx, "s1", calendar.NewDay(2024, time.March, 1), "body"); err != nil {
		t.Fatalf("UpsertEntry err: %v", err)
	}

	subjects, entries, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts err: %v", err)
	}
	if subjects != 1 || entries != 1 {
		t.Fatalf("counts = %d subjects, %d entries", subjects, entries)
	}
}
