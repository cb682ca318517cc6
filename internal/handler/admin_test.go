package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/zhouzirui/daybook/internal/calendar"
	"github.com/zhouzirui/daybook/internal/model/journal"
)

func TestHealthz(t *testing.T) {
	router := NewAdminRouter(journal.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestStats(t *testing.T) {
	store := journal.NewMemoryStore()
	ctx := context.Background()
	if _, err := store.GetOrCreateSubject(ctx, "SHA256:abc"); err != nil {
		t.Fatalf("GetOrCreateSubject err: %v", err)
	}
	if err := store.UpsertEntry(ctx, "s1", calendar.NewDay(2024, time.March, 1), "body"); err != nil {
		t.Fatalf("UpsertEntry err: %v", err)
	}

	router := NewAdminRouter(store)
	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	var payload map[string]int
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal err: %v", err)
	}
	if payload["subjects"] != 1 || payload["entries"] != 1 {
		t.Fatalf("unexpected stats: %v", payload)
	}
}
