// Package handler exposes the optional HTTP admin surface: liveness and
// aggregate store counts. The journaling protocol itself lives on SSH.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/daybook/internal/model/journal"
	"github.com/zhouzirui/daybook/pkg/utils"
)

// NewAdminRouter wires the health and stats endpoints.
func NewAdminRouter(store journal.Store) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/stats", func(w http.ResponseWriter, req *http.Request) {
		counter, ok := store.(journal.Counter)
		if !ok {
			utils.RespondError(w, http.StatusNotImplemented, "stats unavailable for this store")
			return
		}

		subjects, entries, err := counter.Counts(req.Context())
		if err != nil {
			utils.RespondError(w, http.StatusInternalServerError, "failed to count records")
			return
		}

		utils.RespondJSON(w, http.StatusOK, map[string]int{
			"subjects": subjects,
			"entries":  entries,
		})
	})

	return r
}
