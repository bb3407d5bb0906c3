package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"clickpipe/internal/domain/identifier"
	"clickpipe/internal/infrastructure/postgres"

	"github.com/go-chi/chi/v5"
)

const (
	defaultRecentEventsLimit = 50
	maximumRecentEventsLimit = 500
)

// EventLister reads back archived events for one party.
type EventLister interface {
	ListRecentByParty(ctx context.Context, partyID string, limit int) ([]*postgres.ArchivedEvent, error)
}

// RecentEventsHandler serves the operational read-back of a party's
// newest archived events. Unlike the ingestion endpoints it is a plain
// JSON API: operators are a trusted caller and get real statuses.
type RecentEventsHandler struct {
	lister EventLister
	log    *slog.Logger
}

func NewRecentEventsHandler(lister EventLister, log *slog.Logger) *RecentEventsHandler {
	return &RecentEventsHandler{lister: lister, log: log}
}

func (h *RecentEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	partyID, ok := identifier.TryParse(chi.URLParam(r, "partyID"))
	if !ok {
		http.Error(w, "invalid party id", http.StatusBadRequest)
		return
	}

	limit := defaultRecentEventsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maximumRecentEventsLimit {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := h.lister.ListRecentByParty(r.Context(), partyID.Value, limit)
	if err != nil {
		h.log.Error("failed to list recent events", "party_id", partyID.Value, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*postgres.ArchivedEvent{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	json.NewEncoder(w).Encode(events)
}
