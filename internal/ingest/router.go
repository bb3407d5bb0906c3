package ingest

import (
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event-submission path suffixes, relative to each source's configured
// prefix.
const (
	browserEventPath = "csc-event"
	jsonEventPath    = "json-event"
)

// NewRouter mounts both source handlers under their configured
// prefixes, plus the operational endpoints. The browser source is
// GET-only; the JSON source takes POST since it carries a body.
func NewRouter(browser *BrowserHandler, browserPrefix string, json *JSONHandler, jsonPrefix string, recent *RecentEventsHandler, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	browserPath := path.Join("/", browserPrefix, browserEventPath)
	r.Get(browserPath, browser.ServeHTTP)
	log.Info("registered browser event source", "path", browserPath)

	jsonPath := path.Join("/", jsonPrefix, jsonEventPath)
	r.Post(jsonPath, json.ServeHTTP)
	log.Info("registered json event source", "path", jsonPath)

	r.Get("/parties/{partyID}/events", recent.ServeHTTP)

	return r
}
