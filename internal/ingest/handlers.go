package ingest

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"clickpipe/internal/domain/event"
	"clickpipe/internal/domain/identifier"
	"clickpipe/internal/pool"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_events_received_total",
		Help: "The total number of ingestion requests received",
	}, []string{"source"})
	eventsAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_events_accepted_total",
		Help: "The total number of events parsed and enqueued for processing",
	}, []string{"source"})
	eventsIncomplete = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_events_incomplete_total",
		Help: "The total number of requests dropped as incomplete",
	}, []string{"source"})
	eventsCorrupt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_events_corrupt_total",
		Help: "The total number of events accepted with a corrupt payload",
	}, []string{"source"})
	queueRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_queue_rejections_total",
		Help: "The total number of events dropped because a partition queue was full",
	}, []string{"source"})
)

// Enqueuer hands accepted events to the partitioned processing pool.
type Enqueuer interface {
	Enqueue(key string, item pool.Item) error
}

// BrowserHandler ingests beacon requests from the tracking script: all
// event fields travel as individual query parameters and the body is
// ignored.
type BrowserHandler struct {
	source     string
	partyParam string
	queue      Enqueuer
	log        *slog.Logger
	now        func() time.Time
}

// NewBrowserHandler builds the handler for one browser source.
func NewBrowserHandler(source, partyParam string, queue Enqueuer, log *slog.Logger) *BrowserHandler {
	return &BrowserHandler{
		source:     source,
		partyParam: partyParam,
		queue:      queue,
		log:        log,
		now:        time.Now,
	}
}

func (h *BrowserHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	receipt := h.now()
	eventsReceived.WithLabelValues(h.source).Inc()
	query := r.URL.Query()

	partyID, ok := identifier.TryParse(query.Get(h.partyParam))
	if !ok {
		dropIncomplete(h.log, h.source, r)
		respondNoContent(w)
		return
	}

	ev, err := parseBrowserEvent(h.source, partyID, query, receipt)
	if err != nil {
		dropIncomplete(h.log, h.source, r)
		respondNoContent(w)
		return
	}

	enqueue(h.queue, h.log, h.source, r, ev)
	respondNoContent(w)
}

// JSONHandler ingests direct JSON submissions: the party id travels as
// a query parameter, everything else inside the body, which is read
// through the bounded receiver.
type JSONHandler struct {
	source     string
	partyParam string
	receiver   *BodyReceiver
	queue      Enqueuer
	log        *slog.Logger
	now        func() time.Time
}

// NewJSONHandler builds the handler for one JSON source.
func NewJSONHandler(source, partyParam string, maximumBodySize int, queue Enqueuer, log *slog.Logger) *JSONHandler {
	return &JSONHandler{
		source:     source,
		partyParam: partyParam,
		receiver:   NewBodyReceiver(maximumBodySize, log),
		queue:      queue,
		log:        log,
		now:        time.Now,
	}
}

func (h *JSONHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	receipt := h.now()
	eventsReceived.WithLabelValues(h.source).Inc()

	body := <-h.receiver.Receive(r.Context(), r.Body)

	partyID, ok := identifier.TryParse(r.URL.Query().Get(h.partyParam))
	if !ok {
		dropIncomplete(h.log, h.source, r)
		respondNoContent(w)
		return
	}

	ev, err := parseJSONEvent(h.source, partyID, body, receipt)
	if err != nil {
		dropIncomplete(h.log, h.source, r)
		respondNoContent(w)
		return
	}

	enqueue(h.queue, h.log, h.source, r, ev)
	respondNoContent(w)
}

// enqueue routes an accepted event to its partition, keyed by party id.
// A full queue means this ingestion attempt is dropped and logged; the
// client still gets its usual response.
func enqueue(queue Enqueuer, log *slog.Logger, source string, r *http.Request, ev *event.Event) {
	if ev.Corrupt {
		eventsCorrupt.WithLabelValues(source).Inc()
	}
	if err := queue.Enqueue(ev.PartyID.Value, pool.Item{Source: source, Event: ev}); err != nil {
		queueRejections.WithLabelValues(source).Inc()
		log.Error("event rejected at capacity",
			"source", source,
			"remote_host", remoteHost(r),
			"event_id", ev.EventID,
			"error", err)
		return
	}
	eventsAccepted.WithLabelValues(source).Inc()
}

func dropIncomplete(log *slog.Logger, source string, r *http.Request) {
	eventsIncomplete.WithLabelValues(source).Inc()
	log.Warn("improper request received", "source", source, "remote_host", remoteHost(r))
}

// Ingestion failures are never surfaced to the client: every code path
// answers with the same empty response, so broken clients cannot be
// told apart from healthy ones and have no reason to retry.
func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// remoteHost resolves the client host for per-host logging: the first
// X-Forwarded-For hop when present, the connection peer otherwise.
func remoteHost(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
