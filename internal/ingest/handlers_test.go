package ingest

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"clickpipe/internal/pool"
)

type recordingQueue struct {
	err error

	mu    sync.Mutex
	keys  []string
	items []pool.Item
}

func (q *recordingQueue) Enqueue(key string, item pool.Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.keys = append(q.keys, key)
	q.items = append(q.items, item)
	return nil
}

func (q *recordingQueue) enqueued() []pool.Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]pool.Item(nil), q.items...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testParty = "0:1hv4cb2g0:partytoken"

func newTestRouter(queue Enqueuer, maxBodySize int) http.Handler {
	return newTestRouterWithLister(queue, maxBodySize, &stubLister{})
}

func newTestRouterWithLister(queue Enqueuer, maxBodySize int, lister EventLister) http.Handler {
	browser := NewBrowserHandler("browser", "p", queue, discardLogger())
	browser.now = func() time.Time { return testReceipt }
	json := NewJSONHandler("json", "p", maxBodySize, queue, discardLogger())
	json.now = func() time.Time { return testReceipt }
	recent := NewRecentEventsHandler(lister, discardLogger())
	return NewRouter(browser, "/", json, "/", recent, discardLogger())
}

func TestBrowserEndpointAcceptsEvent(t *testing.T) {
	queue := &recordingQueue{}
	router := newTestRouter(queue, 4096)

	params := url.Values{
		"p": {testParty},
		"s": {"0:1hv4cb2g0:sessiontoken"},
		"e": {"evt-1"},
		"t": {"pageview"},
		"n": {"t"},
		"j": {"t"},
		"c": {"2024-01-01T00:00:00Z"},
	}
	req := httptest.NewRequest(http.MethodGet, "/csc-event?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("response body = %q, want empty", rec.Body.String())
	}

	items := queue.enqueued()
	if len(items) != 1 {
		t.Fatalf("enqueued %d items, want 1", len(items))
	}
	if items[0].Source != "browser" {
		t.Errorf("Source = %q, want browser", items[0].Source)
	}
	if queue.keys[0] != testParty {
		t.Errorf("partition key = %q, want the party id", queue.keys[0])
	}
	if items[0].Event.ClientUTCOffsetMillis != 5000 {
		t.Errorf("ClientUTCOffsetMillis = %d, want 5000", items[0].Event.ClientUTCOffsetMillis)
	}
}

func TestBrowserEndpointUnparseablePartyID(t *testing.T) {
	queue := &recordingQueue{}
	router := newTestRouter(queue, 4096)

	req := httptest.NewRequest(http.MethodGet, "/csc-event?p=garbage&e=evt-1&c=2024-01-01T00%3A00%3A00Z", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 even for incomplete requests", rec.Code)
	}
	if got := queue.enqueued(); len(got) != 0 {
		t.Errorf("enqueued %d items for an unparseable party id, want 0", len(got))
	}
}

func TestBrowserEndpointRejectsWriteVerbs(t *testing.T) {
	queue := &recordingQueue{}
	router := newTestRouter(queue, 4096)

	req := httptest.NewRequest(http.MethodPost, "/csc-event?p="+url.QueryEscape(testParty), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func jsonRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/json-event?p="+url.QueryEscape(testParty), strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestJSONEndpointAcceptsEvent(t *testing.T) {
	queue := &recordingQueue{}
	router := newTestRouter(queue, 4096)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, jsonRequest(`{
		"eventType": "pageview",
		"sessionId": "0:1hv4cb2g0:sessiontoken",
		"eventId": "evt-7",
		"isNewParty": false,
		"isNewSession": true,
		"clientTimestampIso": "2024-01-01T00:00:00Z",
		"parameters": {"page": "/pricing"}
	}`))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	items := queue.enqueued()
	if len(items) != 1 {
		t.Fatalf("enqueued %d items, want 1", len(items))
	}
	ev := items[0].Event
	if ev.SourceName != "json" || ev.EventID != "evt-7" || ev.EventType != "pageview" {
		t.Errorf("event = %+v", ev)
	}
	if ev.PartyID.Value != testParty {
		t.Errorf("PartyID = %q, want %q", ev.PartyID.Value, testParty)
	}
	if ev.NewParty || !ev.NewSession {
		t.Errorf("NewParty/NewSession = %v/%v, want false/true", ev.NewParty, ev.NewSession)
	}
}

func TestJSONEndpointBadTimestamp(t *testing.T) {
	queue := &recordingQueue{}
	router := newTestRouter(queue, 4096)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, jsonRequest(`{
		"eventType": "pageview",
		"sessionId": "0:1hv4cb2g0:sessiontoken",
		"eventId": "evt-7",
		"isNewParty": false,
		"isNewSession": true,
		"clientTimestampIso": "definitely not a timestamp"
	}`))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 (parse failures never surface)", rec.Code)
	}
	if got := queue.enqueued(); len(got) != 0 {
		t.Errorf("enqueued %d items for an unparseable timestamp, want 0", len(got))
	}
}

func TestJSONEndpointOversizedBody(t *testing.T) {
	queue := &recordingQueue{}
	router := newTestRouter(queue, 64)

	body := `{"eventType":"` + strings.Repeat("x", 200) + `"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, jsonRequest(body))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if got := queue.enqueued(); len(got) != 0 {
		t.Errorf("enqueued %d items for an oversized body, want 0", len(got))
	}
}

func TestJSONEndpointQueueFull(t *testing.T) {
	queue := &recordingQueue{err: pool.ErrQueueFull}
	router := newTestRouter(queue, 4096)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, jsonRequest(`{
		"eventType": "pageview",
		"sessionId": "0:1hv4cb2g0:sessiontoken",
		"eventId": "evt-7",
		"isNewParty": true,
		"isNewSession": true,
		"clientTimestampIso": "2024-01-01T00:00:00Z"
	}`))

	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204 despite capacity rejection", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&recordingQueue{}, 4096)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}
