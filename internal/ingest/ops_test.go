package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"clickpipe/internal/infrastructure/postgres"
)

type stubLister struct {
	events []*postgres.ArchivedEvent
	err    error

	mu      sync.Mutex
	parties []string
	limits  []int
}

func (l *stubLister) ListRecentByParty(_ context.Context, partyID string, limit int) ([]*postgres.ArchivedEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.parties = append(l.parties, partyID)
	l.limits = append(l.limits, limit)
	return l.events, l.err
}

func TestRecentEventsEndpoint(t *testing.T) {
	lister := &stubLister{events: []*postgres.ArchivedEvent{
		{Source: "browser", PartyID: testParty, EventID: "evt-2", ReceiptTime: testReceipt},
		{Source: "json", PartyID: testParty, EventID: "evt-1", ReceiptTime: testReceipt.Add(-time.Minute)},
	}}
	router := newTestRouterWithLister(&recordingQueue{}, 4096, lister)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parties/"+url.PathEscape(testParty)+"/events", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []*postgres.ArchivedEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "evt-2" || got[1].EventID != "evt-1" {
		t.Errorf("response events = %+v", got)
	}
	if len(lister.parties) != 1 || lister.parties[0] != testParty {
		t.Errorf("lister queried with %v, want %q", lister.parties, testParty)
	}
	if lister.limits[0] != defaultRecentEventsLimit {
		t.Errorf("limit = %d, want default %d", lister.limits[0], defaultRecentEventsLimit)
	}
}

func TestRecentEventsEndpointLimitParam(t *testing.T) {
	lister := &stubLister{}
	router := newTestRouterWithLister(&recordingQueue{}, 4096, lister)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parties/"+url.PathEscape(testParty)+"/events?limit=7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(lister.limits) != 1 || lister.limits[0] != 7 {
		t.Errorf("limits = %v, want [7]", lister.limits)
	}

	for _, limit := range []string{"0", "-3", "9999", "many"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parties/"+url.PathEscape(testParty)+"/events?limit="+limit, nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", limit, rec.Code)
		}
	}
}

func TestRecentEventsEndpointInvalidPartyID(t *testing.T) {
	lister := &stubLister{}
	router := newTestRouterWithLister(&recordingQueue{}, 4096, lister)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parties/garbage/events", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if len(lister.parties) != 0 {
		t.Errorf("lister queried for an unparseable party id")
	}
}

func TestRecentEventsEndpointListerFailure(t *testing.T) {
	lister := &stubLister{err: errors.New("db down")}
	router := newTestRouterWithLister(&recordingQueue{}, 4096, lister)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parties/"+url.PathEscape(testParty)+"/events", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestRecentEventsEndpointEmptyResult(t *testing.T) {
	router := newTestRouterWithLister(&recordingQueue{}, 4096, &stubLister{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/parties/"+url.PathEscape(testParty)+"/events", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []*postgres.ArchivedEvent
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("response = %s, want an empty JSON array", rec.Body.String())
	}
}
