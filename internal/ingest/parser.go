// Package ingest implements the event-ingestion pipeline front end:
// bounded request body collection, source-specific event extraction and
// the HTTP handlers that feed accepted events into the processing pool.
package ingest

import (
	"encoding/json"
	"errors"
	"time"

	"clickpipe/internal/domain/event"
	"clickpipe/internal/domain/identifier"
)

// ErrIncomplete marks an ingestion attempt that could not be parsed
// into a usable event: a missing or unparseable required field, or an
// empty/truncated body. It is expected and frequent, never fatal, and
// never surfaced to the client.
var ErrIncomplete = errors.New("incomplete request")

// eventContainer mirrors the JSON source wire format. Required fields
// are pointers so that absence is distinguishable from zero values.
type eventContainer struct {
	EventType          *string         `json:"eventType"`
	SessionID          *string         `json:"sessionId"`
	EventID            *string         `json:"eventId"`
	IsNewParty         *bool           `json:"isNewParty"`
	IsNewSession       *bool           `json:"isNewSession"`
	ClientTimestampIso *string         `json:"clientTimestampIso"`
	Parameters         json.RawMessage `json:"parameters"`
}

func (c *eventContainer) complete() bool {
	return c.EventType != nil &&
		c.SessionID != nil &&
		c.EventID != nil &&
		c.IsNewParty != nil &&
		c.IsNewSession != nil &&
		c.ClientTimestampIso != nil
}

// clientUTCOffsetMillis parses an ISO-8601 offset date-time and returns
// the server receipt time minus the client-reported time, in millis.
func clientUTCOffsetMillis(iso string, receipt time.Time) (int64, error) {
	clientTime, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0, ErrIncomplete
	}
	return receipt.UnixMilli() - clientTime.UnixMilli(), nil
}

// parseJSONEvent converts a fully-received JSON body plus the request's
// party id into an Event. Every failure is ErrIncomplete: a JSON event
// is either complete and well-formed or dropped whole, since partial
// JSON offers no safe partial extraction.
func parseJSONEvent(sourceName string, partyID identifier.Identifier, body []byte, receipt time.Time) (*event.Event, error) {
	if len(body) == 0 {
		return nil, ErrIncomplete
	}

	var container eventContainer
	if err := json.Unmarshal(body, &container); err != nil {
		return nil, ErrIncomplete
	}
	if !container.complete() {
		return nil, ErrIncomplete
	}

	sessionID, ok := identifier.TryParse(*container.SessionID)
	if !ok {
		return nil, ErrIncomplete
	}
	offset, err := clientUTCOffsetMillis(*container.ClientTimestampIso, receipt)
	if err != nil {
		return nil, err
	}

	return &event.Event{
		SourceName:            sourceName,
		PartyID:               partyID,
		SessionID:             sessionID,
		EventID:               *container.EventID,
		NewParty:              *container.IsNewParty,
		NewSession:            *container.IsNewSession,
		EventType:             *container.EventType,
		ReceiptTime:           receipt,
		ClientUTCOffsetMillis: offset,
		Parameters:            container.Parameters,
	}, nil
}
