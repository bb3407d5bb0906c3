package ingest

import (
	"encoding/json"
	"hash/fnv"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clickpipe/internal/domain/event"
	"clickpipe/internal/domain/identifier"
)

// Browser wire format: one query parameter per field. The party id
// parameter name is configurable; the rest are fixed.
const (
	sessionParam    = "s"
	eventIDParam    = "e"
	eventTypeParam  = "t"
	newPartyParam   = "n"
	newSessionParam = "j"
	timestampParam  = "c"
	parametersParam = "u"
	checksumParam   = "x"
)

// parseBrowserEvent converts the query parameters of a browser beacon
// request into an Event. Party id, event id and client timestamp are
// the minimal identity; missing or unparseable values there fail as
// ErrIncomplete. A checksum mismatch or an undecodable parameters
// payload still yields an event, marked corrupt, so that loss can be
// measured downstream.
func parseBrowserEvent(sourceName string, partyID identifier.Identifier, query url.Values, receipt time.Time) (*event.Event, error) {
	eventID := query.Get(eventIDParam)
	if eventID == "" {
		return nil, ErrIncomplete
	}
	offset, err := clientUTCOffsetMillis(query.Get(timestampParam), receipt)
	if err != nil {
		return nil, err
	}

	var sessionID identifier.Identifier
	if raw := query.Get(sessionParam); raw != "" {
		var ok bool
		if sessionID, ok = identifier.TryParse(raw); !ok {
			return nil, ErrIncomplete
		}
	}

	corrupt := !checksumValid(partyID, query)

	var parameters json.RawMessage
	if raw := query.Get(parametersParam); raw != "" {
		if json.Valid([]byte(raw)) {
			parameters = json.RawMessage(raw)
		} else {
			// Identity is intact but the payload is not; count the
			// event rather than fail it.
			corrupt = true
		}
	}

	return &event.Event{
		SourceName:            sourceName,
		PartyID:               partyID,
		SessionID:             sessionID,
		EventID:               eventID,
		NewParty:              boolParam(query.Get(newPartyParam)),
		NewSession:            boolParam(query.Get(newSessionParam)),
		EventType:             query.Get(eventTypeParam),
		Corrupt:               corrupt,
		ReceiptTime:           receipt,
		ClientUTCOffsetMillis: offset,
		Parameters:            parameters,
	}, nil
}

// boolParam reads the compact boolean encoding the tracking script
// emits: "t" for true, anything else (including absence) for false.
func boolParam(raw string) bool {
	switch raw {
	case "t", "true", "1":
		return true
	}
	return false
}

// checksumValid recomputes the request checksum over the significant
// parameters and compares it to the base-36 value the client sent in
// the checksum parameter. An absent checksum passes; only a present,
// mismatching one signals a mangled request.
func checksumValid(partyID identifier.Identifier, query url.Values) bool {
	sent := query.Get(checksumParam)
	if sent == "" {
		return true
	}
	want, err := strconv.ParseUint(sent, 36, 64)
	if err != nil {
		return false
	}
	return BrowserChecksum(partyID.Value, query) == want
}

// BrowserChecksum computes the request checksum the tracking script
// sends along with a browser event: fnv-1a over the significant
// parameter values in fixed order.
func BrowserChecksum(partyID string, query url.Values) uint64 {
	fields := []string{
		partyID,
		query.Get(sessionParam),
		query.Get(eventIDParam),
		query.Get(eventTypeParam),
		query.Get(newPartyParam),
		query.Get(newSessionParam),
		query.Get(timestampParam),
		query.Get(parametersParam),
	}
	h := fnv.New64a()
	h.Write([]byte(strings.Join(fields, "|")))
	return h.Sum64()
}
