// Package event defines the accepted-event model shared by the ingestion
// handlers, the processing pool and every downstream pipeline.
package event

import (
	"encoding/json"
	"time"

	"clickpipe/internal/domain/identifier"
)

// Event is one accepted client interaction. It is constructed exactly
// once by a source parser and never mutated afterwards; pipelines
// receive a shared read-only reference.
type Event struct {
	// SourceName names the ingestion endpoint that produced the event.
	SourceName string

	// PartyID is mandatory for every source and is the default
	// partition key. SessionID is mandatory for JSON-sourced events
	// and may be absent for browser events.
	PartyID   identifier.Identifier
	SessionID identifier.Identifier

	// EventID is unique within the session. Browser clients send an
	// opaque token here, JSON clients an arbitrary string.
	EventID string

	// NewParty and NewSession are client-supplied hints, trusted as-is.
	NewParty   bool
	NewSession bool

	// EventType classifies the event; optional for browser events.
	EventType string

	// Corrupt is set when the event could be identified and counted
	// but part of its payload could not be decoded.
	Corrupt bool

	// ReceiptTime is the server-side receipt instant.
	ReceiptTime time.Time

	// ClientUTCOffsetMillis is receipt time minus the client-reported
	// time, in millis. Computed once at parse time for downstream
	// clock-skew correction.
	ClientUTCOffsetMillis int64

	// Parameters is the optional client payload, forwarded opaquely.
	// Nil when the client sent none.
	Parameters json.RawMessage
}

// Envelope is the JSON document published to downstream transports.
type Envelope struct {
	Source                string          `json:"source"`
	PartyID               string          `json:"party_id"`
	SessionID             string          `json:"session_id,omitempty"`
	EventID               string          `json:"event_id"`
	EventType             string          `json:"event_type,omitempty"`
	NewParty              bool            `json:"new_party"`
	NewSession            bool            `json:"new_session"`
	Corrupt               bool            `json:"corrupt,omitempty"`
	ReceiptTime           time.Time       `json:"receipt_time"`
	ClientUTCOffsetMillis int64           `json:"client_utc_offset_millis"`
	Parameters            json.RawMessage `json:"parameters,omitempty"`
}

// MarshalEnvelope encodes e in the downstream envelope format.
func MarshalEnvelope(e *Event) ([]byte, error) {
	return json.Marshal(Envelope{
		Source:                e.SourceName,
		PartyID:               e.PartyID.Value,
		SessionID:             e.SessionID.Value,
		EventID:               e.EventID,
		EventType:             e.EventType,
		NewParty:              e.NewParty,
		NewSession:            e.NewSession,
		Corrupt:               e.Corrupt,
		ReceiptTime:           e.ReceiptTime.UTC(),
		ClientUTCOffsetMillis: e.ClientUTCOffsetMillis,
		Parameters:            e.Parameters,
	})
}
