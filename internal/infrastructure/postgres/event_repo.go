package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clickpipe/internal/domain/event"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository archives accepted events in an append-only table.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Insert(ctx context.Context, e *event.Event) error {
	const sql = `
		INSERT INTO events (source, party_id, session_id, event_id, event_type,
			new_party, new_session, corrupt, receipt_time, client_utc_offset_millis, parameters)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, sql,
		e.SourceName, e.PartyID.Value, nullIfEmpty(e.SessionID.Value), e.EventID, nullIfEmpty(e.EventType),
		e.NewParty, e.NewSession, e.Corrupt, e.ReceiptTime.UTC(), e.ClientUTCOffsetMillis, rawOrNil(e.Parameters))

	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// ArchivedEvent is one row of the archive, as read back.
type ArchivedEvent struct {
	Source                string    `json:"source"`
	PartyID               string    `json:"party_id"`
	SessionID             string    `json:"session_id,omitempty"`
	EventID               string    `json:"event_id"`
	EventType             string    `json:"event_type,omitempty"`
	Corrupt               bool      `json:"corrupt,omitempty"`
	ReceiptTime           time.Time `json:"receipt_time"`
	ClientUTCOffsetMillis int64     `json:"client_utc_offset_millis"`
}

// ListRecentByParty returns the newest archived events for one party,
// most recent first.
func (r *EventRepository) ListRecentByParty(ctx context.Context, partyID string, limit int) ([]*ArchivedEvent, error) {
	const sql = `
		SELECT
			source,
			party_id,
			COALESCE(session_id, ''),
			event_id,
			COALESCE(event_type, ''),
			corrupt,
			receipt_time,
			client_utc_offset_millis
		FROM events
		WHERE party_id = $1
		ORDER BY receipt_time DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, sql, partyID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*ArchivedEvent
	for rows.Next() {
		e := &ArchivedEvent{}
		if err := rows.Scan(&e.Source, &e.PartyID, &e.SessionID, &e.EventID, &e.EventType,
			&e.Corrupt, &e.ReceiptTime, &e.ClientUTCOffsetMillis); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}

	return events, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func rawOrNil(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
