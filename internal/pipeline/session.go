package pipeline

import (
	"context"
	"fmt"
	"time"

	"clickpipe/internal/domain/event"

	"github.com/redis/go-redis/v9"
)

const (
	sessionCounterTTL = 30 * time.Minute
	partySeenTTL      = 24 * time.Hour
)

// Session tracks live visit activity in Redis: an event counter per
// session and a last-seen timestamp per party, both expiring on their
// own.
type Session struct {
	client  *redis.Client
	timeout time.Duration
}

func NewSession(client *redis.Client) *Session {
	return &Session{client: client, timeout: 2 * time.Second}
}

func (s *Session) Name() string { return "session" }

func (s *Session) Deliver(ctx context.Context, ev *event.Event) error {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pipe := s.client.Pipeline()
	if !ev.SessionID.IsZero() {
		counterKey := fmt.Sprintf("session:%s:events", ev.SessionID.Value)
		pipe.Incr(opCtx, counterKey)
		pipe.Expire(opCtx, counterKey, sessionCounterTTL)
	}
	pipe.Set(opCtx, fmt.Sprintf("party:%s:last_seen", ev.PartyID.Value),
		ev.ReceiptTime.UTC().Format(time.RFC3339), partySeenTTL)

	if _, err := pipe.Exec(opCtx); err != nil {
		return fmt.Errorf("record session activity: %w", err)
	}
	return nil
}
