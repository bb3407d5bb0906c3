package pipeline

import (
	"context"
	"time"

	"clickpipe/internal/domain/event"
	"clickpipe/internal/infrastructure/postgres"
)

// Store archives every forwarded event in Postgres.
type Store struct {
	repo    *postgres.EventRepository
	timeout time.Duration
}

func NewStore(repo *postgres.EventRepository) *Store {
	return &Store{repo: repo, timeout: 5 * time.Second}
}

func (s *Store) Name() string { return "store" }

func (s *Store) Deliver(ctx context.Context, ev *event.Event) error {
	insertCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.repo.Insert(insertCtx, ev)
}
