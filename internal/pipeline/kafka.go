// Package pipeline holds the concrete downstream pipelines events are
// forwarded to. Each pipeline implements forward.Pipeline and owns its
// own durability semantics; the forwarder never retries on their
// behalf.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"clickpipe/internal/domain/event"
	"clickpipe/internal/infrastructure/kafka"
)

// Kafka publishes accepted events to the clickstream topic. Messages
// are keyed by party id so broker partitioning matches the pool's
// per-party ordering.
type Kafka struct {
	producer *kafka.Producer
	timeout  time.Duration
}

func NewKafka(producer *kafka.Producer) *Kafka {
	return &Kafka{producer: producer, timeout: 5 * time.Second}
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Deliver(ctx context.Context, ev *event.Event) error {
	value, err := event.MarshalEnvelope(ev)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, k.timeout)
	defer cancel()
	return k.producer.SendMessage(sendCtx, []byte(ev.PartyID.Value), value)
}
