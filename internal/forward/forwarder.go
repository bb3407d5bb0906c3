// Package forward delivers accepted events to the downstream pipelines
// registered for each source. The pipeline set is fixed at startup and
// iterated without synchronization at forward time.
package forward

import (
	"context"
	"log/slog"

	"clickpipe/internal/domain/event"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pipelineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "collector_pipeline_delivery_errors_total",
	Help: "The total number of failed downstream pipeline deliveries",
}, []string{"source", "pipeline"})

// Pipeline is one downstream destination for accepted events. Deliver
// hands over a single immutable event; retry and durability beyond
// acceptance are the pipeline's own concern. Implementations must not
// mutate the event.
type Pipeline interface {
	// Name identifies the pipeline in logs and metrics.
	Name() string
	Deliver(ctx context.Context, ev *event.Event) error
}

// Forwarder broadcasts one event to every registered pipeline.
type Forwarder struct {
	source    string
	pipelines []Pipeline
	log       *slog.Logger
}

// New builds a forwarder for one source over its startup-time pipeline
// set. The slice is not copied; callers must not mutate it afterwards.
func New(source string, pipelines []Pipeline, log *slog.Logger) *Forwarder {
	return &Forwarder{source: source, pipelines: pipelines, log: log}
}

// Forward delivers ev to each pipeline in registration order. A failing
// pipeline is logged and skipped; it never blocks or fails delivery to
// the others, and nothing is retried.
func (f *Forwarder) Forward(ctx context.Context, ev *event.Event) {
	for _, p := range f.pipelines {
		if err := p.Deliver(ctx, ev); err != nil {
			pipelineErrors.WithLabelValues(f.source, p.Name()).Inc()
			f.log.Error("pipeline delivery failed",
				"source", f.source,
				"pipeline", p.Name(),
				"event_id", ev.EventID,
				"error", err)
		}
	}
}

// Registry maps source names to their forwarders. Built once in main,
// immutable afterwards, safe for concurrent reads from pool workers.
type Registry map[string]*Forwarder

// Dispatch forwards the event for its owning source. The registry and
// the routes are built from the same configuration, so every enqueued
// source name resolves; anything else is dropped.
func (r Registry) Dispatch(ctx context.Context, source string, ev *event.Event) {
	if f, ok := r[source]; ok {
		f.Forward(ctx, ev)
	}
}
