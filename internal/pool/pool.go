// Package pool implements the partitioned processing pool: a fixed set
// of workers, each owning one bounded FIFO queue. An item's partition
// key hashes to exactly one worker, so all items sharing a key are
// processed by a single goroutine in submission order while distinct
// keys proceed in parallel.
package pool

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"clickpipe/internal/domain/event"
)

var (
	// ErrQueueFull is returned when the target partition queue stayed
	// full for the whole enqueue wait.
	ErrQueueFull = errors.New("partition queue full")
	// ErrClosed is returned once shutdown has begun.
	ErrClosed = errors.New("pool closed")
)

// drainGrace bounds how long a timed-out Shutdown waits for workers to
// discard their remaining items before reporting an approximate count.
const drainGrace = time.Second

// Item binds an event to the source that accepted it, so the sink can
// route it to the right set of downstream pipelines.
type Item struct {
	Source string
	Event  *event.Event
}

// Sink consumes drained items. Invocations for one partition key are
// strictly sequential; invocations for different keys run concurrently.
type Sink func(item Item)

// Pool routes items to workers by partition key.
type Pool struct {
	queues   []chan Item
	sink     Sink
	wait     time.Duration
	log      *slog.Logger
	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	draining atomic.Bool
	lost     atomic.Int64
}

// Config sizes the pool. Workers and Capacity must be positive.
// EnqueueWait bounds how long a producer blocks on a full queue before
// the item is rejected; zero means reject immediately.
type Config struct {
	Workers     int
	Capacity    int
	EnqueueWait time.Duration
}

// New starts the pool's workers. The sink is invoked once per item on
// the owning worker's goroutine.
func New(cfg Config, sink Sink, log *slog.Logger) *Pool {
	p := &Pool{
		queues: make([]chan Item, cfg.Workers),
		sink:   sink,
		wait:   cfg.EnqueueWait,
		log:    log,
	}
	for i := range p.queues {
		p.queues[i] = make(chan Item, cfg.Capacity)
		p.wg.Add(1)
		go p.work(i)
	}
	return p
}

func (p *Pool) work(index int) {
	defer p.wg.Done()
	for item := range p.queues[index] {
		// Once the drain deadline has passed, remaining items are
		// discarded and counted instead of processed.
		if p.draining.Load() {
			p.lost.Add(1)
			continue
		}
		p.sink(item)
	}
}

// partition maps a key to its worker index. fnv-1a is stable for the
// process lifetime, which is what pins a key to one queue.
func (p *Pool) partition(key string) int {
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.queues)))
}

// Enqueue hands an item to the worker owning the partition key. When
// the queue is full it waits at most the configured bound, then fails
// with ErrQueueFull; the item is never silently dropped nor the caller
// blocked indefinitely.
func (p *Pool) Enqueue(key string, item Item) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}

	q := p.queues[p.partition(key)]
	select {
	case q <- item:
		return nil
	default:
	}
	if p.wait <= 0 {
		return ErrQueueFull
	}

	timer := time.NewTimer(p.wait)
	defer timer.Stop()
	select {
	case q <- item:
		return nil
	case <-timer.C:
		return ErrQueueFull
	}
}

// Shutdown stops intake and drains every queue. It returns once all
// workers have finished or ctx expires; on expiry the remaining items
// are counted and logged as lost.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for _, q := range p.queues {
		close(q)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// Flip the workers into discard mode so remaining items are
		// counted instead of processed, then give them a moment to
		// run off the closed queues. Only an item stuck inside the
		// sink can hold a worker past that.
		p.draining.Store(true)
		grace := time.NewTimer(drainGrace)
		defer grace.Stop()
		select {
		case <-done:
			p.log.Error("pool shutdown timed out", "undrained_items", p.lost.Load())
		case <-grace.C:
			lost := p.lost.Load()
			for _, q := range p.queues {
				lost += int64(len(q))
			}
			p.log.Error("pool shutdown timed out with workers stuck",
				"undrained_items_approx", lost)
		}
		return ctx.Err()
	}
}
