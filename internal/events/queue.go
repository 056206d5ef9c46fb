// Package events is the outbound side-effect queue. Publishers never
// block: when the buffer is full the event is dropped and counted. Sinks
// run on a single worker goroutine and their errors are logged, never
// returned to the publisher.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"autotrader/internal/logger"
	"autotrader/internal/metrics"
)

type Kind string

const (
	KindDecision Kind = "decision"
	KindTrade    Kind = "trade"
	KindRun      Kind = "run"
	KindLearning Kind = "learning"
	KindRisk     Kind = "risk"
	KindStop     Kind = "stop"
	KindReport   Kind = "report"
)

type Event struct {
	Kind    Kind      `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

type Sink interface {
	Handle(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

func (f SinkFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

type Queue struct {
	ch      chan Event
	sinks   []Sink
	dropped atomic.Int64
	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
}

func NewQueue(size int, sinks ...Sink) *Queue {
	if size <= 0 {
		size = 256
	}
	q := &Queue{
		ch:    make(chan Event, size),
		sinks: sinks,
		done:  make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	ctx := context.Background()
	for e := range q.ch {
		for _, s := range q.sinks {
			if err := s.Handle(ctx, e); err != nil {
				logger.Warn(ctx, "event sink failed", "kind", string(e.Kind), "error", err)
			}
		}
	}
}

// Publish enqueues without blocking and reports whether the event was
// accepted.
func (q *Queue) Publish(kind Kind, payload any) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.drop()
		return false
	}
	select {
	case q.ch <- Event{Kind: kind, At: time.Now().UTC(), Payload: payload}:
		return true
	default:
		q.drop()
		return false
	}
}

func (q *Queue) drop() {
	q.dropped.Add(1)
	metrics.EventsDropped.Inc()
}

func (q *Queue) Dropped() int64 {
	return q.dropped.Load()
}

// Close stops accepting events and waits for the buffer to drain or ctx
// to end.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()

	select {
	case <-q.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
