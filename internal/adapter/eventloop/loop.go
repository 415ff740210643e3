// Package eventloop runs lifecycle handlers one at a time, the way a
// companion host's script runtime does. Host adapters feed it from their
// transport read loops.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mephissto/simple-digital/internal/domain/lifecycle"
	"github.com/mephissto/simple-digital/internal/logger"
	"github.com/mephissto/simple-digital/internal/port/host"
)

// ErrStopped is returned by Run when it is called on a stopped loop.
var ErrStopped = errors.New("event loop stopped")

// Loop queues lifecycle events and dispatches them sequentially. It is safe
// for concurrent use.
type Loop struct {
	mu       sync.RWMutex
	handlers map[lifecycle.Name]host.Handler

	queue   chan lifecycle.Event
	stopped atomic.Bool
	dropped atomic.Int64
}

// New creates a Loop that buffers up to queueSize pending events.
func New(queueSize int) *Loop {
	if queueSize < 1 {
		queueSize = 1
	}
	return &Loop{
		handlers: make(map[lifecycle.Name]host.Handler),
		queue:    make(chan lifecycle.Event, queueSize),
	}
}

// Subscribe registers h for name, replacing any previous handler.
func (l *Loop) Subscribe(name lifecycle.Name, h host.Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[name] = h
}

// Post enqueues e for Run. It never blocks: when the queue is full or the
// loop has stopped the event is dropped and false is returned.
func (l *Loop) Post(e lifecycle.Event) bool {
	if l.stopped.Load() {
		l.dropped.Add(1)
		return false
	}
	select {
	case l.queue <- e:
		return true
	default:
		l.dropped.Add(1)
		slog.Warn("lifecycle event dropped, queue full", "event", e.Name)
		return false
	}
}

// Dispatch runs the handler for e on the calling goroutine and returns its
// error. Events nobody subscribed to are ignored.
func (l *Loop) Dispatch(ctx context.Context, e lifecycle.Event) (err error) {
	l.mu.RLock()
	h, ok := l.handlers[e.Name]
	l.mu.RUnlock()

	if !ok {
		slog.Debug("no handler for lifecycle event", "event", e.Name)
		return nil
	}

	if logger.EventID(ctx) == "" {
		ctx = logger.WithEventID(ctx, uuid.NewString())
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %s panicked: %v", e.Name, r)
		}
	}()

	return h(ctx, e)
}

// Run dispatches queued events until ctx is done. Handler errors are logged
// and never stop the loop. Events still queued at shutdown are discarded and
// counted as dropped.
func (l *Loop) Run(ctx context.Context) error {
	if l.stopped.Load() {
		return ErrStopped
	}

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
		case e := <-l.queue:
			evCtx := logger.WithEventID(ctx, uuid.NewString())
			if err := l.Dispatch(evCtx, e); err != nil {
				slog.Error("lifecycle handler failed",
					"event", e.Name,
					"event_id", logger.EventID(evCtx),
					"error", err,
				)
			}
		}
	}

	l.stopped.Store(true)
	if n := l.discard(); n > 0 {
		slog.Warn("lifecycle events discarded at shutdown", "count", n)
	}
	return ctx.Err()
}

// discard empties the queue without dispatching and returns how many events
// it removed.
func (l *Loop) discard() int {
	n := 0
	for {
		select {
		case <-l.queue:
			n++
			l.dropped.Add(1)
		default:
			return n
		}
	}
}

// Pending returns the number of queued events.
func (l *Loop) Pending() int {
	return len(l.queue)
}

// DroppedCount returns the number of events Post refused plus those discarded
// when Run stopped.
func (l *Loop) DroppedCount() int64 {
	return l.dropped.Load()
}
