package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"ingestor/internal/logging"
)

// ErrQueueFull is returned by Forwarder.Publish when the queue has no room.
var ErrQueueFull = errors.New("event forwarder queue full")

// ErrForwarderClosed is returned by Forwarder.Publish after Close.
var ErrForwarderClosed = errors.New("event forwarder closed")

// Forwarder decouples a slow sink from publishers. Events are queued and
// delivered to the wrapped sink in publish order by a single goroutine; when
// the queue is full the event is dropped for that sink only.
type Forwarder struct {
	sink    Sink
	queue   chan Event
	done    chan struct{}
	logger  *slog.Logger
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewForwarder starts a forwarder delivering to sink with room for size
// queued events.
func NewForwarder(sink Sink, size int, logger *slog.Logger) *Forwarder {
	if size <= 0 {
		size = DefaultCapacity
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	f := &Forwarder{
		sink:   sink,
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
		logger: logger.With(logging.String(logging.FieldComponent, "event-forwarder")),
	}
	go f.run()
	return f
}

// Publish queues evt without blocking.
func (f *Forwarder) Publish(_ context.Context, evt Event) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return ErrForwarderClosed
	}
	select {
	case f.queue <- evt:
		return nil
	default:
		f.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped reports how many events were discarded because the queue was full.
func (f *Forwarder) Dropped() uint64 {
	return f.dropped.Load()
}

// Close stops accepting events and waits until the queued ones are delivered.
func (f *Forwarder) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		<-f.done
		return
	}
	f.closed = true
	close(f.queue)
	f.mu.Unlock()
	<-f.done
}

func (f *Forwarder) run() {
	defer close(f.done)
	for evt := range f.queue {
		if err := f.sink.Publish(context.Background(), evt); err != nil {
			f.logger.Debug("forwarded publish failed",
				logging.String(logging.FieldJobID, evt.JobID),
				logging.String(logging.FieldEventType, string(evt.Type)),
				logging.Error(err),
			)
		}
	}
}
