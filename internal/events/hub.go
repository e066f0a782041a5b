package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ingestor/internal/logging"
)

// DefaultCapacity bounds the hub when no capacity is configured.
const DefaultCapacity = 512

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	sinks    []Sink
	logger   *slog.Logger
}

// NewHub constructs a bounded in-memory event buffer.
func NewHub(capacity int, logger *slog.Logger) *Hub {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &Hub{
		capacity: capacity,
		logger:   logger.With(logging.String(logging.FieldComponent, "event-hub")),
	}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *Hub) AddSink(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish assigns the next sequence number, buffers the event, and forwards
// it to every sink. Sink failures are logged and never returned.
func (h *Hub) Publish(ctx context.Context, evt Event) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	h.nextSeq++
	evt.Sequence = h.nextSeq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	sinks := append([]Sink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		if err := sink.Publish(ctx, evt); err != nil {
			h.logger.Debug("event sink publish failed",
				logging.String(logging.FieldJobID, evt.JobID),
				logging.String(logging.FieldEventType, string(evt.Type)),
				logging.Error(err),
			)
		}
	}
	return nil
}

// Fetch returns events for jobID (all jobs when empty) with a sequence
// greater than since, and the cursor to pass on the next call. When wait is
// true, Fetch blocks until at least one matching event is available or ctx
// ends.
func (h *Hub) Fetch(ctx context.Context, jobID string, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.mu.Lock()
				h.cond.Broadcast()
				h.mu.Unlock()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()

	for {
		events, next := h.snapshotLocked(jobID, since, limit)
		if len(events) > 0 || !wait {
			return events, next, contextError(ctx)
		}
		if err := contextError(ctx); err != nil {
			return nil, next, err
		}
		since = next
		h.cond.Wait()
		if err := contextError(ctx); err != nil {
			return nil, since, err
		}
	}
}

// Tail returns the most recent limit events for jobID without blocking.
func (h *Hub) Tail(jobID string, limit int) ([]Event, uint64) {
	if h == nil {
		return nil, 0
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	matched := make([]Event, 0, limit)
	for i := len(h.buffer) - 1; i >= 0 && len(matched) < limit; i-- {
		if jobID == "" || h.buffer[i].JobID == jobID {
			matched = append(matched, h.buffer[i])
		}
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched, h.nextSeq
}

// FirstSequence reports the smallest sequence number still buffered.
func (h *Hub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.buffer) == 0 {
		return h.nextSeq
	}
	return h.buffer[0].Sequence
}

func (h *Hub) snapshotLocked(jobID string, since uint64, limit int) ([]Event, uint64) {
	var out []Event
	for _, evt := range h.buffer {
		if evt.Sequence <= since {
			continue
		}
		if jobID != "" && evt.JobID != jobID {
			continue
		}
		out = append(out, evt)
		if len(out) == limit {
			return out, evt.Sequence
		}
	}
	return out, h.nextSeq
}

func contextError(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	return ctx.Err()
}
