// Package events carries job progress notifications from the orchestrator to
// subscribers.
//
// Every job publishes an ordered stream of Events. The Hub keeps a bounded
// in-memory window of recent events for long-polling HTTP and CLI clients and
// forwards each event to any additional Sink (for example NATS). Delivery is
// best effort: a full buffer drops the oldest events and a failing sink never
// blocks the job that published.
package events

import (
	"context"
	"time"

	"ingestor/internal/jobs"
)

// Type names the kind of event.
type Type string

const (
	TypeProgress  Type = "progress"
	TypeCompleted Type = "completed"
	TypeError     Type = "error"
	TypeCancelled Type = "cancelled"
	TypeStopping  Type = "stopping"
	TypeStopped   Type = "stopped"
)

// IsTerminal reports whether the event closes a job's stream.
func (t Type) IsTerminal() bool {
	switch t {
	case TypeCompleted, TypeError, TypeCancelled:
		return true
	default:
		return false
	}
}

// Event is one progress notification for a job.
type Event struct {
	Sequence    uint64            `json:"seq"`
	JobID       string            `json:"job_id"`
	Type        Type              `json:"type"`
	Status      jobs.Status       `json:"status"`
	Percentage  int               `json:"percentage"`
	CurrentItem string            `json:"current_item,omitempty"`
	Log         string            `json:"log,omitempty"`
	Processed   int               `json:"processed,omitempty"`
	Total       int               `json:"total,omitempty"`
	Stats       *jobs.Stats       `json:"stats,omitempty"`
	FailedItems []jobs.FailedItem `json:"failed_items,omitempty"`
	Error       string            `json:"error,omitempty"`
	Timestamp   time.Time         `json:"ts"`
}

// FromJob builds an event of the given type from a job snapshot. Stats are
// attached only on terminal events.
func FromJob(t Type, job jobs.Job, line string) Event {
	evt := Event{
		JobID:       job.ID,
		Type:        t,
		Status:      job.Status,
		Percentage:  job.Percentage,
		CurrentItem: job.CurrentItem,
		Log:         line,
		Processed:   job.Processed,
		Total:       job.Total,
		Error:       job.Error,
	}
	if t.IsTerminal() {
		stats := job.Stats
		evt.Stats = &stats
		if len(job.FailedItems) > 0 {
			evt.FailedItems = append([]jobs.FailedItem(nil), job.FailedItems...)
		}
	}
	return evt
}

// Sink receives published events. Publish runs on the publishing job's
// goroutine, so a sink that can block on I/O belongs behind a Forwarder.
type Sink interface {
	Publish(ctx context.Context, evt Event) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, evt Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Discard is a Sink that drops every event.
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
