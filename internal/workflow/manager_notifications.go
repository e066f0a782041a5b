package workflow

import (
	"context"
	"errors"
	"time"

	"ingestor/internal/jobs"
	"ingestor/internal/logging"
	"ingestor/internal/notifications"
)

const notifyTimeout = 15 * time.Second

func (m *Manager) notifyTerminal(ctx context.Context, job jobs.Job) {
	if m.notifier == nil {
		return
	}
	var (
		event   notifications.Event
		payload = notifications.Payload{
			"title": job.Title,
			"kind":  string(job.Kind),
		}
	)
	switch job.Status {
	case jobs.StatusCompleted:
		event = notifications.EventJobCompleted
		payload["chunks"] = job.Stats.ChunksStored
		if job.FinishedAt != nil {
			payload["duration"] = job.FinishedAt.Sub(job.CreatedAt)
		}
	case jobs.StatusCompletedWithWarnings:
		event = notifications.EventJobCompletedWithWarnings
		payload["processed"] = job.Processed
		payload["total"] = job.Total
		payload["failed"] = len(job.FailedItems)
	case jobs.StatusCancelled:
		event = notifications.EventJobCancelled
	case jobs.StatusError:
		event = notifications.EventError
		payload["context"] = string(job.Kind) + " " + job.Title
		payload["error"] = job.Error
	default:
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := m.notifier.Publish(notifyCtx, event, payload); err != nil {
		logger := m.jobLogger(ctx)
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send job notification")
		} else {
			logger.Debug("job notification failed", logging.Error(err))
		}
	}
}
