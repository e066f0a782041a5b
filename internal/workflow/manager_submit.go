package workflow

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"ingestor/internal/events"
	"ingestor/internal/jobs"
	"ingestor/internal/logging"
	"ingestor/internal/registry"
	"ingestor/internal/services"
)

// Submit validates spec, records the job in starting, registers its handle
// and spawns its task. It returns as soon as the job is accepted; it never
// waits on the concurrency gate.
func (m *Manager) Submit(ctx context.Context, spec jobs.Spec) (Accepted, error) {
	normalized, report, err := spec.Validate(m.limits())
	if err != nil {
		m.logger.Info("job rejected",
			logging.String(logging.FieldEventType, "job_rejected"),
			logging.String(logging.FieldKind, string(spec.Kind)),
			logging.String("reason", services.DisplayMessage(err)),
		)
		return Accepted{}, err
	}

	now := m.now()
	id := uuid.NewString()
	accepted := Accepted{JobID: id, SourceID: sourceIDFor(normalized, now)}
	if normalized.Kind == jobs.KindFolder {
		accepted.FileCount = report.Accepted
		accepted.Filtered = report.Filtered
	}

	job := jobs.Job{
		ID:          id,
		Kind:        normalized.Kind,
		Status:      jobs.StatusStarting,
		CurrentItem: normalized.Target(),
		Title:       normalized.Title(),
		CreatedAt:   now,
	}
	if normalized.Kind == jobs.KindFolder {
		job.Total = report.Accepted
	}
	job.AppendLog(startingLine(normalized, report))
	rec := jobs.NewRecord(job)

	m.mu.Lock()
	if !m.running || m.closing {
		m.mu.Unlock()
		return Accepted{}, services.Wrap(services.ErrShuttingDown, "workflow", "submit", "job engine is not accepting work", nil)
	}
	taskCtx, cancel := context.WithCancel(m.baseCtx)
	done := make(chan struct{})
	if err := m.registry.Register(id, registry.Handle{Cancel: cancel, Done: done}); err != nil {
		m.mu.Unlock()
		cancel()
		return Accepted{}, err
	}
	m.records[id] = rec
	m.tasks.Add(1)
	m.mu.Unlock()

	taskCtx = withJobContext(taskCtx, job)
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		taskCtx = services.WithRequestID(taskCtx, requestID)
	}
	m.publish(taskCtx, events.FromJob(events.TypeProgress, rec.Snapshot(), job.LastLog()))
	m.jobLogger(taskCtx).Info("job accepted",
		logging.String(logging.FieldEventType, "job_accepted"),
		logging.String("title", job.Title),
		logging.String("source_id", accepted.SourceID),
		logging.Int("file_count", accepted.FileCount),
		logging.Int("filtered", accepted.Filtered),
	)

	go m.runJob(taskCtx, rec, normalized, accepted, cancel, done)
	return accepted, nil
}

// Cancel requests cancellation of id and waits up to the registry grace for
// the job to settle. It always succeeds: unknown, finished or repeatedly
// cancelled ids are no-ops apart from the stopping and stopped events.
func (m *Manager) Cancel(ctx context.Context, id string) error {
	snap, known := m.snapshot(id)
	logger := m.logger.With(logging.String(logging.FieldJobID, id))

	m.publish(ctx, m.controlEvent(id, snap, events.TypeStopping, "Stopping job..."))
	found, settled := m.registry.Cancel(ctx, id)
	m.publish(ctx, m.controlEvent(id, snap, events.TypeStopped, "Job stopped"))

	switch {
	case found && settled:
		logger.Info("job cancelled",
			logging.String(logging.FieldEventType, "job_cancel_settled"),
		)
	case found:
		logging.WarnWithContext(logger, "job did not settle within cancel grace", "job_cancel_unsettled",
			logging.Duration("grace", m.registry.Grace()),
			logging.String(logging.FieldErrorHint, "the job ends when its current collaborator call returns"),
			logging.String(logging.FieldImpact, "job may report progress briefly before its cancelled event"),
		)
	default:
		logger.Debug("cancel for job without a running task",
			logging.Bool("known", known),
		)
	}
	return nil
}

func (m *Manager) controlEvent(id string, snap jobs.Job, typ events.Type, line string) events.Event {
	return events.Event{
		JobID:       id,
		Type:        typ,
		Status:      snap.Status,
		Percentage:  jobs.CancelledPercentage,
		CurrentItem: snap.CurrentItem,
		Log:         line,
	}
}

func startingLine(spec jobs.Spec, report jobs.Report) string {
	switch spec.Kind {
	case jobs.KindCrawl:
		return "Starting crawl of " + spec.URL
	case jobs.KindDocument:
		return "Starting upload of " + spec.Document.Name
	case jobs.KindFolder:
		return fmt.Sprintf("Starting folder upload of %s (%d files)", spec.FolderName, report.Accepted)
	default:
		return "Starting job"
	}
}

func sourceIDFor(spec jobs.Spec, now time.Time) string {
	switch spec.Kind {
	case jobs.KindCrawl:
		if parsed, err := url.Parse(spec.URL); err == nil {
			return parsed.Hostname()
		}
		return spec.URL
	case jobs.KindDocument:
		return jobs.DocumentSourceID(spec.Document.Name, now)
	case jobs.KindFolder:
		return jobs.FolderSourceID(spec.FolderName, now)
	default:
		return ""
	}
}
