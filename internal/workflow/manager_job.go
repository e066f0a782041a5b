package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ingestor/internal/events"
	"ingestor/internal/jobs"
	"ingestor/internal/logging"
	"ingestor/internal/services"
)

// runJob is the body of one job goroutine. The deferred block is the only
// place a job reaches a terminal state, releases its permit and leaves the
// registry.
func (m *Manager) runJob(ctx context.Context, rec *jobs.Record, spec jobs.Spec, accepted Accepted, cancel context.CancelFunc, done chan struct{}) {
	defer m.tasks.Done()
	logger := m.jobLogger(ctx)

	var (
		acquired bool
		out      outcome
		runErr   error
	)
	defer func() {
		if r := recover(); r != nil {
			runErr = services.Wrap(services.ErrTransient, "workflow", "run job", "unexpected failure", fmt.Errorf("panic: %v", r))
			logging.ErrorWithContext(logger, "job panicked", "job_panic",
				logging.Any("panic", r),
				logging.String(logging.FieldErrorHint, "report this failure with the job log"),
			)
		}
		final, applied := m.finish(ctx, rec, out, runErr)
		if acquired {
			m.gate.Release()
		}
		m.registry.Unregister(final.ID)
		cancel()
		close(done)
		if applied {
			m.notifyTerminal(ctx, final)
		}
	}()

	if err := sleepContext(ctx, m.cfg.SubscribeDelay()); err != nil {
		runErr = err
		return
	}
	if err := m.gate.Acquire(ctx); err != nil {
		runErr = err
		return
	}
	acquired = true
	rec.Update(func(j *jobs.Job) { j.MarkStarted(m.now()) })
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_started"),
		logging.Int("in_flight", m.gate.InFlight()),
	)

	switch spec.Kind {
	case jobs.KindCrawl:
		out, runErr = m.runCrawl(ctx, rec, spec, accepted)
	case jobs.KindDocument:
		out, runErr = m.runDocument(ctx, rec, spec, accepted)
	case jobs.KindFolder:
		out, runErr = m.runFolder(ctx, rec, spec, accepted)
	default:
		runErr = services.Wrap(services.ErrValidation, "workflow", "run job", fmt.Sprintf("unknown job kind %q", spec.Kind), nil)
	}
}

// finish moves the record to its terminal state and publishes exactly one
// terminal event. applied is false when the job was already terminal.
func (m *Manager) finish(ctx context.Context, rec *jobs.Record, out outcome, runErr error) (jobs.Job, bool) {
	now := m.now()
	logger := m.jobLogger(ctx)
	var (
		applied bool
		typ     events.Type
	)
	var final jobs.Job
	switch {
	case runErr != nil && isCancellation(ctx, runErr):
		typ = events.TypeCancelled
		final = rec.Update(func(j *jobs.Job) {
			if len(out.failed) > 0 {
				j.FailedItems = append([]jobs.FailedItem(nil), out.failed...)
			}
			applied = j.Cancel(cancelledLine(j.Kind), now)
		})
	case runErr != nil:
		typ = events.TypeError
		final = rec.Update(func(j *jobs.Job) {
			applied = j.Fail(failureLine(j.Kind, runErr), out.failed, now)
		})
		attrs := append(logging.ErrorAttrs(runErr), logging.Error(runErr))
		logging.ErrorWithContext(logger, "job failed", "job_failed", attrs...)
		m.setLastError(runErr)
	case out.status == jobs.StatusError:
		typ = events.TypeError
		final = rec.Update(func(j *jobs.Job) {
			if out.total > 0 && !j.IsTerminal() {
				j.SetCounts(out.processed, out.total)
			}
			applied = j.Fail(out.line, out.failed, now)
		})
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String("error_message", out.line),
			logging.Int("failed_items", len(out.failed)),
		)
		m.setLastError(errors.New(out.line))
	default:
		typ = events.TypeCompleted
		status := out.status
		if !status.IsTerminal() {
			status = jobs.StatusCompleted
		}
		final = rec.Update(func(j *jobs.Job) {
			if out.total > 0 && !j.IsTerminal() {
				j.SetCounts(out.processed, out.total)
			}
			applied = j.Complete(status, out.stats, out.failed, out.line, now)
		})
	}
	if !applied {
		return final, false
	}

	m.publish(ctx, events.FromJob(typ, final, final.LastLog()))
	m.setLastDone(final)
	elapsed := time.Duration(0)
	if final.FinishedAt != nil {
		elapsed = final.FinishedAt.Sub(final.CreatedAt)
	}
	logger.Info("job finished",
		logging.String(logging.FieldEventType, "job_finished"),
		logging.String("status", string(final.Status)),
		logging.Int("chunks_stored", final.Stats.ChunksStored),
		logging.Int("failed_items", len(final.FailedItems)),
		logging.Duration("elapsed", elapsed),
	)
	return final, true
}

// progress applies a non-terminal transition and publishes it. Transitions on
// a terminal job are dropped.
func (m *Manager) progress(ctx context.Context, rec *jobs.Record, sampler *logging.ProgressSampler, status jobs.Status, percentage int, currentItem, line string) {
	m.progressCounts(ctx, rec, sampler, status, percentage, currentItem, line, -1, -1)
}

func (m *Manager) progressCounts(ctx context.Context, rec *jobs.Record, sampler *logging.ProgressSampler, status jobs.Status, percentage int, currentItem, line string, processed, total int) {
	var applied bool
	snap := rec.Update(func(j *jobs.Job) {
		applied = j.SetProgress(status, percentage, currentItem, line)
		if applied && processed >= 0 {
			j.SetCounts(processed, total)
		}
	})
	if !applied {
		return
	}
	m.publish(ctx, events.FromJob(events.TypeProgress, snap, line))
	if sampler.ShouldLog(snap.Percentage, string(snap.Status)) {
		m.jobLogger(ctx).Info("job progress",
			logging.String(logging.FieldEventType, "job_progress"),
			logging.String(logging.FieldStage, string(snap.Status)),
			logging.Int(logging.FieldProgressPercent, snap.Percentage),
			logging.String(logging.FieldProgressMessage, line),
			logging.String(logging.FieldCurrentItem, snap.CurrentItem),
		)
	}
}

// publish forwards evt to the sink under a context detached from job
// cancellation.
func (m *Manager) publish(ctx context.Context, evt events.Event) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.sink.Publish(context.WithoutCancel(ctx), evt); err != nil {
		m.logger.Debug("event publish failed",
			logging.String(logging.FieldJobID, evt.JobID),
			logging.String(logging.FieldEventType, string(evt.Type)),
			logging.Error(err),
		)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
