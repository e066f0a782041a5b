package workflow

import (
	"context"
	"errors"
	"time"

	"ingestor/internal/logging"
)

// Start opens the manager for submissions and launches the retention sweep.
// Jobs run under a context derived from ctx, so cancelling it cancels them all.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.baseCtx = runCtx
	m.cancel = cancel
	m.running = true
	m.closing = false
	m.mu.Unlock()

	if retention := m.cfg.Retention(); retention > 0 {
		m.sweeper.Add(1)
		go m.sweepLoop(runCtx, retention)
	}

	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_started"),
		logging.Int("capacity", m.gate.Capacity()),
		logging.Duration("subscribe_delay", m.cfg.SubscribeDelay()),
		logging.Duration("retention", m.cfg.Retention()),
	)
	return nil
}

// Stop rejects new submissions, cancels every running job and waits for the
// job goroutines to finish or ctx to end.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	cancel := m.cancel
	m.closing = true
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	active := m.registry.Len()
	cancel()

	finished := make(chan struct{})
	go func() {
		m.tasks.Wait()
		m.sweeper.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		m.logger.Info("workflow stopped",
			logging.String(logging.FieldEventType, "workflow_stopped"),
			logging.Int("cancelled_jobs", active),
		)
		return nil
	case <-ctx.Done():
		logging.WarnWithContext(m.logger, "workflow stop timed out; jobs still winding down", "workflow_stop_timeout",
			logging.Int("registered_jobs", m.registry.Len()),
			logging.String(logging.FieldImpact, "remaining jobs end when their current call returns"),
		)
		return ctx.Err()
	}
}

func (m *Manager) sweepLoop(ctx context.Context, retention time.Duration) {
	defer m.sweeper.Done()
	interval := retention / 4
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.Sweep(m.now()); removed > 0 {
				m.logger.Debug("expired job snapshots removed", logging.Int("count", removed))
			}
		}
	}
}

// Sweep drops terminal jobs that finished longer than the retention period
// before now and returns how many were removed. Zero retention keeps every
// snapshot.
func (m *Manager) Sweep(now time.Time) int {
	retention := m.cfg.Retention()
	if retention <= 0 {
		return 0
	}
	cutoff := now.Add(-retention)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, rec := range m.records {
		snap := rec.Snapshot()
		if snap.IsTerminal() && snap.FinishedAt != nil && snap.FinishedAt.Before(cutoff) {
			delete(m.records, id)
			removed++
		}
	}
	return removed
}
