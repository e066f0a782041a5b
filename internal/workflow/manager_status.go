package workflow

import (
	"sort"

	"ingestor/internal/jobs"
	"ingestor/internal/services"
)

// StatusSummary represents lightweight engine diagnostics.
type StatusSummary struct {
	Running    bool                `json:"running"`
	InFlight   int                 `json:"in_flight"`
	Capacity   int                 `json:"capacity"`
	Peak       int                 `json:"peak"`
	Registered int                 `json:"registered"`
	Counts     map[jobs.Status]int `json:"counts"`
	LastError  string              `json:"last_error,omitempty"`
	LastJob    *jobs.Job           `json:"last_job,omitempty"`
}

// Status returns a snapshot of job id. Terminal jobs remain available until
// the retention sweep removes them.
func (m *Manager) Status(id string) (jobs.Job, error) {
	snap, ok := m.snapshot(id)
	if !ok {
		return jobs.Job{}, services.Wrap(services.ErrNotFound, "workflow", "status", "job "+id+" not found", nil)
	}
	return snap, nil
}

// List returns snapshots of every known job, newest first.
func (m *Manager) List() []jobs.Job {
	m.mu.RLock()
	out := make([]jobs.Job, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec.Snapshot())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Summary returns the latest engine information.
func (m *Manager) Summary() StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	var lastJob *jobs.Job
	if m.lastDone != nil {
		snap := m.lastDone.Clone()
		lastJob = &snap
	}
	records := make([]*jobs.Record, 0, len(m.records))
	for _, rec := range m.records {
		records = append(records, rec)
	}
	m.mu.RUnlock()

	counts := make(map[jobs.Status]int)
	for _, rec := range records {
		counts[rec.Snapshot().Status]++
	}
	summary := StatusSummary{
		Running:    running,
		InFlight:   m.gate.InFlight(),
		Capacity:   m.gate.Capacity(),
		Peak:       m.gate.Peak(),
		Registered: m.registry.Len(),
		Counts:     counts,
		LastJob:    lastJob,
	}
	if lastErr != nil {
		summary.LastError = services.DisplayMessage(lastErr)
	}
	return summary
}

func (m *Manager) snapshot(id string) (jobs.Job, bool) {
	m.mu.RLock()
	rec, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return jobs.Job{}, false
	}
	return rec.Snapshot(), true
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastDone(job jobs.Job) {
	m.mu.Lock()
	snap := job.Clone()
	m.lastDone = &snap
	m.mu.Unlock()
}
