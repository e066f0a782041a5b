package jobs

import "sync"

// Record guards a Job so the owning task can mutate it while API readers take
// snapshots.
type Record struct {
	mu  sync.RWMutex
	job Job
}

// NewRecord wraps job.
func NewRecord(job Job) *Record {
	return &Record{job: job}
}

// Update applies fn to the job under the write lock and returns a snapshot of
// the result.
func (r *Record) Update(fn func(*Job)) Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.job)
	return r.job.Clone()
}

// Snapshot returns a deep copy of the job.
func (r *Record) Snapshot() Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.job.Clone()
}
