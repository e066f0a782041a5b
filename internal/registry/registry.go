// Package registry tracks the cancellable task handle of every live job.
//
// Entries are added by the orchestrator at acceptance and removed by the job's
// own task on exit. Cancel signals a task and waits a bounded grace period for
// it to settle; it never removes the entry itself, so the task's deferred
// Unregister stays the single removal point.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"ingestor/internal/services"
)

// DefaultGrace is how long Cancel waits for a task when no grace is configured.
const DefaultGrace = 2 * time.Second

// Handle is the cancellation target for one job task.
type Handle struct {
	Cancel context.CancelFunc
	// Done is closed once the task has finished its cleanup.
	Done <-chan struct{}
}

// Op names a registry mutation reported to observers.
type Op string

const (
	OpRegister   Op = "register"
	OpUnregister Op = "unregister"
	OpCancel     Op = "cancel"
)

// Observer receives registry mutations. It is called outside the lock.
type Observer func(op Op, id string)

// Option configures a Registry.
type Option func(*Registry)

// WithGrace overrides the cancel grace period.
func WithGrace(grace time.Duration) Option {
	return func(r *Registry) {
		if grace >= 0 {
			r.grace = grace
		}
	}
}

// WithObserver installs a mutation observer.
func WithObserver(observer Observer) Option {
	return func(r *Registry) {
		r.observer = observer
	}
}

// Registry maps job IDs to task handles. It is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	handles  map[string]Handle
	grace    time.Duration
	observer Observer
}

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		handles: make(map[string]Handle),
		grace:   DefaultGrace,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a handle. It fails with services.ErrDuplicateJob when id is
// already present.
func (r *Registry) Register(id string, handle Handle) error {
	r.mu.Lock()
	if _, exists := r.handles[id]; exists {
		r.mu.Unlock()
		return services.Wrap(services.ErrDuplicateJob, "registry", "register", "job "+id+" already registered", nil)
	}
	r.handles[id] = handle
	r.mu.Unlock()
	r.notify(OpRegister, id)
	return nil
}

// Lookup returns the handle registered for id.
func (r *Registry) Lookup(id string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handle, ok := r.handles[id]
	return handle, ok
}

// Cancel signals the task registered for id and waits up to the grace period,
// or until ctx ends, for it to settle. found reports whether id was registered;
// settled reports whether the task finished within the wait.
func (r *Registry) Cancel(ctx context.Context, id string) (found bool, settled bool) {
	handle, ok := r.Lookup(id)
	if !ok {
		return false, false
	}
	r.notify(OpCancel, id)
	if handle.Cancel != nil {
		handle.Cancel()
	}
	if handle.Done == nil {
		return true, false
	}

	timer := time.NewTimer(r.grace)
	defer timer.Stop()
	select {
	case <-handle.Done:
		return true, true
	case <-timer.C:
		return true, false
	case <-ctx.Done():
		return true, false
	}
}

// Unregister removes id. It is idempotent and reports whether an entry was
// removed.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	_, ok := r.handles[id]
	delete(r.handles, id)
	r.mu.Unlock()
	if ok {
		r.notify(OpUnregister, id)
	}
	return ok
}

// Len returns the number of registered jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// IDs returns the registered job IDs in lexical order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Grace returns the configured cancel grace period.
func (r *Registry) Grace() time.Duration {
	return r.grace
}

func (r *Registry) notify(op Op, id string) {
	if r.observer != nil {
		r.observer(op, id)
	}
}
