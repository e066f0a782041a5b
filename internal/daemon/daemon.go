package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"ingestor/internal/config"
	"ingestor/internal/deps"
	"ingestor/internal/events"
	"ingestor/internal/inbox"
	"ingestor/internal/knowledge"
	"ingestor/internal/logging"
	"ingestor/internal/notifications"
	"ingestor/internal/preflight"
	"ingestor/internal/workflow"
)

const stopTimeout = 10 * time.Second

// Daemon owns the process-wide services and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *knowledge.Store
	hub      *events.Hub
	workflow *workflow.Manager
	inbox    *inbox.Watcher
	nats     bool

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	bg      sync.WaitGroup
	api     *apiServer
}

// Option configures optional daemon collaborators.
type Option func(*Daemon)

// WithInbox runs w alongside the workflow manager.
func WithInbox(w *inbox.Watcher) Option {
	return func(d *Daemon) {
		d.inbox = w
	}
}

// WithNATS records that events are also published to NATS.
func WithNATS(enabled bool) Option {
	return func(d *Daemon) {
		d.nats = enabled
	}
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Workflow     workflow.StatusSummary
	Knowledge    *knowledge.Totals
	DatabasePath string
	LockFilePath string
	InboxDir     string
	NATS         bool
	Checks       []preflight.Result
	Dependencies []deps.Status
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *knowledge.Store, hub *events.Hub, wf *workflow.Manager, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || hub == nil || wf == nil {
		return nil, errors.New("daemon requires config, knowledge store, event hub, and workflow manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		hub:      hub,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the daemon lock, opens the workflow manager for submissions,
// and launches the inbox watcher and API server.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another ingestor daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start workflow: %w", err)
	}

	api, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = api.start(runCtx)
	}
	if err != nil {
		cancel()
		_ = d.workflow.Stop(context.Background())
		_ = d.lock.Unlock()
		return err
	}
	d.api = api

	if d.inbox != nil {
		d.bg.Add(1)
		go func() {
			defer d.bg.Done()
			if err := d.inbox.Run(runCtx); err != nil {
				logging.ErrorWithContext(d.logger, "inbox watcher stopped with error", "inbox_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "dropped files are not ingested until restart"),
				)
			}
		}()
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("ingestor daemon started",
		logging.String(logging.FieldEventType, "daemon_started"),
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.Bool("inbox", d.inbox != nil),
		logging.Bool("nats", d.nats),
	)
	return nil
}

// Stop rejects new work, cancels running jobs, stops background services,
// and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.api.stop()
	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelStop()
	if err := d.workflow.Stop(stopCtx); err != nil {
		d.logger.Warn("workflow stop incomplete", logging.Error(err))
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.bg.Wait()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.api = nil
	d.running.Store(false)
	d.logger.Info("ingestor daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the bound API address once started.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.api.addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Workflow:     d.workflow.Summary(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		NATS:         d.nats,
		Checks:       preflight.RunAll(ctx, d.cfg),
		Dependencies: deps.CheckBinaries(deps.Requirements()),
	}
	if d.inbox != nil {
		status.InboxDir = d.inbox.Dir()
	}
	if totals, err := d.store.Totals(ctx); err == nil {
		status.Knowledge = &totals
	} else {
		d.logger.Warn("knowledge totals unavailable", logging.Error(err))
	}
	return status
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}
