package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ingestor/internal/config"
	"ingestor/internal/events"
	"ingestor/internal/gate"
	"ingestor/internal/jobs"
	"ingestor/internal/logging"
	"ingestor/internal/notifications"
	"ingestor/internal/registry"
)

// Manager accepts ingestion jobs and runs each one in its own goroutine.
type Manager struct {
	cfg      *config.Config
	logger   *slog.Logger
	gate     *gate.Gate
	registry *registry.Registry
	sink     events.Sink
	notifier notifications.Service
	collab   Collaborators
	now      func() time.Time

	mu       sync.RWMutex
	records  map[string]*jobs.Record
	running  bool
	closing  bool
	baseCtx  context.Context
	cancel   context.CancelFunc
	tasks    sync.WaitGroup
	sweeper  sync.WaitGroup
	lastErr  error
	lastDone *jobs.Job
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithNotifier overrides the notifier built from config.
func WithNotifier(notifier notifications.Service) ManagerOption {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithClock overrides the wall clock (used in tests).
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager constructs a workflow manager. The gate and registry are shared
// process-wide and injected by the daemon.
func NewManager(cfg *config.Config, g *gate.Gate, reg *registry.Registry, sink events.Sink, collab Collaborators, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if sink == nil {
		sink = events.Discard
	}
	m := &Manager{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "workflow-manager")),
		gate:     g,
		registry: reg,
		sink:     sink,
		notifier: notifications.NewService(cfg),
		collab:   collab,
		now:      func() time.Time { return time.Now().UTC() },
		records:  make(map[string]*jobs.Record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) limits() jobs.Limits {
	return jobs.Limits{
		MaxFiles:         m.cfg.Limits.MaxFiles,
		MaxFolderBytes:   m.cfg.Limits.MaxFolderBytes,
		MaxDocumentBytes: m.cfg.Limits.MaxDocumentBytes,
		Supported:        m.cfg.SupportedExtension,
	}
}
