// Package daemonrun builds every long-lived service from configuration and
// runs the daemon until the process is signalled.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"ingestor/internal/config"
	"ingestor/internal/crawl"
	"ingestor/internal/daemon"
	"ingestor/internal/deps"
	"ingestor/internal/events"
	"ingestor/internal/extract"
	"ingestor/internal/gate"
	"ingestor/internal/inbox"
	"ingestor/internal/knowledge"
	"ingestor/internal/logging"
	"ingestor/internal/preflight"
	"ingestor/internal/registry"
	"ingestor/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the ingestor daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logPath := filepath.Join(cfg.Paths.LogDir, "ingestor.log")
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logPreflight(signalCtx, logger, cfg)

	pidPath := filepath.Join(cfg.Paths.DataDir, "ingestor.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := knowledge.Open(cfg)
	if err != nil {
		logger.Error("open knowledge store", logging.Error(err))
		return err
	}

	hub := events.NewHub(cfg.Engine.EventBuffer, logger)
	var natsSink *events.NATSSink
	if cfg.NATS.URL != "" {
		natsSink, err = events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			logging.WarnWithContext(logger, "nats unavailable; events stay local", "nats_connect_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check nats.url or unset it"),
				logging.String(logging.FieldImpact, "watch --nats subscribers receive nothing"),
			)
		} else {
			defer natsSink.Close()
			forwarder := events.NewForwarder(natsSink, cfg.Engine.EventBuffer, logger)
			defer forwarder.Close()
			hub.AddSink(forwarder)
		}
	}

	crawler := crawl.New(cfg, store, store,
		crawl.WithCodeStore(store),
		crawl.WithLogger(logger),
	)
	mgr := workflow.NewManager(cfg,
		gate.New(cfg.Engine.MaxConcurrent),
		registry.New(
			registry.WithGrace(cfg.CancelGrace()),
			registry.WithObserver(registryObserver(logger)),
		),
		hub,
		workflow.Collaborators{
			Extractor: extract.New(),
			Storer:    store,
			Registrar: store,
			Crawler:   crawler,
		},
		logger,
	)

	daemonOpts := []daemon.Option{daemon.WithNATS(natsSink != nil)}
	if cfg.Inbox.Enabled {
		daemonOpts = append(daemonOpts, daemon.WithInbox(inbox.New(cfg, mgr, logger)))
	}
	d, err := daemon.New(cfg, store, hub, mgr, logger, daemonOpts...)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the api bind address and that no other daemon holds the lock"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("ingestor daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func registryObserver(logger *slog.Logger) registry.Observer {
	return func(op registry.Op, id string) {
		logger.Debug("registry mutation",
			logging.String(logging.FieldComponent, "registry"),
			logging.String("op", string(op)),
			logging.String(logging.FieldJobID, id),
		)
	}
}

func logPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	results := preflight.RunAll(ctx, cfg)
	for _, failed := range preflight.Failed(results) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", failed.Name),
			logging.String("detail", failed.Detail),
		)
	}
	binaries := deps.CheckBinaries(deps.Requirements())
	for _, status := range binaries {
		if status.Available {
			continue
		}
		logging.WarnWithContext(logger, "optional dependency missing", "dependency_missing",
			logging.String("dependency", status.Name),
			logging.String("detail", status.Detail),
			logging.String(logging.FieldImpact, status.Description+" is unavailable"),
		)
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Int("preflight_checks", len(results)),
		logging.Int("binaries_missing", len(deps.Unavailable(binaries))),
		logging.Bool("nats_configured", cfg.NATS.URL != ""),
		logging.Bool("ntfy_configured", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("inbox_enabled", cfg.Inbox.Enabled),
	)
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
