package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ingestor/internal/config"
	"ingestor/internal/fileutil"
	"ingestor/internal/jobs"
	"ingestor/internal/logging"
	"ingestor/internal/services"
	"ingestor/internal/workflow"
)

const (
	processedDir = "processed"
	failedDir    = "failed"
	inboxTag     = "inbox"
	minTick      = 10 * time.Millisecond
)

// Submitter accepts document jobs.
type Submitter interface {
	Submit(ctx context.Context, spec jobs.Spec) (workflow.Accepted, error)
}

// Watcher submits files dropped into the inbox directory.
type Watcher struct {
	cfg       *config.Config
	submitter Submitter
	logger    *slog.Logger
	dir       string
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

// New constructs a watcher for cfg.Inbox.Dir.
func New(cfg *config.Config, submitter Submitter, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Watcher{
		cfg:       cfg,
		submitter: submitter,
		logger:    logging.NewComponentLogger(logger, "inbox"),
		dir:       cfg.Inbox.Dir,
		debounce:  cfg.InboxDebounce(),
		pending:   make(map[string]time.Time),
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run watches the inbox until ctx is cancelled. Files already present are
// queued before the first event is read.
func (w *Watcher) Run(ctx context.Context) error {
	for _, dir := range []string{w.dir, filepath.Join(w.dir, processedDir), filepath.Join(w.dir, failedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return services.Wrap(services.ErrConfiguration, "inbox", "create directories", "cannot create inbox directory", err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "inbox", "start watcher", "cannot start file watcher", err)
	}
	defer fsw.Close()
	if err := fsw.Add(w.dir); err != nil {
		return services.Wrap(services.ErrConfiguration, "inbox", "watch directory", "cannot watch "+w.dir, err)
	}

	if err := w.scan(); err != nil {
		logging.WarnWithContext(w.logger, "initial inbox scan failed", "inbox_scan_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "existing files are picked up on their next change"),
		)
	}

	w.logger.Info("inbox watcher started",
		logging.String(logging.FieldEventType, "inbox_started"),
		logging.String("dir", w.dir),
		logging.Duration("debounce", w.debounce),
	)

	ticker := time.NewTicker(max(w.debounce/2, minTick))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("inbox watcher stopped", logging.String(logging.FieldEventType, "inbox_stopped"))
			return nil
		case evt, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			w.touch(evt.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "inbox_watch_error",
				logging.Error(err),
			)
		case now := <-ticker.C:
			for _, path := range w.due(now) {
				w.process(ctx, path)
			}
		}
	}
}

func (w *Watcher) scan() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.touch(filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

func (w *Watcher) touch(path string) {
	if filepath.Dir(path) != filepath.Clean(w.dir) || ignored(filepath.Base(path)) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

// due removes and returns the paths whose last event is older than the
// debounce window.
func (w *Watcher) due(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	var ready []string
	for path, seen := range w.pending {
		if now.Sub(seen) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

func (w *Watcher) process(ctx context.Context, path string) {
	name := filepath.Base(path)
	logger := w.logger.With(logging.String(logging.FieldCurrentItem, name))

	info, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Debug("inbox file not readable", logging.Error(err))
		}
		return
	}
	if !info.Mode().IsRegular() {
		return
	}
	if !w.cfg.SupportedExtension(name) {
		logger.Debug("ignoring unsupported inbox file")
		return
	}
	if limit := w.cfg.Limits.MaxDocumentBytes; limit > 0 && info.Size() > limit {
		w.reject(logger, path, fmt.Errorf("%d bytes exceeds document limit of %d bytes", info.Size(), limit))
		return
	}

	content, err := os.ReadFile(path)
	if err != nil {
		logging.WarnWithContext(logger, "read inbox file failed", "inbox_read_failed",
			logging.Error(err),
		)
		return
	}

	accepted, err := w.submitter.Submit(ctx, w.specFor(name, content))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrValidation):
		w.reject(logger, path, err)
		return
	case errors.Is(err, services.ErrShuttingDown):
		logger.Info("inbox file left for next run",
			logging.String(logging.FieldEventType, "inbox_deferred"),
		)
		return
	default:
		logging.ErrorWithContext(logger, "inbox submission failed", "inbox_submit_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "file stays in the inbox until it changes again"),
		)
		return
	}

	dst := fileutil.UniquePath(filepath.Join(w.dir, processedDir), accepted.JobID+"-"+name)
	if err := fileutil.MoveFile(path, dst); err != nil {
		logging.ErrorWithContext(logger, "archive inbox file failed", "inbox_archive_failed",
			logging.Error(err),
			logging.String(logging.FieldJobID, accepted.JobID),
			logging.String(logging.FieldErrorHint, "remove the file manually to avoid a duplicate submission"),
		)
		return
	}
	logger.Info("inbox file submitted",
		logging.String(logging.FieldEventType, "inbox_submitted"),
		logging.String(logging.FieldJobID, accepted.JobID),
		logging.String("source_id", accepted.SourceID),
		logging.Int64("size_bytes", info.Size()),
	)
}

func (w *Watcher) reject(logger *slog.Logger, path string, cause error) {
	dst := fileutil.UniquePath(filepath.Join(w.dir, failedDir), filepath.Base(path))
	if err := fileutil.MoveFile(path, dst); err != nil {
		logging.ErrorWithContext(logger, "move rejected inbox file failed", "inbox_archive_failed",
			logging.Error(err),
		)
		return
	}
	logging.WarnWithContext(logger, "inbox file rejected", "inbox_rejected",
		logging.String("reason", services.DisplayMessage(cause)),
		logging.String("moved_to", dst),
	)
}

func (w *Watcher) specFor(name string, content []byte) jobs.Spec {
	tags := make([]string, 0, len(w.cfg.Inbox.Tags)+1)
	tags = append(tags, w.cfg.Inbox.Tags...)
	tags = append(tags, inboxTag)
	return jobs.Spec{
		Kind:          jobs.KindDocument,
		KnowledgeType: w.cfg.Inbox.KnowledgeType,
		Tags:          tags,
		Document: jobs.File{
			Name:        name,
			ContentType: contentType(name),
			Content:     content,
		},
	}
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "text/plain"
}

func ignored(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return true
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".part", ".tmp", ".crdownload", ".swp":
		return true
	}
	return false
}
