package testsupport

import (
	"path/filepath"
	"testing"

	"ingestor/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The courtesy delay is disabled and the cancel grace shortened so engine
// tests run quickly; options override either.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.Inbox.Dir = filepath.Join(base, "inbox")
	cfgVal.Engine.SubscribeDelayMS = 0
	cfgVal.Engine.CancelGraceSeconds = 2
	cfgVal.Engine.ProgressPerSecond = 1000
	cfgVal.Storage.MinFreeMiB = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithCapacity sets the concurrency gate capacity.
func WithCapacity(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.MaxConcurrent = n
	}
}

// WithSubscribeDelay sets the courtesy delay in milliseconds.
func WithSubscribeDelay(ms int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.SubscribeDelayMS = ms
	}
}

// WithAPIToken enables bearer-token auth on the test config.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithInbox enables the inbox watcher with a short debounce.
func WithInbox() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Inbox.Enabled = true
		b.cfg.Inbox.DebounceMS = 20
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
