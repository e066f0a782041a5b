package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Engine contains job orchestration settings.
type Engine struct {
	MaxConcurrent      int `toml:"max_concurrent"`
	CancelGraceSeconds int `toml:"cancel_grace_seconds"`
	SubscribeDelayMS   int `toml:"subscribe_delay_ms"`
	RetentionMinutes   int `toml:"retention_minutes"`
	EventBuffer        int `toml:"event_buffer"`
	ProgressPerSecond  int `toml:"progress_per_second"`
}

// Limits bounds what a single submission may carry.
type Limits struct {
	MaxFiles            int      `toml:"max_files"`
	MaxFolderBytes      int64    `toml:"max_folder_bytes"`
	MaxDocumentBytes    int64    `toml:"max_document_bytes"`
	SupportedExtensions []string `toml:"supported_extensions"`
}

// Storage contains chunking settings for the knowledge store.
type Storage struct {
	ChunkSize    int `toml:"chunk_size"`
	ChunkOverlap int `toml:"chunk_overlap"`
	MinFreeMiB   int `toml:"min_free_mib"`
}

// Crawl contains HTTP fetch settings for crawl jobs.
type Crawl struct {
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
	MaxPages       int    `toml:"max_pages"`
}

// NATS contains optional progress event publishing settings.
type NATS struct {
	URL           string `toml:"url"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Completed      bool   `toml:"completed"`
	Cancelled      bool   `toml:"cancelled"`
	Errors         bool   `toml:"errors"`
}

// Inbox contains configuration for the drop-folder watcher.
type Inbox struct {
	Enabled       bool     `toml:"enabled"`
	Dir           string   `toml:"dir"`
	DebounceMS    int      `toml:"debounce_ms"`
	KnowledgeType string   `toml:"knowledge_type"`
	Tags          []string `toml:"tags"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the ingestor.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and API bind address
//   - Engine: concurrency, cancellation grace, retention
//   - Limits: folder and document submission limits
//   - Storage: knowledge store chunking
//   - Crawl: page fetch settings
//   - NATS: progress event publishing
//   - Notifications: ntfy push notification settings
//   - Inbox: drop-folder auto-ingestion
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Engine        Engine        `toml:"engine"`
	Limits        Limits        `toml:"limits"`
	Storage       Storage       `toml:"storage"`
	Crawl         Crawl         `toml:"crawl"`
	NATS          NATS          `toml:"nats"`
	Notifications Notifications `toml:"notifications"`
	Inbox         Inbox         `toml:"inbox"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file in the working directory is
// loaded first so environment fallbacks can come from it.
func Load(path string) (*Config, string, bool, error) {
	_ = godotenv.Load()

	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ingestor.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Inbox.Enabled {
		dirs = append(dirs, c.Inbox.Dir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the knowledge store location inside the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "knowledge.db")
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "ingestor.lock")
}

// CancelGrace returns how long a cancel request waits for a task to wind down.
func (c *Config) CancelGrace() time.Duration {
	return time.Duration(c.Engine.CancelGraceSeconds) * time.Second
}

// SubscribeDelay returns the pause between job acceptance and the first stage.
func (c *Config) SubscribeDelay() time.Duration {
	return time.Duration(c.Engine.SubscribeDelayMS) * time.Millisecond
}

// Retention returns how long terminal job snapshots remain queryable.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Engine.RetentionMinutes) * time.Minute
}

// CrawlTimeout returns the per-request timeout for page fetches.
func (c *Config) CrawlTimeout() time.Duration {
	return time.Duration(c.Crawl.TimeoutSeconds) * time.Second
}

// InboxDebounce returns the coalescing window for inbox file events.
func (c *Config) InboxDebounce() time.Duration {
	return time.Duration(c.Inbox.DebounceMS) * time.Millisecond
}

// SupportedExtension reports whether name carries an accepted file extension.
func (c *Config) SupportedExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	for _, allowed := range c.Limits.SupportedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
