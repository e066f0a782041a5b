package config

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateLimits(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateNATS(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateEngine() error {
	if err := ensurePositiveMap(map[string]int{
		"engine.max_concurrent":         c.Engine.MaxConcurrent,
		"engine.event_buffer":           c.Engine.EventBuffer,
		"engine.progress_per_second":    c.Engine.ProgressPerSecond,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"crawl.timeout_seconds":         c.Crawl.TimeoutSeconds,
		"crawl.max_pages":               c.Crawl.MaxPages,
	}); err != nil {
		return err
	}
	if c.Engine.CancelGraceSeconds < 0 {
		return errors.New("engine.cancel_grace_seconds must be zero or positive")
	}
	if c.Engine.SubscribeDelayMS < 0 {
		return errors.New("engine.subscribe_delay_ms must be zero or positive")
	}
	if c.Engine.RetentionMinutes < 0 {
		return errors.New("engine.retention_minutes must be zero or positive")
	}
	if c.Inbox.DebounceMS < 0 {
		return errors.New("inbox.debounce_ms must be zero or positive")
	}
	return nil
}

func (c *Config) validateLimits() error {
	if c.Limits.MaxFiles <= 0 {
		return errors.New("limits.max_files must be positive")
	}
	if c.Limits.MaxFolderBytes <= 0 {
		return errors.New("limits.max_folder_bytes must be positive")
	}
	if c.Limits.MaxDocumentBytes <= 0 {
		return errors.New("limits.max_document_bytes must be positive")
	}
	if len(c.Limits.SupportedExtensions) == 0 {
		return errors.New("limits.supported_extensions must list at least one extension")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.ChunkSize <= 0 {
		return errors.New("storage.chunk_size must be positive")
	}
	if c.Storage.ChunkOverlap < 0 || c.Storage.ChunkOverlap >= c.Storage.ChunkSize {
		return errors.New("storage.chunk_overlap must be zero or positive and smaller than storage.chunk_size")
	}
	if c.Storage.MinFreeMiB < 0 {
		return errors.New("storage.min_free_mib must be zero or positive")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if c.NATS.URL == "" {
		return nil
	}
	parsed, err := url.Parse(c.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats.url: %w", err)
	}
	switch parsed.Scheme {
	case "nats", "tls", "ws", "wss":
		return nil
	default:
		return fmt.Errorf("nats.url: unsupported scheme %q", parsed.Scheme)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key, value := range values {
		if value <= 0 {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return fmt.Errorf("%s must be positive", strings.Join(keys, ", "))
}
