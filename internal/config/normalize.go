package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLimits()
	c.normalizeCrawl()
	c.normalizeNATS()
	c.normalizeNotifications()
	if err := c.normalizeInbox(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("INGESTOR_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeLimits() {
	seen := make(map[string]struct{}, len(c.Limits.SupportedExtensions))
	exts := make([]string, 0, len(c.Limits.SupportedExtensions))
	for _, ext := range c.Limits.SupportedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		exts = append(exts, ext)
	}
	c.Limits.SupportedExtensions = exts
}

func (c *Config) normalizeCrawl() {
	c.Crawl.UserAgent = strings.TrimSpace(c.Crawl.UserAgent)
	if c.Crawl.UserAgent == "" {
		c.Crawl.UserAgent = defaultCrawlUserAgent
	}
}

func (c *Config) normalizeNATS() {
	c.NATS.URL = strings.TrimSpace(c.NATS.URL)
	if c.NATS.URL == "" {
		if value, ok := os.LookupEnv("INGESTOR_NATS_URL"); ok {
			c.NATS.URL = strings.TrimSpace(value)
		}
	}
	c.NATS.SubjectPrefix = strings.Trim(strings.TrimSpace(c.NATS.SubjectPrefix), ".")
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = defaultNATSSubjectPrefix
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("INGESTOR_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeInbox() error {
	if strings.TrimSpace(c.Inbox.Dir) == "" {
		c.Inbox.Dir = defaultInboxDir
	}
	var err error
	if c.Inbox.Dir, err = expandPath(c.Inbox.Dir); err != nil {
		return fmt.Errorf("inbox.dir: %w", err)
	}
	c.Inbox.KnowledgeType = strings.ToLower(strings.TrimSpace(c.Inbox.KnowledgeType))
	if c.Inbox.KnowledgeType == "" {
		c.Inbox.KnowledgeType = defaultInboxKnowledgeType
	}
	tags := c.Inbox.Tags[:0]
	for _, tag := range c.Inbox.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	c.Inbox.Tags = tags
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
