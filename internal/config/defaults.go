package config

const (
	defaultConfigPath          = "~/.config/ingestor/config.toml"
	defaultDataDir             = "~/.local/share/ingestor"
	defaultLogDir              = "~/.local/share/ingestor/logs"
	defaultInboxDir            = "~/.local/share/ingestor/inbox"
	defaultAPIBind             = "127.0.0.1:7488"
	defaultMaxConcurrent       = 3
	defaultCancelGraceSeconds  = 2
	defaultSubscribeDelayMS    = 1000
	defaultRetentionMinutes    = 60
	defaultEventBuffer         = 256
	defaultProgressPerSecond   = 4
	defaultMaxFiles            = 100
	defaultMaxFolderBytes      = 10 * 1024 * 1024
	defaultMaxDocumentBytes    = 50 * 1024 * 1024
	defaultChunkSize           = 5000
	defaultChunkOverlap        = 200
	defaultMinFreeMiB          = 64
	defaultCrawlTimeoutSeconds = 30
	defaultCrawlUserAgent      = "ingestor/dev"
	defaultCrawlMaxPages       = 50
	defaultNATSSubjectPrefix   = "ingestor.jobs"
	defaultNotifyTimeout       = 10
	defaultInboxDebounceMS     = 500
	defaultInboxKnowledgeType  = "technical"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

var defaultSupportedExtensions = []string{
	".ts", ".tsx", ".js", ".jsx", ".py", ".java", ".cpp", ".c", ".h", ".go", ".rs", ".rb", ".php",
	".json", ".yaml", ".yml", ".xml", ".toml",
	".md", ".txt", ".rst", ".pdf",
	".env", ".ini", ".conf", ".config",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	exts := make([]string, len(defaultSupportedExtensions))
	copy(exts, defaultSupportedExtensions)
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Engine: Engine{
			MaxConcurrent:      defaultMaxConcurrent,
			CancelGraceSeconds: defaultCancelGraceSeconds,
			SubscribeDelayMS:   defaultSubscribeDelayMS,
			RetentionMinutes:   defaultRetentionMinutes,
			EventBuffer:        defaultEventBuffer,
			ProgressPerSecond:  defaultProgressPerSecond,
		},
		Limits: Limits{
			MaxFiles:            defaultMaxFiles,
			MaxFolderBytes:      defaultMaxFolderBytes,
			MaxDocumentBytes:    defaultMaxDocumentBytes,
			SupportedExtensions: exts,
		},
		Storage: Storage{
			ChunkSize:    defaultChunkSize,
			ChunkOverlap: defaultChunkOverlap,
			MinFreeMiB:   defaultMinFreeMiB,
		},
		Crawl: Crawl{
			TimeoutSeconds: defaultCrawlTimeoutSeconds,
			UserAgent:      defaultCrawlUserAgent,
			MaxPages:       defaultCrawlMaxPages,
		},
		NATS: NATS{
			SubjectPrefix: defaultNATSSubjectPrefix,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Completed:      true,
			Cancelled:      false,
			Errors:         true,
		},
		Inbox: Inbox{
			Dir:           defaultInboxDir,
			DebounceMS:    defaultInboxDebounceMS,
			KnowledgeType: defaultInboxKnowledgeType,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
