// Package ingest defines the collaborator contracts the job engine drives:
// text extraction, chunked storage, source registration and crawling.
//
// The workflow and batch packages depend only on these interfaces. Concrete
// implementations live in extract, knowledge and crawl.
package ingest

import (
	"context"

	"ingestor/internal/jobs"
)

// Extractor turns raw upload bytes into plain text. Failures wrap
// services.ErrExtraction.
type Extractor interface {
	Extract(content []byte, name, contentType string) (string, error)
}

// ProgressFunc receives storage progress as a local percentage (0-100) of one
// document's storage work.
type ProgressFunc func(percent float64, message string)

// StoreRequest is one document handed to a Storer.
type StoreRequest struct {
	SourceID      string
	Ref           string
	Title         string
	Text          string
	KnowledgeType string
	Tags          []string
}

// StoreStats reports what one storage call persisted.
type StoreStats struct {
	Chunks int
	Words  int
	Pages  int
}

// JobStats converts s into job-level stats bound to sourceID.
func (s StoreStats) JobStats(sourceID string) jobs.Stats {
	return jobs.Stats{
		ChunksStored:   s.Chunks,
		WordsProcessed: s.Words,
		Pages:          s.Pages,
		SourceID:       sourceID,
	}
}

// Storer chunks and persists documents. Failures wrap services.ErrStorage;
// cancellation is observed through ctx.
type Storer interface {
	StoreDocument(ctx context.Context, req StoreRequest, progress ProgressFunc) (StoreStats, error)
}

// SourceMetadata describes a content source registered before its documents.
type SourceMetadata struct {
	SourceType    string   `json:"source_type"`
	Title         string   `json:"title,omitempty"`
	KnowledgeType string   `json:"knowledge_type"`
	Tags          []string `json:"tags,omitempty"`
	FileCount     int      `json:"file_count,omitempty"`
	TotalSize     int64    `json:"total_size,omitempty"`
	FolderName    string   `json:"folder_name,omitempty"`
	URL           string   `json:"url,omitempty"`

	// Crawl settings, kept so a refresh can repeat the crawl.
	MaxDepth            int  `json:"max_depth,omitempty"`
	ExtractCodeExamples bool `json:"extract_code_examples,omitempty"`
}

// SourceRegistrar creates or replaces a source record.
type SourceRegistrar interface {
	RegisterSource(ctx context.Context, sourceID string, meta SourceMetadata) error
}

// CrawlRequest configures one crawl.
type CrawlRequest struct {
	URL                 string
	MaxDepth            int
	KnowledgeType       string
	Tags                []string
	ExtractCodeExamples bool
	SourceID            string
}

// StageReporter receives crawl progress as a stage name plus a local
// percentage within that stage.
type StageReporter interface {
	Stage(stage string, local float64, currentItem, message string)
}

// StageReporterFunc adapts a function to StageReporter.
type StageReporterFunc func(stage string, local float64, currentItem, message string)

// Stage calls f.
func (f StageReporterFunc) Stage(stage string, local float64, currentItem, message string) {
	f(stage, local, currentItem, message)
}

// Crawler fetches and stores a site.
type Crawler interface {
	Crawl(ctx context.Context, req CrawlRequest, reporter StageReporter) (StoreStats, error)
}
