package workflow

import (
	"context"
	"fmt"

	"ingestor/internal/batch"
	"ingestor/internal/ingest"
	"ingestor/internal/jobs"
	"ingestor/internal/logging"
	"ingestor/internal/progress"
	"ingestor/internal/services"
)

func (m *Manager) runCrawl(ctx context.Context, rec *jobs.Record, spec jobs.Spec, accepted Accepted) (outcome, error) {
	if m.collab.Crawler == nil {
		return outcome{}, services.Wrap(services.ErrConfiguration, "workflow", "crawl", "no crawler configured", nil)
	}
	mapper := progress.New(jobs.KindCrawl)
	sampler := logging.NewProgressSampler(10)

	m.progress(ctx, rec, sampler, jobs.StatusProcessing, mapper.Map(progress.StageAnalyzing, 0), spec.URL,
		"Analyzing URL "+spec.URL)

	reporter := ingest.StageReporterFunc(func(stage string, local float64, currentItem, message string) {
		m.progress(ctx, rec, sampler, statusForStage(stage), mapper.Map(stage, local), currentItem, message)
	})
	stats, err := m.collab.Crawler.Crawl(ctx, ingest.CrawlRequest{
		URL:                 spec.URL,
		MaxDepth:            spec.MaxDepth,
		KnowledgeType:       spec.KnowledgeType,
		Tags:                spec.Tags,
		ExtractCodeExamples: spec.ExtractCodeExamples,
		SourceID:            accepted.SourceID,
	}, reporter)
	if err != nil {
		return outcome{}, err
	}

	m.progress(ctx, rec, sampler, jobs.StatusDocumentStorage, mapper.Map(progress.StageFinalization, 0), spec.URL,
		"Finalizing crawl...")
	return outcome{
		status: jobs.StatusCompleted,
		stats:  stats.JobStats(accepted.SourceID),
		line:   fmt.Sprintf("Crawling completed successfully! Stored %d chunks from %d pages.", stats.Chunks, stats.Pages),
	}, nil
}

func (m *Manager) runDocument(ctx context.Context, rec *jobs.Record, spec jobs.Spec, accepted Accepted) (outcome, error) {
	if m.collab.Extractor == nil || m.collab.Storer == nil {
		return outcome{}, services.Wrap(services.ErrConfiguration, "workflow", "document", "no extractor or storer configured", nil)
	}
	mapper := progress.New(jobs.KindDocument)
	sampler := logging.NewProgressSampler(10)
	doc := spec.Document
	ref := jobs.FileRef(doc.Name)

	m.progress(ctx, rec, sampler, jobs.StatusProcessing, mapper.Map(progress.StageProcessing, 50), ref,
		fmt.Sprintf("Reading %s...", doc.Name))

	text, err := m.collab.Extractor.Extract(doc.Content, doc.Name, doc.ContentType)
	if err != nil {
		if isCancellation(ctx, err) {
			return outcome{}, err
		}
		return failedOutcome("Failed to extract text: "+services.DisplayMessage(err), nil), nil
	}
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}
	if err := m.ensureStorageSpace(); err != nil {
		return outcome{}, err
	}

	m.registerSource(ctx, accepted.SourceID, ingest.SourceMetadata{
		SourceType:    "file",
		Title:         doc.Name,
		KnowledgeType: spec.KnowledgeType,
		Tags:          spec.Tags,
		FileCount:     1,
		TotalSize:     doc.Size(),
	})

	stats, err := m.collab.Storer.StoreDocument(ctx, ingest.StoreRequest{
		SourceID:      accepted.SourceID,
		Ref:           ref,
		Title:         doc.Name,
		Text:          text,
		KnowledgeType: spec.KnowledgeType,
		Tags:          spec.Tags,
	}, func(percent float64, message string) {
		m.progress(ctx, rec, sampler, jobs.StatusDocumentStorage, mapper.Map(progress.StageDocumentStorage, percent), ref, message)
	})
	if err != nil {
		return outcome{}, err
	}

	m.progress(ctx, rec, sampler, jobs.StatusDocumentStorage, mapper.Map(progress.StageFinalization, 0), ref,
		"Finalizing document upload...")
	return outcome{
		status: jobs.StatusCompleted,
		stats:  stats.JobStats(accepted.SourceID),
		line:   "Document upload completed successfully!",
	}, nil
}

func (m *Manager) runFolder(ctx context.Context, rec *jobs.Record, spec jobs.Spec, accepted Accepted) (outcome, error) {
	if m.collab.Extractor == nil || m.collab.Storer == nil {
		return outcome{}, services.Wrap(services.ErrConfiguration, "workflow", "folder", "no extractor or storer configured", nil)
	}
	mapper := progress.New(jobs.KindFolder)
	sampler := logging.NewProgressSampler(10)
	folderRef := jobs.FolderRef(spec.FolderName)
	items := batch.ItemsFromFiles(spec.Files)
	total := len(items)

	m.progressCounts(ctx, rec, sampler, jobs.StatusProcessing, mapper.Map(progress.StageProcessing, 0), folderRef,
		fmt.Sprintf("Initializing folder upload for %d files...", total), 0, total)

	var totalSize int64
	for _, item := range items {
		totalSize += item.Size
	}
	m.registerSource(ctx, accepted.SourceID, ingest.SourceMetadata{
		SourceType:    "folder",
		Title:         spec.FolderName,
		KnowledgeType: spec.KnowledgeType,
		Tags:          spec.Tags,
		FileCount:     total,
		TotalSize:     totalSize,
		FolderName:    spec.FolderName,
	})
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}
	if err := m.ensureStorageSpace(); err != nil {
		return outcome{}, err
	}
	m.progressCounts(ctx, rec, sampler, jobs.StatusProcessing, mapper.Map(progress.StageProcessing, 100), folderRef,
		fmt.Sprintf("Registered source %s", accepted.SourceID), 0, total)

	band, _ := mapper.Band(progress.StageDocumentStorage)
	processor := batch.New(m.collab.Extractor, m.collab.Storer, batch.Options{
		Folder:            spec.FolderName,
		KnowledgeType:     spec.KnowledgeType,
		Tags:              spec.Tags,
		Band:              band,
		ProgressPerSecond: m.cfg.Engine.ProgressPerSecond,
		Logger:            m.jobLogger(ctx),
		Report: func(u batch.Update) {
			m.progressCounts(ctx, rec, sampler, u.Status, mapper.Clamp(u.Overall), u.CurrentItem, u.Line, u.Processed, u.Total)
		},
	})
	result, err := processor.Run(ctx, items, accepted.SourceID)
	if err != nil {
		return outcome{failed: result.Failed}, err
	}

	status, line := result.Classify()
	m.progressCounts(ctx, rec, sampler, jobs.StatusDocumentStorage, mapper.Map(progress.StageFinalization, 0), folderRef,
		"Finalizing folder upload...", result.Succeeded, total)
	if status == jobs.StatusError {
		out := failedOutcome(line, result.Failed)
		out.processed, out.total = result.Succeeded, total
		return out, nil
	}
	return outcome{
		status:    status,
		stats:     result.Stats,
		failed:    result.Failed,
		line:      line,
		processed: result.Succeeded,
		total:     total,
	}, nil
}

// registerSource records the source ahead of its documents. Failure is only
// a warning; storage creates a bare source when none exists.
func (m *Manager) registerSource(ctx context.Context, sourceID string, meta ingest.SourceMetadata) {
	if m.collab.Registrar == nil {
		return
	}
	if err := m.collab.Registrar.RegisterSource(ctx, sourceID, meta); err != nil {
		logging.WarnWithContext(m.jobLogger(ctx), "source registration failed", "source_register_failed",
			logging.String("source_id", sourceID),
			logging.String(logging.FieldErrorHint, "check knowledge store access"),
			logging.String(logging.FieldImpact, "source metadata will be incomplete"),
			logging.Error(err),
		)
	}
}

func statusForStage(stage string) jobs.Status {
	switch stage {
	case progress.StageDocumentStorage, progress.StageCodeExtraction, progress.StageFinalization:
		return jobs.StatusDocumentStorage
	default:
		return jobs.StatusProcessing
	}
}
