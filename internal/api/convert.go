package api

import (
	"sort"
	"time"

	"ingestor/internal/deps"
	"ingestor/internal/events"
	"ingestor/internal/jobs"
	"ingestor/internal/knowledge"
	"ingestor/internal/preflight"
	"ingestor/internal/workflow"
)

// FromJob converts a job snapshot to its API representation.
func FromJob(job jobs.Job) Job {
	dto := Job{
		ID:          job.ID,
		Kind:        string(job.Kind),
		Status:      string(job.Status),
		Terminal:    job.IsTerminal(),
		Percentage:  job.Percentage,
		CurrentItem: job.CurrentItem,
		Title:       job.Title,
		Processed:   job.Processed,
		Total:       job.Total,
		Log:         append([]string{}, job.Log...),
		FailedItems: fromFailedItems(job.FailedItems),
		Stats:       fromStats(job.Stats),
		Error:       job.Error,
		CreatedAt:   formatTime(job.CreatedAt),
	}
	if job.StartedAt != nil {
		dto.StartedAt = formatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = formatTime(*job.FinishedAt)
	}
	return dto
}

// FromJobs converts a slice of job snapshots into API DTOs.
func FromJobs(list []jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job))
	}
	return out
}

// FromEvent converts a published event.
func FromEvent(evt events.Event) Event {
	dto := Event{
		Sequence:    evt.Sequence,
		JobID:       evt.JobID,
		Type:        string(evt.Type),
		Status:      string(evt.Status),
		Percentage:  evt.Percentage,
		CurrentItem: evt.CurrentItem,
		Log:         evt.Log,
		Processed:   evt.Processed,
		Total:       evt.Total,
		FailedItems: fromFailedItems(evt.FailedItems),
		Error:       evt.Error,
		Timestamp:   formatTime(evt.Timestamp),
	}
	if evt.Stats != nil {
		stats := fromStats(*evt.Stats)
		dto.Stats = &stats
	}
	return dto
}

// FromEvents converts a page of events.
func FromEvents(list []events.Event) []Event {
	out := make([]Event, 0, len(list))
	for _, evt := range list {
		out = append(out, FromEvent(evt))
	}
	return out
}

// FromSummary converts engine diagnostics. Counts follow the lifecycle order
// of jobs.AllStatuses and omit zero entries.
func FromSummary(summary workflow.StatusSummary) EngineStatus {
	dto := EngineStatus{
		Running:    summary.Running,
		InFlight:   summary.InFlight,
		Capacity:   summary.Capacity,
		Peak:       summary.Peak,
		Registered: summary.Registered,
		Counts:     []StatusCount{},
		LastError:  summary.LastError,
	}
	for _, status := range jobs.AllStatuses() {
		if n := summary.Counts[status]; n > 0 {
			dto.Counts = append(dto.Counts, StatusCount{Status: string(status), Count: n})
		}
	}
	if summary.LastJob != nil {
		last := FromJob(*summary.LastJob)
		dto.LastJob = &last
	}
	return dto
}

// FromTotals converts knowledge store totals.
func FromTotals(totals knowledge.Totals) *KnowledgeTotals {
	return &KnowledgeTotals{
		Sources:   totals.Sources,
		Documents: totals.Documents,
		Chunks:    totals.Chunks,
	}
}

// FromChecks converts preflight results, failed checks first.
func FromChecks(results []preflight.Result) []CheckResult {
	out := make([]CheckResult, 0, len(results))
	for _, r := range results {
		out = append(out, CheckResult{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].Passed && out[j].Passed
	})
	return out
}

// FromDependencies converts binary availability checks.
func FromDependencies(statuses []deps.Status) []Dependency {
	out := make([]Dependency, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, Dependency{
			Name:      s.Name,
			Command:   s.Command,
			Optional:  s.Optional,
			Available: s.Available,
			Detail:    s.Detail,
		})
	}
	return out
}

// FromSources converts stored sources.
func FromSources(sources []knowledge.Source) []Source {
	out := make([]Source, 0, len(sources))
	for _, src := range sources {
		tags := src.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, Source{
			ID:            src.ID,
			Type:          src.Type,
			Title:         src.Title,
			URL:           src.URL,
			KnowledgeType: src.KnowledgeType,
			Tags:          tags,
			Documents:     src.Documents,
			Chunks:        src.Chunks,
			Words:         src.Words,
			CodeExamples:  src.CodeExamples,
			UpdatedAt:     formatTime(src.UpdatedAt),
		})
	}
	return out
}

// FromCodeExamples converts stored code examples.
func FromCodeExamples(examples []knowledge.StoredCodeExample) []CodeExample {
	out := make([]CodeExample, 0, len(examples))
	for _, example := range examples {
		out = append(out, CodeExample{
			ID:        example.ID,
			SourceID:  example.SourceID,
			Ref:       example.Ref,
			Language:  example.Language,
			Content:   example.Content,
			CreatedAt: formatTime(example.CreatedAt),
		})
	}
	return out
}

// FromHits converts search results.
func FromHits(hits []knowledge.Hit) []SearchHit {
	out := make([]SearchHit, 0, len(hits))
	for _, hit := range hits {
		out = append(out, SearchHit{
			SourceID:   hit.SourceID,
			Ref:        hit.Ref,
			Title:      hit.Title,
			ChunkIndex: hit.ChunkIndex,
			Content:    hit.Content,
			Score:      hit.Score,
		})
	}
	return out
}

func fromStats(stats jobs.Stats) JobStats {
	return JobStats{
		ChunksStored:   stats.ChunksStored,
		WordsProcessed: stats.WordsProcessed,
		SourceID:       stats.SourceID,
		Pages:          stats.Pages,
	}
}

func fromFailedItems(items []jobs.FailedItem) []FailedItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]FailedItem, 0, len(items))
	for _, item := range items {
		out = append(out, FailedItem{Name: item.Name, Reason: item.Reason})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
