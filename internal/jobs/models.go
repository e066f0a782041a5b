package jobs

import (
	"strings"
	"time"
)

// Kind identifies the ingestion pipeline a job runs.
type Kind string

const (
	KindCrawl    Kind = "crawl"
	KindDocument Kind = "document"
	KindFolder   Kind = "folder"
)

// ParseKind converts a string into a known Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(value))) {
	case KindCrawl:
		return KindCrawl, true
	case KindDocument:
		return KindDocument, true
	case KindFolder:
		return KindFolder, true
	default:
		return "", false
	}
}

// Status represents the lifecycle of a job.
type Status string

const (
	StatusStarting              Status = "starting"
	StatusProcessing            Status = "processing"
	StatusDocumentStorage       Status = "document_storage"
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusCancelled             Status = "cancelled"
	StatusError                 Status = "error"
)

// CancelledPercentage marks a cancelled job. It is exempt from the
// non-decreasing percentage rule.
const CancelledPercentage = -1

var allStatuses = []Status{
	StatusStarting,
	StatusProcessing,
	StatusDocumentStorage,
	StatusCompleted,
	StatusCompletedWithWarnings,
	StatusCancelled,
	StatusError,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether no further transition may leave the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithWarnings, StatusCancelled, StatusError:
		return true
	default:
		return false
	}
}

// IsRunning reports whether the status reflects work past the gate.
func (s Status) IsRunning() bool {
	return s == StatusProcessing || s == StatusDocumentStorage
}

// FailedItem records one batch item that did not make it into storage.
type FailedItem struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Stats aggregates what a job stored.
type Stats struct {
	ChunksStored   int    `json:"chunks_stored"`
	WordsProcessed int    `json:"words_processed"`
	SourceID       string `json:"source_id,omitempty"`
	Pages          int    `json:"pages,omitempty"`
}

// Add folds other into s, keeping s.SourceID when set.
func (s *Stats) Add(other Stats) {
	s.ChunksStored += other.ChunksStored
	s.WordsProcessed += other.WordsProcessed
	s.Pages += other.Pages
	if s.SourceID == "" {
		s.SourceID = other.SourceID
	}
}

// Job is one accepted unit of ingestion work.
type Job struct {
	ID          string       `json:"id"`
	Kind        Kind         `json:"kind"`
	Status      Status       `json:"status"`
	Percentage  int          `json:"percentage"`
	CurrentItem string       `json:"current_item,omitempty"`
	Processed   int          `json:"processed"`
	Total       int          `json:"total"`
	Log         []string     `json:"log"`
	FailedItems []FailedItem `json:"failed_items,omitempty"`
	Stats       Stats        `json:"stats"`
	Error       string       `json:"error,omitempty"`
	Title       string       `json:"title,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
}

// IsTerminal reports whether the job reached an absorbing status.
func (j Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// SetProgress moves a non-terminal job to status with the given percentage.
// It returns false and leaves the job untouched once the job is terminal.
func (j *Job) SetProgress(status Status, percentage int, currentItem, line string) bool {
	if j.IsTerminal() {
		return false
	}
	j.Status = status
	if percentage > j.Percentage {
		j.Percentage = percentage
	}
	if currentItem != "" {
		j.CurrentItem = currentItem
	}
	j.AppendLog(line)
	return true
}

// MarkStarted records the moment the job passed the gate.
func (j *Job) MarkStarted(now time.Time) {
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
}

// SetCounts records batch counts.
func (j *Job) SetCounts(processed, total int) {
	j.Processed = processed
	j.Total = total
}

// Complete moves the job to a successful terminal status.
func (j *Job) Complete(status Status, stats Stats, failed []FailedItem, line string, now time.Time) bool {
	if j.IsTerminal() {
		return false
	}
	j.Status = status
	j.Percentage = 100
	j.Stats = stats
	j.FailedItems = append([]FailedItem(nil), failed...)
	j.AppendLog(line)
	j.FinishedAt = &now
	return true
}

// Fail moves the job to the error terminal status.
func (j *Job) Fail(message string, failed []FailedItem, now time.Time) bool {
	if j.IsTerminal() {
		return false
	}
	j.Status = StatusError
	j.Error = message
	if len(failed) > 0 {
		j.FailedItems = append([]FailedItem(nil), failed...)
	}
	j.AppendLog(message)
	j.FinishedAt = &now
	return true
}

// Cancel moves the job to the cancelled terminal status.
func (j *Job) Cancel(line string, now time.Time) bool {
	if j.IsTerminal() {
		return false
	}
	j.Status = StatusCancelled
	j.Percentage = CancelledPercentage
	j.AppendLog(line)
	j.FinishedAt = &now
	return true
}

// AppendLog adds a non-empty line to the job log.
func (j *Job) AppendLog(line string) {
	if line = strings.TrimSpace(line); line != "" {
		j.Log = append(j.Log, line)
	}
}

// LastLog returns the most recent log line.
func (j Job) LastLog() string {
	if len(j.Log) == 0 {
		return ""
	}
	return j.Log[len(j.Log)-1]
}

// Clone returns a deep copy.
func (j Job) Clone() Job {
	out := j
	out.Log = append([]string(nil), j.Log...)
	out.FailedItems = append([]FailedItem(nil), j.FailedItems...)
	if j.StartedAt != nil {
		started := *j.StartedAt
		out.StartedAt = &started
	}
	if j.FinishedAt != nil {
		finished := *j.FinishedAt
		out.FinishedAt = &finished
	}
	return out
}
