package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes an ingestion job in a transport-friendly format.
type Job struct {
	ID          string       `json:"job_id"`
	Kind        string       `json:"kind"`
	Status      string       `json:"status"`
	Terminal    bool         `json:"terminal"`
	Percentage  int          `json:"percentage"`
	CurrentItem string       `json:"current_item,omitempty"`
	Title       string       `json:"title,omitempty"`
	Processed   int          `json:"processed"`
	Total       int          `json:"total"`
	Log         []string     `json:"log"`
	FailedItems []FailedItem `json:"failed_items,omitempty"`
	Stats       JobStats     `json:"stats"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   string       `json:"created_at,omitempty"`
	StartedAt   string       `json:"started_at,omitempty"`
	FinishedAt  string       `json:"finished_at,omitempty"`
}

// FailedItem is one folder file that was not stored.
type FailedItem struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// JobStats aggregates what a job stored.
type JobStats struct {
	ChunksStored   int    `json:"chunks_stored"`
	WordsProcessed int    `json:"words_processed"`
	SourceID       string `json:"source_id,omitempty"`
	Pages          int    `json:"pages,omitempty"`
}

// Event is one entry of a job's progress stream.
type Event struct {
	Sequence    uint64       `json:"seq"`
	JobID       string       `json:"job_id"`
	Type        string       `json:"type"`
	Status      string       `json:"status"`
	Percentage  int          `json:"percentage"`
	CurrentItem string       `json:"current_item,omitempty"`
	Log         string       `json:"log,omitempty"`
	Processed   int          `json:"processed,omitempty"`
	Total       int          `json:"total,omitempty"`
	Stats       *JobStats    `json:"stats,omitempty"`
	FailedItems []FailedItem `json:"failed_items,omitempty"`
	Error       string       `json:"error,omitempty"`
	Timestamp   string       `json:"ts,omitempty"`
}

// IsTerminal reports whether the event closes its job's stream.
func (e Event) IsTerminal() bool {
	switch e.Type {
	case "completed", "error", "cancelled":
		return true
	default:
		return false
	}
}

// CrawlRequest is the body of POST /api/jobs/crawl.
type CrawlRequest struct {
	URL                 string   `json:"url"`
	MaxDepth            int      `json:"max_depth,omitempty"`
	ExtractCodeExamples bool     `json:"extract_code_examples"`
	KnowledgeType       string   `json:"knowledge_type,omitempty"`
	Tags                []string `json:"tags,omitempty"`
}

// AcceptedResponse is returned with 202 once a job is admitted.
type AcceptedResponse struct {
	Success   bool   `json:"success"`
	JobID     string `json:"job_id"`
	SourceID  string `json:"source_id,omitempty"`
	FileCount int    `json:"file_count,omitempty"`
	Filtered  int    `json:"filtered,omitempty"`
	Message   string `json:"message"`
}

// CancelResponse is returned by POST /api/jobs/{id}/cancel.
type CancelResponse struct {
	Success bool   `json:"success"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// EventsResponse carries a page of events and the cursor for the next call.
type EventsResponse struct {
	Events []Event `json:"events"`
	Next   uint64  `json:"next"`
}

// StatusCount is one entry of the per-status job counts.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// EngineStatus summarizes orchestration state.
type EngineStatus struct {
	Running    bool          `json:"running"`
	InFlight   int           `json:"in_flight"`
	Capacity   int           `json:"capacity"`
	Peak       int           `json:"peak"`
	Registered int           `json:"registered"`
	Counts     []StatusCount `json:"counts"`
	LastError  string        `json:"last_error,omitempty"`
	LastJob    *Job          `json:"last_job,omitempty"`
}

// KnowledgeTotals summarizes the knowledge store.
type KnowledgeTotals struct {
	Sources   int `json:"sources"`
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

// CheckResult is one preflight check outcome.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// Status aggregates daemon runtime information for API consumers.
type Status struct {
	PID          int              `json:"pid"`
	DatabasePath string           `json:"database_path"`
	LockFilePath string           `json:"lock_file_path"`
	InboxDir     string           `json:"inbox_dir,omitempty"`
	NATS         bool             `json:"nats"`
	Engine       EngineStatus     `json:"engine"`
	Knowledge    *KnowledgeTotals `json:"knowledge,omitempty"`
	Checks       []CheckResult    `json:"checks"`
	Dependencies []Dependency     `json:"dependencies"`
}

// Dependency reports whether an external binary is available.
type Dependency struct {
	Name      string `json:"name"`
	Command   string `json:"command,omitempty"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// Source is one stored knowledge source.
type Source struct {
	ID            string   `json:"source_id"`
	Type          string   `json:"source_type"`
	Title         string   `json:"title"`
	URL           string   `json:"url,omitempty"`
	KnowledgeType string   `json:"knowledge_type"`
	Tags          []string `json:"tags"`
	Documents     int      `json:"documents"`
	Chunks        int      `json:"chunks"`
	Words         int      `json:"words"`
	CodeExamples  int      `json:"code_examples"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

// SourceListResponse wraps stored sources.
type SourceListResponse struct {
	Sources []Source `json:"sources"`
}

// CodeExample is one code block captured from a source.
type CodeExample struct {
	ID        int64  `json:"id"`
	SourceID  string `json:"source_id"`
	Ref       string `json:"ref"`
	Language  string `json:"language,omitempty"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at,omitempty"`
}

// CodeExampleListResponse wraps the code examples of one source.
type CodeExampleListResponse struct {
	SourceID     string        `json:"source_id"`
	CodeExamples []CodeExample `json:"code_examples"`
	Count        int           `json:"count"`
}

// SearchHit is one ranked chunk.
type SearchHit struct {
	SourceID   string  `json:"source_id"`
	Ref        string  `json:"ref"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// SearchResponse wraps ranked chunks.
type SearchResponse struct {
	Query string      `json:"query"`
	Hits  []SearchHit `json:"hits"`
}

// NotificationResponse reports the outcome of a test notification.
type NotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Hint  string `json:"hint,omitempty"`
}
