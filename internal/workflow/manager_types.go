package workflow

import (
	"ingestor/internal/ingest"
	"ingestor/internal/jobs"
)

// Collaborators bundles the ingestion services the manager drives.
type Collaborators struct {
	Extractor ingest.Extractor
	Storer    ingest.Storer
	Registrar ingest.SourceRegistrar
	Crawler   ingest.Crawler
}

// Accepted is returned by Submit once a job has been admitted.
type Accepted struct {
	JobID     string `json:"job_id"`
	SourceID  string `json:"source_id,omitempty"`
	FileCount int    `json:"file_count,omitempty"`
	Filtered  int    `json:"filtered,omitempty"`
}

// outcome is what a stage runner hands back when it finishes without a
// cancellation or unexpected error.
type outcome struct {
	status jobs.Status
	stats  jobs.Stats
	failed []jobs.FailedItem
	line   string
	// processed and total are batch counts; total is zero for single-item jobs.
	processed int
	total     int
}

func failedOutcome(line string, failed []jobs.FailedItem) outcome {
	return outcome{status: jobs.StatusError, line: line, failed: failed}
}
