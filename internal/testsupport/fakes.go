package testsupport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"ingestor/internal/events"
	"ingestor/internal/ingest"
	"ingestor/internal/progress"
	"ingestor/internal/services"
)

// Extractor is an ingest.Extractor returning the content as text unless the
// file name is listed in Failures or Panics.
type Extractor struct {
	Failures map[string]error
	Panics   map[string]bool
}

// Extract implements ingest.Extractor.
func (e *Extractor) Extract(content []byte, name, _ string) (string, error) {
	if e != nil {
		if e.Panics[name] {
			panic("extractor exploded on " + name)
		}
		if err, ok := e.Failures[name]; ok {
			return "", err
		}
	}
	return string(content), nil
}

// ExtractionError builds an extraction failure for name.
func ExtractionError(name string) error {
	return services.Wrap(services.ErrExtraction, "extract", "extract text", "Failed to extract text from "+name, nil)
}

// Storer is an ingest.Storer that reports progress in fixed steps and records
// every request it completes.
type Storer struct {
	// Steps are the local percentages reported per document. Defaults to
	// 25, 50, 75, 100.
	Steps []float64
	// StepDelay pauses between steps and honours cancellation.
	StepDelay time.Duration
	// Failures fails documents whose title matches a key.
	Failures map[string]error

	mu       sync.Mutex
	requests []ingest.StoreRequest
}

// StoreDocument implements ingest.Storer.
func (s *Storer) StoreDocument(ctx context.Context, req ingest.StoreRequest, progress ingest.ProgressFunc) (ingest.StoreStats, error) {
	if err, ok := s.Failures[req.Title]; ok {
		return ingest.StoreStats{}, err
	}
	steps := s.Steps
	if len(steps) == 0 {
		steps = []float64{25, 50, 75, 100}
	}
	for i, step := range steps {
		if s.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return ingest.StoreStats{}, ctx.Err()
			case <-time.After(s.StepDelay):
			}
		} else if err := ctx.Err(); err != nil {
			return ingest.StoreStats{}, err
		}
		if progress != nil {
			progress(step, fmt.Sprintf("Stored batch %d/%d", i+1, len(steps)))
		}
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	return ingest.StoreStats{Chunks: len(steps), Words: len(strings.Fields(req.Text))}, nil
}

// Requests returns the completed store requests in order.
func (s *Storer) Requests() []ingest.StoreRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ingest.StoreRequest(nil), s.requests...)
}

// Registrar is an ingest.SourceRegistrar recording registrations.
type Registrar struct {
	Err error

	mu    sync.Mutex
	calls map[string]ingest.SourceMetadata
}

// RegisterSource implements ingest.SourceRegistrar.
func (r *Registrar) RegisterSource(_ context.Context, sourceID string, meta ingest.SourceMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]ingest.SourceMetadata)
	}
	r.calls[sourceID] = meta
	return r.Err
}

// Sources returns the recorded registrations.
func (r *Registrar) Sources() map[string]ingest.SourceMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]ingest.SourceMetadata, len(r.calls))
	for k, v := range r.calls {
		out[k] = v
	}
	return out
}

// Crawler is an ingest.Crawler walking the crawl stages with a delay per
// stage step.
type Crawler struct {
	StepDelay time.Duration
	Err       error
	Pages     int
}

// Crawl implements ingest.Crawler.
func (c *Crawler) Crawl(ctx context.Context, req ingest.CrawlRequest, reporter ingest.StageReporter) (ingest.StoreStats, error) {
	stages := []string{
		progress.StageAnalyzing,
		progress.StageCrawling,
		progress.StageProcessing,
		progress.StageDocumentStorage,
	}
	if req.ExtractCodeExamples {
		stages = append(stages, progress.StageCodeExtraction)
	}
	for _, stage := range stages {
		for _, local := range []float64{0, 50, 100} {
			if c.StepDelay > 0 {
				select {
				case <-ctx.Done():
					return ingest.StoreStats{}, ctx.Err()
				case <-time.After(c.StepDelay):
				}
			} else if err := ctx.Err(); err != nil {
				return ingest.StoreStats{}, err
			}
			reporter.Stage(stage, local, req.URL, fmt.Sprintf("%s %.0f%%", stage, local))
		}
	}
	if c.Err != nil {
		return ingest.StoreStats{}, c.Err
	}
	pages := c.Pages
	if pages == 0 {
		pages = 1
	}
	return ingest.StoreStats{Chunks: pages * 2, Words: pages * 100, Pages: pages}, nil
}

// Recorder is an events.Sink that keeps every event it receives.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

// Publish implements events.Sink.
func (r *Recorder) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	r.events = append(r.events, evt)
	r.mu.Unlock()
	return nil
}

// ForJob returns the events recorded for jobID in publication order.
func (r *Recorder) ForJob(jobID string) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, evt := range r.events {
		if evt.JobID == jobID {
			out = append(out, evt)
		}
	}
	return out
}

// WaitForType polls until an event of type t is recorded for jobID.
func (r *Recorder) WaitForType(t testing.TB, jobID string, typ events.Type, timeout time.Duration) events.Event {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, evt := range r.ForJob(jobID) {
			if evt.Type == typ {
				return evt
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s event for job %s within %s", typ, jobID, timeout)
	return events.Event{}
}
