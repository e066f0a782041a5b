package batch_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ingestor/internal/batch"
	"ingestor/internal/jobs"
	"ingestor/internal/progress"
	"ingestor/internal/testsupport"
)

type collector struct {
	mu      sync.Mutex
	updates []batch.Update
}

func (c *collector) report(u batch.Update) {
	c.mu.Lock()
	c.updates = append(c.updates, u)
	c.mu.Unlock()
}

func (c *collector) snapshot() []batch.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]batch.Update(nil), c.updates...)
}

func newProcessor(t *testing.T, extractor *testsupport.Extractor, storer *testsupport.Storer, c *collector) *batch.Processor {
	t.Helper()
	band, ok := progress.New(jobs.KindFolder).Band(progress.StageDocumentStorage)
	require.True(t, ok)
	return batch.New(extractor, storer, batch.Options{
		Folder:        "docs",
		KnowledgeType: "technical",
		Tags:          []string{"team"},
		Band:          band,
		Report:        c.report,
	})
}

func TestRunStoresEveryFileUnderSharedSource(t *testing.T) {
	c := &collector{}
	storer := &testsupport.Storer{}
	p := newProcessor(t, &testsupport.Extractor{}, storer, c)

	items := batch.ItemsFromFiles(testsupport.Files("a.md", "b.md", "c.md"))
	result, err := p.Run(context.Background(), items, "folder_docs_1")
	require.NoError(t, err)
	require.Equal(t, 3, result.Succeeded)
	require.Empty(t, result.Failed)
	require.Equal(t, 12, result.Stats.ChunksStored)
	require.Equal(t, "folder_docs_1", result.Stats.SourceID)

	status, line := result.Classify()
	require.Equal(t, jobs.StatusCompleted, status)
	require.Equal(t, "Folder upload completed successfully! Processed 3 files.", line)

	reqs := storer.Requests()
	require.Len(t, reqs, 3)
	for i, name := range []string{"a.md", "b.md", "c.md"} {
		require.Equal(t, "folder_docs_1", reqs[i].SourceID)
		require.Equal(t, "folder://docs/"+name, reqs[i].Ref)
		require.Equal(t, []string{"team", "folder:docs", "file:" + name}, reqs[i].Tags)
		require.Equal(t, batch.Succeeded, result.Items[i].Outcome.State)
	}
}

func TestRunProgressIsMonotoneAndStaysInBand(t *testing.T) {
	c := &collector{}
	p := newProcessor(t, &testsupport.Extractor{}, &testsupport.Storer{}, c)
	_, err := p.Run(context.Background(), batch.ItemsFromFiles(testsupport.Files("a.md", "b.md", "c.md")), "s")
	require.NoError(t, err)

	updates := c.snapshot()
	require.NotEmpty(t, updates)
	prev := 0.0
	for _, u := range updates {
		require.GreaterOrEqual(t, u.Overall, prev, "progress regressed at %q", u.Line)
		require.GreaterOrEqual(t, u.Overall, 10.0)
		require.LessOrEqual(t, u.Overall, 98.0)
		prev = u.Overall
	}
	require.InDelta(t, 98.0, prev, 0.001)

	require.Equal(t, "Reading file 1/3: a.md", updates[0].Line)
	require.Equal(t, jobs.StatusProcessing, updates[0].Status)
	var coarse []string
	for _, u := range updates {
		if strings.HasPrefix(u.Line, "Processing file") {
			coarse = append(coarse, u.Line)
		}
	}
	require.Equal(t, []string{"Processing file 2/3: b.md", "Processing file 3/3: c.md"}, coarse)
	last := updates[len(updates)-1]
	require.Equal(t, 3, last.Processed)
	require.Equal(t, 3, last.Total)
}

func TestRunIsolatesExtractionFailure(t *testing.T) {
	c := &collector{}
	storer := &testsupport.Storer{}
	extractor := &testsupport.Extractor{Failures: map[string]error{"b.pdf": testsupport.ExtractionError("b.pdf")}}
	p := newProcessor(t, extractor, storer, c)

	result, err := p.Run(context.Background(), batch.ItemsFromFiles(testsupport.Files("a.md", "b.pdf", "c.md")), "s")
	require.NoError(t, err)
	require.Equal(t, 2, result.Succeeded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "b.pdf", result.Failed[0].Name)
	require.Contains(t, result.Failed[0].Reason, "Failed to extract text")
	require.Equal(t, batch.Failed, result.Items[1].Outcome.State)
	require.Len(t, storer.Requests(), 2)

	updates := c.snapshot()
	for _, u := range updates {
		if u.Line == "File 2/3 failed: "+result.Failed[0].Reason {
			require.Equal(t, 1, u.Processed)
		}
	}
	last := updates[len(updates)-1]
	require.Equal(t, 2, last.Processed)
	require.Equal(t, 3, last.Total)

	status, line := result.Classify()
	require.Equal(t, jobs.StatusCompletedWithWarnings, status)
	require.Equal(t, "Folder upload completed with warnings. Processed 2/3 files.", line)
}

func TestRunAllFailedReportsFirstThreeReasons(t *testing.T) {
	c := &collector{}
	failures := map[string]error{}
	for _, name := range []string{"a.md", "b.md", "c.md", "d.md"} {
		failures[name] = errors.New("disk full on " + name)
	}
	p := newProcessor(t, &testsupport.Extractor{}, &testsupport.Storer{Failures: failures}, c)

	result, err := p.Run(context.Background(), batch.ItemsFromFiles(testsupport.Files("a.md", "b.md", "c.md", "d.md")), "s")
	require.NoError(t, err)
	require.Zero(t, result.Succeeded)
	status, line := result.Classify()
	require.Equal(t, jobs.StatusError, status)
	require.True(t, strings.HasPrefix(line, "All files failed to process. Errors: ["))
	require.Contains(t, line, "c.md")
	require.NotContains(t, line, "d.md")
}

func TestRunRecoversFromPanickingItem(t *testing.T) {
	c := &collector{}
	extractor := &testsupport.Extractor{Panics: map[string]bool{"a.md": true}}
	p := newProcessor(t, extractor, &testsupport.Storer{}, c)

	result, err := p.Run(context.Background(), batch.ItemsFromFiles(testsupport.Files("a.md", "b.md")), "s")
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "a.md", result.Failed[0].Name)
}

func TestRunStopsOnCancellation(t *testing.T) {
	c := &collector{}
	storer := &testsupport.Storer{StepDelay: 20 * time.Millisecond}
	p := newProcessor(t, &testsupport.Extractor{}, storer, c)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)
	defer cancel()

	result, err := p.Run(ctx, batch.ItemsFromFiles(testsupport.Files("a.md", "b.md", "c.md", "d.md")), "s")
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, len(storer.Requests()), 4)
	require.Equal(t, batch.Pending, result.Items[3].Outcome.State)
	require.Empty(t, result.Failed)
}

func TestClassify(t *testing.T) {
	status, _ := batch.Classify(2, 2, nil)
	require.Equal(t, jobs.StatusCompleted, status)
	status, _ = batch.Classify(2, 1, []jobs.FailedItem{{Name: "x", Reason: "y"}})
	require.Equal(t, jobs.StatusCompletedWithWarnings, status)
	status, _ = batch.Classify(0, 0, nil)
	require.Equal(t, jobs.StatusError, status)
}
