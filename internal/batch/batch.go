// Package batch runs the per-file pipeline of a folder upload.
//
// Files are processed one at a time in submission order. Each file owns an
// equal slice of the folder's storage band so overall progress climbs evenly
// across the batch. A file that fails extraction or storage, or panics, is
// recorded and the batch moves on; only cancellation stops it early.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"ingestor/internal/ingest"
	"ingestor/internal/jobs"
	"ingestor/internal/logging"
	"ingestor/internal/progress"
	"ingestor/internal/services"
)

// State is the outcome state of one item.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome is the terminal result of one item.
type Outcome struct {
	State  State
	Chunks int
	Words  int
	Reason string
}

// Item is one file inside a folder upload.
type Item struct {
	Name        string
	ContentType string
	Size        int64
	Content     []byte
	Outcome     Outcome
}

// ItemsFromFiles builds pending items from validated upload files.
func ItemsFromFiles(files []jobs.File) []Item {
	items := make([]Item, len(files))
	for i, file := range files {
		items[i] = Item{
			Name:        file.Name,
			ContentType: file.ContentType,
			Size:        file.Size(),
			Content:     file.Content,
		}
	}
	return items
}

// Update is one progress observation emitted while the batch runs. Overall is
// an absolute percentage; callers clamp it against their high-water mark.
type Update struct {
	Status      jobs.Status
	Overall     float64
	CurrentItem string
	Line        string
	// Processed counts items stored successfully so far; failures never add.
	Processed int
	Total     int
}

// ReportFunc receives batch progress.
type ReportFunc func(Update)

// Options configures a Processor.
type Options struct {
	Folder        string
	KnowledgeType string
	Tags          []string
	// Band is the slice of overall progress the batch spreads its items over.
	Band progress.Band
	// ProgressPerSecond throttles storage progress for every item after the
	// first. Zero or less disables throttling.
	ProgressPerSecond int
	Report            ReportFunc
	Logger            *slog.Logger
}

// Processor runs one folder batch.
type Processor struct {
	extractor ingest.Extractor
	storer    ingest.Storer
	opts      Options
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// New constructs a Processor.
func New(extractor ingest.Extractor, storer ingest.Storer, opts Options) *Processor {
	limit := rate.Inf
	if opts.ProgressPerSecond > 0 {
		limit = rate.Limit(opts.ProgressPerSecond)
	}
	if opts.Report == nil {
		opts.Report = func(Update) {}
	}
	if opts.Band.Span() <= 0 {
		opts.Band = progress.Band{Stage: progress.StageDocumentStorage, Low: 0, High: 100}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{
		extractor: extractor,
		storer:    storer,
		opts:      opts,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.With(logging.String(logging.FieldComponent, "batch")),
	}
}

// Result aggregates the outcomes of a batch run.
type Result struct {
	Items     []Item
	Succeeded int
	Failed    []jobs.FailedItem
	Stats     jobs.Stats
}

// Classify derives the terminal job status and its log line.
func (r Result) Classify() (jobs.Status, string) {
	return Classify(len(r.Items), r.Succeeded, r.Failed)
}

// Classify maps batch counts to a terminal status and log line: every item
// succeeded is completed, none succeeded is error, anything else is
// completed_with_warnings.
func Classify(total, succeeded int, failed []jobs.FailedItem) (jobs.Status, string) {
	switch {
	case total > 0 && succeeded == total && len(failed) == 0:
		return jobs.StatusCompleted, fmt.Sprintf("Folder upload completed successfully! Processed %d files.", succeeded)
	case succeeded > 0:
		return jobs.StatusCompletedWithWarnings, fmt.Sprintf("Folder upload completed with warnings. Processed %d/%d files.", succeeded, total)
	default:
		reasons := make([]string, 0, 3)
		for _, item := range failed {
			if len(reasons) == 3 {
				break
			}
			reasons = append(reasons, item.Reason)
		}
		return jobs.StatusError, fmt.Sprintf("All files failed to process. Errors: [%s]", strings.Join(reasons, "; "))
	}
}

// Run processes items in order under sharedID. The returned error is non-nil
// only when ctx ends; the partial Result is returned alongside it.
func (p *Processor) Run(ctx context.Context, items []Item, sharedID string) (Result, error) {
	result := Result{
		Items: append([]Item(nil), items...),
		Stats: jobs.Stats{SourceID: sharedID},
	}
	total := len(result.Items)
	for i := range result.Items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		item := &result.Items[i]
		err := p.runItem(ctx, i, total, result.Succeeded, item, sharedID)
		if err != nil && ctx.Err() != nil {
			return result, ctx.Err()
		}
		if err != nil {
			item.Outcome = Outcome{State: Failed, Reason: services.DisplayMessage(err)}
			result.Failed = append(result.Failed, jobs.FailedItem{Name: item.Name, Reason: item.Outcome.Reason})
			p.logger.Warn("file failed; continuing with remaining files",
				logging.String("file", item.Name),
				logging.Int("index", i+1),
				logging.Int("total", total),
				logging.String(logging.FieldEventType, "batch_item_failed"),
				logging.String(logging.FieldImpact, "file skipped"),
				logging.Error(err),
			)
			p.opts.Report(Update{
				Status:      jobs.StatusDocumentStorage,
				Overall:     p.sliceAt(i, total, 100),
				CurrentItem: p.ref(item.Name),
				Line:        fmt.Sprintf("File %d/%d failed: %s", i+1, total, item.Outcome.Reason),
				Processed:   result.Succeeded,
				Total:       total,
			})
			continue
		}
		result.Succeeded++
		result.Stats.Add(jobs.Stats{ChunksStored: item.Outcome.Chunks, WordsProcessed: item.Outcome.Words})
		p.logger.Debug("file stored",
			logging.String("file", item.Name),
			logging.Int("chunks", item.Outcome.Chunks),
			logging.Int("words", item.Outcome.Words),
		)
		p.opts.Report(Update{
			Status:      jobs.StatusDocumentStorage,
			Overall:     p.sliceAt(i, total, 100),
			CurrentItem: p.ref(item.Name),
			Line:        fmt.Sprintf("File %d/%d stored: %s", i+1, total, item.Name),
			Processed:   result.Succeeded,
			Total:       total,
		})
	}
	return result, nil
}

func (p *Processor) runItem(ctx context.Context, index, total, succeeded int, item *Item, sharedID string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrTransient, "batch", "process file", fmt.Sprintf("unexpected failure processing %s", item.Name), fmt.Errorf("panic: %v", r))
			p.logger.Error("file processing panicked",
				logging.String("file", item.Name),
				logging.String(logging.FieldEventType, "batch_item_panic"),
				logging.Any("panic", r),
			)
		}
	}()

	ref := p.ref(item.Name)
	first := index == 0
	report := func(status jobs.Status, local float64, line string) {
		p.opts.Report(Update{
			Status:      status,
			Overall:     p.sliceAt(index, total, local),
			CurrentItem: ref,
			Line:        line,
			Processed:   succeeded,
			Total:       total,
		})
	}

	if first {
		report(jobs.StatusProcessing, 0, fmt.Sprintf("Reading file %d/%d: %s", index+1, total, item.Name))
		report(jobs.StatusProcessing, 15, fmt.Sprintf("Extracting text from %s...", item.Name))
	} else {
		report(jobs.StatusDocumentStorage, 0, fmt.Sprintf("Processing file %d/%d: %s", index+1, total, item.Name))
	}

	text, err := p.extractor.Extract(item.Content, item.Name, item.ContentType)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	storeFrom := 0.0
	if first {
		report(jobs.StatusProcessing, 30, fmt.Sprintf("Chunking content for %s...", item.Name))
		report(jobs.StatusProcessing, 45, fmt.Sprintf("Generating summary for %s...", item.Name))
		storeFrom = 45
	}

	onStore := func(percent float64, message string) {
		if !first && !p.limiter.Allow() {
			return
		}
		local := storeFrom + (100-storeFrom)*progress.ClampPercent(percent)/100
		report(jobs.StatusDocumentStorage, local, fmt.Sprintf("File %d/%d - %s", index+1, total, message))
	}

	stats, err := p.storer.StoreDocument(ctx, ingest.StoreRequest{
		SourceID:      sharedID,
		Ref:           ref,
		Title:         item.Name,
		Text:          text,
		KnowledgeType: p.opts.KnowledgeType,
		Tags:          p.fileTags(item.Name),
	}, onStore)
	if err != nil {
		return err
	}
	item.Outcome = Outcome{State: Succeeded, Chunks: stats.Chunks, Words: stats.Words}
	return nil
}

func (p *Processor) fileTags(name string) []string {
	tags := make([]string, 0, len(p.opts.Tags)+2)
	tags = append(tags, p.opts.Tags...)
	return append(tags, "folder:"+p.opts.Folder, "file:"+name)
}

func (p *Processor) ref(name string) string {
	return jobs.FolderFileRef(p.opts.Folder, name)
}

// sliceAt maps a 0-100 local value of item index into the batch band.
func (p *Processor) sliceAt(index, total int, local float64) float64 {
	if total <= 0 {
		return p.opts.Band.Low
	}
	width := p.opts.Band.Span() / float64(total)
	low := p.opts.Band.Low + width*float64(index)
	return low + width*progress.ClampPercent(local)/100
}
