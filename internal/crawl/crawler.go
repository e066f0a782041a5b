package crawl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"ingestor/internal/config"
	"ingestor/internal/ingest"
	"ingestor/internal/knowledge"
	"ingestor/internal/logging"
	"ingestor/internal/progress"
	"ingestor/internal/services"
)

const (
	maxBodyBytes             = 5 * 1024 * 1024
	defaultRequestsPerSecond = 4
)

// CodeStore persists code examples found during a crawl.
type CodeStore interface {
	StoreCodeExamples(ctx context.Context, sourceID, ref string, examples []knowledge.CodeExample) (int, error)
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Crawler) {
		if client != nil {
			c.client = client
		}
	}
}

// WithRequestsPerSecond bounds fetches per crawl.
func WithRequestsPerSecond(n float64) Option {
	return func(c *Crawler) {
		if n > 0 {
			c.perSecond = n
		}
	}
}

// WithCodeStore enables code example storage.
func WithCodeStore(store CodeStore) Option {
	return func(c *Crawler) {
		c.code = store
	}
}

// WithLogger sets the crawler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Crawler fetches pages over HTTP and stores them through an ingest.Storer.
type Crawler struct {
	client    *http.Client
	storer    ingest.Storer
	registrar ingest.SourceRegistrar
	code      CodeStore
	userAgent string
	maxPages  int
	perSecond float64
	logger    *slog.Logger
}

// New constructs a Crawler from configuration.
func New(cfg *config.Config, storer ingest.Storer, registrar ingest.SourceRegistrar, opts ...Option) *Crawler {
	c := &Crawler{
		client:    &http.Client{Timeout: cfg.CrawlTimeout()},
		storer:    storer,
		registrar: registrar,
		userAgent: cfg.Crawl.UserAgent,
		maxPages:  cfg.Crawl.MaxPages,
		perSecond: defaultRequestsPerSecond,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "crawler")
	return c
}

type crawlKind string

const (
	kindSitemap crawlKind = "sitemap"
	kindText    crawlKind = "text file"
	kindWebpage crawlKind = "webpage"
)

type target struct {
	url   string
	depth int
}

// Crawl implements ingest.Crawler.
func (c *Crawler) Crawl(ctx context.Context, req ingest.CrawlRequest, reporter ingest.StageReporter) (ingest.StoreStats, error) {
	start, err := url.Parse(req.URL)
	if err != nil || start.Host == "" {
		return ingest.StoreStats{}, services.Wrap(services.ErrValidation, "crawl", "analyze", "invalid URL "+req.URL, err)
	}
	logger := logging.WithContext(ctx, c.logger)
	limiter := rate.NewLimiter(rate.Limit(c.perSecond), 1)

	reporter.Stage(progress.StageAnalyzing, 0, req.URL, "Analyzing URL type...")
	kind := classify(start)
	reporter.Stage(progress.StageAnalyzing, 100, req.URL, fmt.Sprintf("Detected %s, starting crawl...", kind))

	pages, err := c.fetchAll(ctx, limiter, start, kind, req, reporter, logger)
	if err != nil {
		return ingest.StoreStats{}, err
	}

	reporter.Stage(progress.StageProcessing, 0, req.URL, fmt.Sprintf("Processing %d pages...", len(pages)))
	kept := pages[:0]
	for _, page := range pages {
		if strings.TrimSpace(page.Text) != "" {
			kept = append(kept, page)
		}
	}
	if len(kept) == 0 {
		return ingest.StoreStats{}, services.Wrap(services.ErrExtraction, "crawl", "process", "no text content found at "+req.URL, nil)
	}
	title := kept[0].Title
	if title == "" {
		title = start.Host
	}
	if c.registrar != nil {
		if err := c.registrar.RegisterSource(ctx, req.SourceID, ingest.SourceMetadata{
			SourceType:          "url",
			Title:               title,
			KnowledgeType:       req.KnowledgeType,
			Tags:                req.Tags,
			FileCount:           len(kept),
			URL:                 req.URL,
			MaxDepth:            req.MaxDepth,
			ExtractCodeExamples: req.ExtractCodeExamples,
		}); err != nil {
			logging.WarnWithContext(logger, "source registration failed", "source_register_failed",
				logging.String("source_id", req.SourceID),
				logging.String(logging.FieldImpact, "source metadata will be incomplete"),
				logging.Error(err),
			)
		}
	}
	reporter.Stage(progress.StageProcessing, 100, req.URL, fmt.Sprintf("Processed %d pages", len(kept)))

	stats, err := c.storePages(ctx, kept, req, reporter)
	if err != nil {
		return ingest.StoreStats{}, err
	}
	if req.ExtractCodeExamples {
		if err := c.storeCode(ctx, kept, req, reporter, logger); err != nil {
			return ingest.StoreStats{}, err
		}
	}
	stats.Pages = len(kept)
	return stats, nil
}

func (c *Crawler) fetchAll(ctx context.Context, limiter *rate.Limiter, start *url.URL, kind crawlKind, req ingest.CrawlRequest, reporter ingest.StageReporter, logger *slog.Logger) ([]Page, error) {
	queue := []target{{url: start.String(), depth: 1}}
	visited := map[string]struct{}{start.String(): {}}
	var pages []Page

	if kind == kindSitemap {
		reporter.Stage(progress.StageCrawling, 0, req.URL, "Reading sitemap...")
		body, _, err := c.fetch(ctx, limiter, start.String())
		if err != nil {
			return nil, err
		}
		locs, err := ParseSitemap(bytes.NewReader(body))
		if err != nil {
			return nil, services.Wrap(services.ErrExtraction, "crawl", "sitemap", "could not parse sitemap "+req.URL, err)
		}
		queue = queue[:0]
		for _, loc := range locs {
			if _, ok := visited[loc]; !ok {
				visited[loc] = struct{}{}
				// Sitemap entries are leaves; depth is not followed.
				queue = append(queue, target{url: loc, depth: req.MaxDepth})
			}
		}
	}

	for len(queue) > 0 && len(pages) < c.maxPages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := queue[0]
		queue = queue[1:]

		body, contentType, err := c.fetch(ctx, limiter, next.url)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if next.url == start.String() && kind != kindSitemap {
				return nil, err
			}
			logging.WarnWithContext(logger, "page fetch failed", "crawl_page_failed",
				logging.String("url", next.url),
				logging.String(logging.FieldImpact, "page skipped"),
				logging.Error(err),
			)
			continue
		}
		page, err := toPage(next.url, body, contentType)
		if err != nil {
			logger.Debug("page parse failed", logging.String("url", next.url), logging.Error(err))
			continue
		}
		pages = append(pages, page)

		if kind == kindWebpage && next.depth < req.MaxDepth {
			for _, link := range page.Links {
				if !sameSite(start, link) {
					continue
				}
				if _, ok := visited[link]; ok {
					continue
				}
				visited[link] = struct{}{}
				queue = append(queue, target{url: link, depth: next.depth + 1})
			}
		}

		known := len(pages) + len(queue)
		if known > c.maxPages {
			known = c.maxPages
		}
		reporter.Stage(progress.StageCrawling, float64(len(pages))/float64(known)*100, next.url,
			fmt.Sprintf("Crawled %d/%d pages", len(pages), known))
	}
	if len(pages) == 0 {
		return nil, services.Wrap(services.ErrExtraction, "crawl", "fetch", "no pages could be fetched from "+req.URL, nil)
	}
	return pages, nil
}

func (c *Crawler) storePages(ctx context.Context, pages []Page, req ingest.CrawlRequest, reporter ingest.StageReporter) (ingest.StoreStats, error) {
	var total ingest.StoreStats
	n := float64(len(pages))
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return ingest.StoreStats{}, err
		}
		index := float64(i)
		label := fmt.Sprintf("Storing page %d/%d", i+1, len(pages))
		reporter.Stage(progress.StageDocumentStorage, index/n*100, page.URL, label+": "+page.URL)
		title := page.Title
		if title == "" {
			title = page.URL
		}
		stats, err := c.storer.StoreDocument(ctx, ingest.StoreRequest{
			SourceID:      req.SourceID,
			Ref:           page.URL,
			Title:         title,
			Text:          page.Text,
			KnowledgeType: req.KnowledgeType,
			Tags:          req.Tags,
		}, func(percent float64, message string) {
			reporter.Stage(progress.StageDocumentStorage, (index+percent/100)/n*100, page.URL, label+" - "+message)
		})
		if err != nil {
			return ingest.StoreStats{}, err
		}
		total.Chunks += stats.Chunks
		total.Words += stats.Words
	}
	return total, nil
}

func (c *Crawler) storeCode(ctx context.Context, pages []Page, req ingest.CrawlRequest, reporter ingest.StageReporter, logger *slog.Logger) error {
	if c.code == nil {
		logger.Debug("code extraction requested without a code store")
		return nil
	}
	stored := 0
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(page.Code) > 0 {
			examples := make([]knowledge.CodeExample, len(page.Code))
			for j, block := range page.Code {
				examples[j] = knowledge.CodeExample{Language: block.Language, Content: block.Content}
			}
			n, err := c.code.StoreCodeExamples(ctx, req.SourceID, page.URL, examples)
			if err != nil {
				return err
			}
			stored += n
		}
		reporter.Stage(progress.StageCodeExtraction, float64(i+1)/float64(len(pages))*100, page.URL,
			fmt.Sprintf("Extracted %d code examples", stored))
	}
	return nil
}

func (c *Crawler) fetch(ctx context.Context, limiter *rate.Limiter, pageURL string) ([]byte, string, error) {
	if err := limiter.Wait(ctx); err != nil {
		return nil, "", err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", services.Wrap(services.ErrValidation, "crawl", "fetch", "build request for "+pageURL, err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,text/markdown,application/xml;q=0.9,*/*;q=0.5")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, "", err
		}
		return nil, "", services.Wrap(services.ErrTransient, "crawl", "fetch", "request "+pageURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, "", services.Wrap(services.ErrExternalTool, "crawl", "fetch", fmt.Sprintf("%s returned %s", pageURL, resp.Status), nil)
	}
	contentType := resp.Header.Get("Content-Type")
	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), contentType)
	if err != nil {
		return nil, "", services.Wrap(services.ErrExtraction, "crawl", "decode", "unsupported charset at "+pageURL, err)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", services.Wrap(services.ErrTransient, "crawl", "fetch", "read "+pageURL, err)
	}
	c.logger.Debug("page fetched",
		logging.String("url", pageURL),
		logging.Int("bytes", len(body)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return body, contentType, nil
}

func toPage(pageURL string, body []byte, contentType string) (Page, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, err
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "text/plain", mediaType == "text/markdown", isTextPath(base.Path) && mediaType != "text/html":
		return Page{URL: pageURL, Title: path.Base(base.Path), Text: strings.TrimSpace(string(body))}, nil
	default:
		return ParseHTML(bytes.NewReader(body), base)
	}
}

func classify(u *url.URL) crawlKind {
	lower := strings.ToLower(u.Path)
	switch {
	case strings.HasSuffix(lower, "sitemap.xml"):
		return kindSitemap
	case isTextPath(lower):
		return kindText
	default:
		return kindWebpage
	}
}

func isTextPath(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasSuffix(lower, ".txt") || strings.HasSuffix(lower, ".md")
}

func sameSite(start *url.URL, link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), start.Hostname())
}

var _ ingest.Crawler = (*Crawler)(nil)
