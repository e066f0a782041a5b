package crawl_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ingestor/internal/crawl"
	"ingestor/internal/ingest"
	"ingestor/internal/knowledge"
	"ingestor/internal/progress"
	"ingestor/internal/services"
	"ingestor/internal/testsupport"
)

type stageCall struct {
	stage string
	local float64
	item  string
	msg   string
}

type stageRecorder struct {
	mu    sync.Mutex
	calls []stageCall
}

func (r *stageRecorder) Stage(stage string, local float64, item, msg string) {
	r.mu.Lock()
	r.calls = append(r.calls, stageCall{stage, local, item, msg})
	r.mu.Unlock()
}

func (r *stageRecorder) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		if len(out) == 0 || out[len(out)-1] != c.stage {
			out = append(out, c.stage)
		}
	}
	return out
}

type codeStore struct {
	mu       sync.Mutex
	examples map[string][]knowledge.CodeExample
}

func (c *codeStore) StoreCodeExamples(_ context.Context, _ string, ref string, examples []knowledge.CodeExample) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.examples == nil {
		c.examples = make(map[string][]knowledge.CodeExample)
	}
	c.examples[ref] = examples
	return len(examples), nil
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head><title>Docs Home</title><script>var x = 1;</script></head>
<body><h1>Welcome</h1><p>Start with the <a href="/guide">guide</a> or the <a href="/api#top">API</a>.</p>
<a href="https://elsewhere.example.org/">external</a><a href="/missing">broken</a></body></html>`)
	})
	mux.HandleFunc("/guide", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Guide</title></head><body><h2>Install</h2>
<p>Run the installer.</p><pre><code class="language-sh">make install
make test</code></pre><a href="/deep">deeper</a></body></html>`)
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>API</title></head><body><p>Endpoints are listed here.</p></body></html>`)
	})
	mux.HandleFunc("/deep", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><p>Too deep to reach at depth two.</p></body></html>`)
	})
	mux.HandleFunc("/notes.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "plain notes about the system")
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprintf(w, `<?xml version="1.0"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
<url><loc>http://%[1]s/api</loc></url><url><loc>http://%[1]s/notes.txt</loc></url></urlset>`, r.Host)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newCrawler(t *testing.T, storer ingest.Storer, registrar ingest.SourceRegistrar, opts ...crawl.Option) *crawl.Crawler {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	opts = append([]crawl.Option{crawl.WithRequestsPerSecond(1000)}, opts...)
	return crawl.New(cfg, storer, registrar, opts...)
}

func TestCrawlFollowsSameHostLinksToDepth(t *testing.T) {
	srv := newSite(t)
	storer := &testsupport.Storer{}
	registrar := &testsupport.Registrar{}
	code := &codeStore{}
	c := newCrawler(t, storer, registrar, crawl.WithCodeStore(code))
	rec := &stageRecorder{}

	stats, err := c.Crawl(context.Background(), ingest.CrawlRequest{
		URL:                 srv.URL + "/",
		MaxDepth:            2,
		KnowledgeType:       "technical",
		SourceID:            "127.0.0.1",
		ExtractCodeExamples: true,
	}, rec)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Pages)
	require.Equal(t, 12, stats.Chunks)

	var refs []string
	for _, req := range storer.Requests() {
		refs = append(refs, req.Ref)
		require.Equal(t, "127.0.0.1", req.SourceID)
	}
	require.ElementsMatch(t, []string{srv.URL + "/", srv.URL + "/guide", srv.URL + "/api"}, refs)

	src := registrar.Sources()["127.0.0.1"]
	require.Equal(t, "url", src.SourceType)
	require.Equal(t, "Docs Home", src.Title)
	require.Equal(t, srv.URL+"/", src.URL)
	require.Equal(t, 2, src.MaxDepth)
	require.True(t, src.ExtractCodeExamples)

	require.Equal(t, []string{
		progress.StageAnalyzing,
		progress.StageCrawling,
		progress.StageProcessing,
		progress.StageDocumentStorage,
		progress.StageCodeExtraction,
	}, rec.stages())
	for _, call := range rec.calls {
		require.GreaterOrEqual(t, call.local, 0.0)
		require.LessOrEqual(t, call.local, 100.0)
	}

	guide := code.examples[srv.URL+"/guide"]
	require.Len(t, guide, 1)
	require.Equal(t, "sh", guide[0].Language)
	require.Equal(t, "make install\nmake test", guide[0].Content)
}

func TestCrawlStartPageFailureFailsJob(t *testing.T) {
	srv := newSite(t)
	c := newCrawler(t, &testsupport.Storer{}, nil)
	_, err := c.Crawl(context.Background(), ingest.CrawlRequest{URL: srv.URL + "/missing", MaxDepth: 1, SourceID: "x"}, &stageRecorder{})
	require.ErrorIs(t, err, services.ErrExternalTool)
	require.Contains(t, services.DisplayMessage(err), "404")
}

func TestCrawlSitemapAndTextFiles(t *testing.T) {
	srv := newSite(t)
	storer := &testsupport.Storer{}
	c := newCrawler(t, storer, nil)
	stats, err := c.Crawl(context.Background(), ingest.CrawlRequest{URL: srv.URL + "/sitemap.xml", MaxDepth: 2, SourceID: "s"}, &stageRecorder{})
	require.NoError(t, err)
	require.Equal(t, 2, stats.Pages)

	var texts []string
	for _, req := range storer.Requests() {
		texts = append(texts, req.Text)
	}
	require.Contains(t, texts, "plain notes about the system")
}

func TestCrawlHonoursCancellation(t *testing.T) {
	srv := newSite(t)
	c := newCrawler(t, &testsupport.Storer{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Crawl(ctx, ingest.CrawlRequest{URL: srv.URL + "/", MaxDepth: 2, SourceID: "x"}, &stageRecorder{})
	require.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestParseHTMLExtractsReadableText(t *testing.T) {
	base, _ := url.Parse("https://docs.example.com/intro/")
	page, err := crawl.ParseHTML(strings.NewReader(`<html><head><title> Intro  Page </title><style>p{}</style></head>
<body><nav><a href="../index.html">Home</a></nav><h2>Overview</h2><p>First   paragraph
with wrapping.</p><ul><li>one</li><li>two</li></ul>
<pre class="lang-python">print("hi")</pre><a href="mailto:x@example.com">mail</a><a href="#frag">self</a></body></html>`), base)
	require.NoError(t, err)
	require.Equal(t, "Intro Page", page.Title)
	require.Contains(t, page.Text, "## Overview")
	require.Contains(t, page.Text, "First paragraph with wrapping.")
	require.Contains(t, page.Text, "```python\nprint(\"hi\")\n```")
	require.NotContains(t, page.Text, "p{}")
	require.Equal(t, []string{"https://docs.example.com/index.html"}, page.Links)
	require.Len(t, page.Code, 1)
}
