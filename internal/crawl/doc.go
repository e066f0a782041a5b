// Package crawl implements ingest.Crawler over HTTP.
//
// A crawl walks five stages, reporting stage-local progress through the
// supplied ingest.StageReporter:
//
//   - analyzing: classify the start URL as a sitemap, a plain text file, or a
//     web page to follow recursively.
//   - crawling: fetch pages breadth-first on the start host, bounded by the
//     requested depth and the configured page ceiling, with a per-crawl
//     request rate limit.
//   - processing: register the source and discard pages without text.
//   - document_storage: hand each page to the knowledge store.
//   - code_extraction: store <pre> blocks as code examples when requested.
//
// Only a failure to fetch the start URL fails the crawl; later pages that
// fail are logged and skipped.
package crawl
