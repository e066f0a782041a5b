// Package main hosts the ingestor CLI entrypoint and command graph.
//
// The Cobra-based command tree runs the daemon (serve) and translates every
// other invocation into HTTP calls against it: submitting crawl, document and
// folder jobs, following their progress, cancelling them, and querying the
// knowledge store. It centralizes configuration resolution and API client
// construction so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
