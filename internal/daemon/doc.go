// Package daemon coordinates the long-running ingestor process.
//
// It wires configuration, the knowledge store, the event hub, the workflow
// manager and the optional inbox watcher into a single lifecycle with
// flock-based locking to prevent multiple instances, and serves the HTTP API
// that the CLI and other clients use to submit, follow and cancel jobs.
//
// Keep orchestration logic here: ingestion steps live in their respective
// packages while the daemon focuses on startup, shutdown and high level
// coordination.
package daemon
