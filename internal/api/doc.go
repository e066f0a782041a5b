// Package api defines wire-format types and converters for the HTTP API
// layer, plus the Client the CLI uses to talk to a running daemon. It
// translates internal job, event and knowledge models into transport DTOs so
// consumers do not couple to internal types.
//
// # Key Types
//
// Job: snapshot of one ingestion job with progress, counts, stats and the
// per-item failures of a folder upload.
//
// Event: one entry of a job's progress stream.
//
// Status: engine diagnostics, knowledge store totals and preflight results.
//
// Source/SearchHit: knowledge store listings and search results.
//
// # Converters
//
// FromJob: jobs.Job -> Job with RFC3339 timestamps and a derived Terminal flag.
//
// FromEvent: events.Event -> Event.
//
// FromSummary: workflow.StatusSummary -> EngineStatus with deterministic
// status count ordering.
//
// # Design Notes
//
// DTOs use snake_case JSON tags, matching the event payloads published on
// NATS so one decoder serves both. A cancelled job reports percentage -1.
package api
