// Package services defines shared utilities consumed by the job orchestrator,
// the batch processor, and the ingestion collaborators.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, job kinds, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures carry a
//     classification (validation, extraction, storage, ...) alongside the
//     component and operation that produced them.
//   - Details and DisplayMessage, which turn wrapped errors into log fields
//     and the short message stored on a failed job.
//
// Use these helpers when wiring new collaborators so error handling and
// observability stay uniform across job kinds.
package services
