// Package jobs defines the job record shared by the orchestrator, the batch
// processor, and the API layer.
//
// A Job is created when a submission is accepted and is mutated only by the
// goroutine running it. Record wraps a Job with the synchronization readers
// need: the owning task calls Update, everyone else calls Snapshot and
// receives a deep copy. Terminal statuses are absorbing; once a job reaches
// one, further status transitions are ignored.
//
// Spec carries a submission before acceptance and Validate applies the
// submission limits (URL scheme, crawl depth, folder file count and byte
// ceiling, supported extensions) synchronously so invalid work never enters
// the registry.
package jobs
