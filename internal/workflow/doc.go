// Package workflow runs ingestion jobs from acceptance to a terminal state.
//
// The Manager validates a submission, allocates a job id, registers the job's
// cancellable handle and spawns one goroutine per job. Each goroutine waits a
// short courtesy delay so subscribers can attach, acquires a permit from the
// concurrency gate and drives the kind-specific stages (crawl, document or
// folder) through the job's progress mapper. Every transition is published to
// the event sink in order.
//
// Cleanup is deferred and runs on every exit path: the terminal event is
// published, the gate permit released, the registry entry removed and the
// handle's Done channel closed so a waiting Cancel returns. Terminal snapshots
// stay queryable until the retention sweep drops them.
package workflow
