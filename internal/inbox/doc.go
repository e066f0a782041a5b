// Package inbox watches a drop folder and submits every supported file that
// lands in it as a document job.
//
// Files are coalesced per path for the configured debounce window so editors
// and partial copies settle before submission. Accepted files move to
// processed/<job id>-<name>; files the engine rejects move to failed/.
// Files are left in place while the engine is shutting down so the next run
// picks them up during its initial scan.
package inbox
