// Package knowledge persists ingested content in SQLite.
//
// Store implements both ingest.SourceRegistrar and ingest.Storer: sources are
// upserted ahead of their documents, and StoreDocument splits text into
// overlapping chunks that are written in batches inside one transaction,
// reporting progress after each batch. Re-storing a reference replaces its
// previous chunks. Crawls may also attach code examples to a source.
//
// Schema changes are embedded SQL migrations applied in file-name order on
// Open.
package knowledge
