package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"ingestor/internal/config"
	"ingestor/internal/ingest"
	"ingestor/internal/services"
)

const defaultBatchSize = 16

// Store manages knowledge persistence backed by SQLite.
type Store struct {
	db        *sql.DB
	path      string
	chunkSize int
	overlap   int
	batchSize int
	now       func() time.Time
}

// Option configures optional Store behavior.
type Option func(*Store)

// WithBatchSize sets how many chunks are written between progress reports.
func WithBatchSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// Open initializes or connects to the knowledge database and applies
// migrations.
func Open(cfg *config.Config, opts ...Option) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath(), cfg.Storage.ChunkSize, cfg.Storage.ChunkOverlap, opts...)
}

// OpenPath opens a knowledge database at path with explicit chunking
// parameters.
func OpenPath(path string, chunkSize, overlap int, opts ...Option) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := "file:" + filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite db: %w", err)
	}

	store := &Store{
		db:        db,
		path:      path,
		chunkSize: chunkSize,
		overlap:   overlap,
		batchSize: defaultBatchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(store)
	}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RegisterSource creates or refreshes the metadata of a source.
func (s *Store) RegisterSource(ctx context.Context, sourceID string, meta ingest.SourceMetadata) error {
	sourceID = strings.TrimSpace(sourceID)
	if sourceID == "" {
		return services.Wrap(services.ErrValidation, "knowledge", "register source", "source id is required", nil)
	}
	tagsJSON, err := marshalTags(meta.Tags)
	if err != nil {
		return err
	}
	metaJSON, err := marshalMetadata(meta)
	if err != nil {
		return err
	}
	sourceType := strings.TrimSpace(meta.SourceType)
	if sourceType == "" {
		sourceType = "file"
	}
	knowledgeType := strings.TrimSpace(meta.KnowledgeType)
	if knowledgeType == "" {
		knowledgeType = "technical"
	}
	timestamp := s.now().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sources (
            source_id, source_type, title, url, knowledge_type, tags_json, metadata_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(source_id) DO UPDATE SET
            source_type = excluded.source_type,
            title = excluded.title,
            url = excluded.url,
            knowledge_type = excluded.knowledge_type,
            tags_json = excluded.tags_json,
            metadata_json = excluded.metadata_json,
            updated_at = excluded.updated_at`,
		sourceID,
		sourceType,
		meta.Title,
		nullableString(meta.URL),
		knowledgeType,
		tagsJSON,
		metaJSON,
		timestamp,
		timestamp,
	)
	if err != nil {
		return services.Wrap(services.ErrStorage, "knowledge", "register source", "write source "+sourceID, err)
	}
	return nil
}

// StoreDocument chunks req.Text and writes the chunks under req.SourceID,
// replacing any chunks that source previously stored for req.Ref. Other
// sources holding the same ref are untouched. Progress is reported
// after each batch as a 0-100 value.
func (s *Store) StoreDocument(ctx context.Context, req ingest.StoreRequest, progress ingest.ProgressFunc) (ingest.StoreStats, error) {
	if strings.TrimSpace(req.SourceID) == "" {
		return ingest.StoreStats{}, services.Wrap(services.ErrValidation, "knowledge", "store document", "source id is required", nil)
	}
	chunks := Chunk(req.Text, s.chunkSize, s.overlap)
	if len(chunks) == 0 {
		return ingest.StoreStats{}, services.Wrap(services.ErrValidation, "knowledge", "store document", "no text to store for "+req.Title, nil)
	}
	if err := ctx.Err(); err != nil {
		return ingest.StoreStats{}, err
	}
	words := WordCount(req.Text)
	tagsJSON, err := marshalTags(req.Tags)
	if err != nil {
		return ingest.StoreStats{}, err
	}
	timestamp := s.now().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ingest.StoreStats{}, storageErr("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	knowledgeType := req.KnowledgeType
	if knowledgeType == "" {
		knowledgeType = "technical"
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sources (source_id, source_type, title, knowledge_type, tags_json, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(source_id) DO NOTHING`,
		req.SourceID, sourceTypeForRef(req.Ref), req.Title, knowledgeType, tagsJSON, timestamp, timestamp,
	); err != nil {
		return ingest.StoreStats{}, storageErr("ensure source", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE source_id = ? AND ref = ?", req.SourceID, req.Ref); err != nil {
		return ingest.StoreStats{}, storageErr("replace chunks", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (source_id, ref, title, chunk_index, content, word_count, tags_json, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return ingest.StoreStats{}, storageErr("prepare chunk insert", err)
	}
	defer stmt.Close()

	batches := (len(chunks) + s.batchSize - 1) / s.batchSize
	for i, chunk := range chunks {
		if i%s.batchSize == 0 {
			if err := ctx.Err(); err != nil {
				return ingest.StoreStats{}, err
			}
		}
		if _, err := stmt.ExecContext(ctx, req.SourceID, req.Ref, req.Title, i, chunk, WordCount(chunk), tagsJSON, timestamp); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ingest.StoreStats{}, ctxErr
			}
			return ingest.StoreStats{}, storageErr("write chunks", err)
		}
		if progress != nil && ((i+1)%s.batchSize == 0 || i == len(chunks)-1) {
			batch := (i + s.batchSize) / s.batchSize
			progress(float64(i+1)/float64(len(chunks))*100, fmt.Sprintf("Stored batch %d/%d", batch, batches))
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents (ref, source_id, title, word_count, chunk_count, stored_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(source_id, ref) DO UPDATE SET
            title = excluded.title,
            word_count = excluded.word_count,
            chunk_count = excluded.chunk_count,
            stored_at = excluded.stored_at`,
		req.Ref, req.SourceID, req.Title, words, len(chunks), timestamp,
	); err != nil {
		return ingest.StoreStats{}, storageErr("record document", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE sources SET updated_at = ? WHERE source_id = ?", timestamp, req.SourceID); err != nil {
		return ingest.StoreStats{}, storageErr("touch source", err)
	}
	if err := tx.Commit(); err != nil {
		return ingest.StoreStats{}, storageErr("commit chunks", err)
	}
	return ingest.StoreStats{Chunks: len(chunks), Words: words}, nil
}

// CodeExample is a code block captured during a crawl.
type CodeExample struct {
	Language string `json:"language,omitempty"`
	Content  string `json:"content"`
}

// StoreCodeExamples replaces the code examples sourceID recorded for ref and
// returns how many were written.
func (s *Store) StoreCodeExamples(ctx context.Context, sourceID, ref string, examples []CodeExample) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storageErr("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if _, err := tx.ExecContext(ctx, "DELETE FROM code_examples WHERE source_id = ? AND ref = ?", sourceID, ref); err != nil {
		return 0, storageErr("replace code examples", err)
	}
	timestamp := s.now().Format(time.RFC3339Nano)
	written := 0
	for _, example := range examples {
		content := strings.TrimSpace(example.Content)
		if content == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO code_examples (source_id, ref, language, content, created_at) VALUES (?, ?, ?, ?, ?)",
			sourceID, ref, example.Language, content, timestamp,
		); err != nil {
			return 0, storageErr("write code examples", err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit code examples", err)
	}
	return written, nil
}

func sourceTypeForRef(ref string) string {
	lower := strings.ToLower(ref)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return "url"
	case strings.HasPrefix(lower, "folder://"):
		return "folder"
	default:
		return "file"
	}
}

func storageErr(message string, err error) error {
	return services.Wrap(services.ErrStorage, "knowledge", "store document", message, err)
}

var (
	_ ingest.Storer          = (*Store)(nil)
	_ ingest.SourceRegistrar = (*Store)(nil)
)
