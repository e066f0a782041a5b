package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ingestor/internal/ingest"
	"ingestor/internal/services"
	"ingestor/internal/textutil"
)

const (
	defaultSearchLimit = 10
	searchCandidates   = 500
)

// Source is one stored knowledge source with its aggregate counts.
type Source struct {
	ID            string                `json:"source_id"`
	Type          string                `json:"source_type"`
	Title         string                `json:"title"`
	URL           string                `json:"url,omitempty"`
	KnowledgeType string                `json:"knowledge_type"`
	Tags          []string              `json:"tags"`
	Metadata      ingest.SourceMetadata `json:"metadata"`
	Documents     int                   `json:"documents"`
	Chunks        int                   `json:"chunks"`
	Words         int                   `json:"words"`
	CodeExamples  int                   `json:"code_examples"`
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Hit is a chunk returned by Search.
type Hit struct {
	SourceID   string  `json:"source_id"`
	Ref        string  `json:"ref"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}

// StoredCodeExample is a code example read back from the store.
type StoredCodeExample struct {
	ID        int64     `json:"id"`
	SourceID  string    `json:"source_id"`
	Ref       string    `json:"ref"`
	Language  string    `json:"language,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Totals summarizes the store contents.
type Totals struct {
	Sources   int `json:"sources"`
	Documents int `json:"documents"`
	Chunks    int `json:"chunks"`
}

const sourceColumns = `
    s.source_id, s.source_type, s.title, s.url, s.knowledge_type, s.tags_json, s.metadata_json,
    s.created_at, s.updated_at,
    (SELECT COUNT(1) FROM documents d WHERE d.source_id = s.source_id),
    (SELECT COALESCE(SUM(d.word_count), 0) FROM documents d WHERE d.source_id = s.source_id),
    (SELECT COUNT(1) FROM chunks c WHERE c.source_id = s.source_id),
    (SELECT COUNT(1) FROM code_examples e WHERE e.source_id = s.source_id)`

// ListSources returns every source, most recently updated first.
func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+sourceColumns+" FROM sources s ORDER BY s.updated_at DESC, s.source_id")
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

// GetSource fetches one source by id.
func (s *Store) GetSource(ctx context.Context, sourceID string) (Source, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+sourceColumns+" FROM sources s WHERE s.source_id = ?", sourceID)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, services.Wrap(services.ErrNotFound, "knowledge", "get source", "source "+sourceID+" not found", nil)
	}
	return src, err
}

// DeleteSource removes a source with its documents, chunks and code
// examples. It reports whether the source existed.
func (s *Store) DeleteSource(ctx context.Context, sourceID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sources WHERE source_id = ?", sourceID)
	if err != nil {
		return false, services.Wrap(services.ErrStorage, "knowledge", "delete source", "delete "+sourceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListCodeExamples returns the code examples stored under sourceID in the
// order they were captured.
func (s *Store) ListCodeExamples(ctx context.Context, sourceID string) ([]StoredCodeExample, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM sources WHERE source_id = ?", sourceID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("lookup source: %w", err)
	}
	if exists == 0 {
		return nil, services.Wrap(services.ErrNotFound, "knowledge", "list code examples", "source "+sourceID+" not found", nil)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, source_id, ref, language, content, created_at FROM code_examples WHERE source_id = ? ORDER BY id",
		sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list code examples: %w", err)
	}
	defer rows.Close()

	out := []StoredCodeExample{}
	for rows.Next() {
		var (
			example   StoredCodeExample
			createdAt string
		)
		if err := rows.Scan(&example.ID, &example.SourceID, &example.Ref, &example.Language, &example.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan code example: %w", err)
		}
		example.CreatedAt = parseTime(createdAt)
		out = append(out, example)
	}
	return out, rows.Err()
}

// Totals counts sources, documents and chunks.
func (s *Store) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx,
		"SELECT (SELECT COUNT(1) FROM sources), (SELECT COUNT(1) FROM documents), (SELECT COUNT(1) FROM chunks)",
	).Scan(&t.Sources, &t.Documents, &t.Chunks)
	if err != nil {
		return Totals{}, fmt.Errorf("count totals: %w", err)
	}
	return t, nil
}

// Search ranks chunks containing any query term by TF-IDF cosine similarity
// to the query. IDF weights come from the candidate set.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	terms := uniqueStrings(textutil.Terms(query))
	if len(terms) == 0 {
		return nil, services.Wrap(services.ErrValidation, "knowledge", "search", "query needs at least one word of three or more characters", nil)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	clauses := make([]string, len(terms))
	args := make([]any, 0, len(terms)+1)
	for i, term := range terms {
		clauses[i] = "content LIKE ?"
		args = append(args, "%"+term+"%")
	}
	args = append(args, searchCandidates)
	rows, err := s.db.QueryContext(ctx,
		"SELECT source_id, ref, title, chunk_index, content FROM chunks WHERE "+strings.Join(clauses, " OR ")+" LIMIT ?",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var candidates []Hit
	for rows.Next() {
		var hit Hit
		if err := rows.Scan(&hit.SourceID, &hit.Ref, &hit.Title, &hit.ChunkIndex, &hit.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		candidates = append(candidates, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	contents := make([]string, len(candidates))
	for i, hit := range candidates {
		contents[i] = hit.Content
	}
	var hits []Hit
	for i, score := range textutil.Rank(query, contents) {
		if score > 0 {
			hit := candidates[i]
			hit.Score = score
			hits = append(hits, hit)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			if hits[i].Ref == hits[j].Ref {
				return hits[i].ChunkIndex < hits[j].ChunkIndex
			}
			return hits[i].Ref < hits[j].Ref
		}
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (Source, error) {
	var (
		src                  Source
		url                  sql.NullString
		tagsJSON, metaJSON   string
		createdAt, updatedAt string
	)
	err := row.Scan(
		&src.ID, &src.Type, &src.Title, &url, &src.KnowledgeType, &tagsJSON, &metaJSON,
		&createdAt, &updatedAt,
		&src.Documents, &src.Words, &src.Chunks, &src.CodeExamples,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Source{}, err
		}
		return Source{}, fmt.Errorf("scan source: %w", err)
	}
	src.URL = url.String
	if err := json.Unmarshal([]byte(tagsJSON), &src.Tags); err != nil {
		return Source{}, fmt.Errorf("decode tags for %s: %w", src.ID, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &src.Metadata); err != nil {
		return Source{}, fmt.Errorf("decode metadata for %s: %w", src.ID, err)
	}
	src.CreatedAt = parseTime(createdAt)
	src.UpdatedAt = parseTime(updatedAt)
	return src, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("marshal tags: %w", err)
	}
	return string(data), nil
}

func marshalMetadata(meta ingest.SourceMetadata) (string, error) {
	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
