package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/vitalog/vitalog/internal/assistant"
)

// documentCols is the standard SELECT column list for scanDocuments.
// The embedding column is deliberately absent; it only matters inside
// the database.
const documentCols = `id, source, source_type, chunk_index, title, content, tags, created_at`

// Store manages the knowledge corpus backed by PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool     *pgxpool.Pool
	embedder assistant.Embedder
	logger   *slog.Logger
}

// NewStore creates a knowledge Store.
func NewStore(pool *pgxpool.Pool, embedder assistant.Embedder, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, embedder: embedder, logger: logger}, nil
}

// embed generates a vector embedding for the given text. A vector of the
// wrong dimension is rejected here, before it can reach an INSERT.
func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("embedding text: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return pgvector.Vector{}, fmt.Errorf("empty embedding response")
	}
	if len(vecs[0]) != VectorDimension {
		return pgvector.Vector{}, fmt.Errorf("embedding dimension %d, want %d", len(vecs[0]), VectorDimension)
	}
	return pgvector.NewVector(vecs[0]), nil
}

// Add embeds the document content and upserts it on (source, chunk_index).
// Re-adding an existing chunk replaces its content, embedding, title and
// tags; the original created_at is kept.
func (s *Store) Add(ctx context.Context, doc *Document) (*Document, error) {
	if err := validateDocument(doc); err != nil {
		return nil, err
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, doc.Content)
	if err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO knowledge_documents (source, source_type, chunk_index, title, content, embedding, tags)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (source, chunk_index) DO UPDATE
		 SET source_type = EXCLUDED.source_type,
		     title       = EXCLUDED.title,
		     content     = EXCLUDED.content,
		     embedding   = EXCLUDED.embedding,
		     tags        = EXCLUDED.tags
		 RETURNING `+documentCols,
		doc.Source, doc.SourceType, doc.ChunkIndex, doc.Title, doc.Content, vec, tagsOrEmpty(doc.Tags),
	)

	stored, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("storing document: %w", err)
	}

	s.logger.Debug("document stored",
		"id", stored.ID, "source", stored.Source, "chunk", stored.ChunkIndex)
	return stored, nil
}

// Search finds documents similar to the query. Returns up to topK results
// ordered by cosine similarity descending, dropping anything below
// minSimilarity. A non-positive minSimilarity disables the threshold.
func (s *Store) Search(ctx context.Context, query string, topK int, minSimilarity float64) ([]SearchResult, error) {
	if query == "" {
		return []SearchResult{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if len(query) > MaxQueryLen {
		query = query[:MaxQueryLen]
	}
	if strings.ContainsRune(query, 0) {
		return []SearchResult{}, nil
	}
	if minSimilarity <= 0 {
		// Cosine similarity lives in [-1, 1].
		minSimilarity = -1
	}

	embedCtx, cancel := context.WithTimeout(ctx, EmbedTimeout)
	defer cancel()

	vec, err := s.embed(embedCtx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+`, 1 - (embedding <=> $1) AS similarity
		 FROM knowledge_documents
		 WHERE 1 - (embedding <=> $1) >= $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		vec, minSimilarity, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("searching documents: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_documents`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return n, nil
}

// Delete removes a single chunk by ID.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM knowledge_documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("document deleted", "id", id)
	return nil
}

// DeleteBySource removes every chunk of a source. Returns the number of
// chunks removed; an unknown source removes zero and is not an error.
func (s *Store) DeleteBySource(ctx context.Context, source string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM knowledge_documents WHERE source = $1`, source)
	if err != nil {
		return 0, fmt.Errorf("deleting documents by source: %w", err)
	}

	deleted := tag.RowsAffected()
	if deleted > 0 {
		s.logger.Debug("source deleted", "source", source, "chunks", deleted)
	}
	return deleted, nil
}

// tagsOrEmpty keeps the tags column NOT NULL friendly.
func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Source, &d.SourceType, &d.ChunkIndex,
		&d.Title, &d.Content, &d.Tags, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanResults(rows pgx.Rows) ([]SearchResult, error) {
	var results []SearchResult
	for rows.Next() {
		var d Document
		var sim float64
		err := rows.Scan(&d.ID, &d.Source, &d.SourceType, &d.ChunkIndex,
			&d.Title, &d.Content, &d.Tags, &d.CreatedAt, &sim)
		if err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		results = append(results, SearchResult{Document: &d, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search results: %w", err)
	}
	if results == nil {
		results = []SearchResult{}
	}
	return results, nil
}
