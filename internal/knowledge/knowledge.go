// Package knowledge is the retrieval corpus behind chat grounding: health
// reference articles chunked, embedded and stored in PostgreSQL + pgvector.
// Chat retrieves the top matches for a user message and folds them into the
// system prompt; the ingest CLI command fills the corpus from URLs and files.
package knowledge

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VectorDimension is the embedding size. It must match the vector(768)
// column in the knowledge_documents migration.
const VectorDimension = 768

const (
	// DefaultTopK is used when Search is called with topK <= 0.
	DefaultTopK = 5

	// MaxTopK caps how many chunks a single search can return.
	MaxTopK = 50

	// MaxQueryLen bounds the text sent to the embedder for a search.
	MaxQueryLen = 1000

	// EmbedTimeout bounds a single embedding call, retries included.
	EmbedTimeout = 30 * time.Second
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrNoContent is returned when ingestion extracts no usable text.
	ErrNoContent = errors.New("no content to ingest")
)

// SourceType classifies where a document came from.
type SourceType string

const (
	SourceArticle SourceType = "article" // ingested files and curated texts
	SourceURL     SourceType = "url"     // fetched web pages
	SourceNote    SourceType = "note"    // short manually added notes
)

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	switch t {
	case SourceArticle, SourceURL, SourceNote:
		return true
	}
	return false
}

// Document is one stored chunk of the corpus. Source plus ChunkIndex is
// unique; re-adding the same pair overwrites the stored chunk. The embedding
// itself stays in the database and is never read back.
type Document struct {
	ID         uuid.UUID
	Source     string
	SourceType SourceType
	ChunkIndex int
	Title      string
	Content    string
	Tags       []string
	CreatedAt  time.Time
}

// SearchResult pairs a document with its cosine similarity to the query.
type SearchResult struct {
	Document   *Document
	Similarity float64
}

// validateDocument checks the fields the caller controls before embedding.
func validateDocument(d *Document) error {
	if strings.TrimSpace(d.Source) == "" {
		return fmt.Errorf("source is required")
	}
	if !d.SourceType.Valid() {
		return fmt.Errorf("invalid source type %q", d.SourceType)
	}
	if d.ChunkIndex < 0 {
		return fmt.Errorf("chunk index must not be negative")
	}
	if strings.TrimSpace(d.Content) == "" {
		return ErrNoContent
	}
	return nil
}
