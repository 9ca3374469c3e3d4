//go:build integration

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/vitalog/vitalog/internal/testutil"
)

var sharedDB *testutil.TestDB

func TestMain(m *testing.M) {
	var err error
	var dbCleanup func()
	sharedDB, dbCleanup, err = testutil.SetupTestDBForMain()
	if err != nil {
		log.Fatalf("starting test database: %v", err)
	}
	code := m.Run()
	dbCleanup()
	os.Exit(code)
}

// setupIntegrationTest creates a Store backed by real PostgreSQL but using a
// mock embedder for deterministic cosine similarity control.
func setupIntegrationTest(t *testing.T) (*Store, *testutil.MockEmbedder) {
	t.Helper()
	testutil.CleanTables(t, sharedDB.Pool)

	emb := testutil.NewMockEmbedder(VectorDimension)
	store, err := NewStore(sharedDB.Pool, emb, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore() unexpected error: %v", err)
	}
	return store, emb
}

// makeVectorWithAngle creates a vector at a given angle from the base vector.
// angle=0 → identical (similarity=1.0), angle=pi/2 → orthogonal (similarity=0).
func makeVectorWithAngle(dim int, angle float64) []float32 {
	vec := make([]float32, dim)
	vec[0] = float32(math.Cos(angle))
	vec[1] = float32(math.Sin(angle))
	return vec
}

func TestAddAndCount(t *testing.T) {
	store, _ := setupIntegrationTest(t)
	ctx := context.Background()

	created, err := store.Add(ctx, &Document{
		Source:     "note-1",
		SourceType: SourceNote,
		Title:      "Hydration",
		Content:    "Drink water through the day.",
		Tags:       []string{"hydration", "habits"},
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if created.ID == uuid.Nil {
		t.Error("Add() returned nil ID")
	}
	if created.CreatedAt.IsZero() {
		t.Error("Add() returned zero CreatedAt")
	}
	if len(created.Tags) != 2 || created.Tags[0] != "hydration" {
		t.Errorf("Add() tags = %v, want [hydration habits]", created.Tags)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	// Re-adding the same (source, chunk_index) replaces the row in place.
	replaced, err := store.Add(ctx, &Document{
		Source:     "note-1",
		SourceType: SourceNote,
		Title:      "Hydration",
		Content:    "Drink water through the day, more in summer.",
	})
	if err != nil {
		t.Fatalf("Add() replace error = %v", err)
	}
	if replaced.ID != created.ID {
		t.Errorf("Add() replace ID = %v, want %v (upsert should update same row)", replaced.ID, created.ID)
	}
	if replaced.Content != "Drink water through the day, more in summer." {
		t.Errorf("Add() replace content = %q, want the new content", replaced.Content)
	}

	count, err = store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() after replace error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() after replace = %d, want 1", count)
	}
}

func TestAdd_Invalid(t *testing.T) {
	store, _ := setupIntegrationTest(t)
	ctx := context.Background()

	tests := []struct {
		name string
		doc  *Document
	}{
		{
			name: "blank content",
			doc:  &Document{Source: "note-2", SourceType: SourceNote, Content: "  "},
		},
		{
			name: "empty source",
			doc:  &Document{Source: "", SourceType: SourceNote, Content: "text"},
		},
		{
			name: "unknown source type",
			doc:  &Document{Source: "note-3", SourceType: "feed", Content: "text"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Add(ctx, tt.doc); err == nil {
				t.Error("Add() expected error, got nil")
			}
		})
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0 after rejected adds", count)
	}
}

func TestAdd_DimensionMismatch(t *testing.T) {
	store, emb := setupIntegrationTest(t)
	ctx := context.Background()

	emb.SetVector("short vector content", []float32{1, 0})

	_, err := store.Add(ctx, &Document{
		Source:     "note-4",
		SourceType: SourceNote,
		Content:    "short vector content",
	})
	if err == nil {
		t.Fatal("Add() expected dimension error, got nil")
	}
	if !strings.Contains(err.Error(), "dimension") {
		t.Errorf("Add() error = %q, want mention of dimension", err)
	}
}

func TestSearch(t *testing.T) {
	store, emb := setupIntegrationTest(t)
	ctx := context.Background()

	const (
		query    = "how to lower blood pressure"
		contentA = "Reducing sodium intake lowers blood pressure."
		contentB = "Regular walking improves cardiovascular health."
		contentC = "Sunscreen prevents skin damage."
	)
	emb.SetVector(query, makeVectorWithAngle(VectorDimension, 0))
	emb.SetVector(contentA, makeVectorWithAngle(VectorDimension, 0))         // sim 1.0
	emb.SetVector(contentB, makeVectorWithAngle(VectorDimension, math.Pi/4)) // sim ~0.707
	emb.SetVector(contentC, makeVectorWithAngle(VectorDimension, math.Pi/2)) // sim 0

	for i, content := range []string{contentA, contentB, contentC} {
		_, err := store.Add(ctx, &Document{
			Source:     fmt.Sprintf("note-%d", i),
			SourceType: SourceNote,
			Content:    content,
		})
		if err != nil {
			t.Fatalf("Add() seed %d error = %v", i, err)
		}
	}

	t.Run("ordered by similarity", func(t *testing.T) {
		results, err := store.Search(ctx, query, 10, 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("Search() = %d results, want 3", len(results))
		}

		wantOrder := []string{contentA, contentB, contentC}
		wantSim := []float64{1.0, math.Sqrt2 / 2, 0}
		for i, r := range results {
			if r.Document.Content != wantOrder[i] {
				t.Errorf("results[%d].Content = %q, want %q", i, r.Document.Content, wantOrder[i])
			}
			if math.Abs(r.Similarity-wantSim[i]) > 0.01 {
				t.Errorf("results[%d].Similarity = %v, want ~%v", i, r.Similarity, wantSim[i])
			}
		}
	})

	t.Run("min similarity filters", func(t *testing.T) {
		results, err := store.Search(ctx, query, 10, 0.5)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 2 {
			t.Errorf("Search(minSimilarity=0.5) = %d results, want 2", len(results))
		}
	})

	t.Run("topK limits", func(t *testing.T) {
		results, err := store.Search(ctx, query, 1, 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("Search(topK=1) = %d results, want 1", len(results))
		}
		if results[0].Document.Content != contentA {
			t.Errorf("Search(topK=1) top = %q, want %q", results[0].Document.Content, contentA)
		}
	})

	t.Run("zero topK defaults", func(t *testing.T) {
		results, err := store.Search(ctx, query, 0, 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 3 {
			t.Errorf("Search(topK=0) = %d results, want 3", len(results))
		}
	})

	t.Run("empty query", func(t *testing.T) {
		results, err := store.Search(ctx, "", 5, 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 0 {
			t.Errorf("Search(\"\") = %d results, want 0", len(results))
		}
	})

	t.Run("nul byte query", func(t *testing.T) {
		results, err := store.Search(ctx, "bad\x00query", 5, 0)
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(results) != 0 {
			t.Errorf("Search(nul query) = %d results, want 0", len(results))
		}
	})
}

func TestSearch_EmbedderFailure(t *testing.T) {
	store, emb := setupIntegrationTest(t)
	ctx := context.Background()

	emb.FailWith(errors.New("embedder down"))

	_, err := store.Search(ctx, "anything", 5, 0)
	if err == nil {
		t.Fatal("Search() expected error, got nil")
	}
	if !strings.Contains(err.Error(), "embedding query") {
		t.Errorf("Search() error = %q, want embedding query wrap", err)
	}
}

func TestDelete(t *testing.T) {
	store, _ := setupIntegrationTest(t)
	ctx := context.Background()

	created, err := store.Add(ctx, &Document{
		Source:     "note-del",
		SourceType: SourceNote,
		Content:    "to be removed",
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d, want 0", count)
	}

	if err := store.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() second error = %v, want ErrNotFound", err)
	}
}

func TestDeleteBySource(t *testing.T) {
	store, _ := setupIntegrationTest(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := store.Add(ctx, &Document{
			Source:     "https://example.com/long-article",
			SourceType: SourceURL,
			ChunkIndex: i,
			Content:    fmt.Sprintf("chunk %d of the article", i),
		})
		if err != nil {
			t.Fatalf("Add() chunk %d error = %v", i, err)
		}
	}
	_, err := store.Add(ctx, &Document{
		Source:     "note-keep",
		SourceType: SourceNote,
		Content:    "unrelated note",
	})
	if err != nil {
		t.Fatalf("Add() note error = %v", err)
	}

	deleted, err := store.DeleteBySource(ctx, "https://example.com/long-article")
	if err != nil {
		t.Fatalf("DeleteBySource() error = %v", err)
	}
	if deleted != 3 {
		t.Errorf("DeleteBySource() = %d, want 3", deleted)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1", count)
	}

	deleted, err = store.DeleteBySource(ctx, "unknown-source")
	if err != nil {
		t.Fatalf("DeleteBySource() unknown error = %v", err)
	}
	if deleted != 0 {
		t.Errorf("DeleteBySource(unknown) = %d, want 0", deleted)
	}
}

func TestIngestFile(t *testing.T) {
	store, _ := setupIntegrationTest(t)
	ctx := context.Background()
	dir := t.TempDir()

	var sb strings.Builder
	sb.WriteString("# Sleep Hygiene\n\n")
	for i := 0; i < 8; i++ {
		sb.WriteString(fmt.Sprintf("Paragraph %d. %s\n\n", i, strings.Repeat("Good sleep habits matter. ", 12)))
	}
	path := filepath.Join(dir, "sleep.md")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}

	res, err := store.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile() error = %v", err)
	}
	if res.Title != "Sleep Hygiene" {
		t.Errorf("IngestFile() title = %q, want %q", res.Title, "Sleep Hygiene")
	}
	if res.Chunks < 2 {
		t.Errorf("IngestFile() chunks = %d, want >= 2", res.Chunks)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != int64(res.Chunks) {
		t.Errorf("Count() = %d, want %d", count, res.Chunks)
	}

	// Re-ingesting a shrunk file replaces all previous chunks.
	short := "# Sleep Hygiene\n\nKeep a steady schedule.\n"
	if err := os.WriteFile(path, []byte(short), 0o644); err != nil {
		t.Fatalf("rewriting test file: %v", err)
	}
	res, err = store.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("IngestFile() re-ingest error = %v", err)
	}
	if res.Chunks != 1 {
		t.Errorf("IngestFile() re-ingest chunks = %d, want 1", res.Chunks)
	}
	count, err = store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() after re-ingest error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() after re-ingest = %d, want 1 (stale chunks must be gone)", count)
	}
}

func TestIngestFile_Errors(t *testing.T) {
	store, _ := setupIntegrationTest(t)
	ctx := context.Background()
	dir := t.TempDir()

	pdf := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF"), 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	if _, err := store.IngestFile(ctx, pdf); err == nil {
		t.Error("IngestFile(pdf) expected error, got nil")
	}

	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("writing test file: %v", err)
	}
	if _, err := store.IngestFile(ctx, empty); !errors.Is(err, ErrNoContent) {
		t.Errorf("IngestFile(empty) error = %v, want ErrNoContent", err)
	}

	if _, err := store.IngestFile(ctx, filepath.Join(dir, "missing.md")); err == nil {
		t.Error("IngestFile(missing) expected error, got nil")
	}
}

func TestIngestURL(t *testing.T) {
	store, _ := setupIntegrationTest(t)
	ctx := context.Background()

	para := "Blood pressure readings include two numbers, systolic and diastolic, " +
		"and both matter for long term heart health. Small daily choices, like " +
		"cutting sodium, walking after meals, and sleeping enough, add up to " +
		"measurable change over a few months of steady habits."
	page := fmt.Sprintf(`<!DOCTYPE html>
<html><head><title>Managing Blood Pressure</title></head>
<body>
<nav>Home | Topics | Contact</nav>
<article>
<h1>Managing Blood Pressure</h1>
<p>%s</p>
<p>%s</p>
<p>%s</p>
</article>
<footer>Newsletter signup</footer>
</body></html>`, para, para, para)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/articles/blood-pressure" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	res, err := store.IngestURL(ctx, srv.URL+"/articles/blood-pressure")
	if err != nil {
		t.Fatalf("IngestURL() error = %v", err)
	}
	if res.Chunks < 1 {
		t.Errorf("IngestURL() chunks = %d, want >= 1", res.Chunks)
	}
	if res.Title == "" {
		t.Error("IngestURL() returned empty title")
	}
	if res.Source != srv.URL+"/articles/blood-pressure" {
		t.Errorf("IngestURL() source = %q, want the URL", res.Source)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != int64(res.Chunks) {
		t.Errorf("Count() = %d, want %d", count, res.Chunks)
	}

	var st SourceType
	err = store.pool.QueryRow(ctx,
		`SELECT source_type FROM knowledge_documents LIMIT 1`).Scan(&st)
	if err != nil {
		t.Fatalf("reading source_type: %v", err)
	}
	if st != SourceURL {
		t.Errorf("stored source_type = %q, want %q", st, SourceURL)
	}
}

func TestIngestURL_Errors(t *testing.T) {
	store, _ := setupIntegrationTest(t)
	ctx := context.Background()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := store.IngestURL(ctx, srv.URL+"/gone"); err == nil {
		t.Error("IngestURL(404) expected error, got nil")
	}

	_, err := store.IngestURL(ctx, "ftp://example.com/doc")
	if err == nil || !strings.Contains(err.Error(), "scheme") {
		t.Errorf("IngestURL(ftp) error = %v, want scheme error", err)
	}
}
