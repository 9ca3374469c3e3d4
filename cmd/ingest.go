package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"

	"github.com/vitalog/vitalog/internal/assistant"
	"github.com/vitalog/vitalog/internal/config"
	"github.com/vitalog/vitalog/internal/database"
	"github.com/vitalog/vitalog/internal/knowledge"
)

// ingestLockFile serializes ingest runs so two invocations never index
// the same documents concurrently.
var ingestLockFile = filepath.Join(os.TempDir(), "vitalog-ingest.lock")

// runIngest indexes the given URLs and files into the knowledge base.
func runIngest() error {
	sources := os.Args[2:]
	if len(sources) == 0 {
		return fmt.Errorf("usage: vitalog ingest <url|file> [more...]")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("gemini API key is required for ingestion")
	}

	logger := newLogger(cfg)

	lock := flock.New(ingestLockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring ingest lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another ingest is already running (lock: %s)", ingestLockFile)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("releasing ingest lock", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	gemini, err := assistant.NewGemini(ctx, assistant.Config{
		APIKey:     cfg.GeminiAPIKey,
		ChatModel:  cfg.ChatModel,
		EmbedModel: cfg.EmbedderModel,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating assistant client: %w", err)
	}

	store, err := knowledge.NewStore(pool, gemini, logger)
	if err != nil {
		return fmt.Errorf("creating knowledge store: %w", err)
	}

	var failed int
	for _, src := range sources {
		result, err := ingestOne(ctx, store, src)
		if err != nil {
			logger.Error("ingest failed", "source", src, "error", err)
			failed++
			continue
		}
		fmt.Printf("indexed %q (%d chunks) from %s\n", result.Title, result.Chunks, result.Source)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(sources))
	}
	return nil
}

// ingestOne routes a source to the URL or file path.
func ingestOne(ctx context.Context, store *knowledge.Store, src string) (*knowledge.IngestResult, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return store.IngestURL(ctx, src)
	}
	return store.IngestFile(ctx, src)
}
