// Package cmd provides the Vitalog CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE streaming
//   - migrate: apply pending database migrations
//   - ingest: index knowledge documents for chat grounding
//
// Signal handling and graceful shutdown are implemented for the server
// via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/vitalog/vitalog/internal/config"
	"github.com/vitalog/vitalog/internal/log"
)

// Execute is the main entry point for the Vitalog CLI application.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "migrate":
		return runMigrate()
	case "ingest":
		return runIngest()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// newLogger builds the process logger from config and makes it the slog
// default so library fallbacks land in the same stream.
func newLogger(cfg *config.Config) log.Logger {
	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	// The api package falls back to slog.Default in a few places.
	slog.SetDefault(logger)
	return logger
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Vitalog - personal health tracking backend")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  vitalog serve [addr]        Start the HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  vitalog migrate             Apply pending database migrations")
	fmt.Println("  vitalog ingest <url|file>   Index documents into the knowledge base")
	fmt.Println("  vitalog version             Show version information")
	fmt.Println("  vitalog help                Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  VITALOG_DATABASE_URL        PostgreSQL connection URL")
	fmt.Println("  VITALOG_JWT_SECRET          Token signing secret (serve)")
	fmt.Println("  VITALOG_GEMINI_API_KEY      Gemini API key (chat and ingest)")
	fmt.Println("  VITALOG_LOG_LEVEL           debug, info, warn, error")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/vitalog/vitalog")
}
