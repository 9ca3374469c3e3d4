// Package testutil provides shared testing utilities: a disposable
// PostgreSQL container, SSE stream parsing and deterministic mocks for the
// assistant interfaces.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vitalog/vitalog/db"
)

// TestDB wraps a disposable PostgreSQL container with a ready connection pool.
// The schema is fully migrated and the pgvector extension is available.
type TestDB struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// SetupTestDB starts a pgvector-enabled PostgreSQL container, applies all
// embedded migrations and returns a pool connected to it. The returned
// cleanup function terminates the container and must be called.
func SetupTestDB(t *testing.T) (*TestDB, func()) {
	t.Helper()

	testDB, cleanup, err := SetupTestDBForMain()
	if err != nil {
		t.Fatalf("setting up test database: %v", err)
	}
	return testDB, cleanup
}

// SetupTestDBForMain is the TestMain variant of SetupTestDB: it returns an
// error instead of failing a *testing.T, so a package can share a single
// container across all its integration tests.
func SetupTestDBForMain() (*TestDB, func(), error) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("vitalog_test"),
		postgres.WithUsername("vitalog_test"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("starting PostgreSQL container: %w", err)
	}

	terminate := func() { _ = pgContainer.Terminate(context.Background()) }

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("getting connection string: %w", err)
	}

	// Same embedded migrations the server runs.
	if err := db.Migrate(connStr, DiscardLogger()); err != nil {
		terminate()
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		terminate()
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		terminate()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	testDB := &TestDB{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}

	cleanup := func() {
		pool.Close()
		terminate()
	}

	return testDB, cleanup, nil
}

// CleanTables truncates all application tables for test isolation.
// schema_migrations is left alone.
func CleanTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		`TRUNCATE users, refresh_tokens, health_metrics, medications, symptoms,
		 user_settings, conversations, messages, knowledge_documents, reports
		 RESTART IDENTITY CASCADE`)
	if err != nil {
		t.Fatalf("truncating tables: %v", err)
	}
}
