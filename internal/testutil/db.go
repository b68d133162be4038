package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/udisondev/updstatus/internal/db"
)

// StartPostgres запускает PostgreSQL testcontainer и возвращает DSN.
// terminate останавливает контейнер; вызывается один раз из TestMain.
func StartPostgres(ctx context.Context) (dsn string, terminate func(), err error) {
	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("updstatus_test"),
		postgres.WithUsername("updstatus"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return "", nil, fmt.Errorf("starting postgres container: %w", err)
	}

	terminate = func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate postgres container: %v\n", err)
		}
	}

	dsn, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		terminate()
		return "", nil, fmt.Errorf("getting connection string: %w", err)
	}
	return dsn, terminate, nil
}

// NewPostgres connects to dsn, applies migrations and returns the provider.
// The pool is closed via tb.Cleanup.
func NewPostgres(tb testing.TB, dsn string) *db.DB {
	tb.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		tb.Fatalf("connecting to test db: %v", err)
	}
	tb.Cleanup(func() { pool.Close() })

	if err := db.RunPoolMigrations(ctx, pool); err != nil {
		tb.Fatalf("running migrations: %v", err)
	}

	return db.NewFromPool(pool)
}

// SetupSQLite opens a migrated SQLite database in a per-test temp dir.
// No container is needed, so it is safe for -short runs.
func SetupSQLite(tb testing.TB) *db.SQLite {
	tb.Helper()
	ctx := context.Background()

	store, err := db.OpenSQLite(ctx, filepath.Join(tb.TempDir(), "updstatus.db"))
	if err != nil {
		tb.Fatalf("opening sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })

	if err := db.RunSQLiteMigrations(ctx, store.DB()); err != nil {
		tb.Fatalf("running sqlite migrations: %v", err)
	}
	return store
}
