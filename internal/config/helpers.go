package config

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file:// migration source
)

// The path works from any internal/<pkg> directory; integration tests under
// deeper or shallower packages need their own setup.
const migrationSourceURL = "file://../../migrations"

const containerStartupTimeout = 120 * time.Second

// TestDatabase bundles the container and connection an integration test runs
// against. Cleanup stays with the caller via t.Cleanup.
type TestDatabase struct {
	Container  *postgres.PostgresContainer
	Connection *sql.DB
}

// SetupTestDatabase starts a disposable PostgreSQL container, applies the
// project's migrations and returns an open connection to the migrated
// database. Tests guard it with testing.Short().
func SetupTestDatabase(ctx context.Context, t *testing.T) *TestDatabase {
	t.Helper()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("seqtrack_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			// The postgres image restarts once during init; wait for the
			// second ready line.
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(containerStartupTimeout),
		),
	)
	require.NoError(t, err, "starting postgres container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "reading container connection string")

	conn, err := sql.Open("postgres", connStr)
	require.NoError(t, err, "opening database")

	if err := RunTestMigrations(conn); err != nil {
		_ = conn.Close()
		_ = container.Terminate(ctx)

		t.Fatalf("running migrations: %v", err)
	}

	return &TestDatabase{
		Container:  container,
		Connection: conn,
	}
}

// RunTestMigrations applies every migration from the migrations directory to
// db. Already-applied migrations are not an error.
func RunTestMigrations(db *sql.DB) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance(migrationSourceURL, "postgres", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	return nil
}
