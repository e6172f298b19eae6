package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// ErrSchemaMismatch is returned by Verify when the live schema is missing an
// object the tracking store depends on.
var ErrSchemaMismatch = errors.New("schema mismatch")

// Runner drives schema migrations for the tracking database. The migration
// files are embedded in the binary and validated as a set before any SQL is
// executed.
type Runner struct {
	config  *Config
	migrate *migrate.Migrate
	db      *sql.DB
	files   []migrationFile
	logger  *slog.Logger
}

// migrateLogger adapts slog to the migrate.Logger interface.
type migrateLogger struct {
	logger *slog.Logger
}

var _ migrate.Logger = (*migrateLogger)(nil)

func (l *migrateLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf("migrate: "+format, v...))
}

func (l *migrateLogger) Verbose() bool { return false }

// NewRunner validates the embedded migration set, connects to the database
// and wires up golang-migrate with the embedded source.
func NewRunner(ctx context.Context, config *Config, logger *slog.Logger) (*Runner, error) {
	files, err := loadMigrationSet(embeddedMigrations)
	if err != nil {
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}

	logger.Info("embedded migrations validated",
		"steps", maxSequence(files),
		"database", config.RedactedURL(),
	)

	db, err := sql.Open("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("pinging database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable: config.MigrationTable,
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("creating postgres driver: %w", err)
	}

	source, err := iofs.New(embeddedMigrations, ".")
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("creating embedded source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}

	m.Log = &migrateLogger{logger: logger}

	return &Runner{
		config:  config,
		migrate: m,
		db:      db,
		files:   files,
		logger:  logger,
	}, nil
}

// Up applies all pending migrations.
func (r *Runner) Up() error {
	err := r.migrate.Up()

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		r.logger.Info("schema already up to date")
	case err != nil:
		return fmt.Errorf("migrate up: %w", err)
	default:
		r.logger.Info("migrations applied", "version", maxSequence(r.files))
	}

	return nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down() error {
	err := r.migrate.Steps(-1)

	switch {
	case errors.Is(err, migrate.ErrNoChange):
		r.logger.Info("nothing to roll back")
	case err != nil:
		return fmt.Errorf("migrate down: %w", err)
	default:
		r.logger.Info("last migration rolled back")
	}

	return nil
}

// Status reports the database schema version against what this binary can
// apply.
func (r *Runner) Status() error {
	version, dirty, err := r.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		version = 0
	} else if err != nil {
		return fmt.Errorf("reading version: %w", err)
	}

	available := maxSequence(r.files)

	r.logger.Info("migration status",
		"database_version", version,
		"available_version", available,
		"pending", available-int(version),
		"dirty", dirty,
	)

	if dirty {
		return fmt.Errorf("schema version %d is dirty and needs manual repair", version)
	}

	return nil
}

// Version logs the current schema version.
func (r *Runner) Version() error {
	version, dirty, err := r.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		r.logger.Info("no migrations applied")

		return nil
	} else if err != nil {
		return fmt.Errorf("reading version: %w", err)
	}

	r.logger.Info("schema version", "version", version, "dirty", dirty)

	return nil
}

// Drop removes every table in the database.
func (r *Runner) Drop() error {
	if err := r.migrate.Drop(); err != nil {
		return fmt.Errorf("migrate drop: %w", err)
	}

	r.logger.Info("all tables dropped")

	return nil
}

// Close releases the migrate source and both database handles.
func (r *Runner) Close() error {
	var errs []error

	if r.migrate != nil {
		sourceErr, dbErr := r.migrate.Close()
		if sourceErr != nil {
			errs = append(errs, fmt.Errorf("closing source: %w", sourceErr))
		}

		if dbErr != nil {
			errs = append(errs, fmt.Errorf("closing migrate connection: %w", dbErr))
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Schema objects the tracking store depends on. Kept in step with the
// migration files; Verify checks the live database against these lists.
var (
	schemaEnums = []string{
		"nucleic_acid_type",
		"lane_number",
		"sequencing_type",
		"readset_state",
		"operation_status",
		"metric_flag",
		"metric_aggregate",
	}

	// Every entity table carries a <table>_modification trigger that stamps
	// the modification column on update.
	entityTables = []string{
		"project", "specimen", "sample", "experiment", "run", "readset",
		"reference", "operation_config", "operation", "job", "metric",
		"file", "location",
	}

	// Ownership edges: deleting the parent must cascade to the child.
	cascadeEdges = [][2]string{
		{"specimen", "project"},
		{"sample", "specimen"},
		{"readset", "sample"},
		{"operation", "project"},
		{"job", "operation"},
		{"metric", "job"},
		{"location", "file"},
	}
)

// Verify checks the live schema for the objects the store depends on: the
// enum types, the modification trigger on every entity table, and cascading
// deletes along the ownership edges. It catches a database that was migrated
// by an older binary or patched by hand.
func (r *Runner) Verify(ctx context.Context) error {
	for _, enum := range schemaEnums {
		const q = `SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = $1 AND typtype = 'e')`

		var exists bool
		if err := r.db.QueryRowContext(ctx, q, enum).Scan(&exists); err != nil {
			return fmt.Errorf("checking enum %s: %w", enum, err)
		}

		if !exists {
			return fmt.Errorf("%w: enum type %s missing", ErrSchemaMismatch, enum)
		}
	}

	for _, table := range entityTables {
		const q = `SELECT EXISTS (
			SELECT 1 FROM pg_trigger t
			JOIN pg_class c ON c.oid = t.tgrelid
			WHERE c.relname = $1 AND t.tgname = $1 || '_modification' AND NOT t.tgisinternal)`

		var exists bool
		if err := r.db.QueryRowContext(ctx, q, table).Scan(&exists); err != nil {
			return fmt.Errorf("checking trigger on %s: %w", table, err)
		}

		if !exists {
			return fmt.Errorf("%w: modification trigger missing on %s", ErrSchemaMismatch, table)
		}
	}

	for _, edge := range cascadeEdges {
		const q = `SELECT EXISTS (
			SELECT 1 FROM information_schema.table_constraints tc
			JOIN information_schema.referential_constraints rc ON rc.constraint_name = tc.constraint_name
			JOIN information_schema.constraint_column_usage ccu ON ccu.constraint_name = tc.constraint_name
			WHERE tc.constraint_type = 'FOREIGN KEY'
			  AND tc.table_name = $1 AND ccu.table_name = $2 AND rc.delete_rule = 'CASCADE')`

		var exists bool
		if err := r.db.QueryRowContext(ctx, q, edge[0], edge[1]).Scan(&exists); err != nil {
			return fmt.Errorf("checking cascade %s -> %s: %w", edge[0], edge[1], err)
		}

		if !exists {
			return fmt.Errorf("%w: %s -> %s does not cascade on delete", ErrSchemaMismatch, edge[0], edge[1])
		}
	}

	r.logger.Info("schema verified",
		"enums", len(schemaEnums),
		"triggers", len(entityTables),
		"cascades", len(cascadeEdges),
	)

	return nil
}
