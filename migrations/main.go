// The migrator maintains the seqtrack tracking database schema. Migration
// files are embedded in the binary, so the tool deploys with no external
// files; a verify command checks a live database for the schema objects the
// tracking store depends on.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/seqtrack-io/seqtrack/internal/config"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "migrator"
)

// migrationRunner is the command surface main dispatches on; Runner is the
// production implementation.
type migrationRunner interface {
	Up() error
	Down() error
	Status() error
	Version() error
	Verify(ctx context.Context) error
	Drop() error
}

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	command := flag.Arg(0)
	if command == "" {
		printUsage()
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	cfg, err := LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx := context.Background()

	runner, err := NewRunner(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to create migration runner", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = runner.Close()
	}()

	if err := runCommand(ctx, command, runner, os.Stdin); err != nil {
		logger.Error("Migration command failed",
			slog.String("command", command),
			slog.String("error", err.Error()),
		)

		_ = runner.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}
}

// runCommand dispatches a subcommand to the runner. Drop reads its
// confirmation from confirm so tests can script it.
func runCommand(ctx context.Context, command string, runner migrationRunner, confirm io.Reader) error {
	switch command {
	case "up":
		return runner.Up()
	case "down":
		return runner.Down()
	case "status":
		return runner.Status()
	case "version":
		return runner.Version()
	case "verify":
		return runner.Verify(ctx)
	case "drop":
		fmt.Print("This drops every table in the tracking database. Type 'drop' to continue: ")

		var response string

		_, _ = fmt.Fscanln(confirm, &response)

		if response != "drop" {
			fmt.Println("Operation cancelled.")

			return nil
		}

		return runner.Drop()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func printUsage() {
	fmt.Printf(`%s v%s - tracking database migration tool

USAGE:
    %s [OPTIONS] COMMAND

COMMANDS:
    up      Apply all pending migrations
    down    Roll back the last migration
    status  Show database schema version against this binary
    version Show current schema version
    verify  Check the live schema for required objects
    drop    Drop all tables (requires confirmation)

OPTIONS:
    --version  Show version information

ENVIRONMENT VARIABLES:
    DATABASE_URL     PostgreSQL connection string (required)
    MIGRATION_TABLE  Migration tracking table (default: schema_migrations)
    LOG_LEVEL        debug, info, warn or error (default: info)
`, name, version, name)
}
