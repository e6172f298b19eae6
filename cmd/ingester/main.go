// Package main provides the seqtrack ingestion service.
//
// The service drains submission documents from a kafka topic and resolves
// them into the tracking database: run-processing submissions build the
// project > specimen > sample > readset graph, operation submissions record
// analysis executions against existing readsets.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/seqtrack-io/seqtrack/internal/config"
	"github.com/seqtrack-io/seqtrack/internal/endpoints"
	"github.com/seqtrack-io/seqtrack/internal/ingest"
	"github.com/seqtrack-io/seqtrack/internal/storage"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "ingester"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.GetEnvLogLevel("LOG_LEVEL", slog.LevelInfo),
	}))

	logger.Info("Starting seqtrack ingestion service",
		slog.String("service", name),
		slog.String("version", version),
	)

	endpointConfig, err := endpoints.LoadConfigFromEnv()
	if err != nil {
		logger.Warn("Endpoint alias config unavailable, deriving endpoints from uri schemes",
			slog.String("error", err.Error()),
		)
	}

	storageConfig := storage.LoadConfig()

	dbConn, err := storage.NewConnection(storageConfig)
	if err != nil {
		logger.Error("Failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		_ = dbConn.Close() // Ensure connection closes on normal shutdown
	}()

	store, err := storage.NewTrackingStore(dbConn,
		storage.WithEndpointAliases(endpointConfig),
		storage.WithLogger(logger),
	)
	if err != nil {
		logger.Error("Failed to create tracking store", slog.String("error", err.Error()))

		_ = dbConn.Close()
		//nolint:gocritic // Explicit cleanup before os.Exit is intentional (defer won't run)
		os.Exit(1)
	}

	logger.Info("Tracking store initialized",
		slog.String("database_url", storageConfig.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", storageConfig.MaxOpenConns),
		slog.Int("database_max_idle_conns", storageConfig.MaxIdleConns),
		slog.Duration("database_conn_max_lifetime", storageConfig.ConnMaxLifetime),
		slog.Duration("database_conn_max_idle_time", storageConfig.ConnMaxIdleTime),
	)

	ingester := ingest.NewIngester(store, ingest.WithLogger(logger))

	consumerConfig := ingest.LoadConsumerConfig()

	reader := consumerConfig.NewReader()
	defer func() {
		_ = reader.Close()
	}()

	logger.Info("Kafka consumer initialized",
		slog.Any("brokers", consumerConfig.Brokers),
		slog.String("topic", consumerConfig.Topic),
		slog.String("group_id", consumerConfig.GroupID),
		slog.Int("ingest_rps", consumerConfig.IngestRPS),
		slog.Int("ingest_burst", consumerConfig.Burst),
	)

	consumer := ingest.NewConsumer(consumerConfig, reader, ingester, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx); err != nil {
		logger.Error("Consumer stopped with error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("seqtrack ingestion service stopped")
}
