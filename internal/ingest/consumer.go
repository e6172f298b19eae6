package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"golang.org/x/time/rate"

	"github.com/seqtrack-io/seqtrack/internal/config"
	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

// Message types accepted on the submission topic.
const (
	MessageTypeRunProcessing = "run_processing"
	MessageTypeOperation     = "operation"
)

const (
	defaultTopic      = "seqtrack.submissions"
	defaultGroupID    = "seqtrack-ingester"
	defaultBrokers    = "localhost:9092"
	defaultMaxBytes   = 4 * 1024 * 1024
	defaultMaxWait    = 10 * time.Second
	defaultIngestRPS  = 10
	defaultBurst      = 20
	defaultRetryDelay = time.Second
)

// ErrUnknownMessageType is returned when a message envelope names a type the
// consumer does not handle.
var ErrUnknownMessageType = errors.New("unknown message type")

type (
	// Message is the envelope carried on the submission topic. Type selects
	// the payload schema: a RunProcessingSubmission or an OperationSubmission.
	Message struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}

	// MessageSource abstracts the fetch/commit cycle of a kafka consumer
	// group reader. *kafka.Reader satisfies it; closing the reader stays
	// with whoever created it.
	MessageSource interface {
		FetchMessage(ctx context.Context) (kafka.Message, error)
		CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	}

	// ConsumerConfig holds the kafka consumer settings.
	ConsumerConfig struct {
		Brokers []string
		Topic   string
		GroupID string

		// IngestRPS caps how many submissions per second the consumer
		// hands to the ingester. Burst allows short spikes above it.
		IngestRPS int
		Burst     int
	}

	// Consumer drains submission messages from kafka and feeds them to an
	// Ingester. Offsets are committed after each message is handled, so a
	// crash replays at most the in-flight message; ingestion is idempotent,
	// so the replay is harmless.
	Consumer struct {
		source   MessageSource
		ingester *Ingester
		limiter  *rate.Limiter
		logger   *slog.Logger
	}
)

// LoadConsumerConfig loads kafka consumer configuration from environment
// variables with fallback to defaults.
func LoadConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers: config.ParseCommaSeparatedList(config.GetEnvStr("KAFKA_BROKERS", defaultBrokers)),
		Topic:   config.GetEnvStr("KAFKA_TOPIC", defaultTopic),
		GroupID: config.GetEnvStr("KAFKA_GROUP_ID", defaultGroupID),

		IngestRPS: config.GetEnvInt("INGEST_RPS", defaultIngestRPS),
		Burst:     config.GetEnvInt("INGEST_BURST", defaultBurst),
	}
}

// NewReader creates a consumer-group kafka reader for the configured topic.
func (c *ConsumerConfig) NewReader() *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MaxBytes:       defaultMaxBytes,
		MaxWait:        defaultMaxWait,
		IsolationLevel: kafka.ReadCommitted,
	})
}

// NewConsumer creates a consumer draining source into ingester.
func NewConsumer(cfg *ConsumerConfig, source MessageSource, ingester *Ingester, logger *slog.Logger) *Consumer {
	return &Consumer{
		source:   source,
		ingester: ingester,
		limiter:  rate.NewLimiter(rate.Limit(cfg.IngestRPS), cfg.Burst),
		logger:   logger,
	}
}

// Run consumes messages until ctx is cancelled. Malformed or rejected
// messages are logged and committed so a poison message cannot wedge the
// partition; only storage-level failures leave the offset uncommitted for
// redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.source.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}

			return fmt.Errorf("fetch message: %w", err)
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil // ctx cancelled while throttled
		}

		if err := c.handle(ctx, msg); err != nil {
			c.logger.Error("submission failed, leaving offset for redelivery",
				"topic", msg.Topic,
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(defaultRetryDelay):
			}

			continue
		}

		if err := c.source.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}

			return fmt.Errorf("commit offset: %w", err)
		}
	}
}

// handle dispatches one message. A nil return means the offset can be
// committed, including for messages that were rejected rather than ingested.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var envelope Message
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		c.logger.Error("discarding malformed message",
			"offset", msg.Offset,
			"error", err,
		)

		return nil
	}

	var result *Result

	var err error

	switch envelope.Type {
	case MessageTypeRunProcessing:
		var sub RunProcessingSubmission
		if jsonErr := json.Unmarshal(envelope.Payload, &sub); jsonErr != nil {
			err = jsonErr
		} else {
			result, err = c.ingester.IngestRunProcessing(ctx, &sub)
		}
	case MessageTypeOperation:
		var sub OperationSubmission
		if jsonErr := json.Unmarshal(envelope.Payload, &sub); jsonErr != nil {
			err = jsonErr
		} else {
			result, err = c.ingester.IngestOperation(ctx, &sub)
		}
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownMessageType, envelope.Type)
	}

	if err != nil {
		if isRejection(err) {
			c.logger.Error("discarding rejected submission",
				"type", envelope.Type,
				"offset", msg.Offset,
				"error", err,
			)

			return nil
		}

		return err
	}

	c.logger.Info("submission ingested",
		"type", envelope.Type,
		"batch_id", result.BatchID.String(),
		"project_id", result.ProjectID,
		"offset", msg.Offset,
	)

	return nil
}

// rejections lists the errors that mark a submission which can never succeed
// on retry. Anything else is treated as transient and left for redelivery.
var rejections = []error{
	ErrUnknownMessageType,
	ErrUnknownReadset,
	ErrNilSubmission,
	ErrMissingProjectName,
	ErrMissingNucleicAcid,
	ErrNoSpecimens,
	ErrMissingSpecimenName,
	ErrMissingSampleName,
	ErrMissingReadsetName,
	ErrMissingFileName,
	ErrMissingLocationURI,
	ErrMissingMetricName,
	ErrNoReadsets,
	ErrEmptyConfigPayload,
	ErrInvalidEnumValue,
	tracking.ErrValidation,
}

func isRejection(err error) bool {
	for _, rejection := range rejections {
		if errors.Is(err, rejection) {
			return true
		}
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return true
	}

	var typeErr *json.UnmarshalTypeError

	return errors.As(err, &typeErr)
}
