package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seqtrack-io/seqtrack/internal/tracking"
)

// fakeSource feeds a fixed message sequence to a Consumer and records which
// offsets were committed. Once drained, FetchMessage reports ctx cancellation
// so Run returns cleanly.
type fakeSource struct {
	messages  []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeSource) FetchMessage(_ context.Context) (kafka.Message, error) {
	if len(f.messages) == 0 {
		f.cancel()

		return kafka.Message{}, context.Canceled
	}

	msg := f.messages[0]
	f.messages = f.messages[1:]

	return msg, nil
}

func (f *fakeSource) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, msg := range msgs {
		f.committed = append(f.committed, msg.Offset)
	}

	return nil
}

func envelopeBytes(t *testing.T, msgType string, payload any) []byte {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	data, err := json.Marshal(Message{Type: msgType, Payload: raw})
	require.NoError(t, err)

	return data
}

func runConsumer(t *testing.T, messages ...kafka.Message) (*fakeSource, *Ingester) {
	t.Helper()

	ingester, _ := newTestIngester(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := &fakeSource{messages: messages, cancel: cancel}
	consumer := NewConsumer(
		&ConsumerConfig{IngestRPS: 1000, Burst: 1000},
		source,
		ingester,
		slog.New(slog.NewJSONHandler(io.Discard, nil)),
	)

	require.NoError(t, consumer.Run(ctx))

	return source, ingester
}

func TestConsumerIngestsRunProcessing(t *testing.T) {
	source, ingester := runConsumer(t,
		kafka.Message{Offset: 7, Value: envelopeBytes(t, MessageTypeRunProcessing, runProcessingFixture())},
	)

	assert.Equal(t, []int64{7}, source.committed)

	scope, err := ingester.store.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = scope.Rollback() }()

	project, err := scope.GetProjectByName(context.Background(), "AS21")
	require.NoError(t, err)
	assert.Len(t, project.SpecimenIDs, 1)
}

func TestConsumerIngestsOperationAfterRunProcessing(t *testing.T) {
	source, ingester := runConsumer(t,
		kafka.Message{Offset: 1, Value: envelopeBytes(t, MessageTypeRunProcessing, runProcessingFixture())},
		kafka.Message{Offset: 2, Value: envelopeBytes(t, MessageTypeOperation, operationFixture())},
	)

	assert.Equal(t, []int64{1, 2}, source.committed)

	scope, err := ingester.store.Begin(context.Background())
	require.NoError(t, err)
	defer func() { _ = scope.Rollback() }()

	readset, err := scope.GetReadsetByName(context.Background(), "RS1")
	require.NoError(t, err)
	assert.Len(t, readset.OperationIDs, 1)
}

func TestConsumerCommitsRejectedMessages(t *testing.T) {
	// None of these can ever succeed; all must be committed so they do not
	// wedge the partition.
	invalid := runProcessingFixture()
	invalid.Experiment.NucleicAcidType = "PLASMID"

	source, _ := runConsumer(t,
		kafka.Message{Offset: 1, Value: []byte("not json")},
		kafka.Message{Offset: 2, Value: envelopeBytes(t, "telemetry", map[string]string{})},
		kafka.Message{Offset: 3, Value: envelopeBytes(t, MessageTypeRunProcessing, invalid)},
		kafka.Message{Offset: 4, Value: envelopeBytes(t, MessageTypeOperation, operationFixture())},
	)

	// Offset 4 names readsets that were never ingested, a permanent
	// rejection as well.
	assert.Equal(t, []int64{1, 2, 3, 4}, source.committed)
}

func TestIsRejection(t *testing.T) {
	assert.True(t, isRejection(ErrUnknownMessageType))
	assert.True(t, isRejection(ErrUnknownReadset))
	assert.True(t, isRejection(ErrInvalidEnumValue))
	assert.True(t, isRejection(&json.SyntaxError{}))

	// Store-level validation failures are permanent too; retrying the same
	// payload cannot make them pass.
	assert.True(t, isRejection(&tracking.ValidationError{Table: tracking.TableReadset, Field: "lane"}))
	assert.False(t, isRejection(errors.New("connection refused")))
	assert.False(t, isRejection(context.DeadlineExceeded))
}
