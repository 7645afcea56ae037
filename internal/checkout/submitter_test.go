package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

type mockWriter struct {
	msgs []kafka.Message
	err  error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func testSubmission() Submission {
	draft := domain.OrderDraft{
		StoreID:  "store-a",
		Items:    []domain.OrderItem{{ProductID: "p1", Quantity: 1, Price: decimal.NewFromInt(3)}},
		Subtotal: decimal.NewFromInt(3),
		Total:    decimal.NewFromInt(3),
	}
	return NewSubmission(draft, "", "sess-1", "card", nil)
}

func TestKafkaSubmitter_WritesKeyedMessage(t *testing.T) {
	w := &mockWriter{}
	k := newKafkaSubmitter(w, nil)
	s := testSubmission()

	require.NoError(t, k.Submit(context.Background(), s))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "store-a", string(msg.Key))
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, eventTypeSubmitted, string(msg.Headers[0].Value))

	var decoded Submission
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, s.IdempotencyKey, decoded.IdempotencyKey)
}

func TestKafkaSubmitter_WriteError(t *testing.T) {
	k := newKafkaSubmitter(&mockWriter{err: errors.New("leader not available")}, nil)

	err := k.Submit(context.Background(), testSubmission())
	assert.ErrorIs(t, err, ErrSubmissionFailed)
	assert.ErrorContains(t, err, "leader not available")
}

func TestKafkaSubmitter_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	kafkaContainer, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)
	defer func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}()

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)

	k := NewKafkaSubmitter("order-submissions", nil, brokers...)
	defer k.Close()

	s := testSubmission()
	require.Eventually(t, func() bool {
		return k.Submit(ctx, s) == nil
	}, 30*time.Second, time.Second)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "order-submissions",
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	msg, err := reader.ReadMessage(readCtx)
	require.NoError(t, err)
	assert.Equal(t, "store-a", string(msg.Key))

	var got Submission
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, s.IdempotencyKey, got.IdempotencyKey)
}
