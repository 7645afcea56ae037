package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const eventTypeSubmitted = "OrderSubmitted"

type Submitter interface {
	Submit(ctx context.Context, s Submission) error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSubmitter publishes submissions for the order backend to pick up.
type KafkaSubmitter struct {
	writer messageWriter
	logger *zap.Logger
}

func NewKafkaSubmitter(topic string, logger *zap.Logger, brokers ...string) *KafkaSubmitter {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return newKafkaSubmitter(w, logger)
}

func newKafkaSubmitter(w messageWriter, logger *zap.Logger) *KafkaSubmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaSubmitter{writer: w, logger: logger}
}

func (k *KafkaSubmitter) Submit(ctx context.Context, s Submission) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("%w: marshal submission: %v", ErrSubmissionFailed, err)
	}

	msg := kafka.Message{
		Key:   []byte(s.StoreID), // orders of one store stay on one partition
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventTypeSubmitted)},
			{Key: "idempotency_key", Value: []byte(s.IdempotencyKey)},
		},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.Error("failed to publish order submission",
			zap.String("store_id", s.StoreID),
			zap.String("idempotency_key", s.IdempotencyKey),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	k.logger.Info("order submitted",
		zap.String("store_id", s.StoreID),
		zap.String("idempotency_key", s.IdempotencyKey),
		zap.Int("items", len(s.Items)),
	)
	return nil
}

func (k *KafkaSubmitter) Close() error {
	return k.writer.Close()
}
