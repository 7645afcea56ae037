package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const StatusConfirmed = "confirmed"

// OrderEvent is published by the order backend when an order changes state.
type OrderEvent struct {
	SessionID string `json:"sessionId"`
	StoreID   string `json:"storeId"`
	OrderRef  string `json:"orderRef"`
	Status    string `json:"status"`
}

// CartClearer empties one store's cart for a session.
type CartClearer interface {
	ClearStoreCart(ctx context.Context, sessionID, storeID string) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

var errMalformedEvent = errors.New("malformed order event")

// Poller clears a store's cart once the backend confirms the order placed from it.
type Poller struct {
	reader messageReader
	carts  CartClearer
	logger *zap.Logger
}

func NewPoller(carts CartClearer, logger *zap.Logger, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(reader, carts, logger)
}

func newPoller(reader messageReader, carts CartClearer, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{reader: reader, carts: carts, logger: logger}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.readAndHandle(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) readAndHandle(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("error reading message", zap.Error(err))
		}
		return
	}

	if err := p.handle(ctx, m.Value); err != nil {
		p.logger.Warn("order event not applied",
			zap.Int64("offset", m.Offset),
			zap.Int("partition", m.Partition),
			zap.Error(err),
		)
	}
}

func (p *Poller) handle(ctx context.Context, value []byte) error {
	var ev OrderEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformedEvent, err)
	}
	if ev.SessionID == "" || ev.StoreID == "" {
		return fmt.Errorf("%w: missing sessionId or storeId", errMalformedEvent)
	}

	if !strings.EqualFold(ev.Status, StatusConfirmed) {
		p.logger.Debug("ignoring order event",
			zap.String("order_ref", ev.OrderRef),
			zap.String("status", ev.Status),
		)
		return nil
	}

	if err := p.carts.ClearStoreCart(ctx, ev.SessionID, ev.StoreID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}

	p.logger.Info("cart cleared after order confirmation",
		zap.String("session_id", ev.SessionID),
		zap.String("store_id", ev.StoreID),
		zap.String("order_ref", ev.OrderRef),
	)
	return nil
}
