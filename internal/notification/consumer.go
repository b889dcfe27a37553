package notification

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// OrderEvent is the payload shape published by the order outbox.
type OrderEvent struct {
	OrderID    string `json:"order_id"`
	UserID     string `json:"user_id"`
	TotalPrice int64  `json:"total_price"`
	Status     string `json:"status"`
	Method     string `json:"method,omitempty"`
}

// Notifier delivers one user-facing notification. The default
// implementation just logs; a mail or push sender plugs in here.
type Notifier interface {
	Notify(ctx context.Context, eventType string, event OrderEvent) error
}

type LogNotifier struct {
	Logger *zap.Logger
}

func (n *LogNotifier) Notify(_ context.Context, eventType string, event OrderEvent) error {
	n.Logger.Info("order_notification",
		zap.String("event_type", eventType),
		zap.String("order_id", event.OrderID),
		zap.String("user_id", event.UserID),
		zap.String("status", event.Status),
		zap.Int64("total_price", event.TotalPrice),
	)
	return nil
}

type Consumer struct {
	reader   *kafka.Reader
	notifier Notifier
	logger   *zap.Logger
}

func NewConsumer(notifier Notifier, logger *zap.Logger, topic string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  "notification-worker",
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reader: reader, notifier: notifier, logger: logger}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("notification_reader_close_failed", zap.Error(err))
	}
}

func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.Error("notification_read_failed", zap.Error(err))
		return
	}

	eventType := headerValue(m.Headers, "event_type")

	var event OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		c.logger.Error("notification_payload_invalid",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := c.notifier.Notify(ctx, eventType, event); err != nil {
		c.logger.Error("notification_delivery_failed",
			zap.String("event_type", eventType),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
