package notification

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := &LogNotifier{Logger: zap.New(core)}

	err := n.Notify(context.Background(), "order.paid", OrderEvent{
		OrderID:    "o1",
		UserID:     "u1",
		TotalPrice: 900000,
		Status:     "CONFIRMED",
	})
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "order_notification", entry.Message)
	assert.Equal(t, "order.paid", entry.ContextMap()["event_type"])
	assert.Equal(t, "o1", entry.ContextMap()["order_id"])
}

func TestHeaderValue(t *testing.T) {
	headers := []kafka.Header{
		{Key: "event_type", Value: []byte("order.created")},
		{Key: "other", Value: []byte("x")},
	}
	assert.Equal(t, "order.created", headerValue(headers, "event_type"))
	assert.Equal(t, "", headerValue(headers, "missing"))
}

func TestConsumerClose(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	c := NewConsumer(&LogNotifier{Logger: zap.NewNop()}, zap.New(core), "order-events", "localhost:9092")

	// Closing an idle reader succeeds and stays quiet.
	c.Close()
	assert.Equal(t, 0, logs.Len())
}
