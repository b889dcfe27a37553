package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danghoa77/e-project-be-sub000/internal/notification"
	"github.com/danghoa77/e-project-be-sub000/pkg/logging"
	"go.uber.org/zap"
)

func main() {
	logger := logging.MustNewLogger("notification-worker", getEnv("ENV", "dev"))
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	consumer := notification.NewConsumer(
		&notification.LogNotifier{Logger: logger},
		logger,
		getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		brokers...,
	)
	defer consumer.Close()

	logger.Info("notification_worker_start", zap.Strings("brokers", brokers))
	consumer.Run(ctx)
	logger.Info("notification_worker_stopped")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
