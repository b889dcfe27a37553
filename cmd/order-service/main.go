package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cache"
	carthttp "github.com/danghoa77/e-project-be-sub000/internal/cart/http"
	cartrepo "github.com/danghoa77/e-project-be-sub000/internal/cart/repository"
	cartservice "github.com/danghoa77/e-project-be-sub000/internal/cart/service"
	"github.com/danghoa77/e-project-be-sub000/internal/clients"
	"github.com/danghoa77/e-project-be-sub000/internal/httpapi"
	orderhttp "github.com/danghoa77/e-project-be-sub000/internal/order/http"
	"github.com/danghoa77/e-project-be-sub000/internal/order/outbox"
	orderrepo "github.com/danghoa77/e-project-be-sub000/internal/order/repository"
	orderservice "github.com/danghoa77/e-project-be-sub000/internal/order/service"
	"github.com/danghoa77/e-project-be-sub000/internal/postgres"
	"github.com/danghoa77/e-project-be-sub000/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second
	clientTimeout  = 5 * time.Second
)

func main() {
	logger := logging.MustNewLogger("order-service", getEnv("ENV", "dev"))
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cred := &postgres.Credentials{
		Host:              getEnv("POSTGRES_HOST", "localhost"),
		Port:              getEnvInt("POSTGRES_PORT", 5432),
		User:              getEnv("POSTGRES_USER", "postgres"),
		Password:          getEnv("POSTGRES_PASSWORD", "postgres"),
		DBName:            getEnv("POSTGRES_DB", "eproject"),
		MigrationsDirPath: getEnv("MIGRATIONS_DIR", "migrations/order"),
	}
	db, err := postgres.Connect(cred)
	if err != nil {
		logger.Fatal("postgres_connect_failed", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.RunMigrations(db, cred, "orders_schema_migrations"); err != nil {
		logger.Fatal("migrations_failed", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis_connect_failed", zap.Error(err))
	}
	redisCache := cache.NewRedisCache(redisClient)

	productClient := clients.NewProductClient(getEnv("PRODUCT_SERVICE_URL", "http://localhost:8081"), clientTimeout)

	cartRepository := cartrepo.NewRepository(db)
	cartService := cartservice.NewCartService(cartRepository, redisCache, logger)
	cartHandler := carthttp.NewCartHandler(cartService, requestTimeout)

	orderRepository := orderrepo.NewRepository(db)
	checkoutService := orderservice.NewCheckoutService(cartRepository, orderRepository, productClient, redisCache, logger)
	orderService := orderservice.NewOrderService(orderRepository, redisCache, logger)
	orderHandler := orderhttp.NewOrderHandler(checkoutService, orderService, requestTimeout)

	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	publisher := outbox.NewKafkaPublisher(getEnv("ORDER_EVENTS_TOPIC", "order-events"), brokers...)
	defer publisher.Close()

	poller := outbox.NewPoller(orderRepository, productClient, publisher, logger)
	go poller.Run(ctx)

	router := chi.NewRouter()
	router.Use(httpapi.RequestID)
	router.Use(httpapi.Logger(logger))
	router.Handle("/metrics", promhttp.Handler())
	cartHandler.Register(router)
	orderHandler.Register(router)

	server := &http.Server{
		Addr:    ":" + getEnv("ORDER_SERVICE_PORT", "8082"),
		Handler: otelhttp.NewHandler(router, "order-service"),
	}

	go func() {
		logger.Info("http_server_start", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", zap.Error(err))
	} else {
		logger.Info("http_server_stopped")
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
