package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/cache"
	"github.com/danghoa77/e-project-be-sub000/internal/httpapi"
	producthttp "github.com/danghoa77/e-project-be-sub000/internal/product/http"
	"github.com/danghoa77/e-project-be-sub000/internal/product/repository"
	"github.com/danghoa77/e-project-be-sub000/internal/product/service"
	"github.com/danghoa77/e-project-be-sub000/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const requestTimeout = 5 * time.Second

func main() {
	logger := logging.MustNewLogger("product-service", getEnv("ENV", "dev"))
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.ConnectMongoDB(ctx, getEnv("MONGO_URI", "mongodb://localhost:27017"), getEnv("MONGO_DB", "eproject"))
	if err != nil {
		logger.Fatal("mongo_connect_failed", zap.Error(err))
	}
	repo := repository.NewMongoRepository(db)
	defer repo.Close(context.Background())

	redisClient := redis.NewClient(&redis.Options{
		Addr: getEnv("REDIS_ADDR", "localhost:6379"),
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("redis_connect_failed", zap.Error(err))
	}

	productService := service.NewProductService(repo, cache.NewRedisCache(redisClient), logger)
	handler := producthttp.NewProductHandler(productService, requestTimeout)

	router := chi.NewRouter()
	router.Use(httpapi.RequestID)
	router.Use(httpapi.Logger(logger))
	router.Handle("/metrics", promhttp.Handler())
	handler.Register(router)

	server := &http.Server{
		Addr:    ":" + getEnv("PRODUCT_SERVICE_PORT", "8081"),
		Handler: otelhttp.NewHandler(router, "product-service"),
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
