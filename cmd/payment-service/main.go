package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danghoa77/e-project-be-sub000/internal/clients"
	"github.com/danghoa77/e-project-be-sub000/internal/httpapi"
	paymenthttp "github.com/danghoa77/e-project-be-sub000/internal/payment/http"
	"github.com/danghoa77/e-project-be-sub000/internal/payment/provider"
	"github.com/danghoa77/e-project-be-sub000/internal/payment/repository"
	"github.com/danghoa77/e-project-be-sub000/internal/payment/service"
	"github.com/danghoa77/e-project-be-sub000/internal/postgres"
	"github.com/danghoa77/e-project-be-sub000/pkg/logging"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	requestTimeout = 10 * time.Second
	clientTimeout  = 5 * time.Second
)

func main() {
	logger := logging.MustNewLogger("payment-service", getEnv("ENV", "dev"))
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
		MigrationsDirPath: getEnv("MIGRATIONS_DIR", "migrations/payment"),
	}
	db, err := postgres.Connect(cred)
	if err != nil {
		logger.Fatal("postgres_connect_failed", zap.Error(err))
	}
	defer db.Close()
	if err := postgres.RunMigrations(db, cred, "payments_schema_migrations"); err != nil {
		logger.Fatal("migrations_failed", zap.Error(err))
	}

	vnpay, err := provider.NewVNPay(provider.VNPayConfig{
		TmnCode:    getEnv("VNPAY_TMN_CODE", ""),
		HashSecret: getEnv("VNPAY_HASH_SECRET", ""),
		PayURL:     getEnv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
		ReturnURL:  getEnv("VNPAY_RETURN_URL", "http://localhost:8083/payments/vnpay/return"),
	})
	if err != nil {
		logger.Fatal("vnpay_config_invalid", zap.Error(err))
	}
	momo, err := provider.NewMoMo(provider.MoMoConfig{
		PartnerCode: getEnv("MOMO_PARTNER_CODE", ""),
		AccessKey:   getEnv("MOMO_ACCESS_KEY", ""),
		SecretKey:   getEnv("MOMO_SECRET_KEY", ""),
		PayURL:      getEnv("MOMO_PAY_URL", "https://test-payment.momo.vn/v2/gateway/api/create"),
		RedirectURL: getEnv("MOMO_REDIRECT_URL", "http://localhost:8083/payments/momo/return"),
		IPNURL:      getEnv("MOMO_IPN_URL", "http://localhost:8083/payments/momo/ipn"),
	})
	if err != nil {
		logger.Fatal("momo_config_invalid", zap.Error(err))
	}
	registry := provider.NewRegistry(vnpay, momo)

	orderClient := clients.NewOrderClient(getEnv("ORDER_SERVICE_URL", "http://localhost:8082"), clientTimeout)

	paymentRepository := repository.NewRepository(db)
	paymentService := service.NewPaymentService(paymentRepository, registry, orderClient, logger)
	handler := paymenthttp.NewPaymentHandler(paymentService, requestTimeout)

	router := chi.NewRouter()
	router.Use(httpapi.RequestID)
	router.Use(httpapi.Logger(logger))
	router.Handle("/metrics", promhttp.Handler())
	handler.Register(router)

	server := &http.Server{
		Addr:    ":" + getEnv("PAYMENT_SERVICE_PORT", "8083"),
		Handler: otelhttp.NewHandler(router, "payment-service"),
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
