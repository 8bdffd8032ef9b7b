package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/inkwell-press/payments-service/internal/config"
	"github.com/inkwell-press/payments-service/internal/handler"
	"github.com/inkwell-press/payments-service/internal/logging"
	"github.com/inkwell-press/payments-service/internal/metrics"
	"github.com/inkwell-press/payments-service/internal/middleware"
	"github.com/inkwell-press/payments-service/internal/provider"
	"github.com/inkwell-press/payments-service/internal/repository"
	"github.com/inkwell-press/payments-service/internal/service/notify"
	"github.com/inkwell-press/payments-service/internal/service/order"
	"github.com/inkwell-press/payments-service/internal/service/settlement"
	"github.com/inkwell-press/payments-service/internal/service/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Init("payments-api", cfg.LogLevel, cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	m := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)

	orderRepo := repository.NewOrderRepository(db)
	grantRepo := repository.NewAccessGrantRepository(db)
	earningsRepo := repository.NewEarningsRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	userRepo := repository.NewUserRepository(db)
	jobRepo := repository.NewNotificationJobRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	gateway := provider.NewClient(
		cfg.ProviderURL, cfg.ProviderKeyID, cfg.ProviderSecret,
		time.Duration(cfg.ProviderTimeout)*time.Second,
	)

	dispatcher := notify.NewDispatcher(jobRepo)
	orderSvc := order.NewService(orderRepo, grantRepo, articleRepo, gateway, cfg.OrderTTL(), m)
	verifier := settlement.NewVerifier(orderRepo, cfg.ProviderSecret, m)
	engine := settlement.NewEngine(
		db, orderRepo, grantRepo, earningsRepo, walletRepo,
		articleRepo, userRepo, dispatcher, cfg.FeeRate(), m,
	)
	walletSvc := wallet.NewService(walletRepo, earningsRepo)

	worker := notify.NewWorker(
		jobRepo, notificationRepo,
		time.Duration(cfg.NotifyPollIntervalS)*time.Second,
		cfg.NotifyMaxAttempts, m, logger,
	)
	go worker.Start(ctx)

	reaper := order.NewReaper(
		orderRepo, time.Duration(cfg.ReaperIntervalS)*time.Second, m, logger,
	)
	go reaper.Start(ctx)

	payments := handler.NewPaymentsHandler(
		orderSvc, verifier, engine, walletSvc,
		cfg.ProviderKeyID, cfg.PlatformFeePercent,
	)
	health := handler.NewHealthHandler(db)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", health.Liveness)
	mux.HandleFunc("GET /health/ready", health.Readiness)
	mux.Handle("GET /metrics", promhttp.Handler())

	authed := middleware.Auth(cfg.JWTSecret)
	mux.Handle("POST /api/v1/payments/order", authed(http.HandlerFunc(payments.CreateOrder)))
	mux.HandleFunc("POST /api/v1/payments/verify", payments.VerifyCallback)
	mux.Handle("GET /api/v1/payments/history", authed(http.HandlerFunc(payments.History)))
	mux.Handle("GET /api/v1/payments/earnings", authed(http.HandlerFunc(payments.Earnings)))

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
