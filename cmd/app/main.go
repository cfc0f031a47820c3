// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatbot-commerce/internal/config"
	pg "chatbot-commerce/internal/infra/db/postgres"
	"chatbot-commerce/internal/infra/i18n"
	"chatbot-commerce/internal/infra/logging"
	"chatbot-commerce/internal/infra/payment"
	red "chatbot-commerce/internal/infra/redis"
	"chatbot-commerce/internal/infra/sched"
	"chatbot-commerce/internal/infra/transport"
	"chatbot-commerce/internal/infra/web"
	"chatbot-commerce/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, insecure cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- i18n ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Locale)
	if err != nil {
		logger.Fatal().Err(err).Str("locale", cfg.Locale).Msg("i18n")
	}

	// ---- Repositories ----
	tenantRepo := pg.NewTenantRepo(pool)
	productRepo := pg.NewProductRepo(pool)
	saleRepo := pg.NewSaleRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	purchaseRepo := pg.NewPurchaseRepo(pool)

	// ---- Adapters ----
	messengers := transport.NewProvider(cfg.WhatsApp)
	gateways := &payment.Factory{BaseURL: cfg.Payment.MercadoPago.BaseURL}

	// ---- Use cases ----
	executor := usecase.NewStepExecutor(logger)
	fulfillUC := usecase.NewFulfillmentUseCase(productRepo, userRepo, purchaseRepo, messengers, executor, tr, logger)
	checkoutUC := usecase.NewCheckoutUseCase(saleRepo, productRepo, gateways, fulfillUC, tr, logger)
	reconcileUC := usecase.NewReconcileUseCase(saleRepo, gateways, messengers, fulfillUC, executor, tr, logger)
	routerUC := usecase.NewRouterUseCase(userRepo, purchaseRepo, checkoutUC, messengers, executor, tr, logger)
	statsUC := usecase.NewStatsUseCase(tenantRepo, saleRepo, logger)
	sweeperUC := usecase.NewSweeperUseCase(tenantRepo, userRepo, purchaseRepo, productRepo, messengers, usecase.SweeperOptions{
		NotifyWindow:   time.Duration(cfg.Sweeper.NotifyWindowDays) * 24 * time.Hour,
		NotifyThrottle: time.Duration(cfg.Sweeper.NotifyThrottleHrs) * time.Hour,
		BatchLimit:     cfg.Sweeper.BatchLimit,
	}, tr, logger)

	// ---- HTTP server ----
	server := web.NewServer(routerUC, reconcileUC, sweeperUC, statsUC, tenantRepo, messengers, rateLimiter, cfg, logger)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			cancel()
		}
	}()

	// ---- Background workers ----
	sweepWorker := sched.NewSweepWorker(cfg.Sweeper.Interval, sweeperUC, locker, logger)
	go func() { _ = sweepWorker.Run(ctx) }()
	notifyWorker := sched.NewNotifyWorker(cfg.Sweeper.NotifyInterval, sweeperUC, locker, logger)
	go func() { _ = notifyWorker.Run(ctx) }()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
		logger.Info().Msg("shutdown requested")
	case <-ctx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
