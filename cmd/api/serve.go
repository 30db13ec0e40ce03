package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"av-rental/internal/auth"
	"av-rental/internal/database"
	"av-rental/internal/events"
	"av-rental/internal/handler"
	"av-rental/internal/repository"
	"av-rental/internal/router"
	"av-rental/internal/service"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info().Str("version", version).Msg("starting av-rental API server")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if cfg.Database.RunMigrations {
		if err := database.Migrate(cfg.Database, database.Up, logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	gateways, err := newGateways(cfg.Payment, logger)
	if err != nil {
		return err
	}

	store, closeStore, err := newIdempotencyStore(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := events.New(cfg.Events, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	archiver := newArchiver(ctx, cfg.S3, logger)

	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	eventRepo := repository.NewPaymentEventRepository(pool, logger)

	productService := service.NewProductService(productRepo, logger)
	cartService := service.NewCartService(cartRepo, productRepo, cfg.Site.Currency, logger)
	checkoutService := service.NewCheckoutService(
		service.CheckoutConfig{SiteURL: cfg.Site.URL, Locale: cfg.Site.Locale, Currency: cfg.Site.Currency},
		cartRepo, orderRepo, gateways, store, publisher, logger,
	)
	paymentService := service.NewPaymentService(orderRepo, eventRepo, gateways, archiver, publisher, logger)
	orderService := service.NewOrderService(orderRepo, logger)

	mux := router.New(router.Handlers{
		Product:  handler.NewProductHandler(productService, logger),
		Cart:     handler.NewCartHandler(cartService, logger),
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Webhook:  handler.NewWebhookHandler(paymentService, logger),
		Order:    handler.NewOrderHandler(orderService, logger),
	}, auth.NewJWTVerifier(cfg.Auth.JWTSecret), cfg.Server.RequestTimeout, logger)

	if cfg.Reconcile.Interval > 0 {
		reconciler := service.NewPendingReconciler(orderRepo, gateways, publisher, cfg.Reconcile.Grace, logger)
		go reconciler.Run(ctx, cfg.Reconcile.Interval)
	}

	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Stop the reconciler before draining requests.
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
