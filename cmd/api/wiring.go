package main

import (
	"context"
	"fmt"

	"av-rental/internal/audit"
	"av-rental/internal/config"
	"av-rental/internal/idempotency"
	"av-rental/internal/payment"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// newGateways registers the providers enabled by cfg. In mock mode only the
// in-process provider is available.
func newGateways(cfg config.PaymentConfig, logger zerolog.Logger) (*payment.Registry, error) {
	if cfg.Environment == config.PaymentEnvMock {
		logger.Warn().Msg("payment environment is mock: no money will move")
		mock := payment.NewMock(payment.MockConfig{
			WebhookSecret: cfg.Mock.WebhookSecret,
			Status:        cfg.Mock.Status,
		}, logger)
		return payment.NewRegistry(payment.ProviderMock, mock), nil
	}

	var gateways []payment.Gateway
	if cfg.StripeEnabled() {
		stripe := payment.NewStripe(payment.StripeConfig{
			SecretKey:     cfg.Stripe.SecretKey,
			WebhookSecret: cfg.Stripe.WebhookSecret,
			APIURL:        cfg.Stripe.APIURL,
			Timeout:       cfg.Timeout,
		}, logger)
		gateways = append(gateways, payment.WithBreaker(stripe, payment.DefaultBreakerSettings(), logger))
	}
	if cfg.WorldlineEnabled() {
		worldline := payment.NewWorldline(payment.WorldlineConfig{
			MerchantID:    cfg.Worldline.MerchantID,
			APIKey:        cfg.Worldline.APIKey,
			APISecret:     cfg.Worldline.APISecret,
			WebhookSecret: cfg.Worldline.WebhookSecret,
			APIURL:        cfg.Worldline.APIURL,
			Timeout:       cfg.Timeout,
		}, logger)
		gateways = append(gateways, payment.WithBreaker(worldline, payment.DefaultBreakerSettings(), logger))
	}
	if len(gateways) == 0 {
		return nil, fmt.Errorf("no payment provider configured for environment %s", cfg.Environment)
	}

	registry := payment.NewRegistry(cfg.DefaultProvider, gateways...)
	logger.Info().
		Strs("providers", registry.Names()).
		Str("default", registry.Default()).
		Str("environment", string(cfg.Environment)).
		Msg("payment providers registered")
	return registry, nil
}

// newIdempotencyStore returns a Redis-backed store when an address is
// configured, the in-process store otherwise. The returned func closes the
// client.
func newIdempotencyStore(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (idempotency.Store, func(), error) {
	if cfg.Addr == "" {
		logger.Info().Msg("using in-memory idempotency store (REDIS_ADDR unset)")
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info().Str("addr", cfg.Addr).Msg("using redis idempotency store")
	return idempotency.NewRedisStore(client, cfg.IdempotencyTTL), func() { _ = client.Close() }, nil
}

// newArchiver archives to S3 when enabled, with the local directory as fallback.
func newArchiver(ctx context.Context, cfg config.S3Config, logger zerolog.Logger) audit.Archiver {
	fileArchiver := audit.NewFileArchiver(cfg.ArchiveDir, logger)
	if !cfg.Enabled {
		logger.Info().Str("dir", cfg.ArchiveDir).Msg("archiving webhook payloads to local file system (S3 disabled)")
		return fileArchiver
	}

	s3Archiver, err := audit.NewS3Archiver(ctx, cfg.Bucket, cfg.Region, cfg.Prefix, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 archiver, falling back to local file system only")
		return fileArchiver
	}
	return audit.NewFallbackArchiver(s3Archiver, fileArchiver, cfg.Prefix, true, logger)
}

// loadConfig loads configuration and builds the logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, config.NewLogger(cfg.Logger), nil
}
