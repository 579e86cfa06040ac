package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpAdapter "github.com/escrowd/escrowd/internal/adapter/http"
	"github.com/escrowd/escrowd/internal/adapter/http/dto"
	"github.com/escrowd/escrowd/internal/adapter/http/handler"
	"github.com/escrowd/escrowd/internal/adapter/http/middleware"
	postgresRepo "github.com/escrowd/escrowd/internal/adapter/repository/postgres"
	redisRepo "github.com/escrowd/escrowd/internal/adapter/repository/redis"
	"github.com/escrowd/escrowd/internal/infrastructure/config"
	"github.com/escrowd/escrowd/internal/infrastructure/expiry"
	"github.com/escrowd/escrowd/internal/infrastructure/logger"
	"github.com/escrowd/escrowd/internal/infrastructure/metrics"
	"github.com/escrowd/escrowd/internal/infrastructure/notifier"
	"github.com/escrowd/escrowd/internal/infrastructure/postgres"
	"github.com/escrowd/escrowd/internal/infrastructure/redis"
	"github.com/escrowd/escrowd/internal/usecase"
)

const migrationsPath = "file://migrations"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := postgres.RunMigrations(cfg.DatabaseURL, migrationsPath, log); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DatabaseMaxConns,
		MinConns:    cfg.DatabaseMinConns,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer pool.Close()
	log.Info().Msg("connected to postgres")

	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to redis")

	m := metrics.New()

	// Repositories
	txManager := postgresRepo.NewTxManager(pool)
	accountRepo := postgresRepo.NewAccountRepository(pool)
	transferRepo := postgresRepo.NewTransferRepository(pool)
	entryRepo := postgresRepo.NewEntryRepository(pool)
	ledgerRepo := postgresRepo.NewLedgerRepository(pool)
	outboxRepo := postgresRepo.NewOutboxRepository(pool)
	var transferOutbox usecase.OutboxRepository = outboxRepo
	if !cfg.NotificationsEnabled {
		transferOutbox = postgresRepo.NewNullOutboxRepository()
	}
	idempotencyStore := redisRepo.NewIdempotencyStore(redisClient)
	fulfillmentCache := redisRepo.NewCache(redisClient)
	idGen := postgresRepo.NewULIDGenerator()

	// Use cases
	ledger := usecase.NewLedger(accountRepo, entryRepo, idGen)
	accountUC := usecase.NewAccountUseCase(accountRepo)
	transferUC := usecase.NewTransferUseCase(
		txManager,
		ledger,
		transferRepo,
		transferOutbox,
		nil,
		idGen,
		usecase.AmountSpec{Precision: cfg.AmountPrecision, Scale: cfg.AmountScale},
		m,
	)
	consistencyUC := usecase.NewConsistencyUseCase(ledgerRepo)

	if err := accountUC.Seed(ctx, usecase.SeedInput{
		AdminName:     cfg.AdminName,
		AdminPassword: cfg.AdminPassword,
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to seed system accounts")
	}

	// Notification signing
	var signer *notifier.Signer
	if cfg.NotificationSigningKey != "" {
		signer, err = notifier.NewSigner(cfg.NotificationSigningKey)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid notification signing key")
		}
	}

	if cfg.NotificationsEnabled {
		var publisher notifier.Publisher
		if cfg.AMQPURL != "" {
			amqpPublisher, err := notifier.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
			if err != nil {
				log.Fatal().Err(err).Msg("failed to connect to amqp broker")
			}
			defer amqpPublisher.Close()
			publisher = amqpPublisher
			log.Info().Str("exchange", cfg.AMQPExchange).Msg("publishing notifications to amqp")
		} else {
			publisher = notifier.NewLogPublisher(log)
			log.Info().Msg("no amqp broker configured, logging notifications")
		}

		notifierWorker := notifier.NewWorker(notifier.Config{
			OutboxRepo: outboxRepo,
			Publisher:  publisher,
			Signer:     signer,
			Logger:     log,
			Metrics:    m,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxPollInterval,
			Retention:  cfg.OutboxRetention,
		})
		go notifierWorker.Start(ctx)
	} else {
		log.Info().Msg("notifications disabled")
	}

	sweeper := expiry.NewSweeper(expiry.Config{
		Expirer:   transferUC,
		Retrier:   postgresRepo.NewRetrier(log),
		Logger:    log,
		Metrics:   m,
		Interval:  cfg.SweepInterval,
		BatchSize: cfg.SweepBatchSize,
	})
	go sweeper.Start(ctx)

	metadata := dto.LedgerMetadata{
		BaseURI:   cfg.BaseURL,
		Precision: int(cfg.AmountPrecision),
		Scale:     int(cfg.AmountScale),
	}
	if signer != nil {
		metadata.ConditionSignPublicKey = signer.PublicKey()
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		TransferHandler:  handler.NewTransferHandler(transferUC, fulfillmentCache),
		AccountHandler:   handler.NewAccountHandler(accountUC),
		EntryHandler:     handler.NewEntryHandler(entryRepo),
		LedgerHandler:    handler.NewLedgerHandler(consistencyUC, metadata),
		HealthHandler:    handler.NewHealthHandler(pool, redisClient),
		Auth:             middleware.NewAuthMiddleware(accountUC, m),
		IdempotencyStore: idempotencyStore,
		RateLimiter:      middleware.NewRateLimiter(100, 200),
		Logger:           log,
		Metrics:          m,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
