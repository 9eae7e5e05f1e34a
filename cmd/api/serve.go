package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/vaidashi/backoffice-api/internal/api"
	"github.com/vaidashi/backoffice-api/internal/cache"
	"github.com/vaidashi/backoffice-api/internal/config"
	"github.com/vaidashi/backoffice-api/internal/database"
	"github.com/vaidashi/backoffice-api/internal/handlers"
	"github.com/vaidashi/backoffice-api/internal/metrics"
	"github.com/vaidashi/backoffice-api/internal/models"
	"github.com/vaidashi/backoffice-api/internal/outbox"
	"github.com/vaidashi/backoffice-api/internal/repository"
	"github.com/vaidashi/backoffice-api/internal/service"
	"github.com/vaidashi/backoffice-api/internal/tracing"
	"github.com/vaidashi/backoffice-api/internal/transition"
	"github.com/vaidashi/backoffice-api/pkg/circuitbreaker"
	"github.com/vaidashi/backoffice-api/pkg/kafka"
	"github.com/vaidashi/backoffice-api/pkg/logger"
	"github.com/vaidashi/backoffice-api/pkg/middleware"
	"github.com/vaidashi/backoffice-api/pkg/retry"
)

func serve(c *cli.Context) error {
	cfg, l, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync(l)

	l.Info("Starting back-office API", "env", cfg.Env, "port", cfg.Port)

	shutdownTracing, err := tracing.Init(cfg.Tracing, cfg.Env, l)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			l.Warn("Failed to flush traces", "error", err)
		}
	}()

	db, err := database.New(cfg, l)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := db.RunMigrations(); err != nil {
			return err
		}
	}

	entityCache, err := cache.NewEntityCache(cfg.Cache)
	if err != nil {
		// Reads fall back to the database.
		l.Warn("Entity cache unavailable, continuing without it", "error", err)
		entityCache = cache.NewNoopEntityCache()
	}
	defer entityCache.Close()

	m := metrics.New()

	// Repositories
	variantRepo := repository.NewVariantRepository(db, l)
	orderRepo := repository.NewOrderRepository(db, l)
	poRepo := repository.NewPurchaseOrderRepository(db, l)
	icRepo := repository.NewInventoryCheckRepository(db, l)
	srRepo := repository.NewSupportRequestRepository(db, l)
	historyRepo := repository.NewHistoryRepository(db, l)
	dlqRepo := repository.NewDeadLetterRepository(db, l)
	outboxRepo := repository.NewOutboxRepository(db, dlqRepo, l)

	// Transition engine and its side effects
	engine := transition.NewEngine(
		repository.NewTransitionStore(db, historyRepo),
		models.TransitionTables(),
		l,
		transition.WithObserver(m),
	)
	err = service.RegisterEffects(engine, service.Repositories{
		Variants:        variantRepo,
		Orders:          orderRepo,
		PurchaseOrders:  poRepo,
		InventoryChecks: icRepo,
		Outbox:          outboxRepo,
	})
	if err != nil {
		return err
	}

	transitions := service.NewTransitionService(engine, historyRepo, entityCache, l)

	deps := api.Dependencies{
		Orders:          service.NewOrderService(db, orderRepo, variantRepo, outboxRepo, transitions, entityCache, l),
		PurchaseOrders:  service.NewPurchaseOrderService(db, poRepo, variantRepo, outboxRepo, transitions, entityCache, l),
		InventoryChecks: service.NewInventoryCheckService(db, icRepo, variantRepo, outboxRepo, transitions, entityCache, l),
		SupportRequests: service.NewSupportRequestService(db, srRepo, outboxRepo, transitions, entityCache, l),
		Variants:        service.NewVariantService(variantRepo, l),
		DeadLetters:     service.NewDeadLetterService(db, dlqRepo, outboxRepo, l),
		Health:          db,
		Actor:           middleware.NewActorMiddleware(cfg.Auth.JWTSecret, l),
		Metrics:         m.Handler(),
		ObserveRequests: m.ObserveRequest,
	}
	if cfg.RateLimit.Enabled {
		deps.RateLimiter = middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
			MaxTokens:         cfg.RateLimit.MaxTokens,
			RefillRate:        cfg.RateLimit.RefillRate,
			TrustForwardedFor: cfg.RateLimit.TrustForwardedFor,
		}, l)
	}

	// Outbox processor
	processor := outbox.NewProcessor(outboxRepo, outbox.ProcessorConfig{
		PollingInterval: cfg.Outbox.PollInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
		ClaimLease:      cfg.Outbox.ClaimLease,
	}, m, l)

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		producer, breaker, err := newPublisher(cfg, l)
		if err != nil {
			return err
		}
		defer producer.Close()

		deps.Breaker = breaker
		processor.RegisterFallback(outbox.NewKafkaHandler(producer, cfg.Kafka.StatusTopic, breaker, retry.RetryConfig{MaxAttempts: 3}, l))

		consumer, err = kafka.NewConsumer(&kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topics:        []string{cfg.Kafka.StatusTopic},
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
			RetryDelay:    5 * time.Second,
		}, l)
		if err != nil {
			return err
		}
		consumer.RegisterHandler(cfg.Kafka.StatusTopic, handlers.NewStatusEventsHandler(entityCache, l))
	} else {
		l.Info("Kafka disabled, outbox events are logged only")
		processor.RegisterFallback(outbox.NewLoggingHandler(l))
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	processor.Start(ctx)
	defer processor.Stop()

	if consumer != nil {
		if err := consumer.Start(); err != nil {
			return err
		}
		defer func() {
			if err := consumer.Stop(); err != nil {
				l.Error("Failed to stop status event consumer", "error", err)
			}
		}()
	}

	server := api.NewServer(cfg, deps, l)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			l.Error("HTTP server failed", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	l.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("Server forced to shutdown", "error", err)
		return err
	}

	l.Info("Server exiting")
	return nil
}

// newPublisher connects the producer that drains the outbox and the breaker guarding it
func newPublisher(cfg *config.Config, l logger.Logger) (*kafka.Producer, *circuitbreaker.CircuitBreaker, error) {
	producer, err := kafka.NewProducer(&kafka.ProducerConfig{
		Brokers:  cfg.Kafka.Brokers,
		ClientID: cfg.Kafka.ClientID,
		Timeout:  10 * time.Second,
	}, l)
	if err != nil {
		return nil, nil, err
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	})
	return producer, breaker, nil
}

