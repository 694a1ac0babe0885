package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	bgcheck "pension/internal/adapters/backgroundcheck"
	httpadapter "pension/internal/adapters/http"
	pg "pension/internal/adapters/postgres"
	"pension/internal/adapters/rabbitmq"
	"pension/internal/adapters/redisstream"
	"pension/internal/adapters/refids"
	"pension/internal/config"
	"pension/internal/logging"
	"pension/internal/ports"
	"pension/internal/services/accountopening"
	"pension/internal/workers/outboxrelay"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(".")
	logger := logging.New(cfg.LogLevel, cfg.Env == "development")
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// run wires the service and blocks until a signal or a server error. Its
// defers release the pool and broker before main exits.
func run(cfg config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL, pg.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}

	broker, closeBroker, err := newBroker(cfg, logger)
	if err != nil {
		return fmt.Errorf("event broker %s: %w", cfg.EventsBroker, err)
	}
	defer closeBroker()

	outbox := db.Outbox(cfg.RelayLease)
	var _ ports.AccountRepository = db
	var _ ports.AccountOpeningEventPublisher = outbox
	var _ ports.OutboxRepository = outbox

	checks := bgcheck.NewClient(cfg.BackgroundCheckURL, cfg.BackgroundCheckAPIKey, cfg.BackgroundCheckTimeout, logger)
	opener := accountopening.New(checks, refids.New(), db, outbox, accountopening.WithLogger(logger))

	if broker != nil && cfg.RelayWorkers > 0 {
		relay := outboxrelay.Relay{
			Outbox:      outbox,
			Publisher:   broker,
			MaxAttempts: cfg.RelayMaxAttempts,
			Log:         logger.With().Str("component", "outbox_relay").Logger(),
		}
		relay.Run(ctx, cfg.RelayWorkers, cfg.RelayPollInterval)
		logger.Info().Int("workers", cfg.RelayWorkers).Str("broker", cfg.EventsBroker).Msg("outbox relay started")
	} else {
		logger.Warn().Msg("outbox relay disabled; account events stay queued")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpadapter.New(opener, db, logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info().Str("addr", cfg.ListenAddr).Msg("listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
		shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("server shutdown failed")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

// newBroker returns the publisher the relay forwards to, or nil when events
// are kept in the outbox only.
func newBroker(cfg config.Config, logger zerolog.Logger) (ports.AccountOpeningEventPublisher, func(), error) {
	switch cfg.EventsBroker {
	case config.BrokerRabbitMQ:
		p, err := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
		if err != nil {
			return nil, func() {}, err
		}
		return p, p.Close, nil
	case config.BrokerRedis:
		client, err := redisstream.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, func() {}, err
		}
		return redisstream.NewPublisher(client, cfg.RedisStream, cfg.RedisStreamMaxLen), func() { _ = client.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}
