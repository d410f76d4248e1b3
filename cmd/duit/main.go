package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"duit/internal/amqp"
	"duit/internal/backend"
	"duit/internal/config"
	"duit/internal/dialog"
	"duit/internal/ledger"
	"duit/internal/log"
	"duit/internal/scheduler"
	"duit/internal/session"
	"duit/internal/transport"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting duit")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error())
		os.Exit(1)
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("Failed to resolve timezone", log.FieldError, err.Error())
		os.Exit(1)
	}
	now := func() time.Time { return time.Now().In(loc) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	be, err := backend.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", log.FieldError, err.Error())
		os.Exit(1)
	}
	if be.Cleanup != nil {
		defer be.Cleanup()
	}

	sessions, sessionCleanup, err := newSessionStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize session store", log.FieldError, err.Error())
		os.Exit(1)
	}
	if sessionCleanup != nil {
		defer sessionCleanup()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPInboundQueue, cfg.AMQPOutboundQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	recorder := ledger.NewRecorder(be.Store, logger).WithClock(now)
	reminders := scheduler.NewRegistry(amqpClient, logger).WithClock(now)
	defer reminders.Stop()

	engine := dialog.NewEngine(sessions, recorder, be.Store, be.Sharer, reminders, logger).WithClock(now)

	digests := scheduler.New(be.Store, amqpClient, cfg.DigestParallelism, logger).
		WithPrompter(engine).
		WithClock(now)

	// Consume inbound messages: one dialog turn per message, reply outbound.
	go func() {
		err := amqpClient.ConsumeInbound(ctx, func(ctx context.Context, msg transport.Inbound) error {
			reply, err := engine.Handle(ctx, msg.OwnerID, msg.Text)
			if err != nil {
				return err
			}
			return amqpClient.SendText(ctx, msg.OwnerID, reply)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Inbound consumption failed", log.FieldError, err.Error())
		}
		cancel()
	}()

	go digests.Run(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down...")
	cancel()
	time.Sleep(time.Second)
	logger.Info("Shutdown complete")
}

func newSessionStore(cfg *config.Config, logger *log.Logger) (session.Store, func() error, error) {
	l := logger.WithComponent(log.ComponentSession)
	switch cfg.SessionBackend {
	case "redis":
		store, err := session.NewRedisStore(cfg.RedisAddr, cfg.RedisDB, cfg.RedisPassword, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		l.Info("initialized redis session store", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		return store, store.Close, nil
	default:
		l.Info("initialized memory session store")
		return session.NewMemoryStore(), nil, nil
	}
}
