// Command digest runs one digest sweep and exits. It exists for cron-style
// deployments and for operators re-running a sweep by hand; the long-running
// daemon schedules the same sweeps itself.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"

	"duit/internal/amqp"
	"duit/internal/backend"
	"duit/internal/config"
	"duit/internal/log"
	"duit/internal/scheduler"
	"duit/internal/transport"
)

func main() {
	weekly := flag.Bool("weekly", false, "run the weekly digest instead of the daily one")
	stdout := flag.Bool("stdout", false, "log digests to stdout instead of publishing over AMQP")
	flag.Parse()

	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	be, err := backend.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize ledger backend", log.FieldError, err.Error())
		os.Exit(1)
	}
	if be.Cleanup != nil {
		defer be.Cleanup()
	}

	var sender transport.Sender
	if *stdout {
		sender = &transport.LogSender{Logger: logger}
	} else {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPInboundQueue, cfg.AMQPOutboundQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer client.Close()
		sender = client
	}

	// No prompter here: interrupting dialogs needs the daemon's session
	// store, and a cron sweep should not race it.
	sweeps := scheduler.New(be.Store, sender, cfg.DigestParallelism, logger)

	now := time.Now().In(loc)
	if *weekly {
		err = sweeps.RunWeekly(ctx, now)
	} else {
		err = sweeps.RunDaily(ctx, now)
	}
	if err != nil {
		if errors.Is(err, scheduler.ErrPartialSweep) {
			logger.Error("Digest sweep partially failed", log.FieldError, err.Error())
		} else {
			logger.Error("Digest sweep failed", log.FieldError, err.Error())
		}
		os.Exit(1)
	}
	logger.Info("Digest sweep complete")
}
