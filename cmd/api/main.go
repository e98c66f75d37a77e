package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mindhaven/mindhaven/internal/config"
	"github.com/mindhaven/mindhaven/internal/infra"
	"github.com/mindhaven/mindhaven/internal/logging"
	"github.com/mindhaven/mindhaven/internal/metrics"
	"github.com/mindhaven/mindhaven/internal/notification"
	"github.com/mindhaven/mindhaven/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	var notifier notification.Notifier
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notification.NewKafkaNotifier(cfg.KafkaBrokers)
		defer func() {
			if err := kafkaNotifier.Close(); err != nil {
				logger.Warn("close kafka writer", "error", err)
			}
		}()
		notifier = kafkaNotifier
		logger.Info("notifications routed to kafka", "brokers", cfg.KafkaBrokers)
	} else {
		notifier = notification.NewLoggerNotifier(logger)
	}

	collector := metrics.NewCollector()

	srv, err := server.New(cfg, db, cache, logger, notifier, collector)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
