// v0
// cmd/powerinsight/main.go
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"nrgchamp/powerinsight/internal/app"
	"nrgchamp/powerinsight/internal/config"
)

func main() {
	bootstrap := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("config_load_failed", slog.Any("err", err))
		os.Exit(1)
	}

	application, err := app.New(cfg)
	if err != nil {
		bootstrap.Error("app_init_failed", slog.Any("err", err))
		os.Exit(1)
	}

	logger := application.Logger()
	logger.Info("service_boot",
		slog.String("listen_address", cfg.ListenAddress),
		slog.String("log_path", cfg.LogFilePath),
		slog.String("properties_path", cfg.PropertiesPath),
		slog.String("backend_url", cfg.BackendURL),
		slog.Bool("redis_cache", cfg.RedisAddr != ""),
		slog.Bool("feed_enabled", cfg.FeedEnabled),
		slog.String("kafka_brokers", strings.Join(cfg.KafkaBrokers, ",")),
		slog.Bool("mqtt_notifications", cfg.MQTTBroker != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	runErr := application.Run(ctx)
	stop()

	if runErr != nil {
		logger.Error("service_terminated", slog.Any("err", runErr))
	} else {
		logger.Info("service_stopped")
	}
	if cerr := application.Close(); cerr != nil {
		bootstrap.Error("app_close_failed", slog.Any("err", cerr))
	}
	if runErr != nil {
		os.Exit(1)
	}
}
