package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const (
	envLogLevel  = "STOREFRONT_LOG_LEVEL"
	envLogFormat = "STOREFRONT_LOG_FORMAT"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup app.LookupFunc) error {
	format, _ := lookup(envLogFormat)
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("%s: unsupported format %q", envLogFormat, format)
	}

	level := log.InfoLevel
	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		parsed, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Errorf("%s: %w", envLogLevel, err)
		}
		level = parsed
	}
	log.SetLevel(level)
	return nil
}

func main() {
	// .env удобен локально; в контейнере переменные приходят из окружения.
	envErr := godotenv.Load()

	if err := setupLogger(os.LookupEnv); err != nil {
		log.WithError(err).Fatal("invalid logging configuration")
	}
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.WithError(envErr).Warn("failed to load .env")
	}

	cfg, err := app.FromEnv(app.DefaultConfig(), os.LookupEnv)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"storage":      cfg.StorageDriver,
		"http_addr":    cfg.HTTPAddr,
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
	}).Info("запускаем storefront order-service")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		stop()
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("order-service остановлен")
}
