package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

const defaultTimeout = 2 * time.Minute

type sweeper interface {
	SweepExpiredReservations(ctx context.Context, now time.Time) (int, error)
}

// sweep выполняет один проход и печатает число отменённых заказов.
func sweep(ctx context.Context, s sweeper, clock domain.Clock, out io.Writer) (int, error) {
	now := clock.Now()
	released, err := s.SweepExpiredReservations(ctx, now)
	_, _ = fmt.Fprintf(out, "expiry sweep: now=%s released=%d\n", now.Format(time.RFC3339), released)
	if err != nil {
		return released, fmt.Errorf("sweep expired reservations: %w", err)
	}
	return released, nil
}

func run(ctx context.Context, cfg app.Config, out io.Writer) error {
	// События остаются в outbox: их опубликует воркер основного сервиса.
	cfg.KafkaBrokers = nil
	cfg.RedisAddr = ""

	logger := log.WithField("component", "expiry-sweep")
	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := deps.Close(closeCtx); err != nil {
			logger.WithError(err).Warn("failed to close dependencies")
		}
	}()

	released, err := sweep(ctx, deps.Orders, deps.Clock, out)
	logger.WithField("released", released).Info("expiry sweep finished")
	return err
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env")
	}

	timeout := flag.Duration("timeout", defaultTimeout, "overall deadline for the sweep")
	flag.Parse()

	cfg, err := app.FromEnv(app.DefaultConfig(), os.LookupEnv)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	log.WithFields(version.Fields()).WithField("storage", cfg.StorageDriver).Info("expiry sweep starting")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	err = run(ctx, cfg, os.Stdout)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("expiry sweep failed")
	}
}
