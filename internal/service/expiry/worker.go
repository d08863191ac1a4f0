// Package expiry периодически освобождает резервы просроченных заказов.
package expiry

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const defaultInterval = time.Minute

// Sweeper отменяет заказы с резервом, истёкшим раньше now.
type Sweeper interface {
	SweepExpiredReservations(ctx context.Context, now time.Time) (int, error)
}

// Options задает параметры воркера.
type Options struct {
	Logger   *log.Entry
	Interval time.Duration
	Clock    domain.Clock
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между проходами.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithClock подменяет источник времени.
func WithClock(clock domain.Clock) Option {
	return func(opts *Options) {
		opts.Clock = clock
	}
}

// Worker вызывает очистку по таймеру. Параллельный запуск через
// /api/cron/release-expired безопасен: каждый заказ перепроверяется в транзакции.
type Worker struct {
	sweeper  Sweeper
	logger   *log.Entry
	interval time.Duration
	clock    domain.Clock
}

// NewWorker создает воркер очистки резервов.
func NewWorker(sweeper Sweeper, options ...Option) *Worker {
	opts := Options{Interval: defaultInterval}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "expiry-worker")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = domain.SystemClock
	}

	return &Worker{
		sweeper:  sweeper,
		logger:   logger,
		interval: opts.Interval,
		clock:    opts.Clock,
	}
}

// Run выполняет проход сразу и затем каждые interval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.sweeper == nil {
		w.logger.Warn("expiry worker is disabled: sweeper is nil")
		return
	}

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход и возвращает число отменённых заказов.
func (w *Worker) RunOnce(ctx context.Context) int {
	processed, err := w.sweeper.SweepExpiredReservations(ctx, w.clock.Now())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return processed
		}
		w.logger.WithError(err).WithField("processed", processed).Warn("expiry sweep finished with errors")
		return processed
	}
	if processed > 0 {
		w.logger.WithField("processed", processed).Info("expired reservations released")
	}
	return processed
}
