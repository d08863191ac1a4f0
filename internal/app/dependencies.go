package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/auth"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	"github.com/vladislavdragonenkov/storefront/internal/ratelimit"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/version"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	Store    domain.Store
	Outbox   domain.OutboxRepository
	Orders   *order.Service
	Limiter  ratelimit.Limiter
	Admin    *auth.Verifier
	Mailer   *notify.Dispatcher
	Metrics  *metrics.OrderMetrics
	Producer *kafka.Producer
	Health   *health.Handler
	Clock    domain.Clock
	Logger   *log.Entry

	driver     StorageDriver
	redis      *redis.Client
	closeStore func() error
}

// NewDependencies открывает хранилище и собирает сервис заказов с его окружением.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	storage, err := initRuntimeStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{
		Store:      storage.store,
		Outbox:     storage.store,
		Clock:      domain.SystemClock,
		Logger:     logger,
		driver:     storage.driver,
		closeStore: storage.close,
	}

	deps.Metrics = metrics.NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
	deps.Mailer = notify.NewDispatcher(newSender(cfg, logger), logger, notify.WithDispatcherMetrics(deps.Metrics))

	deps.Limiter = ratelimit.NewMemoryLimiter(deps.Clock)
	if cfg.RedisAddr != "" {
		deps.redis = ratelimit.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		deps.Limiter = ratelimit.NewRedisLimiter(deps.redis, deps.Clock)
		logger.WithField("addr", cfg.RedisAddr).Info("redis rate limiter enabled")
	}

	if cfg.AdminJWTSecret != "" {
		deps.Admin = auth.NewVerifier([]byte(cfg.AdminJWTSecret),
			auth.WithAllowlist(cfg.AdminAllowlist),
			auth.WithMaxAuthAge(cfg.AdminMaxAuthAge),
			auth.WithIssuer(cfg.AdminIssuer),
			auth.WithClock(deps.Clock),
		)
	} else {
		logger.Warn("admin jwt secret is empty, admin endpoints are disabled")
	}

	deps.Orders = order.NewService(deps.Store,
		order.WithClock(deps.Clock),
		order.WithMailer(deps.Mailer),
		order.WithTemplates(notify.Templates{PublicBaseURL: cfg.PublicBaseURL}),
		order.WithMetrics(deps.Metrics),
		order.WithLogger(logger.WithField("layer", "order")),
	)

	if producer, err := initKafkaProducer(cfg.KafkaBrokers, cfg.KafkaClientID, logger); err == nil {
		deps.Producer = producer
	}

	deps.Health = health.NewHandler(version.GetVersion())
	deps.Health.RegisterChecker("storage", health.NewPingChecker(string(storage.driver), deps.Store))
	if deps.redis != nil {
		client := deps.redis
		deps.Health.RegisterChecker("redis", health.NewOptionalChecker("redis", health.PingerFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})))
	}

	return deps, nil
}

// newSender выбирает SMTP, если он настроен, иначе письма пишутся в лог.
func newSender(cfg Config, logger *log.Entry) notify.Sender {
	if cfg.SMTP.Enabled() {
		return notify.NewRetryingSender(notify.NewSMTPSender(cfg.SMTP))
	}
	logger.Info("smtp is not configured, emails are logged")
	return notify.NewLogSender(logger)
}

// Close дожидается отправки писем и закрывает внешние подключения.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	if d.Mailer != nil {
		if err := d.Mailer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	closeKafka(d.Producer, d.Logger)
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if d.closeStore != nil {
		if err := d.closeStore(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
