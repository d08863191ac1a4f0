// Package order реализует операции ядра витрины: резервирование товара при создании заказа,
// приём заявки об оплате, смену статуса администратором и очистку просроченных резервов.
//
// Каждая операция выполняется в одной транзакции хранилища. Внутри транзакции сначала
// выполняются все чтения, затем все записи. Письма отправляются только после коммита.
package order

import (
	"context"
	"time"

	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
)

// Имена операций для метрик и логов.
const (
	opCreateOrder    = "create_order"
	opSubmitPayment  = "submit_payment"
	opUpdateStatus   = "update_status"
	opExpireOrder    = "expire_order"
	opTrackOrder     = "track_order"
	opUpsertProduct  = "upsert_product"
	opUpdateSettings = "update_settings"
)

const (
	orderSequenceName = "orders"
	publicCodeFormat  = "OD-%04d"
	sweepBatchLimit   = 50
)

// Metrics принимает метрики сервиса.
type Metrics interface {
	RecordOrderCreated(idempotent bool, units int)
	RecordFailure(operation, code string)
	RecordPaymentSubmitted(idempotent bool)
	RecordTransition(from, to string)
	RecordUnitsReleased(units int)
	RecordExpiredReleased()
	RecordSweepFailure()
	RecordSweepDuration(duration time.Duration)
	RecordTxDuration(operation string, duration time.Duration)
}

// Mailer ставит письмо в фоновую отправку.
type Mailer interface {
	Dispatch(template string, msg notify.Message)
}

type noopMetrics struct{}

func (noopMetrics) RecordOrderCreated(bool, int) {}
func (noopMetrics) RecordFailure(string, string) {}
func (noopMetrics) RecordPaymentSubmitted(bool) {}
func (noopMetrics) RecordTransition(string, string) {}
func (noopMetrics) RecordUnitsReleased(int) {}
func (noopMetrics) RecordExpiredReleased() {}
func (noopMetrics) RecordSweepFailure() {}
func (noopMetrics) RecordSweepDuration(time.Duration) {}
func (noopMetrics) RecordTxDuration(string, time.Duration) {}

type noopMailer struct{}

func (noopMailer) Dispatch(string, notify.Message) {}

// Service реализует операции ядра поверх domain.Store.
type Service struct {
	store     domain.Store
	clock     domain.Clock
	tokens    domain.TokenGenerator
	mailer    Mailer
	templates notify.Templates
	metrics   Metrics
	logger    *log.Entry
	sanitizer *bluemonday.Policy
}

// Option настраивает Service.
type Option func(*Service)

// WithClock подменяет источник времени.
func WithClock(clock domain.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithTokens подменяет генератор токенов отслеживания.
func WithTokens(tokens domain.TokenGenerator) Option {
	return func(s *Service) {
		if tokens != nil {
			s.tokens = tokens
		}
	}
}

// WithMailer подключает отправку писем.
func WithMailer(mailer Mailer) Option {
	return func(s *Service) {
		if mailer != nil {
			s.mailer = mailer
		}
	}
}

// WithTemplates задаёт шаблоны писем.
func WithTemplates(templates notify.Templates) Option {
	return func(s *Service) {
		s.templates = templates
	}
}

// WithMetrics подключает метрики.
func WithMetrics(metrics Metrics) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithLogger задаёт логгер сервиса.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService конструирует сервис. Без опций письма не отправляются, а метрики не пишутся.
func NewService(store domain.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		clock:     domain.SystemClock,
		tokens:    domain.RandomTokens{},
		mailer:    noopMailer{},
		metrics:   noopMetrics{},
		logger:    log.New().WithField("component", "order-service"),
		sanitizer: bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// observe пишет длительность транзакции и код отказа.
func (s *Service) observe(operation string, started time.Time, err error) {
	s.metrics.RecordTxDuration(operation, time.Since(started))
	if err != nil {
		s.metrics.RecordFailure(operation, domain.CodeOf(err))
	}
}

// storeName читает название магазина для писем; при ошибке используется значение по умолчанию.
func (s *Service) storeName(ctx context.Context) string {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		if !domain.IsNotFound(err) {
			s.logger.WithError(err).Warn("read store settings for email failed")
		}
		return domain.DefaultStoreName
	}
	return settings.DisplayName()
}

func requireAdmin(actor domain.ActorContext) error {
	if !actor.IsAdmin {
		return domain.ErrNotAdmin
	}
	return nil
}
