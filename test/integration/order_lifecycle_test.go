package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	"github.com/vladislavdragonenkov/storefront/internal/service/order"
	"github.com/vladislavdragonenkov/storefront/internal/service/outbox"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// emailLog запоминает шаблоны доставленных писем.
type emailLog struct {
	mu        sync.Mutex
	templates []string
	failed    int
}

func (e *emailLog) RecordEmail(template string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !ok {
		e.failed++
		return
	}
	e.templates = append(e.templates, template)
}

func (e *emailLog) RecordEmailInFlightStarted()  {}
func (e *emailLog) RecordEmailInFlightFinished() {}

// OrderLifecycleTestSuite прогоняет заказ через ядро, outbox и почту на in-memory хранилище.
type OrderLifecycleTestSuite struct {
	suite.Suite

	ctx        context.Context
	clock      *manualClock
	store      *memory.Store
	service    *order.Service
	dispatcher *notify.Dispatcher
	emails     *emailLog
	kafka      *mocks.SyncProducer
	worker     *outbox.Worker
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	s.ctx = context.Background()
	s.clock = &manualClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	s.store = memory.NewStore()
	s.store.SeedProduct(domain.Product{
		ID:         "casaca-denim",
		Status:     domain.ProductStatusActive,
		Name:       "Casaca Denim",
		PriceMinor: 120_00,
		Variants:   []domain.Variant{{ID: "l-azul", Size: "L", Color: "azul", Stock: 3}},
	})

	s.emails = &emailLog{}
	s.dispatcher = notify.NewDispatcher(notify.NewLogSender(logger), logger, notify.WithDispatcherMetrics(s.emails))
	s.service = order.NewService(s.store,
		order.WithClock(s.clock),
		order.WithMailer(s.dispatcher),
		order.WithLogger(logger),
	)

	s.kafka = mocks.NewSyncProducer(s.T(), nil)
	publisher := kafka.NewOutboxPublisher(kafka.NewProducerFrom(s.kafka, logger))
	s.worker = outbox.NewWorker(s.store, publisher,
		outbox.WithLogger(logger),
		outbox.WithClock(s.clock),
		outbox.WithBatchSize(100),
	)
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	require.NoError(s.T(), s.kafka.Close())
}

func (s *OrderLifecycleTestSuite) createOrder(qty int) order.CreateOrderResult {
	res, err := s.service.CreateOrder(s.ctx, domain.PublicActor("198.51.100.4", "integration"), order.CreateOrderInput{
		Items:    []domain.OrderLine{{ProductID: "casaca-denim", VariantID: "l-azul", Qty: qty}},
		Customer: domain.Customer{Name: "Rosa Quispe", Email: "rosa@example.com", Phone: "987654321"},
		Shipping: domain.LimaDelivery{
			ReceiverName:  "Rosa Quispe",
			ReceiverDNI:   "45678912",
			ReceiverPhone: "987654321",
			District:      "Surco",
			AddressLine1:  "Jr. Las Flores 456",
		},
	})
	require.NoError(s.T(), err)
	return res
}

func (s *OrderLifecycleTestSuite) variantStock() int {
	product, err := s.store.GetProduct(s.ctx, "casaca-denim")
	require.NoError(s.T(), err)
	return product.Variants[0].Stock
}

func (s *OrderLifecycleTestSuite) track(res order.CreateOrderResult) domain.Order {
	found, err := s.service.TrackOrder(s.ctx, domain.PublicActor("198.51.100.4", "integration"), order.TrackOrderInput{
		PublicCode:    res.PublicCode,
		TrackingToken: res.TrackingToken,
	})
	require.NoError(s.T(), err)
	return found
}

// drainOutbox публикует весь backlog и проверяет, что он пуст.
func (s *OrderLifecycleTestSuite) drainOutbox() int {
	stats, err := s.store.Stats(s.ctx)
	require.NoError(s.T(), err)
	for i := 0; i < stats.PendingCount; i++ {
		s.kafka.ExpectSendMessageAndSucceed()
	}

	published := s.worker.ProcessOnce(s.ctx)

	after, err := s.store.Stats(s.ctx)
	require.NoError(s.T(), err)
	require.Zero(s.T(), after.PendingCount)
	return published
}

func (s *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	admin := domain.AdminActor("admin-1", "owner@example.com", "10.0.0.2", "backoffice")

	// 1. Резерв списывает остаток сразу.
	created := s.createOrder(2)
	s.Equal("OD-0001", created.PublicCode)
	s.Equal(1, s.variantStock())

	// 2. Покупатель сообщает номер операции.
	paid, err := s.service.SubmitPayment(s.ctx, domain.PublicActor("198.51.100.4", "integration"), order.SubmitPaymentInput{
		PublicCode:    created.PublicCode,
		TrackingToken: created.TrackingToken,
		OperationCode: "YP-889900",
		Method:        domain.PaymentMethodYape,
	})
	s.Require().NoError(err)
	s.True(paid.OK)
	s.Equal(domain.OrderStatusPaymentSent, s.track(created).Status)

	// 3. Администратор проводит заказ до доставки.
	for _, next := range []domain.OrderStatus{domain.OrderStatusPaid, domain.OrderStatusShipped, domain.OrderStatusDelivered} {
		s.clock.Advance(time.Hour)
		s.Require().NoError(s.service.UpdateOrderStatus(s.ctx, admin, created.OrderID, next))
	}

	final := s.track(created)
	s.Equal(domain.OrderStatusDelivered, final.Status)
	s.Equal(1, s.variantStock(), "delivered order keeps its units")

	// 4. Просроченный резерв больше не отменяет оплаченный заказ.
	s.clock.Advance(24 * time.Hour)
	released, err := s.service.SweepExpiredReservations(s.ctx, s.clock.Now())
	s.Require().NoError(err)
	s.Zero(released)

	// 5. Все события уходят в Kafka.
	s.GreaterOrEqual(s.drainOutbox(), 5)

	// 6. Письма: создание, оплата, PAID и SHIPPED.
	s.Require().NoError(s.dispatcher.Shutdown(s.ctx))
	s.ElementsMatch([]string{
		notify.TemplateOrderCreated,
		notify.TemplatePaymentReported,
		notify.TemplateStatusUpdated,
		notify.TemplateStatusUpdated,
	}, s.emails.templates)
	s.Zero(s.emails.failed)
}

func (s *OrderLifecycleTestSuite) TestExpiredReservationReleasesStock() {
	created := s.createOrder(3)
	s.Zero(s.variantStock())

	_, err := s.service.CreateOrder(s.ctx, domain.PublicActor("198.51.100.9", "integration"), order.CreateOrderInput{
		Items:    []domain.OrderLine{{ProductID: "casaca-denim", VariantID: "l-azul", Qty: 1}},
		Customer: domain.Customer{Name: "Luis Rojas", Email: "luis@example.com", Phone: "912345678"},
		Shipping: domain.LimaDelivery{
			ReceiverName:  "Luis Rojas",
			ReceiverDNI:   "40404040",
			ReceiverPhone: "912345678",
			District:      "Lince",
			AddressLine1:  "Av. Arequipa 2020",
		},
	})
	s.ErrorIs(err, domain.ErrOutOfStock)

	s.clock.Advance(domain.ReservationTTL + time.Minute)

	_, err = s.service.SubmitPayment(s.ctx, domain.PublicActor("198.51.100.4", "integration"), order.SubmitPaymentInput{
		PublicCode:    created.PublicCode,
		TrackingToken: created.TrackingToken,
		OperationCode: "PL-12345",
		Method:        domain.PaymentMethodPlin,
	})
	s.ErrorIs(err, domain.ErrOrderExpired)

	released, err := s.service.SweepExpiredReservations(s.ctx, s.clock.Now())
	s.Require().NoError(err)
	s.Equal(1, released)
	s.Equal(3, s.variantStock())
	s.Equal(domain.OrderStatusCancelledExpired, s.track(created).Status)

	// Повторный проход ничего не находит.
	released, err = s.service.SweepExpiredReservations(s.ctx, s.clock.Now())
	s.Require().NoError(err)
	s.Zero(released)

	s.GreaterOrEqual(s.drainOutbox(), 2)
	s.Require().NoError(s.dispatcher.Shutdown(s.ctx))
}

func (s *OrderLifecycleTestSuite) TestCancelBeforePaymentRestocks() {
	admin := domain.AdminActor("admin-1", "owner@example.com", "10.0.0.2", "backoffice")
	created := s.createOrder(2)

	s.Require().NoError(s.service.UpdateOrderStatus(s.ctx, admin, created.OrderID, domain.OrderStatusCancelled))
	s.Equal(3, s.variantStock())
	s.Equal(domain.OrderStatusCancelled, s.track(created).Status)

	err := s.service.UpdateOrderStatus(s.ctx, admin, created.OrderID, domain.OrderStatusPaid)
	s.True(domain.IsConflict(err), "terminal order must reject transitions, got %v", err)

	s.drainOutbox()
	s.Require().NoError(s.dispatcher.Shutdown(s.ctx))
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
