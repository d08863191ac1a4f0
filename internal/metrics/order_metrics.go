package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики жизненного цикла заказов и резервов.
type OrderMetrics struct {
	// Счётчики операций ядра
	ordersCreated     *prometheus.CounterVec
	orderFailures     *prometheus.CounterVec
	paymentsSubmitted *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	expiredReleased   prometheus.Counter
	sweepFailures     prometheus.Counter
	unitsReserved     prometheus.Counter
	unitsReleased     prometheus.Counter

	// Побочные эффекты после коммита
	emailsSent *prometheus.CounterVec

	// Гистограммы времени выполнения
	txDuration    *prometheus.HistogramVec
	sweepDuration prometheus.Histogram

	// Gauge для фоновых писем в полёте
	pendingEmails prometheus.Gauge
}

// NewOrderMetrics создаёт метрики в DefaultRegisterer.
func NewOrderMetrics() *OrderMetrics {
	return NewOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewOrderMetricsWithRegisterer создаёт метрики в указанном реестре; повторная регистрация переиспользует коллекторы.
func NewOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Total number of createOrder calls that returned an order, by idempotent replay flag",
		}, []string{"idempotent"}),
		orderFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_operation_failures_total",
			Help: "Total number of failed core operations grouped by operation and error code",
		}, []string{"operation", "code"}),
		paymentsSubmitted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_payments_submitted_total",
			Help: "Total number of accepted payment submissions, by idempotent replay flag",
		}, []string{"idempotent"}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_order_status_transitions_total",
			Help: "Total number of applied order status transitions",
		}, []string{"from", "to"}),
		expiredReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_expired_reservations_released_total",
			Help: "Total number of orders cancelled by the expiry sweep",
		}),
		sweepFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_expiry_sweep_failures_total",
			Help: "Total number of orders the expiry sweep failed to process",
		}),
		unitsReserved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_units_reserved_total",
			Help: "Total number of stock units reserved by new orders",
		}),
		unitsReleased: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_units_released_total",
			Help: "Total number of stock units returned by cancellations and expiry",
		}),
		emailsSent: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_emails_total",
			Help: "Total number of transactional emails grouped by template and result",
		}, []string{"template", "result"}),
		txDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "storefront_order_tx_duration_seconds",
			Help:    "Duration of core order transactions in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		sweepDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_expiry_sweep_duration_seconds",
			Help:    "Duration of a full expiry sweep in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		pendingEmails: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_pending_emails",
			Help: "Number of transactional emails currently being sent",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated учитывает успешный createOrder.
func (m *OrderMetrics) RecordOrderCreated(idempotent bool, units int) {
	m.ordersCreated.WithLabelValues(strconv.FormatBool(idempotent)).Inc()
	if !idempotent {
		m.unitsReserved.Add(float64(units))
	}
}

// RecordFailure учитывает отказ операции с машинным кодом ошибки.
func (m *OrderMetrics) RecordFailure(operation, code string) {
	m.orderFailures.WithLabelValues(operation, code).Inc()
}

// RecordPaymentSubmitted учитывает принятую заявку об оплате.
func (m *OrderMetrics) RecordPaymentSubmitted(idempotent bool) {
	m.paymentsSubmitted.WithLabelValues(strconv.FormatBool(idempotent)).Inc()
}

// RecordTransition учитывает смену статуса.
func (m *OrderMetrics) RecordTransition(from, to string) {
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

// RecordUnitsReleased учитывает возврат единиц на склад.
func (m *OrderMetrics) RecordUnitsReleased(units int) {
	m.unitsReleased.Add(float64(units))
}

// RecordExpiredReleased учитывает заказ, отменённый по таймауту.
func (m *OrderMetrics) RecordExpiredReleased() {
	m.expiredReleased.Inc()
}

// RecordSweepFailure учитывает заказ, который очистка не смогла обработать.
func (m *OrderMetrics) RecordSweepFailure() {
	m.sweepFailures.Inc()
}

// RecordSweepDuration записывает длительность полного прохода очистки.
func (m *OrderMetrics) RecordSweepDuration(duration time.Duration) {
	m.sweepDuration.Observe(duration.Seconds())
}

// RecordTxDuration записывает время выполнения транзакции операции.
func (m *OrderMetrics) RecordTxDuration(operation string, duration time.Duration) {
	m.txDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordEmail учитывает результат отправки письма.
func (m *OrderMetrics) RecordEmail(template string, ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.emailsSent.WithLabelValues(template, result).Inc()
}

// RecordEmailInFlightStarted увеличивает количество писем в полёте.
func (m *OrderMetrics) RecordEmailInFlightStarted() {
	m.pendingEmails.Inc()
}

// RecordEmailInFlightFinished уменьшает количество писем в полёте.
func (m *OrderMetrics) RecordEmailInFlightFinished() {
	m.pendingEmails.Dec()
}
