package notify

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// EmailMetrics считает результаты отправки.
type EmailMetrics interface {
	RecordEmail(template string, ok bool)
	RecordEmailInFlightStarted()
	RecordEmailInFlightFinished()
}

type noopEmailMetrics struct{}

func (noopEmailMetrics) RecordEmail(string, bool) {}
func (noopEmailMetrics) RecordEmailInFlightStarted() {}
func (noopEmailMetrics) RecordEmailInFlightFinished() {}

const defaultSendTimeout = 30 * time.Second

// Dispatcher отправляет письма в фоне после коммита транзакции.
// Ошибки только логируются и попадают в метрики.
type Dispatcher struct {
	sender  Sender
	logger  *log.Entry
	metrics EmailMetrics
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption настраивает Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherMetrics подключает метрики писем.
func WithDispatcherMetrics(metrics EmailMetrics) DispatcherOption {
	return func(d *Dispatcher) {
		if metrics != nil {
			d.metrics = metrics
		}
	}
}

// WithSendTimeout ограничивает время одной фоновой отправки.
func WithSendTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// NewDispatcher создаёт диспетчер фоновых писем.
func NewDispatcher(sender Sender, logger *log.Entry, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = log.New().WithField("component", "email-dispatcher")
	}
	d := &Dispatcher{
		sender:  sender,
		logger:  logger,
		metrics: noopEmailMetrics{},
		timeout: defaultSendTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch ставит письмо в фоновую отправку и сразу возвращает управление.
func (d *Dispatcher) Dispatch(template string, msg Message) {
	if d == nil || d.sender == nil {
		return
	}
	logger := d.logger.WithFields(log.Fields{"template": template, "to": msg.To})

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		logger.Warn("email dispatch skipped during shutdown")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	d.metrics.RecordEmailInFlightStarted()
	go func() {
		defer d.wg.Done()
		defer d.metrics.RecordEmailInFlightFinished()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.sender.Send(ctx, msg); err != nil {
			d.metrics.RecordEmail(template, false)
			logger.WithError(err).Error("email send failed")
			return
		}
		d.metrics.RecordEmail(template, true)
	}()
}

// Shutdown запрещает новые отправки и ждёт завершения начатых.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	waitDone := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(waitDone)
	}()

	select {
	case <-waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
