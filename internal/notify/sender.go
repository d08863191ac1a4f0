package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Message представляет транзакционное письмо покупателю.
type Message struct {
	To      string
	Subject string
	Text    string
	// HTML необязателен; при пустом значении уходит только текстовая часть.
	HTML string
}

// Sender отправляет письмо. Ошибка отправки никогда не откатывает бизнес-операцию.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc адаптирует функцию к Sender.
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// ErrEmptyRecipient возвращается, если у письма нет адресата.
var ErrEmptyRecipient = errors.New("email recipient is empty")

// LogSender пишет письма в лог вместо отправки. Используется, когда SMTP не настроен.
type LogSender struct {
	logger *log.Entry
}

// NewLogSender создаёт отправителя в лог.
func NewLogSender(logger *log.Entry) *LogSender {
	if logger == nil {
		logger = log.New().WithField("component", "mailer")
	}
	return &LogSender{logger: logger}
}

// Send логирует адресата и тему письма.
func (s *LogSender) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrEmptyRecipient
	}
	s.logger.WithFields(log.Fields{
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info("email delivery skipped: smtp is not configured")
	return nil
}

const (
	defaultSendAttempts  = 3
	defaultSendBaseDelay = 350 * time.Millisecond
)

// RetryingSender повторяет отправку с линейной задержкой base*attempt.
type RetryingSender struct {
	next      Sender
	attempts  int
	baseDelay time.Duration
}

// RetryOption настраивает RetryingSender.
type RetryOption func(*RetryingSender)

// WithAttempts задаёт число попыток.
func WithAttempts(attempts int) RetryOption {
	return func(s *RetryingSender) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithBaseDelay задаёт базовую задержку между попытками.
func WithBaseDelay(delay time.Duration) RetryOption {
	return func(s *RetryingSender) {
		if delay >= 0 {
			s.baseDelay = delay
		}
	}
}

// NewRetryingSender оборачивает отправителя повторами (по умолчанию 3 попытки, 350ms*attempt).
func NewRetryingSender(next Sender, opts ...RetryOption) *RetryingSender {
	s := &RetryingSender{
		next:      next,
		attempts:  defaultSendAttempts,
		baseDelay: defaultSendBaseDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send пытается отправить письмо, возвращает последнюю ошибку после исчерпания попыток.
func (s *RetryingSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return ErrEmptyRecipient
	}

	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		err := s.next.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == s.attempts {
			break
		}

		timer := time.NewTimer(s.baseDelay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("send email: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return fmt.Errorf("send email after %d attempts: %w", s.attempts, lastErr)
}
