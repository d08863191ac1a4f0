package order

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/notify"
	"github.com/vladislavdragonenkov/storefront/internal/validation"
)

// SubmitPaymentInput описывает заявку покупателя об оплате через кошелёк.
type SubmitPaymentInput struct {
	PublicCode      string               `json:"publicCode" validate:"required,min=3,max=32"`
	TrackingToken   string               `json:"trackingToken" validate:"required,min=8,max=128"`
	OperationCode   string               `json:"operationCode" validate:"required,min=4,max=64"`
	Method          domain.PaymentMethod `json:"method" validate:"required,payment_method"`
	ReceiptImageURL string               `json:"receiptImageUrl,omitempty" validate:"omitempty,url,max=500"`
}

type SubmitPaymentResult struct {
	OK         bool
	Idempotent bool
}

func (in SubmitPaymentInput) normalized() SubmitPaymentInput {
	in.PublicCode = strings.TrimSpace(in.PublicCode)
	in.TrackingToken = strings.TrimSpace(in.TrackingToken)
	in.OperationCode = strings.TrimSpace(in.OperationCode)
	return in
}

func tokensEqual(expected, given string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(given)) == 1
}

// SubmitPayment привязывает номер операции к заказу и переводит его в PAYMENT_SENT.
//
// Поиск заказа, проверка токена, таблица решений, проверка глобальной уникальности
// номера операции и запись выполняются в одной транзакции.
func (s *Service) SubmitPayment(ctx context.Context, actor domain.ActorContext, in SubmitPaymentInput) (SubmitPaymentResult, error) {
	started := time.Now()
	in = in.normalized()
	if err := validation.Struct(in); err != nil {
		s.observe(opSubmitPayment, started, err)
		return SubmitPaymentResult{}, err
	}

	now := s.now()
	var (
		idempotent bool
		previous   domain.OrderStatus
		updated    domain.Order
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx domain.Tx) error {
		idempotent, previous, updated = false, "", domain.Order{}

		order, err := tx.FindOrderByPublicCode(ctx, in.PublicCode)
		if err != nil {
			return err
		}
		if !tokensEqual(order.TrackingToken, in.TrackingToken) {
			return domain.ErrInvalidTrackingToken
		}

		decision := domain.DecidePaymentSubmission(order.Status, order.Payment.OperationCode, in.OperationCode)
		if err := decision.Err(); err != nil {
			return err
		}
		if decision == domain.PaymentDecisionIdempotent {
			idempotent = true
			return nil
		}

		op, err := tx.GetPaymentOperation(ctx, in.OperationCode)
		switch {
		case err == nil && op.OrderID != order.ID:
			return domain.ErrOperationCodeAlreadyUsed
		case err != nil && !errors.Is(err, domain.ErrPaymentOpNotFound):
			return fmt.Errorf("read payment operation: %w", err)
		}

		if order.IsReservationElapsed(now) {
			return domain.ErrOrderExpired
		}

		if err := tx.PutPaymentOperation(ctx, domain.PaymentOperation{
			OperationCode:   in.OperationCode,
			OrderID:         order.ID,
			OrderPublicCode: order.PublicCode,
			CreatedAt:       now,
		}); err != nil {
			return fmt.Errorf("bind operation code: %w", err)
		}

		previous = order.Status
		sentAt := now
		order.Status = domain.OrderStatusPaymentSent
		order.Payment = domain.Payment{
			Method:          in.Method,
			OperationCode:   in.OperationCode,
			ReceiptImageURL: in.ReceiptImageURL,
			SentAt:          &sentAt,
		}
		order.UpdatedAt = now
		if err := tx.PutOrder(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		if err := tx.AppendAudit(ctx, domain.AuditEntry{
			Actor:  domain.Actor{UID: domain.PublicActorUID, Email: order.Customer.Email},
			Action: domain.AuditPaymentSubmitted,
			Target: domain.AuditTarget{Type: domain.AuditTargetOrder, ID: order.ID, PublicCode: order.PublicCode},
			Before: map[string]any{"status": string(previous)},
			After: map[string]any{
				"status":        string(order.Status),
				"operationCode": in.OperationCode,
				"method":        string(in.Method),
			},
			Meta:      actor.Meta(),
			CreatedAt: now,
		}); err != nil {
			return fmt.Errorf("append audit: %w", err)
		}

		msg, err := domain.NewOrderEventMessage(uuid.NewString(), domain.EventPaymentSubmitted, domain.OrderEvent{
			OrderID:    order.ID,
			PublicCode: order.PublicCode,
			Status:     order.Status,
			Previous:   previous,
			ActorUID:   domain.PublicActorUID,
			OccurredAt: now,
			Metadata:   map[string]any{"method": string(in.Method)},
		})
		if err != nil {
			return err
		}
		if err := tx.EnqueueEvent(ctx, msg); err != nil {
			return fmt.Errorf("enqueue payment submitted event: %w", err)
		}

		updated = order
		return nil
	})
	s.observe(opSubmitPayment, started, err)
	if err != nil {
		return SubmitPaymentResult{}, err
	}

	s.metrics.RecordPaymentSubmitted(idempotent)
	logger := s.logger.WithFields(log.Fields{"public_code": in.PublicCode, "idempotent": idempotent})
	if idempotent {
		logger.Info("payment submission replayed")
		return SubmitPaymentResult{OK: true, Idempotent: true}, nil
	}

	s.metrics.RecordTransition(string(previous), string(updated.Status))
	logger.WithField("order_id", updated.ID).Info("payment submitted")
	s.mailer.Dispatch(notify.TemplatePaymentReported, s.templates.PaymentReported(s.storeName(ctx), updated))
	return SubmitPaymentResult{OK: true}, nil
}
