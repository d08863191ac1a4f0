package domain

import "time"

// PaymentMethod указывает способ оплаты, выбранный клиентом.
type PaymentMethod string

const (
	PaymentMethodYape  PaymentMethod = "YAPE"
	PaymentMethodPlin  PaymentMethod = "PLIN"
	PaymentMethodOther PaymentMethod = "OTHER"
)

// Valid проверяет, что способ оплаты поддерживается.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodYape, PaymentMethodPlin, PaymentMethodOther:
		return true
	default:
		return false
	}
}

// PaymentOperation привязывает номер банковской операции к заказу.
// Ключом служит сам номер операции, поэтому он глобально уникален.
type PaymentOperation struct {
	OperationCode   string
	OrderID         string
	OrderPublicCode string
	CreatedAt       time.Time
}

// PaymentDecision — результат проверки заявки об оплате по статусу заказа.
type PaymentDecision string

const (
	PaymentDecisionAllow              PaymentDecision = "ALLOW"
	PaymentDecisionIdempotent         PaymentDecision = "IDEMPOTENT"
	PaymentDecisionOrderCancelled     PaymentDecision = "ORDER_CANCELLED"
	PaymentDecisionOrderAlreadyFinal  PaymentDecision = "ORDER_ALREADY_FINAL"
	PaymentDecisionPaymentAlreadySent PaymentDecision = "PAYMENT_ALREADY_SENT"
)

// DecidePaymentSubmission применяет таблицу решений к текущему статусу заказа
// и уже сохранённому номеру операции.
func DecidePaymentSubmission(status OrderStatus, storedOperationCode, incomingOperationCode string) PaymentDecision {
	switch status {
	case OrderStatusCancelled, OrderStatusCancelledExpired:
		return PaymentDecisionOrderCancelled
	case OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered:
		return PaymentDecisionOrderAlreadyFinal
	case OrderStatusPaymentSent:
		if storedOperationCode == incomingOperationCode {
			return PaymentDecisionIdempotent
		}
		return PaymentDecisionPaymentAlreadySent
	default:
		return PaymentDecisionAllow
	}
}

// Err переводит отказ в типизированную ошибку; для ALLOW и IDEMPOTENT возвращает nil.
func (d PaymentDecision) Err() error {
	switch d {
	case PaymentDecisionOrderCancelled:
		return ErrOrderCancelled
	case PaymentDecisionOrderAlreadyFinal:
		return ErrOrderAlreadyFinal
	case PaymentDecisionPaymentAlreadySent:
		return ErrPaymentAlreadySent
	default:
		return nil
	}
}
