package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind группирует ошибки по способу обработки на стороне вызывающего.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindExpired      ErrorKind = "expired"
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindRateLimited  ErrorKind = "rate_limited"
	KindInternal     ErrorKind = "internal"
)

// Error — типизированная бизнес-ошибка с машинно-читаемым кодом.
type Error struct {
	Code string
	Kind ErrorKind
	msg  string
}

func newError(kind ErrorKind, code, msg string) *Error {
	return &Error{Code: code, Kind: kind, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

var (
	// Ошибки валидации входных данных.
	ErrValidation = newError(KindValidation, "VALIDATION_ERROR", "validation failed")

	// Ошибки поиска.
	ErrProductNotFound = newError(KindNotFound, "PRODUCT_NOT_FOUND", "product not found")
	ErrVariantNotFound = newError(KindNotFound, "VARIANT_NOT_FOUND", "variant not found")
	ErrOrderNotFound   = newError(KindNotFound, "ORDER_NOT_FOUND", "order not found")

	// Конфликты состояния: повтор с теми же данными не поможет.
	ErrProductInactive          = newError(KindConflict, "PRODUCT_INACTIVE", "product is not active")
	ErrOutOfStock               = newError(KindConflict, "OUT_OF_STOCK", "insufficient stock")
	ErrOrderAlreadyTerminal     = newError(KindConflict, "ORDER_ALREADY_TERMINAL", "order is in a terminal status")
	ErrInvalidStatusTransition  = newError(KindConflict, "INVALID_STATUS_TRANSITION", "status transition is not allowed")
	ErrCannotCancelAfterPaid    = newError(KindConflict, "CANNOT_CANCEL_AFTER_PAID", "order cannot be cancelled after payment")
	ErrPaymentAlreadySent       = newError(KindConflict, "PAYMENT_ALREADY_SENT", "payment already sent with another operation code")
	ErrOperationCodeAlreadyUsed = newError(KindConflict, "OPERATION_CODE_ALREADY_USED", "operation code is bound to another order")
	ErrOrderCancelled           = newError(KindConflict, "ORDER_CANCELLED", "order is cancelled")
	ErrOrderAlreadyFinal        = newError(KindConflict, "ORDER_ALREADY_FINAL", "order payment is already confirmed")

	// Резерв истёк, заказ нужно создать заново.
	ErrOrderExpired = newError(KindExpired, "ORDER_EXPIRED", "order reservation has expired")

	// Ошибки доступа.
	ErrInvalidTrackingToken = newError(KindForbidden, "INVALID_TRACKING_TOKEN", "invalid tracking token")
	ErrNotAdmin             = newError(KindForbidden, "NOT_ADMIN", "admin privileges required")
	ErrForbidden            = newError(KindForbidden, "FORBIDDEN", "access denied")
	ErrUnauthenticated      = newError(KindUnauthorized, "UNAUTHENTICATED", "authentication required")
	ErrAuthTooOld           = newError(KindUnauthorized, "AUTH_TOO_OLD", "authentication is too old")
	ErrRateLimited          = newError(KindRateLimited, "RATE_LIMIT", "rate limit exceeded")

	// Ошибки хранилища.
	ErrIdempotencyKeyNotFound = newError(KindNotFound, "IDEMPOTENCY_KEY_NOT_FOUND", "idempotency record not found")
	ErrPaymentOpNotFound      = newError(KindNotFound, "PAYMENT_OPERATION_NOT_FOUND", "payment operation not found")
	ErrSettingsNotFound       = newError(KindNotFound, "SETTINGS_NOT_FOUND", "store settings not found")
	ErrOutboxPublish          = newError(KindInternal, "OUTBOX_PUBLISH_FAILED", "outbox publish failed")
	// ErrTxConflict — транзакция не смогла зафиксироваться из-за конкурентной записи; можно повторить.
	ErrTxConflict = newError(KindInternal, "TX_CONFLICT", "transaction conflict")
)

// Ошибки инвариантов сущностей, используются в ValidateInvariants.
var (
	ErrPublicCodeRequired = errors.New("public_code is required")
	ErrItemsRequired      = errors.New("order must contain at least one item")
	ErrShippingRequired   = errors.New("shipping is required")
	ErrItemQtyInvalid     = errors.New("item qty must be greater than zero")
	ErrItemPriceInvalid   = errors.New("item price must be non-negative")
	ErrAmountMismatch     = errors.New("order totals do not match items")
	ErrNegativeStock      = errors.New("variant stock must be non-negative")
	ErrDuplicateVariant   = errors.New("variant ids must be unique within a product")
)

// FieldError описывает нарушение для одного поля запроса.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError содержит все нарушения формы запроса и разворачивается в ErrValidation.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError собирает ошибку валидации для одного поля.
func NewValidationError(field, rule, param string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule, Param: param}}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Param != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", f.Field, f.Rule, f.Param))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Rule))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// AsError извлекает типизированную ошибку из цепочки.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// CodeOf возвращает машинный код ошибки или INTERNAL_ERROR.
func CodeOf(err error) string {
	if de, ok := AsError(err); ok {
		return de.Code
	}
	return "INTERNAL_ERROR"
}

// KindOf возвращает категорию ошибки; неизвестные ошибки считаются внутренними.
func KindOf(err error) ErrorKind {
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	return KindInternal
}

// IsNotFound проверяет, относится ли ошибка к категории not found.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsConflict проверяет, относится ли ошибка к конфликтам состояния.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsValidation проверяет, что ошибка вызвана некорректными входными данными.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsTxConflict проверяет, что транзакцию можно повторить.
func IsTxConflict(err error) bool {
	return errors.Is(err, ErrTxConflict)
}
