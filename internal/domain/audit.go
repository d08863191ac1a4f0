package domain

import "time"

type StockReason string

const (
	StockReasonReserve      StockReason = "RESERVE"
	StockReasonRelease      StockReason = "RELEASE"
	StockReasonManualAdjust StockReason = "MANUAL_ADJUST"
	StockReasonCancel       StockReason = "CANCEL"
)

// StockLogEntry пишется в журнал движения остатков, только добавлением.
type StockLogEntry struct {
	ID        string
	ProductID string
	VariantID string
	Delta     int
	Reason    StockReason
	OrderID   string
	CreatedAt time.Time
}

// Действия, фиксируемые в журнале аудита.
const (
	AuditOrderCreated          = "ORDER_CREATED"
	AuditPaymentSubmitted      = "PAYMENT_SUBMITTED"
	AuditOrderStatusUpdate     = "ORDER_STATUS_UPDATE"
	AuditOrderExpiredCancelled = "ORDER_EXPIRED_CANCELLED"
	AuditProductCreated        = "PRODUCT_CREATED"
	AuditProductUpdated        = "PRODUCT_UPDATED"
	AuditSettingsUpdated       = "SETTINGS_UPDATED"
)

type AuditTargetType string

const (
	AuditTargetOrder    AuditTargetType = "order"
	AuditTargetProduct  AuditTargetType = "product"
	AuditTargetSettings AuditTargetType = "settings"
)

// AuditTarget указывает на изменённую сущность.
type AuditTarget struct {
	Type       AuditTargetType
	ID         string
	PublicCode string
}

// AuditEntry представляет запись журнала аудита.
type AuditEntry struct {
	ID        string
	Actor     Actor
	Action    string
	Target    AuditTarget
	Before    map[string]any
	After     map[string]any
	Meta      map[string]any
	CreatedAt time.Time
}
