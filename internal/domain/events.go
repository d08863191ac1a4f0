package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Типы событий, которые уходят во внешнюю шину через outbox.
const (
	EventOrderCreated       = "order.created"
	EventPaymentSubmitted   = "payment.submitted"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderExpired       = "order.expired"
	EventProductUpserted    = "product.upserted"
)

const (
	AggregateOrder   = "order"
	AggregateProduct = "product"
)

// OrderEvent представляет полезную нагрузку событий заказа.
type OrderEvent struct {
	OrderID    string         `json:"order_id"`
	PublicCode string         `json:"public_code"`
	Status     OrderStatus    `json:"status"`
	Previous   OrderStatus    `json:"previous_status,omitempty"`
	ActorUID   string         `json:"actor_uid"`
	OccurredAt time.Time      `json:"occurred_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewOrderEventMessage упаковывает событие заказа в сообщение outbox.
func NewOrderEventMessage(id, eventType string, event OrderEvent) (OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	return OutboxMessage{
		ID:            id,
		AggregateType: AggregateOrder,
		AggregateID:   event.OrderID,
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     event.OccurredAt,
	}, nil
}

type ProductEvent struct {
	ProductID  string        `json:"product_id"`
	Status     ProductStatus `json:"status"`
	Created    bool          `json:"created"`
	ActorUID   string        `json:"actor_uid"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// NewProductEventMessage упаковывает событие товара в сообщение outbox.
func NewProductEventMessage(id string, event ProductEvent) (OutboxMessage, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal product event: %w", err)
	}
	return OutboxMessage{
		ID:            id,
		AggregateType: AggregateProduct,
		AggregateID:   event.ProductID,
		EventType:     EventProductUpserted,
		Payload:       payload,
		CreatedAt:     event.OccurredAt,
	}, nil
}
