package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "storefront.order.events"
	TopicCatalogEvents   = "storefront.catalog.events"
	TopicDeadLetterQueue = "storefront.dlq"
)

// Kafka headers
const (
	HeaderEventType     = "x-event-type"
	HeaderOriginalTopic = "x-original-topic"
	HeaderReplayedAt    = "x-replayed-at"
)

// Envelope — формат сообщений во всех топиках витрины.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope заворачивает outbox-сообщение.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   publishedAt.UTC(),
	}
}

// Key возвращает ключ партиционирования: события одного агрегата идут в одну партицию.
func (e Envelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// TopicFor выбирает топик по типу агрегата.
func TopicFor(aggregateType string) string {
	if aggregateType == domain.AggregateProduct {
		return TopicCatalogEvents
	}
	return TopicOrderEvents
}

// ParseEnvelope разбирает сообщение из топика событий.
func ParseEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(message.Value, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	if env.EventType == "" {
		return Envelope{}, fmt.Errorf("envelope at offset %d has no event_type", message.Offset)
	}
	return env, nil
}

// ParseOrderEvent достаёт событие заказа из конверта.
func ParseOrderEvent(env Envelope) (domain.OrderEvent, error) {
	if env.AggregateType != domain.AggregateOrder {
		return domain.OrderEvent{}, fmt.Errorf("envelope %s carries %q, not an order event", env.ID, env.AggregateType)
	}
	var event domain.OrderEvent
	if err := json.Unmarshal(env.Payload, &event); err != nil {
		return domain.OrderEvent{}, fmt.Errorf("failed to unmarshal order event: %w", err)
	}
	return event, nil
}
