package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

const (
	OrderCreated   = "order.created"
	OrderConfirmed = "order.confirmed"
	OrderCancelled = "order.cancelled"
)

// OrderEvent событие жизненного цикла заказа; ключ сообщения orderId
type OrderEvent struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	OrderID     string          `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	UserID      string          `json:"userId"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	TotalItems  int64           `json:"totalItems"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

func NewOrderEvent(typ string, o *domain.Order, at time.Time) OrderEvent {
	return OrderEvent{
		ID:          uuid.NewString(),
		Type:        typ,
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		UserID:      o.UserID,
		Status:      string(o.Status),
		TotalAmount: o.TotalAmount,
		TotalItems:  o.TotalItems(),
		OccurredAt:  at.UTC(),
	}
}

// Publisher публикует события заказов
type Publisher interface {
	Publish(ctx context.Context, ev OrderEvent) error
	Close() error
}

// KafkaPublisher пишет события в топик; Hash-балансер держит события заказа в одной партиции
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	msg, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }

// Encode сообщение Kafka: ключ orderId, тип события в заголовке
func Encode(ev OrderEvent) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	return kafka.Message{
		Key:     []byte(ev.OrderID),
		Value:   data,
		Time:    ev.OccurredAt,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(ev.Type)}},
	}, nil
}

// NopPublisher используется, когда брокеры не заданы
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, OrderEvent) error { return nil }
func (NopPublisher) Close() error                              { return nil }
