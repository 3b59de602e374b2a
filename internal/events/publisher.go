package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ExchangeName = "sales_events"

	EventOrderCreated     = "order.created"
	EventPaymentProcessed = "payment.processed"
	EventOrderVoided      = "order.voided"
)

// SaleEvent is the message shape published after a sale-affecting commit.
type SaleEvent struct {
	Event      string    `json:"event"`
	OrderID    int64     `json:"order_id"`
	TableID    int32     `json:"table_id"`
	ActorID    int64     `json:"actor_id"`
	Method     string    `json:"method,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher ships sale lifecycle events to a topic exchange. A nil
// Publisher is valid and drops everything, so the core runs without a
// broker configured.
type Publisher struct {
	conn *amqp.Connection
}

func Dial(url string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Close()
}

func (p *Publisher) Publish(ctx context.Context, ev SaleEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(ExchangeName, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx, ExchangeName, routingKey(ev.Event), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func routingKey(event string) string {
	return fmt.Sprintf("sales.%s", event)
}
