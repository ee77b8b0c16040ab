package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nikolayk812/checkout/internal/domain"
)

const (
	OrderCreatedQueue   = "order.created"
	OrderCancelledQueue = "order.cancelled"

	publishTimeout = 3 * time.Second
)

type amqpPublisher struct {
	ch *amqp.Channel
}

// NewPublisher opens a channel and declares the order queues so publish
// never fails due to missing infra.
func NewPublisher(conn *amqp.Connection) (Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("conn.Channel: %w", err)
	}

	for _, queue := range []string{OrderCreatedQueue, OrderCancelledQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("ch.QueueDeclare[%s]: %w", queue, err)
		}
	}

	return &amqpPublisher{ch: ch}, nil
}

func (p *amqpPublisher) PublishOrderCreated(ctx context.Context, order domain.Order) error {
	payload := OrderCreated{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		TotalAmount: order.TotalAmount.Amount.StringFixed(2),
		Currency:    order.TotalAmount.Currency.String(),
		Items:       orderLines(order.Items),
	}

	return p.publishJSON(ctx, OrderCreatedQueue, newEnvelope(EventOrderCreated, payload))
}

func (p *amqpPublisher) PublishOrderCancelled(ctx context.Context, order domain.Order) error {
	payload := OrderCancelled{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Items:       orderLines(order.Items),
	}

	return p.publishJSON(ctx, OrderCancelledQueue, newEnvelope(EventOrderCancelled, payload))
}

func (p *amqpPublisher) Close() error {
	return p.ch.Close()
}

func (p *amqpPublisher) publishJSON(ctx context.Context, routingKey string, envelope any) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.ch.PublishWithContext(
		pubCtx,
		"",         // default exchange
		routingKey, // queue name as routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("ch.PublishWithContext: %w", err)
	}

	return nil
}
