// Package events publishes order lifecycle events for downstream
// consumers (fulfilment, notifications). Publishing is best-effort:
// the services log failures and never fail the business operation.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nikolayk812/checkout/internal/domain"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
)

// Envelope is the common wrapper for all published events.
type Envelope[T any] struct {
	EventID    string    `json:"eventId"`
	EventName  string    `json:"eventName"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    T         `json:"payload"`
}

func newEnvelope[T any](name string, payload T) Envelope[T] {
	return Envelope[T]{
		EventID:    uuid.NewString(),
		EventName:  name,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type OrderCreated struct {
	OrderID     int64       `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	UserID      int64       `json:"userId"`
	TotalAmount string      `json:"totalAmount"`
	Currency    string      `json:"currency"`
	Items       []OrderLine `json:"items"`
}

type OrderCancelled struct {
	OrderID     int64       `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	UserID      int64       `json:"userId"`
	Items       []OrderLine `json:"items"`
}

type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unitPrice"`
}

func orderLines(items []domain.OrderItem) []OrderLine {
	lines := make([]OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, OrderLine{
			ProductID: item.ProductID.String(),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.Amount.StringFixed(2),
		})
	}
	return lines
}

// Publisher is implemented by the AMQP publisher and by NopPublisher
// for callers that do not wire a broker.
type Publisher interface {
	PublishOrderCreated(ctx context.Context, order domain.Order) error
	PublishOrderCancelled(ctx context.Context, order domain.Order) error

	// Close releases the broker channel.
	Close() error
}

type NopPublisher struct{}

func (NopPublisher) PublishOrderCreated(context.Context, domain.Order) error   { return nil }
func (NopPublisher) PublishOrderCancelled(context.Context, domain.Order) error { return nil }
func (NopPublisher) Close() error                                              { return nil }
