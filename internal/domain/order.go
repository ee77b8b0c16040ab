package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order is the immutable record of a completed checkout. Identity fields
// and line items never change after creation; only status, payment status
// and the lifecycle timestamps are updated, through the lifecycle manager.
type Order struct {
	ID          int64
	OrderNumber string
	UserID      int64

	TotalAmount     Money
	Status          OrderStatus
	PaymentStatus   PaymentStatus
	PaymentMethod   string
	ShippingAddress string
	BillingAddress  string
	Notes           string

	Items []OrderItem

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
}

// OrderItem carries the unit price snapshot at purchase time,
// decoupled from later product price changes.
type OrderItem struct {
	ID        int64
	ProductID uuid.UUID
	Quantity  int
	UnitPrice Money

	CreatedAt time.Time
}

func (o Order) ItemCount() int {
	var count int
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

func (o Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// OrderStatusUpdate is the writable slice of an order: the lifecycle
// manager computes it, the repository applies it in one statement.
type OrderStatusUpdate struct {
	Status        OrderStatus
	PaymentStatus *PaymentStatus
	ShippedAt     *time.Time
	DeliveredAt   *time.Time
}

// ShippingDetails is the checkout form input collected by the caller.
// BillingAddress falls back to ShippingAddress when empty.
type ShippingDetails struct {
	ShippingAddress string
	BillingAddress  string
	PaymentMethod   string
	Notes           string
}
