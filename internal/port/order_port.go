package port

import (
	"context"

	"github.com/nikolayk812/checkout/internal/domain"
)

type OrderRepository interface {
	GetOrder(ctx context.Context, orderID int64) (domain.Order, error)

	// GetOrderForUpdate locks the order row for the duration of the
	// surrounding transaction, serializing concurrent lifecycle changes.
	GetOrderForUpdate(ctx context.Context, orderID int64) (domain.Order, error)

	GetByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error)

	// ListByUser returns the user's orders with items, newest first.
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)

	// InsertOrder persists the order and its items, returning the generated id.
	// A duplicate order number yields domain.ErrOrderNumberCollision.
	InsertOrder(ctx context.Context, order domain.Order) (int64, error)

	UpdateStatus(ctx context.Context, orderID int64, update domain.OrderStatusUpdate) error
}
