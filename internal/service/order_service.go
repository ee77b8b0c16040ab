package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/nikolayk812/checkout/internal/domain"
	"github.com/nikolayk812/checkout/internal/events"
	"github.com/nikolayk812/checkout/internal/port"
	"github.com/nikolayk812/checkout/internal/repository"
)

// OrderService is the post-creation state machine. Transitions follow the
// explicit table in domain.OrderStatus; cancellation restores stock for
// every order line inside the same transaction.
type OrderService struct {
	db        TxBeginner
	orders    port.OrderRepository
	publisher events.Publisher
	logger    *zap.Logger
}

func NewOrder(db TxBeginner, orders port.OrderRepository, publisher events.Publisher, logger *zap.Logger) *OrderService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OrderService{
		db:        db,
		orders:    orders,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return order, storageErr(fmt.Errorf("orders.GetOrder: %w", err))
	}

	return order, nil
}

func (s *OrderService) GetByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	order, err := s.orders.GetByOrderNumber(ctx, orderNumber)
	if err != nil {
		return order, storageErr(fmt.Errorf("orders.GetByOrderNumber: %w", err))
	}

	return order, nil
}

func (s *OrderService) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, storageErr(fmt.Errorf("orders.ListByUser: %w", err))
	}

	return orders, nil
}

// Cancel moves a Pending or Confirmed order to Cancelled and puts the
// sold quantities back on the shelf.
func (s *OrderService) Cancel(ctx context.Context, orderID int64) (domain.Order, error) {
	return s.Transition(ctx, orderID, domain.OrderStatusCancelled)
}

func (s *OrderService) Transition(ctx context.Context, orderID int64, next domain.OrderStatus) (domain.Order, error) {
	var o domain.Order

	if _, err := domain.ToOrderStatus(string(next)); err != nil {
		return o, fmt.Errorf("status[%s]: %w", next, domain.ErrInvalidStatus)
	}

	order, err := s.transitionTx(ctx, orderID, next)
	if err != nil {
		if domain.IsBusinessError(err) {
			return o, err
		}

		s.logger.Error("order transition failed",
			zap.Error(err), zap.Int64("order_id", orderID), zap.String("to", string(next)))
		return o, storageErr(err)
	}

	s.logger.Info("order transitioned",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("to", string(next)))

	if next == domain.OrderStatusCancelled {
		if pubErr := s.publisher.PublishOrderCancelled(ctx, order); pubErr != nil {
			s.logger.Warn("publish order cancelled", zap.Error(pubErr), zap.Int64("order_id", order.ID))
		}
	}

	return order, nil
}

func (s *OrderService) transitionTx(ctx context.Context, orderID int64, next domain.OrderStatus) (_ domain.Order, txErr error) {
	var o domain.Order

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return o, fmt.Errorf("db.Begin: %w", err)
	}

	defer func() {
		if txErr != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	orders := repository.NewOrderWithTx(tx)
	stock := repository.NewStockWithTx(tx)

	// Lock the order row so two concurrent cancellations cannot both
	// restore stock.
	order, err := orders.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return o, fmt.Errorf("orders.GetOrderForUpdate: %w", err)
	}

	if !order.Status.CanTransitionTo(next) {
		return o, domain.InvalidTransitionError{From: order.Status, To: next}
	}

	update := domain.OrderStatusUpdate{Status: next}
	now := time.Now().UTC()

	switch next {
	case domain.OrderStatusShipped:
		update.ShippedAt = &now
	case domain.OrderStatusDelivered:
		update.DeliveredAt = &now
		// cash-on-delivery assumption: delivery settles the payment
		update.PaymentStatus = lo.ToPtr(domain.PaymentStatusPaid)
	case domain.OrderStatusCancelled:
		// same stock-row lock order as checkout, to stay deadlock-free
		items := slices.Clone(order.Items)
		slices.SortFunc(items, func(a, b domain.OrderItem) int {
			return bytes.Compare(a.ProductID[:], b.ProductID[:])
		})

		for _, item := range items {
			if _, err := stock.Restore(ctx, item.ProductID, item.Quantity); err != nil {
				return o, fmt.Errorf("stock.Restore[%s]: %w", item.ProductID, err)
			}
		}
	case domain.OrderStatusRefunded:
		update.PaymentStatus = lo.ToPtr(domain.PaymentStatusRefunded)
	}

	if err := orders.UpdateStatus(ctx, orderID, update); err != nil {
		return o, fmt.Errorf("orders.UpdateStatus: %w", err)
	}

	updated, err := orders.GetOrder(ctx, orderID)
	if err != nil {
		return o, fmt.Errorf("orders.GetOrder: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return o, fmt.Errorf("tx.Commit: %w", err)
	}

	return updated, nil
}
