package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/nikolayk812/checkout/internal/domain"
	"github.com/nikolayk812/checkout/internal/port"
)

const uniqueViolationCode = "23505"

type orderRepository struct {
	dbtx DBTX
}

func NewOrder(pool *pgxpool.Pool) port.OrderRepository {
	return &orderRepository{dbtx: pool}
}

func NewOrderWithTx(tx pgx.Tx) port.OrderRepository {
	return &orderRepository{dbtx: tx}
}

const orderColumns = `id, order_number, user_id, total_amount, total_currency,
	status, payment_status, payment_method, shipping_address, billing_address, notes,
	created_at, updated_at, shipped_at, delivered_at`

func (r *orderRepository) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	return r.getOrder(ctx, orderID, false)
}

func (r *orderRepository) GetOrderForUpdate(ctx context.Context, orderID int64) (domain.Order, error) {
	return r.getOrder(ctx, orderID, true)
}

func (r *orderRepository) getOrder(ctx context.Context, orderID int64, forUpdate bool) (domain.Order, error) {
	var o domain.Order

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}

	order, err := withTx(ctx, r.dbtx, func(q DBTX) (domain.Order, error) {
		order, err := scanOrder(q.QueryRow(ctx, query, orderID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return o, domain.ErrOrderNotFound
			}
			return o, fmt.Errorf("scanOrder: %w", err)
		}

		items, err := getOrderItems(ctx, q, order.ID)
		if err != nil {
			return o, fmt.Errorf("getOrderItems: %w", err)
		}
		order.Items = items

		return order, nil
	})
	if err != nil {
		return o, fmt.Errorf("withTx: %w", err)
	}

	return order, nil
}

func (r *orderRepository) GetByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	var o domain.Order

	order, err := withTx(ctx, r.dbtx, func(q DBTX) (domain.Order, error) {
		order, err := scanOrder(q.QueryRow(ctx,
			`SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return o, domain.ErrOrderNotFound
			}
			return o, fmt.Errorf("scanOrder: %w", err)
		}

		items, err := getOrderItems(ctx, q, order.ID)
		if err != nil {
			return o, fmt.Errorf("getOrderItems: %w", err)
		}
		order.Items = items

		return order, nil
	})
	if err != nil {
		return o, fmt.Errorf("withTx: %w", err)
	}

	return order, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := r.dbtx.Query(ctx,
		`SELECT o.id, o.order_number, o.user_id, o.total_amount, o.total_currency,
		        o.status, o.payment_status, o.payment_method, o.shipping_address, o.billing_address, o.notes,
		        o.created_at, o.updated_at, o.shipped_at, o.delivered_at,
		        i.id, i.product_id, i.quantity, i.price_amount, i.price_currency, i.created_at
		 FROM orders o
		 JOIN order_items i ON i.order_id = o.id
		 WHERE o.user_id = $1
		 ORDER BY o.created_at DESC, o.id DESC, i.id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("q.Query orders: %w", err)
	}
	defer rows.Close()

	// Group joined rows into orders, preserving the ORDER BY ordering.
	orderMap := make(map[int64]domain.Order)
	var orderIDs []int64

	for rows.Next() {
		order, item, err := scanOrderJoinItemRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanOrderJoinItemRow: %w", err)
		}

		if _, exists := orderMap[order.ID]; !exists {
			orderMap[order.ID] = order
			orderIDs = append(orderIDs, order.ID)
		}

		grouped := orderMap[order.ID]
		grouped.Items = append(grouped.Items, item)
		orderMap[order.ID] = grouped
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return lo.Map(orderIDs, func(id int64, _ int) domain.Order {
		return orderMap[id]
	}), nil
}

func (r *orderRepository) InsertOrder(ctx context.Context, order domain.Order) (int64, error) {
	if len(order.Items) == 0 {
		return 0, errors.New("no items in order")
	}

	orderID, err := withTx(ctx, r.dbtx, func(q DBTX) (int64, error) {
		var orderID int64

		err := q.QueryRow(ctx,
			`INSERT INTO orders (order_number, user_id, total_amount, total_currency,
			                     status, payment_status, payment_method, shipping_address, billing_address, notes)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 RETURNING id`,
			order.OrderNumber, order.UserID,
			order.TotalAmount.Amount, order.TotalAmount.Currency.String(),
			string(order.Status), string(order.PaymentStatus), order.PaymentMethod,
			order.ShippingAddress, order.BillingAddress, order.Notes).
			Scan(&orderID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
				return 0, fmt.Errorf("order number[%s]: %w", order.OrderNumber, domain.ErrOrderNumberCollision)
			}
			return 0, fmt.Errorf("q.QueryRow insert order: %w", err)
		}

		for _, item := range order.Items {
			_, err := q.Exec(ctx,
				`INSERT INTO order_items (order_id, product_id, quantity, price_amount, price_currency)
				 VALUES ($1, $2, $3, $4, $5)`,
				orderID, item.ProductID, item.Quantity,
				item.UnitPrice.Amount, item.UnitPrice.Currency.String())
			if err != nil {
				return 0, fmt.Errorf("q.Exec insert item: %w", err)
			}
		}

		return orderID, nil
	})
	if err != nil {
		return 0, fmt.Errorf("withTx: %w", err)
	}

	return orderID, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, orderID int64, update domain.OrderStatusUpdate) error {
	cmdTag, err := r.dbtx.Exec(ctx,
		`UPDATE orders
		 SET status = $2,
		     payment_status = COALESCE($3, payment_status),
		     shipped_at = COALESCE($4, shipped_at),
		     delivered_at = COALESCE($5, delivered_at),
		     updated_at = NOW()
		 WHERE id = $1`,
		orderID, string(update.Status),
		paymentStatusArg(update.PaymentStatus), update.ShippedAt, update.DeliveredAt)
	if err != nil {
		return fmt.Errorf("q.Exec update status: %w", err)
	}

	if cmdTag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

func paymentStatusArg(status *domain.PaymentStatus) *string {
	if status == nil {
		return nil
	}
	return lo.ToPtr(string(*status))
}

func getOrderItems(ctx context.Context, q DBTX, orderID int64) ([]domain.OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, product_id, quantity, price_amount, price_currency, created_at
		 FROM order_items
		 WHERE order_id = $1
		 ORDER BY id`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("q.Query items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem

	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanOrderItem: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return items, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o             domain.Order
		totalAmount   decimal.Decimal
		totalCurrency string
		status        string
		paymentStatus string
	)

	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &totalAmount, &totalCurrency,
		&status, &paymentStatus, &o.PaymentMethod, &o.ShippingAddress, &o.BillingAddress, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt)
	if err != nil {
		return o, err
	}

	return mapOrder(o, totalAmount, totalCurrency, status, paymentStatus)
}

func scanOrderItem(row pgx.Row) (domain.OrderItem, error) {
	var (
		item          domain.OrderItem
		priceAmount   decimal.Decimal
		priceCurrency string
	)

	err := row.Scan(&item.ID, &item.ProductID, &item.Quantity, &priceAmount, &priceCurrency, &item.CreatedAt)
	if err != nil {
		return item, err
	}

	price, err := toMoney(priceAmount, priceCurrency)
	if err != nil {
		return item, fmt.Errorf("toMoney: %w", err)
	}
	item.UnitPrice = price

	return item, nil
}

func scanOrderJoinItemRow(rows pgx.Rows) (domain.Order, domain.OrderItem, error) {
	var (
		o             domain.Order
		item          domain.OrderItem
		totalAmount   decimal.Decimal
		totalCurrency string
		status        string
		paymentStatus string
		priceAmount   decimal.Decimal
		priceCurrency string
	)

	err := rows.Scan(&o.ID, &o.OrderNumber, &o.UserID, &totalAmount, &totalCurrency,
		&status, &paymentStatus, &o.PaymentMethod, &o.ShippingAddress, &o.BillingAddress, &o.Notes,
		&o.CreatedAt, &o.UpdatedAt, &o.ShippedAt, &o.DeliveredAt,
		&item.ID, &item.ProductID, &item.Quantity, &priceAmount, &priceCurrency, &item.CreatedAt)
	if err != nil {
		return o, item, err
	}

	o, err = mapOrder(o, totalAmount, totalCurrency, status, paymentStatus)
	if err != nil {
		return o, item, fmt.Errorf("mapOrder: %w", err)
	}

	price, err := toMoney(priceAmount, priceCurrency)
	if err != nil {
		return o, item, fmt.Errorf("toMoney: %w", err)
	}
	item.UnitPrice = price

	return o, item, nil
}

func mapOrder(o domain.Order, totalAmount decimal.Decimal, totalCurrency, status, paymentStatus string) (domain.Order, error) {
	total, err := toMoney(totalAmount, totalCurrency)
	if err != nil {
		return o, fmt.Errorf("toMoney: %w", err)
	}
	o.TotalAmount = total

	o.Status, err = domain.ToOrderStatus(status)
	if err != nil {
		return o, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
	}

	o.PaymentStatus, err = domain.ToPaymentStatus(paymentStatus)
	if err != nil {
		return o, fmt.Errorf("domain.ToPaymentStatus[%s]: %w", paymentStatus, err)
	}

	return o, nil
}
