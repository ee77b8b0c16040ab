package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikolayk812/checkout/internal/domain"
	"github.com/nikolayk812/checkout/internal/port"
)

// stockRepository is the stock ledger. Decrement relies on a conditional
// UPDATE so that the read-check-write happens inside one atomic statement:
// two concurrent decrements on the same product serialize on the row and
// can never jointly drive stock below zero.
type stockRepository struct {
	dbtx DBTX
}

func NewStock(pool *pgxpool.Pool) port.StockRepository {
	return &stockRepository{dbtx: pool}
}

func NewStockWithTx(tx pgx.Tx) port.StockRepository {
	return &stockRepository{dbtx: tx}
}

func (r *stockRepository) Decrement(ctx context.Context, productID uuid.UUID, quantity int) (int, error) {
	if quantity < 1 {
		return 0, domain.ErrInvalidQuantity
	}

	var newLevel int

	err := r.dbtx.QueryRow(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		 WHERE id = $1 AND stock_quantity >= $2
		 RETURNING stock_quantity`,
		productID, quantity).Scan(&newLevel)
	if err == nil {
		return newLevel, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("q.QueryRow decrement: %w", err)
	}

	// No row matched: either the product is gone or stock is short.
	var available int
	err = r.dbtx.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("q.QueryRow stock: %w", err)
	}

	return 0, domain.InsufficientStockError{
		Shortfalls: []domain.StockShortfall{
			{ProductID: productID, Requested: quantity, Available: available},
		},
	}
}

func (r *stockRepository) Restore(ctx context.Context, productID uuid.UUID, quantity int) (int, error) {
	if quantity < 1 {
		return 0, domain.ErrInvalidQuantity
	}

	var newLevel int

	err := r.dbtx.QueryRow(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING stock_quantity`,
		productID, quantity).Scan(&newLevel)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("q.QueryRow restore: %w", err)
	}

	return newLevel, nil
}
