package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/nikolayk812/checkout/internal/domain"
	"github.com/nikolayk812/checkout/internal/port"
)

type productRepository struct {
	dbtx DBTX
}

func NewProduct(pool *pgxpool.Pool) port.ProductRepository {
	return &productRepository{dbtx: pool}
}

func NewProductWithTx(tx pgx.Tx) port.ProductRepository {
	return &productRepository{dbtx: tx}
}

const productColumns = `id, name, sku, price_amount, price_currency, stock_quantity, is_active, created_at, updated_at`

func (r *productRepository) GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error) {
	var p domain.Product

	row := r.dbtx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		productID)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, domain.ErrProductNotFound
		}
		return p, fmt.Errorf("scanProduct: %w", err)
	}

	return p, nil
}

func (r *productRepository) GetProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]domain.Product, error) {
	if len(productIDs) == 0 {
		return map[uuid.UUID]domain.Product{}, nil
	}

	rows, err := r.dbtx.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`,
		productIDs)
	if err != nil {
		return nil, fmt.Errorf("q.Query products: %w", err)
	}
	defer rows.Close()

	products := make(map[uuid.UUID]domain.Product, len(productIDs))

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanProduct: %w", err)
		}
		products[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return products, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		p             domain.Product
		priceAmount   decimal.Decimal
		priceCurrency string
	)

	err := row.Scan(&p.ID, &p.Name, &p.SKU, &priceAmount, &priceCurrency,
		&p.StockQuantity, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}

	price, err := toMoney(priceAmount, priceCurrency)
	if err != nil {
		return p, fmt.Errorf("toMoney: %w", err)
	}
	p.Price = price

	return p, nil
}
