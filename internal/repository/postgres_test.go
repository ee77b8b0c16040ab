package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/text/currency"

	"github.com/nikolayk812/checkout/internal/db"
	"github.com/nikolayk812/checkout/internal/domain"
)

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("checkout"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("container.ConnectionString: %w", err)
	}

	if err := db.Migrate(connStr); err != nil {
		return nil, "", fmt.Errorf("db.Migrate: %w", err)
	}

	return container, connStr, nil
}

func fakeProduct(stock int) domain.Product {
	return domain.Product{
		ID:   uuid.New(),
		Name: gofakeit.ProductName(),
		SKU:  gofakeit.UUID(),
		Price: domain.Money{
			Amount:   decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
			Currency: currency.EUR,
		},
		StockQuantity: stock,
		IsActive:      true,
	}
}

// insertProduct seeds the catalog directly: product management is outside
// the engine, tests play the role of the catalog service.
func insertProduct(ctx context.Context, pool *pgxpool.Pool, p domain.Product) error {
	_, err := pool.Exec(ctx,
		`INSERT INTO products (id, name, sku, price_amount, price_currency, stock_quantity, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Name, p.SKU, p.Price.Amount, p.Price.Currency.String(), p.StockQuantity, p.IsActive)
	if err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}

	return nil
}

func productStock(ctx context.Context, pool *pgxpool.Pool, productID uuid.UUID) (int, error) {
	var stock int
	if err := pool.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id = $1`, productID).Scan(&stock); err != nil {
		return 0, fmt.Errorf("pool.QueryRow: %w", err)
	}
	return stock, nil
}

// comparer options shared by the asserts below: decimals compare by value
// regardless of exponent, currencies by ISO code.
func moneyCmpOpts() cmp.Options {
	return cmp.Options{
		cmp.Comparer(func(x, y decimal.Decimal) bool {
			return x.Equal(y)
		}),
		cmp.Comparer(func(x, y currency.Unit) bool {
			return x.String() == y.String()
		}),
	}
}

func assertMoney(t *testing.T, expected, actual domain.Money) {
	t.Helper()

	assert.True(t, expected.Amount.Equal(actual.Amount), "amount: want %s, got %s", expected.Amount, actual.Amount)
	assert.Equal(t, expected.Currency.String(), actual.Currency.String())
}
