package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
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

// priced pins the product price so totals in tests stay predictable.
func priced(p domain.Product, price string) domain.Product {
	p.Price.Amount = decimal.RequireFromString(price)
	return p
}

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

func setStock(ctx context.Context, pool *pgxpool.Pool, productID uuid.UUID, stock int) error {
	if _, err := pool.Exec(ctx, `UPDATE products SET stock_quantity = $2 WHERE id = $1`, productID, stock); err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	return nil
}

func setPrice(ctx context.Context, pool *pgxpool.Pool, productID uuid.UUID, price string) error {
	if _, err := pool.Exec(ctx, `UPDATE products SET price_amount = $2 WHERE id = $1`, productID, decimal.RequireFromString(price)); err != nil {
		return fmt.Errorf("pool.Exec: %w", err)
	}
	return nil
}

func deactivateProduct(ctx context.Context, pool *pgxpool.Pool, productID uuid.UUID) error {
	if _, err := pool.Exec(ctx, `UPDATE products SET is_active = FALSE WHERE id = $1`, productID); err != nil {
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

func assertMoney(t *testing.T, expectedAmount string, actual domain.Money) {
	t.Helper()

	expected := decimal.RequireFromString(expectedAmount)
	assert.True(t, expected.Equal(actual.Amount), "amount: want %s, got %s", expected, actual.Amount)
}

// recordingPublisher captures published orders instead of talking to a broker.
type recordingPublisher struct {
	mu        sync.Mutex
	created   []domain.Order
	cancelled []domain.Order
}

func (p *recordingPublisher) PublishOrderCreated(_ context.Context, order domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, order)
	return nil
}

func (p *recordingPublisher) PublishOrderCancelled(_ context.Context, order domain.Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, order)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) createdOrders() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Order(nil), p.created...)
}

func (p *recordingPublisher) cancelledOrders() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.Order(nil), p.cancelled...)
}
