package port

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikolayk812/checkout/internal/domain"
)

// ProductRepository is the read-only catalog view the engine depends on.
// Product management lives outside this module.
type ProductRepository interface {
	GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error)

	// GetProducts returns the products found for the given ids, keyed by id.
	// Missing ids are simply absent from the map, not an error.
	GetProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]domain.Product, error)
}

// StockRepository is the stock ledger: the only code path allowed to
// mutate a product's available quantity.
type StockRepository interface {
	// Decrement atomically subtracts quantity if sufficient stock remains,
	// returning the new level. Concurrent decrements on one product can
	// never jointly drive stock negative.
	Decrement(ctx context.Context, productID uuid.UUID, quantity int) (int, error)

	// Restore adds quantity back after a cancellation. No upper bound:
	// lifetime stock levels are managed by the catalog, not here.
	Restore(ctx context.Context, productID uuid.UUID, quantity int) (int, error)
}
