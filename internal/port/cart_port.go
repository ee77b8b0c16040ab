package port

import (
	"context"

	"github.com/nikolayk812/checkout/internal/domain"
)

type CartRepository interface {
	// GetOrCreate returns the identity's cart, creating an empty one
	// on first access. Never returns a zero cart without error.
	GetOrCreate(ctx context.Context, owner domain.Identity) (domain.Cart, error)

	Get(ctx context.Context, owner domain.Identity) (domain.Cart, error)

	// GetForUpdate locks the cart row for the duration of the surrounding
	// transaction, serializing concurrent checkouts of the same cart.
	GetForUpdate(ctx context.Context, owner domain.Identity) (domain.Cart, error)

	// SetItem inserts the item or, if the product is already in the cart,
	// replaces its quantity and unit price snapshot. Bumps the cart's
	// updated_at either way.
	SetItem(ctx context.Context, cartID int64, item domain.CartItem) error

	// DeleteItem removes one line; deleting an unknown line is a no-op
	// and reports found=false.
	DeleteItem(ctx context.Context, cartID, itemID int64) (bool, error)

	// Clear removes all lines, keeping the cart row.
	Clear(ctx context.Context, cartID int64) error
}
