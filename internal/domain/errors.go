package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrEmptyCart       = errors.New("cart is empty")
	ErrMixedCurrency   = errors.New("mixed currencies")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrOrderNotFound   = errors.New("order not found")
	ErrCartNotFound    = errors.New("cart not found")
	ErrProductNotFound = errors.New("product not found")

	// ErrAuthRequired: orders belong to users, an anonymous cart
	// cannot be checked out until its owner signs in.
	ErrAuthRequired = errors.New("authenticated user required for checkout")

	// ErrOrderNumberCollision is internal: the orchestrator regenerates
	// the number a capped number of times before giving up.
	ErrOrderNumberCollision = errors.New("order number collision")

	// ErrCheckoutFailed is the opaque error surfaced to callers when the
	// checkout transaction fails for a non-business reason. Full detail
	// is logged, never returned.
	ErrCheckoutFailed = errors.New("checkout failed")
)

// StorageError wraps an underlying persistence failure so callers can
// distinguish infrastructure faults from business outcomes.
type StorageError struct {
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage failure: %v", e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// ProductUnavailableError lists every cart line whose product is missing
// or deactivated, so the caller can show the exact set to the user.
type ProductUnavailableError struct {
	ProductIDs []uuid.UUID
}

func (e ProductUnavailableError) Error() string {
	ids := make([]string, 0, len(e.ProductIDs))
	for _, id := range e.ProductIDs {
		ids = append(ids, id.String())
	}
	return fmt.Sprintf("products unavailable: %s", strings.Join(ids, ", "))
}

// StockShortfall describes one product that cannot cover the requested quantity.
type StockShortfall struct {
	ProductID uuid.UUID
	Requested int
	Available int
}

func (s StockShortfall) Shortfall() int {
	return s.Requested - s.Available
}

// InsufficientStockError is list-valued: it names every failing product,
// not just the first one encountered.
type InsufficientStockError struct {
	Shortfalls []StockShortfall
}

func (e InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortfalls))
	for _, s := range e.Shortfalls {
		parts = append(parts, fmt.Sprintf("product[%s] requested %d, available %d", s.ProductID, s.Requested, s.Available))
	}
	return fmt.Sprintf("insufficient stock: %s", strings.Join(parts, "; "))
}

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %q to %q", e.From, e.To)
}

// IsBusinessError reports whether err is an expected business outcome,
// i.e. a typed result for the caller rather than a fault to log.
func IsBusinessError(err error) bool {
	var (
		unavailable  ProductUnavailableError
		insufficient InsufficientStockError
		transition   InvalidTransitionError
	)

	switch {
	case errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrEmptyCart),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrAuthRequired),
		errors.Is(err, ErrOrderNotFound),
		errors.Is(err, ErrCartNotFound),
		errors.Is(err, ErrProductNotFound),
		errors.Is(err, ErrMixedCurrency):
		return true
	case errors.As(err, &unavailable), errors.As(err, &insufficient), errors.As(err, &transition):
		return true
	}

	return false
}
