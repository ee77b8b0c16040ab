package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestInsufficientStockErrorListsAllProducts(t *testing.T) {
	productA := uuid.New()
	productB := uuid.New()

	err := InsufficientStockError{
		Shortfalls: []StockShortfall{
			{ProductID: productA, Requested: 5, Available: 2},
			{ProductID: productB, Requested: 1, Available: 0},
		},
	}

	assert.Contains(t, err.Error(), productA.String())
	assert.Contains(t, err.Error(), productB.String())
	assert.Equal(t, 3, err.Shortfalls[0].Shortfall())
}

func TestIsBusinessError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "invalid quantity", err: ErrInvalidQuantity, want: true},
		{name: "empty cart wrapped", err: fmt.Errorf("checkout: %w", ErrEmptyCart), want: true},
		{name: "product unavailable", err: ProductUnavailableError{ProductIDs: []uuid.UUID{uuid.New()}}, want: true},
		{name: "insufficient stock wrapped", err: fmt.Errorf("decrement: %w", InsufficientStockError{}), want: true},
		{name: "invalid transition", err: InvalidTransitionError{From: OrderStatusShipped, To: OrderStatusCancelled}, want: true},
		{name: "auth required", err: ErrAuthRequired, want: true},
		{name: "storage failure", err: StorageError{Err: errors.New("connection reset")}, want: false},
		{name: "checkout failed", err: ErrCheckoutFailed, want: false},
		{name: "order number collision", err: ErrOrderNumberCollision, want: false},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBusinessError(tt.err))
		})
	}
}

func TestStorageErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := StorageError{Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "storage failure")
}
