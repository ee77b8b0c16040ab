// Package pricing computes cart and order totals from price snapshots.
// All functions are pure: they never read live catalog prices.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/nikolayk812/checkout/internal/domain"
)

type Totals struct {
	Subtotal Money
	// TaxInclusive is Subtotal multiplied by (1 + tax rate).
	TaxInclusive Money
}

// Money aliases the domain type so callers of this package
// do not need to import both.
type Money = domain.Money

func LineSubtotal(price domain.Money, quantity int) domain.Money {
	return price.MulQuantity(quantity)
}

// CartTotals sums the unit-price snapshots of the cart lines.
// All lines must share one currency.
func CartTotals(items []domain.CartItem, taxRate decimal.Decimal) (Totals, error) {
	lines := make([]priceLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, priceLine{price: item.UnitPrice, quantity: item.Quantity})
	}

	return sumLines(lines, taxRate)
}

// OrderTotals recomputes an order's totals from its line snapshots,
// never from live product prices.
func OrderTotals(items []domain.OrderItem, taxRate decimal.Decimal) (Totals, error) {
	lines := make([]priceLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, priceLine{price: item.UnitPrice, quantity: item.Quantity})
	}

	return sumLines(lines, taxRate)
}

type priceLine struct {
	price    domain.Money
	quantity int
}

func sumLines(lines []priceLine, taxRate decimal.Decimal) (Totals, error) {
	var t Totals

	if len(lines) == 0 {
		return t, nil
	}

	subtotal := domain.Money{
		Amount:   decimal.Zero,
		Currency: lines[0].price.Currency,
	}

	for _, line := range lines {
		var err error

		subtotal, err = subtotal.Add(LineSubtotal(line.price, line.quantity))
		if err != nil {
			return t, fmt.Errorf("subtotal.Add: %w", err)
		}
	}

	taxMultiplier := decimal.NewFromInt(1).Add(taxRate)

	return Totals{
		Subtotal: subtotal,
		TaxInclusive: domain.Money{
			// orders store amounts as numeric(10,2), keep totals at that scale
			Amount:   subtotal.Amount.Mul(taxMultiplier).Round(2),
			Currency: subtotal.Currency,
		},
	}, nil
}
