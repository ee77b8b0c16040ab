package domain

import (
	"time"

	"github.com/google/uuid"
)

// Product is a read-only catalog snapshot. The engine never creates or
// edits products; only StockQuantity is mutated, through the stock ledger.
type Product struct {
	ID            uuid.UUID
	Name          string
	SKU           string
	Price         Money
	StockQuantity int
	IsActive      bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Product) InStock() bool {
	return p.StockQuantity > 0
}
