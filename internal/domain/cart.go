package domain

import (
	"time"

	"github.com/google/uuid"
)

type Cart struct {
	ID    int64
	Owner Identity
	Items []CartItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ID        int64
	ProductID uuid.UUID
	Quantity  int
	// UnitPrice is the snapshot captured at add-time, refreshed on re-add
	// of the same product. It does not track later catalog price changes.
	UnitPrice Money

	AddedAt time.Time
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

func (c Cart) ItemByProduct(productID uuid.UUID) (CartItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return CartItem{}, false
}
