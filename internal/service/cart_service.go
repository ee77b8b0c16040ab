package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nikolayk812/checkout/internal/domain"
	"github.com/nikolayk812/checkout/internal/port"
	"github.com/nikolayk812/checkout/internal/pricing"
	"github.com/nikolayk812/checkout/internal/repository"
)

// CartService implements the cart store: per-identity mutable line items
// with add-time price snapshots and stock-aware validation. Mutations run
// in a transaction holding the cart row lock, so concurrent requests for
// the same identity serialize instead of overwriting each other.
type CartService struct {
	db      TxBeginner
	carts   port.CartRepository
	taxRate decimal.Decimal
	logger  *zap.Logger
}

func NewCart(db TxBeginner, carts port.CartRepository, taxRate decimal.Decimal, logger *zap.Logger) *CartService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CartService{
		db:      db,
		carts:   carts,
		taxRate: taxRate,
		logger:  logger,
	}
}

func (s *CartService) GetOrCreate(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	cart, err := s.carts.GetOrCreate(ctx, owner)
	if err != nil {
		return cart, storageErr(fmt.Errorf("carts.GetOrCreate: %w", err))
	}

	return cart, nil
}

// AddItem merges into an existing line of the same product, summing the
// quantity and refreshing the unit price snapshot to the current catalog
// price, or creates a new line.
func (s *CartService) AddItem(ctx context.Context, owner domain.Identity, productID uuid.UUID, quantity int) (domain.Cart, error) {
	var c domain.Cart

	if quantity < 1 {
		return c, domain.ErrInvalidQuantity
	}

	cart, err := s.addItemTx(ctx, owner, productID, quantity)
	if err != nil {
		return c, storageErr(err)
	}

	return cart, nil
}

func (s *CartService) addItemTx(ctx context.Context, owner domain.Identity, productID uuid.UUID, quantity int) (_ domain.Cart, txErr error) {
	var c domain.Cart

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return c, fmt.Errorf("db.Begin: %w", err)
	}

	defer func() {
		if txErr != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	carts := repository.NewCartWithTx(tx)
	products := repository.NewProductWithTx(tx)

	product, err := products.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return c, domain.ProductUnavailableError{ProductIDs: []uuid.UUID{productID}}
		}
		return c, fmt.Errorf("products.GetProduct: %w", err)
	}

	if !product.IsActive {
		return c, domain.ProductUnavailableError{ProductIDs: []uuid.UUID{productID}}
	}

	// Holding the row lock makes the merge below safe: a concurrent add
	// of the same product waits here and then sees this one's quantity.
	cart, err := lockCart(ctx, carts, owner)
	if err != nil {
		return c, err
	}

	newQuantity := quantity
	if existing, ok := cart.ItemByProduct(productID); ok {
		newQuantity += existing.Quantity
	}

	if newQuantity > product.StockQuantity {
		return c, domain.InsufficientStockError{
			Shortfalls: []domain.StockShortfall{
				{ProductID: productID, Requested: newQuantity, Available: product.StockQuantity},
			},
		}
	}

	item := domain.CartItem{
		ProductID: productID,
		Quantity:  newQuantity,
		UnitPrice: product.Price,
	}

	if err := carts.SetItem(ctx, cart.ID, item); err != nil {
		return c, fmt.Errorf("carts.SetItem: %w", err)
	}

	updated, err := carts.Get(ctx, owner)
	if err != nil {
		return c, fmt.Errorf("carts.Get: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return c, fmt.Errorf("tx.Commit: %w", err)
	}

	return updated, nil
}

// UpdateItemQuantity treats quantity < 1 as removal. The unit price
// snapshot is kept as-is: only AddItem refreshes it.
func (s *CartService) UpdateItemQuantity(ctx context.Context, owner domain.Identity, itemID int64, quantity int) (domain.Cart, error) {
	var c domain.Cart

	if quantity < 1 {
		return s.RemoveItem(ctx, owner, itemID)
	}

	cart, err := s.updateItemTx(ctx, owner, itemID, quantity)
	if err != nil {
		return c, storageErr(err)
	}

	return cart, nil
}

func (s *CartService) updateItemTx(ctx context.Context, owner domain.Identity, itemID int64, quantity int) (_ domain.Cart, txErr error) {
	var c domain.Cart

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return c, fmt.Errorf("db.Begin: %w", err)
	}

	defer func() {
		if txErr != nil {
			rollbackErr := tx.Rollback(ctx)
			if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
				txErr = errors.Join(txErr, fmt.Errorf("tx.Rollback: %w", rollbackErr))
			}
		}
	}()

	carts := repository.NewCartWithTx(tx)
	products := repository.NewProductWithTx(tx)

	cart, err := lockCart(ctx, carts, owner)
	if err != nil {
		return c, err
	}

	var item domain.CartItem
	var found bool
	for _, it := range cart.Items {
		if it.ID == itemID {
			item, found = it, true
			break
		}
	}

	if !found {
		// unknown line: nothing to update
		if err := tx.Commit(ctx); err != nil {
			return c, fmt.Errorf("tx.Commit: %w", err)
		}
		return cart, nil
	}

	product, err := products.GetProduct(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return c, domain.ProductUnavailableError{ProductIDs: []uuid.UUID{item.ProductID}}
		}
		return c, fmt.Errorf("products.GetProduct: %w", err)
	}

	if quantity > product.StockQuantity {
		return c, domain.InsufficientStockError{
			Shortfalls: []domain.StockShortfall{
				{ProductID: item.ProductID, Requested: quantity, Available: product.StockQuantity},
			},
		}
	}

	item.Quantity = quantity

	if err := carts.SetItem(ctx, cart.ID, item); err != nil {
		return c, fmt.Errorf("carts.SetItem: %w", err)
	}

	updated, err := carts.Get(ctx, owner)
	if err != nil {
		return c, fmt.Errorf("carts.Get: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return c, fmt.Errorf("tx.Commit: %w", err)
	}

	return updated, nil
}

// lockCart locks the identity's cart row for the surrounding transaction,
// creating the cart on first use and locking the fresh row.
func lockCart(ctx context.Context, carts port.CartRepository, owner domain.Identity) (domain.Cart, error) {
	var c domain.Cart

	cart, err := carts.GetForUpdate(ctx, owner)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrCartNotFound) {
		return c, fmt.Errorf("carts.GetForUpdate: %w", err)
	}

	if _, err := carts.GetOrCreate(ctx, owner); err != nil {
		return c, fmt.Errorf("carts.GetOrCreate: %w", err)
	}

	cart, err = carts.GetForUpdate(ctx, owner)
	if err != nil {
		return c, fmt.Errorf("carts.GetForUpdate: %w", err)
	}

	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, owner domain.Identity, itemID int64) (domain.Cart, error) {
	var c domain.Cart

	cart, err := s.carts.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			// no cart means nothing to remove
			return s.GetOrCreate(ctx, owner)
		}
		return c, storageErr(fmt.Errorf("carts.Get: %w", err))
	}

	if _, err := s.carts.DeleteItem(ctx, cart.ID, itemID); err != nil {
		return c, storageErr(fmt.Errorf("carts.DeleteItem: %w", err))
	}

	return s.reload(ctx, owner)
}

func (s *CartService) Clear(ctx context.Context, owner domain.Identity) error {
	cart, err := s.carts.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			return nil
		}
		return storageErr(fmt.Errorf("carts.Get: %w", err))
	}

	if err := s.carts.Clear(ctx, cart.ID); err != nil {
		return storageErr(fmt.Errorf("carts.Clear: %w", err))
	}

	return nil
}

// CartSummary is the view data the presentation layer renders:
// structured values only, no formatting.
type CartSummary struct {
	ItemCount int
	Subtotal  domain.Money
	// Total is the subtotal with the configured tax applied.
	Total domain.Money
}

func (s *CartService) Summary(ctx context.Context, owner domain.Identity) (CartSummary, error) {
	var summary CartSummary

	cart, err := s.carts.Get(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			return CartSummary{}, nil
		}
		return summary, storageErr(fmt.Errorf("carts.Get: %w", err))
	}

	totals, err := pricing.CartTotals(cart.Items, s.taxRate)
	if err != nil {
		return summary, fmt.Errorf("pricing.CartTotals: %w", err)
	}

	return CartSummary{
		ItemCount: cart.ItemCount(),
		Subtotal:  totals.Subtotal,
		Total:     totals.TaxInclusive,
	}, nil
}

func (s *CartService) reload(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	cart, err := s.carts.Get(ctx, owner)
	if err != nil {
		return cart, storageErr(fmt.Errorf("carts.Get: %w", err))
	}

	return cart, nil
}

// storageErr wraps persistence failures so callers can tell infrastructure
// faults from business outcomes; business errors pass through untouched.
func storageErr(err error) error {
	if err == nil || domain.IsBusinessError(err) {
		return err
	}
	return domain.StorageError{Err: err}
}
