package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nikolayk812/checkout/internal/domain"
	"github.com/nikolayk812/checkout/internal/events"
	"github.com/nikolayk812/checkout/internal/port"
	"github.com/nikolayk812/checkout/internal/pricing"
	"github.com/nikolayk812/checkout/internal/repository"
)

// TxBeginner starts transactions; satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CheckoutService turns a mutable cart into an immutable order inside one
// database transaction: re-validate availability, snapshot totals, create
// the order and its lines, decrement stock, clear the cart. Any failure
// rolls everything back; there is no partial-success state.
type CheckoutService struct {
	db        TxBeginner
	publisher events.Publisher
	logger    *zap.Logger

	taxRate             decimal.Decimal
	orderNumberAttempts int
}

func NewCheckout(db TxBeginner, publisher events.Publisher, taxRate decimal.Decimal, orderNumberAttempts int, logger *zap.Logger) *CheckoutService {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if orderNumberAttempts < 1 {
		orderNumberAttempts = 1
	}

	return &CheckoutService{
		db:                  db,
		publisher:           publisher,
		logger:              logger,
		taxRate:             taxRate,
		orderNumberAttempts: orderNumberAttempts,
	}
}

func (s *CheckoutService) Checkout(ctx context.Context, owner domain.Identity, details domain.ShippingDetails) (domain.Order, error) {
	var o domain.Order

	if err := owner.Validate(); err != nil {
		return o, fmt.Errorf("owner.Validate: %w", err)
	}

	if !owner.IsUser() {
		return o, domain.ErrAuthRequired
	}

	// An order number collision aborts the whole transaction, so the
	// retry restarts checkout from scratch with a fresh number.
	for attempt := 1; ; attempt++ {
		order, err := s.checkoutOnce(ctx, owner, details)
		if err == nil {
			s.logger.Info("checkout completed",
				zap.Int64("user_id", owner.UserID),
				zap.String("order_number", order.OrderNumber),
				zap.Int("items", len(order.Items)))

			if pubErr := s.publisher.PublishOrderCreated(ctx, order); pubErr != nil {
				s.logger.Warn("publish order created", zap.Error(pubErr), zap.Int64("order_id", order.ID))
			}

			return order, nil
		}

		if errors.Is(err, domain.ErrOrderNumberCollision) {
			if attempt < s.orderNumberAttempts {
				s.logger.Warn("order number collision, regenerating",
					zap.Int("attempt", attempt), zap.Int64("user_id", owner.UserID))
				continue
			}
			s.logger.Error("order number collisions exhausted",
				zap.Int("attempts", attempt), zap.Int64("user_id", owner.UserID))
			return o, domain.ErrCheckoutFailed
		}

		if domain.IsBusinessError(err) {
			// expected outcome, the caller presents it to the user
			return o, err
		}

		s.logger.Error("checkout transaction failed",
			zap.Error(err), zap.Int64("user_id", owner.UserID))
		return o, domain.ErrCheckoutFailed
	}
}

func (s *CheckoutService) checkoutOnce(ctx context.Context, owner domain.Identity, details domain.ShippingDetails) (_ domain.Order, txErr error) {
	var o domain.Order

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return o, fmt.Errorf("db.Begin: %w", err)
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
	stock := repository.NewStockWithTx(tx)
	orders := repository.NewOrderWithTx(tx)

	// The row lock serializes concurrent checkouts of the same cart:
	// a double submit waits here and then finds an empty cart.
	cart, err := carts.GetForUpdate(ctx, owner)
	if err != nil {
		if errors.Is(err, domain.ErrCartNotFound) {
			return o, domain.ErrEmptyCart
		}
		return o, fmt.Errorf("carts.GetForUpdate: %w", err)
	}

	if cart.IsEmpty() {
		return o, domain.ErrEmptyCart
	}

	if err := s.validateAvailability(ctx, products, cart); err != nil {
		return o, err
	}

	totals, err := pricing.CartTotals(cart.Items, s.taxRate)
	if err != nil {
		return o, fmt.Errorf("pricing.CartTotals: %w", err)
	}

	if details.BillingAddress == "" {
		details.BillingAddress = details.ShippingAddress
	}

	order := domain.Order{
		OrderNumber:     generateOrderNumber(),
		UserID:          owner.UserID,
		TotalAmount:     totals.TaxInclusive,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		PaymentMethod:   details.PaymentMethod,
		ShippingAddress: details.ShippingAddress,
		BillingAddress:  details.BillingAddress,
		Notes:           details.Notes,
		Items: lo.Map(cart.Items, func(item domain.CartItem, _ int) domain.OrderItem {
			return domain.OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
			}
		}),
	}

	orderID, err := orders.InsertOrder(ctx, order)
	if err != nil {
		return o, fmt.Errorf("orders.InsertOrder: %w", err)
	}

	// Stock may have moved since the validation read; the conditional
	// decrement is the authoritative check and aborts the whole
	// transaction on any shortfall. Rows are locked in product id order
	// so two checkouts sharing products cannot deadlock.
	for _, item := range sortedByProduct(cart.Items) {
		if _, err := stock.Decrement(ctx, item.ProductID, item.Quantity); err != nil {
			return o, fmt.Errorf("stock.Decrement[%s]: %w", item.ProductID, err)
		}
	}

	if err := carts.Clear(ctx, cart.ID); err != nil {
		return o, fmt.Errorf("carts.Clear: %w", err)
	}

	created, err := orders.GetOrder(ctx, orderID)
	if err != nil {
		return o, fmt.Errorf("orders.GetOrder: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return o, fmt.Errorf("tx.Commit: %w", err)
	}

	return created, nil
}

// validateAvailability re-checks every cart line against the catalog,
// collecting all failing lines rather than stopping at the first:
// the caller must be able to show the user the full set.
func (s *CheckoutService) validateAvailability(ctx context.Context, products port.ProductRepository, cart domain.Cart) error {
	productIDs := lo.Map(cart.Items, func(item domain.CartItem, _ int) uuid.UUID {
		return item.ProductID
	})

	catalog, err := products.GetProducts(ctx, productIDs)
	if err != nil {
		return fmt.Errorf("products.GetProducts: %w", err)
	}

	var unavailable []uuid.UUID
	var shortfalls []domain.StockShortfall

	for _, item := range cart.Items {
		product, ok := catalog[item.ProductID]
		if !ok || !product.IsActive {
			unavailable = append(unavailable, item.ProductID)
			continue
		}

		if item.Quantity > product.StockQuantity {
			shortfalls = append(shortfalls, domain.StockShortfall{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: product.StockQuantity,
			})
		}
	}

	if len(unavailable) > 0 {
		return domain.ProductUnavailableError{ProductIDs: unavailable}
	}

	if len(shortfalls) > 0 {
		return domain.InsufficientStockError{Shortfalls: shortfalls}
	}

	return nil
}

// sortedByProduct returns a copy of the cart lines ordered by product id,
// the lock acquisition order for stock rows.
func sortedByProduct(items []domain.CartItem) []domain.CartItem {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b domain.CartItem) int {
		return bytes.Compare(a.ProductID[:], b.ProductID[:])
	})
	return sorted
}

// generateOrderNumber produces human-readable, collision-resistant numbers
// like ORD-20240131154502-7F3A1B. Uniqueness is enforced by the orders
// table; collisions surface as ErrOrderNumberCollision and are retried.
func generateOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", time.Now().UTC().Format("20060102150405"), suffix)
}
