package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/nikolayk812/checkout/internal/domain"
	"github.com/nikolayk812/checkout/internal/port"
)

type cartRepository struct {
	dbtx DBTX
}

func NewCart(pool *pgxpool.Pool) port.CartRepository {
	return &cartRepository{dbtx: pool}
}

func NewCartWithTx(tx pgx.Tx) port.CartRepository {
	return &cartRepository{dbtx: tx}
}

// ownerFilter returns the WHERE fragment and argument selecting the
// identity's cart. Exactly one of the two key columns applies.
func ownerFilter(owner domain.Identity) (string, any) {
	if owner.IsUser() {
		return "user_id = $1", owner.UserID
	}
	return "session_token = $1", owner.SessionToken
}

func (r *cartRepository) Get(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	return r.getCart(ctx, r.dbtx, owner, false)
}

func (r *cartRepository) GetForUpdate(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	return r.getCart(ctx, r.dbtx, owner, true)
}

func (r *cartRepository) GetOrCreate(ctx context.Context, owner domain.Identity) (domain.Cart, error) {
	var c domain.Cart

	if err := owner.Validate(); err != nil {
		return c, fmt.Errorf("owner.Validate: %w", err)
	}

	cart, err := withTx(ctx, r.dbtx, func(q DBTX) (domain.Cart, error) {
		cart, err := r.getCart(ctx, q, owner, false)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, domain.ErrCartNotFound) {
			return c, fmt.Errorf("r.getCart: %w", err)
		}

		var userID *int64
		var sessionToken *string
		if owner.IsUser() {
			userID = &owner.UserID
		} else {
			sessionToken = &owner.SessionToken
		}

		// A concurrent first access may have created the row already,
		// hence DO NOTHING followed by a re-read.
		_, err = q.Exec(ctx,
			`INSERT INTO carts (user_id, session_token) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			userID, sessionToken)
		if err != nil {
			return c, fmt.Errorf("q.Exec insert cart: %w", err)
		}

		return r.getCart(ctx, q, owner, false)
	})
	if err != nil {
		return c, fmt.Errorf("withTx: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) SetItem(ctx context.Context, cartID int64, item domain.CartItem) error {
	if item.Quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	_, err := withTx(ctx, r.dbtx, func(q DBTX) (struct{}, error) {
		_, err := q.Exec(ctx,
			`INSERT INTO cart_items (cart_id, product_id, quantity, price_amount, price_currency)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (cart_id, product_id)
			 DO UPDATE SET quantity = EXCLUDED.quantity,
			               price_amount = EXCLUDED.price_amount,
			               price_currency = EXCLUDED.price_currency`,
			cartID, item.ProductID, item.Quantity, item.UnitPrice.Amount, item.UnitPrice.Currency.String())
		if err != nil {
			return struct{}{}, fmt.Errorf("q.Exec upsert item: %w", err)
		}

		return struct{}{}, touchCart(ctx, q, cartID)
	})
	if err != nil {
		return fmt.Errorf("withTx: %w", err)
	}

	return nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID int64) (bool, error) {
	found, err := withTx(ctx, r.dbtx, func(q DBTX) (bool, error) {
		cmdTag, err := q.Exec(ctx,
			`DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`,
			cartID, itemID)
		if err != nil {
			return false, fmt.Errorf("q.Exec delete item: %w", err)
		}

		if cmdTag.RowsAffected() == 0 {
			// removing a non-existent line is a no-op, not an error
			return false, nil
		}

		return true, touchCart(ctx, q, cartID)
	})
	if err != nil {
		return false, fmt.Errorf("withTx: %w", err)
	}

	return found, nil
}

func (r *cartRepository) Clear(ctx context.Context, cartID int64) error {
	_, err := withTx(ctx, r.dbtx, func(q DBTX) (struct{}, error) {
		_, err := q.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID)
		if err != nil {
			return struct{}{}, fmt.Errorf("q.Exec clear items: %w", err)
		}

		return struct{}{}, touchCart(ctx, q, cartID)
	})
	if err != nil {
		return fmt.Errorf("withTx: %w", err)
	}

	return nil
}

func touchCart(ctx context.Context, q DBTX, cartID int64) error {
	if _, err := q.Exec(ctx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("q.Exec touch cart: %w", err)
	}
	return nil
}

func (r *cartRepository) getCart(ctx context.Context, q DBTX, owner domain.Identity, forUpdate bool) (domain.Cart, error) {
	var c domain.Cart

	if err := owner.Validate(); err != nil {
		return c, fmt.Errorf("owner.Validate: %w", err)
	}

	filter, arg := ownerFilter(owner)

	query := `SELECT id, user_id, session_token, created_at, updated_at FROM carts WHERE ` + filter
	if forUpdate {
		query += " FOR UPDATE"
	}

	var userID *int64
	var sessionToken *string

	err := q.QueryRow(ctx, query, arg).
		Scan(&c.ID, &userID, &sessionToken, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c, domain.ErrCartNotFound
		}
		return c, fmt.Errorf("q.QueryRow cart: %w", err)
	}

	if userID != nil {
		c.Owner = domain.UserIdentity(*userID)
	} else if sessionToken != nil {
		c.Owner = domain.SessionIdentity(*sessionToken)
	}

	items, err := r.getCartItems(ctx, q, c.ID)
	if err != nil {
		return c, fmt.Errorf("r.getCartItems: %w", err)
	}
	c.Items = items

	return c, nil
}

func (r *cartRepository) getCartItems(ctx context.Context, q DBTX, cartID int64) ([]domain.CartItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, product_id, quantity, price_amount, price_currency, added_at
		 FROM cart_items
		 WHERE cart_id = $1
		 ORDER BY added_at, id`,
		cartID)
	if err != nil {
		return nil, fmt.Errorf("q.Query items: %w", err)
	}
	defer rows.Close()

	var items []domain.CartItem

	for rows.Next() {
		var (
			item          domain.CartItem
			priceAmount   decimal.Decimal
			priceCurrency string
		)

		if err := rows.Scan(&item.ID, &item.ProductID, &item.Quantity, &priceAmount, &priceCurrency, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		price, err := toMoney(priceAmount, priceCurrency)
		if err != nil {
			return nil, fmt.Errorf("toMoney: %w", err)
		}
		item.UnitPrice = price

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return items, nil
}

func toMoney(amount decimal.Decimal, currencyCode string) (domain.Money, error) {
	parsedCurrency, err := currency.ParseISO(currencyCode)
	if err != nil {
		return domain.Money{}, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}

	return domain.Money{Amount: amount, Currency: parsedCurrency}, nil
}
