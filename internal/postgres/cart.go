package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

func (q *queries) getCart(ctx context.Context, id uuid.UUID, forUpdate bool) (commerce.Cart, error) {
	sql := `SELECT id, user_id, guest_token, status, shipping_cost_cents, created_at, updated_at
	        FROM carts WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var (
		c       commerce.Cart
		userID  *uuid.UUID
		guestTk *string
		status  string
	)
	err := q.db.QueryRow(ctx, sql, id).Scan(&c.ID, &userID, &guestTk, &status,
		&c.ShippingCostCents, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, fmt.Errorf("cart %s: %w", id, commerce.ErrNotFound)
	}
	if err != nil {
		return c, err
	}
	c.Status = commerce.CartStatus(status)
	c.Owner, err = commerce.OwnerFromColumns(userID, guestTk)
	return c, err
}

func (q *queries) GetCartForUpdate(ctx context.Context, id uuid.UUID) (commerce.Cart, error) {
	return q.getCart(ctx, id, true)
}

func (q *queries) InsertCart(ctx context.Context, c commerce.Cart) error {
	userID, guestTk := c.Owner.Columns()
	_, err := q.db.Exec(ctx, `
		INSERT INTO carts(id, user_id, guest_token, status, shipping_cost_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)`,
		c.ID, userID, guestTk, c.Status, c.ShippingCostCents, c.CreatedAt)
	return err
}

func (q *queries) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]commerce.CartItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT cart_id, product_id, quantity FROM cart_items WHERE cart_id=$1 ORDER BY product_id`, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commerce.CartItem
	for rows.Next() {
		var it commerce.CartItem
		if err := rows.Scan(&it.CartID, &it.ProductID, &it.Quantity); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (q *queries) UpsertCartItem(ctx context.Context, it commerce.CartItem) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO cart_items(cart_id, product_id, quantity)
		VALUES ($1,$2,$3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
		it.CartID, it.ProductID, it.Quantity)
	return err
}

func (q *queries) DeleteCartItem(ctx context.Context, cartID, productID uuid.UUID) error {
	_, err := q.db.Exec(ctx,
		`DELETE FROM cart_items WHERE cart_id=$1 AND product_id=$2`, cartID, productID)
	return err
}

func (q *queries) DeleteCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM cart_items WHERE cart_id=$1`, cartID)
	return err
}

func (q *queries) SetCartStatus(ctx context.Context, cartID uuid.UUID, st commerce.CartStatus) error {
	ct, err := q.db.Exec(ctx,
		`UPDATE carts SET status=$2, updated_at=now() WHERE id=$1`, cartID, st)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("cart %s: %w", cartID, commerce.ErrNotFound)
	}
	return nil
}

func (q *queries) SetCartShippingCost(ctx context.Context, cartID uuid.UUID, cents int64) error {
	ct, err := q.db.Exec(ctx,
		`UPDATE carts SET shipping_cost_cents=$2, updated_at=now() WHERE id=$1`, cartID, cents)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("cart %s: %w", cartID, commerce.ErrNotFound)
	}
	return nil
}
