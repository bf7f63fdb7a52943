package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

func (q *queries) getOrder(ctx context.Context, id uuid.UUID, forUpdate bool) (commerce.Order, error) {
	sql := `SELECT id, cart_id, user_id, guest_token, order_token, status,
	               total_cents, shipping_cents, created_at, updated_at
	        FROM orders WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var (
		o       commerce.Order
		userID  *uuid.UUID
		guestTk *string
		ordTk   *string
		status  string
	)
	err := q.db.QueryRow(ctx, sql, id).Scan(&o.ID, &o.CartID, &userID, &guestTk, &ordTk,
		&status, &o.TotalCents, &o.ShippingCents, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, fmt.Errorf("order %s: %w", id, commerce.ErrNotFound)
	}
	if err != nil {
		return o, err
	}
	o.Status = commerce.OrderStatus(status)
	if ordTk != nil {
		o.OrderToken = *ordTk
	}
	o.Owner, err = commerce.OwnerFromColumns(userID, guestTk)
	return o, err
}

func (q *queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (commerce.Order, error) {
	return q.getOrder(ctx, id, true)
}

func (q *queries) InsertOrder(ctx context.Context, o commerce.Order) error {
	userID, guestTk := o.Owner.Columns()
	var ordTk *string
	if o.OrderToken != "" {
		ordTk = &o.OrderToken
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO orders(id, cart_id, user_id, guest_token, order_token, status,
		                   total_cents, shipping_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		o.ID, o.CartID, userID, guestTk, ordTk, o.Status, o.TotalCents, o.ShippingCents, o.CreatedAt)
	return err
}

func (q *queries) InsertOrderItems(ctx context.Context, items []commerce.OrderItem) error {
	for _, it := range items {
		if _, err := q.db.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, unit_price_cents, subtotal_cents)
			VALUES ($1,$2,$3,$4,$5)`,
			it.OrderID, it.ProductID, it.Quantity, it.UnitPriceCents, it.SubtotalCents); err != nil {
			return err
		}
	}
	return nil
}

func (q *queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]commerce.OrderItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT order_id, product_id, quantity, unit_price_cents, subtotal_cents
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commerce.OrderItem
	for rows.Next() {
		var it commerce.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.SubtotalCents); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (q *queries) SetOrderStatus(ctx context.Context, orderID uuid.UUID, st commerce.OrderStatus) error {
	ct, err := q.db.Exec(ctx,
		`UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, orderID, st)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("order %s: %w", orderID, commerce.ErrNotFound)
	}
	return nil
}
