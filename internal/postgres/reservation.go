package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

func (q *queries) ReservedQty(ctx context.Context, productID uuid.UUID, exceptCart *uuid.UUID, now time.Time) (int, error) {
	sql := `SELECT COALESCE(SUM(quantity), 0) FROM stock_reservations
	        WHERE product_id=$1 AND expires_at > $2`
	args := []any{productID, now}
	if exceptCart != nil {
		sql += ` AND cart_id <> $3`
		args = append(args, *exceptCart)
	}
	var n int
	err := q.db.QueryRow(ctx, sql, args...).Scan(&n)
	return n, err
}

// Upsert keyed by the (cart_id, product_id) uniqueness constraint: a second
// reserve for the same pair replaces quantity and refreshes expires_at.
func (q *queries) UpsertReservation(ctx context.Context, r commerce.StockReservation) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO stock_reservations(id, cart_id, product_id, quantity, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, expires_at = EXCLUDED.expires_at`,
		r.ID, r.CartID, r.ProductID, r.Quantity, r.ExpiresAt, r.CreatedAt)
	return err
}

func (q *queries) DeleteReservation(ctx context.Context, cartID, productID uuid.UUID) (int64, error) {
	ct, err := q.db.Exec(ctx,
		`DELETE FROM stock_reservations WHERE cart_id=$1 AND product_id=$2`, cartID, productID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (q *queries) DeleteCartReservations(ctx context.Context, cartID uuid.UUID) (int64, error) {
	ct, err := q.db.Exec(ctx, `DELETE FROM stock_reservations WHERE cart_id=$1`, cartID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// Predicate on the stored expires_at: a reserve that refreshed the row into
// the future is untouched even if the sweeper read an older value.
func (q *queries) DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error) {
	ct, err := q.db.Exec(ctx, `DELETE FROM stock_reservations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (q *queries) listActiveReservations(ctx context.Context, f commerce.ReservationFilter, now time.Time) ([]commerce.StockReservation, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sql := `SELECT id, cart_id, product_id, quantity, expires_at, created_at
	        FROM stock_reservations WHERE expires_at > $1`
	args := []any{now}
	if f.ProductID != nil {
		args = append(args, *f.ProductID)
		sql += fmt.Sprintf(" AND product_id=$%d", len(args))
	}
	if f.CartID != nil {
		args = append(args, *f.CartID)
		sql += fmt.Sprintf(" AND cart_id=$%d", len(args))
	}
	args = append(args, limit, f.Offset)
	sql += fmt.Sprintf(" ORDER BY expires_at LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commerce.StockReservation
	for rows.Next() {
		var r commerce.StockReservation
		if err := rows.Scan(&r.ID, &r.CartID, &r.ProductID, &r.Quantity, &r.ExpiresAt, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
