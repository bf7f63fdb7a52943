package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

const productCols = `id, sku, name, price_cents, stock_quantity, active, visible, size_class, created_at, updated_at`

func scanProduct(row pgx.Row) (commerce.Product, error) {
	var p commerce.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.PriceCents, &p.StockQuantity,
		&p.Active, &p.Visible, &p.SizeClass, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, fmt.Errorf("product: %w", commerce.ErrNotFound)
	}
	return p, err
}

func (q *queries) GetProduct(ctx context.Context, id uuid.UUID) (commerce.Product, error) {
	return scanProduct(q.db.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
}

// FOR UPDATE: semua operasi pada product yang sama antri di row lock ini.
func (q *queries) GetProductForUpdate(ctx context.Context, id uuid.UUID) (commerce.Product, error) {
	return scanProduct(q.db.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
}

// AdjustStock enforces the non-negative invariant in the statement itself,
// not with a read-then-write.
func (q *queries) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) error {
	ct, err := q.db.Exec(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id = $1 AND stock_quantity + $2 >= 0`, productID, delta)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		if _, err := q.GetProduct(ctx, productID); err != nil {
			return err
		}
		return fmt.Errorf("product %s: %w", productID, commerce.ErrInsufficientStock)
	}
	return nil
}

func (q *queries) InsertStockMovement(ctx context.Context, m commerce.StockMovement) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO stock_movements(id, product_id, type, quantity, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.ProductID, m.Type, m.Quantity, m.Reason, m.CreatedAt)
	return err
}

func (q *queries) listStockMovements(ctx context.Context, f commerce.MovementFilter) ([]commerce.StockMovement, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	sql := `SELECT id, product_id, type, quantity, reason, created_at FROM stock_movements`
	args := []any{}
	where := ""
	if f.ProductID != nil {
		args = append(args, *f.ProductID)
		where = fmt.Sprintf(" WHERE product_id=$%d", len(args))
	}
	if f.Type != nil {
		args = append(args, *f.Type)
		if where == "" {
			where = fmt.Sprintf(" WHERE type=$%d", len(args))
		} else {
			where += fmt.Sprintf(" AND type=$%d", len(args))
		}
	}
	args = append(args, limit, f.Offset)
	sql += where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []commerce.StockMovement
	for rows.Next() {
		var m commerce.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Type, &m.Quantity, &m.Reason, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
