package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

const paymentCols = `id, order_id, provider_ref, status, amount_cents, created_at, updated_at`

func (q *queries) getPayment(ctx context.Context, where string, args ...any) (commerce.Payment, error) {
	var (
		p      commerce.Payment
		status string
	)
	err := q.db.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments `+where, args...).
		Scan(&p.ID, &p.OrderID, &p.ProviderRef, &status, &p.AmountCents, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, fmt.Errorf("payment: %w", commerce.ErrNotFound)
	}
	if err != nil {
		return p, err
	}
	p.Status = commerce.PaymentStatus(status)
	return p, nil
}

func (q *queries) InsertPayment(ctx context.Context, p commerce.Payment) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO payments(id, order_id, provider_ref, status, amount_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)`,
		p.ID, p.OrderID, p.ProviderRef, p.Status, p.AmountCents, p.CreatedAt)
	return err
}

// Row lock serializes duplicate deliveries for the same transaction ref.
func (q *queries) GetPaymentByProviderRef(ctx context.Context, ref string) (commerce.Payment, error) {
	return q.getPayment(ctx, `WHERE provider_ref=$1 FOR UPDATE`, ref)
}

func (q *queries) SetPaymentStatus(ctx context.Context, paymentID uuid.UUID, st commerce.PaymentStatus) error {
	ct, err := q.db.Exec(ctx,
		`UPDATE payments SET status=$2, updated_at=now() WHERE id=$1`, paymentID, st)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("payment %s: %w", paymentID, commerce.ErrNotFound)
	}
	return nil
}
