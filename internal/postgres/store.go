package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every query below
// works inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool    *pgxpool.Pool
	txTries int
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, txTries: 3}
}

// Reservations are insert-only against a locked-but-unmodified product row,
// so REPEATABLE READ would let a lock waiter keep its pre-lock snapshot and
// sum stale reservation rows after the holder commits. SERIALIZABLE turns
// that schedule into a 40001 the retry loop below re-runs with a fresh read.
var txOptions = pgx.TxOptions{IsoLevel: pgx.Serializable}

// WithTx runs fn in a SERIALIZABLE transaction and retries a bounded number
// of times on serialization failure or deadlock. Lock waits are bounded by
// the caller's ctx; a deadline hit surfaces as ErrBusy.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx commerce.Tx) error) error {
	var err error
	for attempt := 0; attempt < s.txTries; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !retryable(err) {
			break
		}
	}
	if err != nil && (retryable(err) || errors.Is(err, context.DeadlineExceeded)) {
		return fmt.Errorf("%w: %v", commerce.ErrBusy, err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(ctx context.Context, tx commerce.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &queries{db: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// 40001 = serialization_failure, 40P01 = deadlock_detected
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// queries implements commerce.Tx over any DBTX.
type queries struct{ db DBTX }

func (s *Store) reader() *queries { return &queries{db: s.pool} }

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (commerce.Product, error) {
	return s.reader().GetProduct(ctx, id)
}

func (s *Store) AvailableStock(ctx context.Context, productID uuid.UUID, now time.Time) (int, error) {
	var avail int
	err := s.pool.QueryRow(ctx, `
		SELECT p.stock_quantity - COALESCE((
			SELECT SUM(r.quantity) FROM stock_reservations r
			WHERE r.product_id = p.id AND r.expires_at > $2
		), 0)
		FROM products p WHERE p.id = $1`, productID, now).Scan(&avail)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("product %s: %w", productID, commerce.ErrNotFound)
	}
	return avail, err
}

func (s *Store) GetCart(ctx context.Context, id uuid.UUID) (commerce.Cart, error) {
	return s.reader().getCart(ctx, id, false)
}

func (s *Store) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]commerce.CartItem, error) {
	return s.reader().ListCartItems(ctx, cartID)
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (commerce.Order, error) {
	return s.reader().getOrder(ctx, id, false)
}

func (s *Store) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]commerce.OrderItem, error) {
	return s.reader().ListOrderItems(ctx, orderID)
}

func (s *Store) GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (commerce.Payment, error) {
	return s.reader().getPayment(ctx, `WHERE order_id=$1`, orderID)
}

func (s *Store) ListActiveReservations(ctx context.Context, f commerce.ReservationFilter, now time.Time) ([]commerce.StockReservation, error) {
	return s.reader().listActiveReservations(ctx, f, now)
}

func (s *Store) ListStockMovements(ctx context.Context, f commerce.MovementFilter) ([]commerce.StockMovement, error) {
	return s.reader().listStockMovements(ctx, f)
}
