package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
	"github.com/ariefcatur/go-commerce-stock/internal/metrics"
)

// Manager owns the stock_reservations table. Reservations are soft holds:
// they shrink available stock on read but never touch stock_quantity.
type Manager struct {
	Store commerce.Store
	Now   func() time.Time
}

func NewManager(store commerce.Store) *Manager {
	return &Manager{Store: store, Now: time.Now}
}

// Reserve upserts the single hold for (cartID, productID) with quantity and
// a fresh expires_at. Availability is checked against all *other* carts, so
// changing an existing hold is judged on the delta, not double-counted.
// quantity <= 0 releases instead.
func (m *Manager) Reserve(ctx context.Context, cartID, productID uuid.UUID, quantity int, ttl time.Duration) error {
	err := m.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		return m.ReserveLine(ctx, tx, cartID, productID, quantity, ttl)
	})
	if err != nil {
		return err
	}
	// Counted after commit only; a retried or aborted attempt is not a hold.
	if quantity > 0 {
		metrics.ReservationsCreated.Inc()
	}
	return nil
}

// ReserveLine is Reserve inside an existing transaction, for callers that
// reserve several lines atomically.
func (m *Manager) ReserveLine(ctx context.Context, tx commerce.Tx, cartID, productID uuid.UUID, quantity int, ttl time.Duration) error {
	if quantity <= 0 {
		_, err := tx.DeleteReservation(ctx, cartID, productID)
		return err
	}
	if ttl <= 0 {
		return fmt.Errorf("%w: reservation ttl must be positive", commerce.ErrValidation)
	}

	now := m.Now().UTC()

	// Row lock dulu: operasi pada product yang sama jadi serial.
	p, err := tx.GetProductForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	heldByOthers, err := tx.ReservedQty(ctx, productID, &cartID, now)
	if err != nil {
		return err
	}
	if quantity > p.StockQuantity-heldByOthers {
		return fmt.Errorf("product %s: want %d, available %d: %w",
			productID, quantity, p.StockQuantity-heldByOthers, commerce.ErrInsufficientStock)
	}

	return tx.UpsertReservation(ctx, commerce.StockReservation{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
}

// Release drops the hold for one (cart, product) pair. Releasing a hold
// that does not exist succeeds silently.
func (m *Manager) Release(ctx context.Context, cartID, productID uuid.UUID) error {
	return m.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		return m.ReleaseLine(ctx, tx, cartID, productID)
	})
}

// ReleaseLine is Release inside an existing transaction.
func (m *Manager) ReleaseLine(ctx context.Context, tx commerce.Tx, cartID, productID uuid.UUID) error {
	_, err := tx.DeleteReservation(ctx, cartID, productID)
	return err
}

// ReleaseCart drops every hold owned by the cart.
func (m *Manager) ReleaseCart(ctx context.Context, cartID uuid.UUID) error {
	return m.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		return m.ReleaseCartLines(ctx, tx, cartID)
	})
}

// ReleaseCartLines is ReleaseCart inside an existing transaction.
func (m *Manager) ReleaseCartLines(ctx context.Context, tx commerce.Tx, cartID uuid.UUID) error {
	_, err := tx.DeleteCartReservations(ctx, cartID)
	return err
}

// Sweep deletes reservations whose stored expires_at <= now and reports how
// many went. It never touches stock_quantity.
func (m *Manager) Sweep(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := m.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		var err error
		n, err = tx.DeleteExpiredReservations(ctx, now.UTC())
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.ReservationsSwept.Add(float64(n))
	return n, nil
}

// Active lists current holds for the operational surface.
func (m *Manager) Active(ctx context.Context, f commerce.ReservationFilter) ([]commerce.StockReservation, error) {
	return m.Store.ListActiveReservations(ctx, f, m.Now().UTC())
}
