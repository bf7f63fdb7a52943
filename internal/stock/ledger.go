package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
	"github.com/ariefcatur/go-commerce-stock/internal/metrics"
)

// Ledger is the only writer of products.stock_quantity. Every change goes
// through Apply, which pairs the quantity update with one append-only
// stock_movements row in the same transaction.
type Ledger struct {
	Store commerce.Store
	Now   func() time.Time
}

func NewLedger(store commerce.Store) *Ledger {
	return &Ledger{Store: store, Now: time.Now}
}

// Available = on-hand minus active reservations.
func (l *Ledger) Available(ctx context.Context, productID uuid.UUID) (int, error) {
	return l.Store.AvailableStock(ctx, productID, l.Now().UTC())
}

// Apply records one movement inside the caller's transaction. An exit that
// would drive stock_quantity negative fails with ErrInsufficientStock and
// writes nothing.
func (l *Ledger) Apply(ctx context.Context, tx commerce.Tx, productID uuid.UUID, typ commerce.MovementType, qty int, reason string) error {
	if qty <= 0 {
		return fmt.Errorf("%w: movement quantity must be positive", commerce.ErrValidation)
	}
	delta := qty
	switch typ {
	case commerce.MovementEntry:
	case commerce.MovementExit:
		delta = -qty
	default:
		return fmt.Errorf("%w: unknown movement type %q", commerce.ErrValidation, typ)
	}

	if err := tx.AdjustStock(ctx, productID, delta); err != nil {
		return err
	}
	return tx.InsertStockMovement(ctx, commerce.StockMovement{
		ID:        uuid.New(),
		ProductID: productID,
		Type:      typ,
		Quantity:  qty,
		Reason:    reason,
		CreatedAt: l.Now().UTC(),
	})
}

// ApplyMovement is the standalone form for operational adjustments
// (restocks, corrections) outside a larger transaction. The movement counter
// moves here, after commit, so retried or rolled-back attempts never count.
func (l *Ledger) ApplyMovement(ctx context.Context, productID uuid.UUID, typ commerce.MovementType, qty int, reason string) error {
	err := l.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		return l.Apply(ctx, tx, productID, typ, qty, reason)
	})
	if err != nil {
		return err
	}
	metrics.StockMovements.WithLabelValues(string(typ)).Inc()
	return nil
}

// Movements lists the audit log, newest first.
func (l *Ledger) Movements(ctx context.Context, f commerce.MovementFilter) ([]commerce.StockMovement, error) {
	return l.Store.ListStockMovements(ctx, f)
}
