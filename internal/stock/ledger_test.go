package stock

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
	"github.com/ariefcatur/go-commerce-stock/internal/commerce/commercetest"
	"github.com/ariefcatur/go-commerce-stock/internal/metrics"
)

func newLedger() (*Ledger, *commercetest.Store, uuid.UUID) {
	store := commercetest.NewStore()
	pid := uuid.New()
	store.AddProduct(commerce.Product{ID: pid, SKU: "SKU-1", Name: "widget", PriceCents: 1000, StockQuantity: 10, Active: true, Visible: true})
	l := NewLedger(store)
	l.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return l, store, pid
}

func TestApplyEntryIncrementsAndAudits(t *testing.T) {
	l, store, pid := newLedger()
	ctx := context.Background()

	require.NoError(t, l.ApplyMovement(ctx, pid, commerce.MovementEntry, 5, "restock"))

	assert.Equal(t, 15, store.Product(pid).StockQuantity)
	ms := store.Movements()
	require.Len(t, ms, 1)
	assert.Equal(t, commerce.MovementEntry, ms[0].Type)
	assert.Equal(t, 5, ms[0].Quantity)
	assert.Equal(t, "restock", ms[0].Reason)
}

func TestApplyExitDecrements(t *testing.T) {
	l, store, pid := newLedger()
	ctx := context.Background()

	require.NoError(t, l.ApplyMovement(ctx, pid, commerce.MovementExit, 10, "sale"))
	assert.Equal(t, 0, store.Product(pid).StockQuantity)
}

func TestExitNeverGoesNegative(t *testing.T) {
	l, store, pid := newLedger()
	ctx := context.Background()

	err := l.ApplyMovement(ctx, pid, commerce.MovementExit, 11, "sale")
	assert.ErrorIs(t, err, commerce.ErrInsufficientStock)

	// nothing committed: no count change, no audit row
	assert.Equal(t, 10, store.Product(pid).StockQuantity)
	assert.Empty(t, store.Movements())
}

func TestApplyRejectsBadInput(t *testing.T) {
	l, _, pid := newLedger()
	ctx := context.Background()

	assert.ErrorIs(t, l.ApplyMovement(ctx, pid, commerce.MovementExit, 0, "x"), commerce.ErrValidation)
	assert.ErrorIs(t, l.ApplyMovement(ctx, pid, commerce.MovementType("adjust"), 1, "x"), commerce.ErrValidation)
	assert.ErrorIs(t, l.ApplyMovement(ctx, uuid.New(), commerce.MovementEntry, 1, "x"), commerce.ErrNotFound)
}

// The movement counter only moves when the transaction commits; a rejected
// exit must leave it untouched.
func TestMovementCounterTracksCommitsOnly(t *testing.T) {
	l, _, pid := newLedger()
	ctx := context.Background()
	exits := metrics.StockMovements.WithLabelValues(string(commerce.MovementExit))

	before := testutil.ToFloat64(exits)
	require.Error(t, l.ApplyMovement(ctx, pid, commerce.MovementExit, 11, "sale"))
	assert.Equal(t, before, testutil.ToFloat64(exits))

	require.NoError(t, l.ApplyMovement(ctx, pid, commerce.MovementExit, 1, "sale"))
	assert.Equal(t, before+1, testutil.ToFloat64(exits))
}

func TestAvailableSubtractsActiveHolds(t *testing.T) {
	l, store, pid := newLedger()
	ctx := context.Background()
	now := l.Now()

	cartID := uuid.New()
	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		return tx.UpsertReservation(ctx, commerce.StockReservation{
			ID: uuid.New(), CartID: cartID, ProductID: pid, Quantity: 4, ExpiresAt: now.Add(time.Minute),
		})
	}))

	avail, err := l.Available(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 6, avail)
}

func TestAvailableIgnoresExpiredHolds(t *testing.T) {
	l, store, pid := newLedger()
	ctx := context.Background()
	now := l.Now()

	require.NoError(t, store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		return tx.UpsertReservation(ctx, commerce.StockReservation{
			ID: uuid.New(), CartID: uuid.New(), ProductID: pid, Quantity: 4, ExpiresAt: now.Add(-time.Second),
		})
	}))

	avail, err := l.Available(ctx, pid)
	require.NoError(t, err)
	assert.Equal(t, 10, avail)
}
