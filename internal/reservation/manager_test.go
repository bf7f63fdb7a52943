package reservation

import (
	"context"
	"errors"
	"sync"
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

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newManager(stockQty int) (*Manager, *commercetest.Store, uuid.UUID) {
	store := commercetest.NewStore()
	pid := uuid.New()
	store.AddProduct(commerce.Product{ID: pid, SKU: "SKU-1", Name: "widget", PriceCents: 500, StockQuantity: stockQty, Active: true, Visible: true})
	m := NewManager(store)
	m.Now = func() time.Time { return t0 }
	return m, store, pid
}

func TestReserveHoldsWithoutTouchingStock(t *testing.T) {
	m, store, pid := newManager(5)
	ctx := context.Background()
	cart := uuid.New()

	require.NoError(t, m.Reserve(ctx, cart, pid, 3, 15*time.Minute))

	r, ok := store.Reservation(cart, pid)
	require.True(t, ok)
	assert.Equal(t, 3, r.Quantity)
	assert.Equal(t, t0.Add(15*time.Minute), r.ExpiresAt)
	assert.Equal(t, 5, store.Product(pid).StockQuantity, "soft hold never mutates on-hand")

	avail, err := store.AvailableStock(ctx, pid, t0)
	require.NoError(t, err)
	assert.Equal(t, 2, avail)
}

func TestReserveBeyondAvailableFails(t *testing.T) {
	m, _, pid := newManager(5)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, uuid.New(), pid, 5, 15*time.Minute))
	err := m.Reserve(ctx, uuid.New(), pid, 1, 15*time.Minute)
	assert.ErrorIs(t, err, commerce.ErrInsufficientStock)
}

// The created counter only moves on commit; a rejected reserve must leave
// it untouched.
func TestReserveCounterTracksCommitsOnly(t *testing.T) {
	m, _, pid := newManager(1)
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.ReservationsCreated)
	require.NoError(t, m.Reserve(ctx, uuid.New(), pid, 1, 15*time.Minute))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ReservationsCreated))

	require.Error(t, m.Reserve(ctx, uuid.New(), pid, 1, 15*time.Minute))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ReservationsCreated))
}

// Changing an existing hold is judged on the delta, not stacked on top of
// the old quantity.
func TestReserveReplacesOwnHold(t *testing.T) {
	m, store, pid := newManager(5)
	ctx := context.Background()
	cart := uuid.New()

	require.NoError(t, m.Reserve(ctx, cart, pid, 4, 15*time.Minute))
	// going 4 -> 5 must pass: own 4 are excluded from the availability check
	require.NoError(t, m.Reserve(ctx, cart, pid, 5, 15*time.Minute))

	r, _ := store.Reservation(cart, pid)
	assert.Equal(t, 5, r.Quantity)
	assert.Equal(t, 1, store.ReservationCount(), "one row per (cart, product)")
}

func TestReserveZeroQuantityReleases(t *testing.T) {
	m, store, pid := newManager(5)
	ctx := context.Background()
	cart := uuid.New()

	require.NoError(t, m.Reserve(ctx, cart, pid, 2, time.Minute))
	require.NoError(t, m.Reserve(ctx, cart, pid, 0, time.Minute))
	_, ok := store.Reservation(cart, pid)
	assert.False(t, ok)
}

func TestReserveReleaseRoundTrip(t *testing.T) {
	m, store, pid := newManager(5)
	ctx := context.Background()
	cart := uuid.New()

	before, err := store.AvailableStock(ctx, pid, t0)
	require.NoError(t, err)

	require.NoError(t, m.Reserve(ctx, cart, pid, 3, time.Minute))
	require.NoError(t, m.Release(ctx, cart, pid))

	after, err := store.AvailableStock(ctx, pid, t0)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReleaseIsIdempotent(t *testing.T) {
	m, _, pid := newManager(5)
	ctx := context.Background()

	assert.NoError(t, m.Release(ctx, uuid.New(), pid))
	assert.NoError(t, m.ReleaseCart(ctx, uuid.New()))
}

func TestReserveUnknownProduct(t *testing.T) {
	m, _, _ := newManager(5)
	err := m.Reserve(context.Background(), uuid.New(), uuid.New(), 1, time.Minute)
	assert.ErrorIs(t, err, commerce.ErrNotFound)
}

// No overbooking: many carts racing for the same 5 units never hold more
// than 5 between them.
func TestConcurrentReserveNeverOverbooks(t *testing.T) {
	m, store, pid := newManager(5)
	ctx := context.Background()

	const workers = 40
	var wg sync.WaitGroup
	var mu sync.Mutex
	granted := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := m.Reserve(ctx, uuid.New(), pid, 1, time.Minute)
			if err == nil {
				mu.Lock()
				granted++
				mu.Unlock()
				return
			}
			if !errors.Is(err, commerce.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, granted)
	held := 0
	rs, err := m.Active(ctx, commerce.ReservationFilter{ProductID: &pid, Limit: 100})
	require.NoError(t, err)
	for _, r := range rs {
		held += r.Quantity
	}
	assert.Equal(t, 5, held)
	// invariant: available + held == on-hand
	avail, err := store.AvailableStock(ctx, pid, t0)
	require.NoError(t, err)
	assert.Equal(t, store.Product(pid).StockQuantity, avail+held)
}

func TestSweepRemovesOnlyExpired(t *testing.T) {
	m, store, pid := newManager(10)
	ctx := context.Background()
	expired, live := uuid.New(), uuid.New()

	require.NoError(t, m.Reserve(ctx, expired, pid, 2, time.Second))
	require.NoError(t, m.Reserve(ctx, live, pid, 3, time.Hour))

	n, err := m.Sweep(ctx, t0.Add(2*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, ok := store.Reservation(expired, pid)
	assert.False(t, ok)
	_, ok = store.Reservation(live, pid)
	assert.True(t, ok)
	assert.Equal(t, 10, store.Product(pid).StockQuantity, "sweep never touches on-hand")
}

// A hold refreshed into the future after the sweep picked its cutoff must
// survive: the delete predicate runs against the stored expires_at.
func TestSweepRaceWithRefresh(t *testing.T) {
	m, store, pid := newManager(10)
	ctx := context.Background()
	cart := uuid.New()

	require.NoError(t, m.Reserve(ctx, cart, pid, 2, time.Second))
	cutoff := t0.Add(2 * time.Second) // sweep's snapshot of "now"

	// concurrent reserve refreshes the hold before the sweep lands
	m.Now = func() time.Time { return cutoff }
	require.NoError(t, m.Reserve(ctx, cart, pid, 2, time.Hour))

	n, err := m.Sweep(ctx, cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
	_, ok := store.Reservation(cart, pid)
	assert.True(t, ok)
}

func TestSweepExpiredHoldRestoresAvailability(t *testing.T) {
	m, store, pid := newManager(5)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, uuid.New(), pid, 5, time.Second))
	later := t0.Add(2 * time.Second)

	avail, err := store.AvailableStock(ctx, pid, later)
	require.NoError(t, err)
	assert.Equal(t, 5, avail, "expired holds already don't count")

	_, err = m.Sweep(ctx, later)
	require.NoError(t, err)
	assert.Equal(t, 0, store.ReservationCount())
	assert.Equal(t, 5, store.Product(pid).StockQuantity)
}
