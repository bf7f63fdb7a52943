package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
	"github.com/ariefcatur/go-commerce-stock/internal/commerce/commercetest"
	"github.com/ariefcatur/go-commerce-stock/internal/reservation"
)

func seedProduct(store *commercetest.Store, qty int) uuid.UUID {
	id := uuid.New()
	store.AddProduct(commerce.Product{
		ID: id, SKU: "SKU-1", Name: "widget", PriceCents: 1000,
		StockQuantity: qty, Active: true, Visible: true, SizeClass: commerce.SizeSmall,
	})
	return id
}

func TestRunSweepsExpiredHoldsWithoutTouchingStock(t *testing.T) {
	store := commercetest.NewStore()
	productID := seedProduct(store, 10)
	m := reservation.NewManager(store)

	cartID := uuid.New()
	require.NoError(t, m.Reserve(context.Background(), cartID, productID, 4, time.Millisecond))

	r := New(m, 5*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool { return store.ReservationCount() == 0 },
		time.Second, 5*time.Millisecond, "expired hold should be reaped")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// reaper deletes hold rows only, never the on-hand count
	assert.Equal(t, 10, store.Product(productID).StockQuantity)
	avail, err := store.AvailableStock(context.Background(), productID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 10, avail)
}

func TestRunLeavesLiveHoldsAlone(t *testing.T) {
	store := commercetest.NewStore()
	productID := seedProduct(store, 10)
	m := reservation.NewManager(store)

	cartID := uuid.New()
	require.NoError(t, m.Reserve(context.Background(), cartID, productID, 4, time.Hour))

	r := New(m, 5*time.Millisecond, zerolog.Nop())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := r.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, ok := store.Reservation(cartID, productID)
	assert.True(t, ok, "live hold must survive the sweeps")
}

type failingStore struct{ *commercetest.Store }

func (f *failingStore) WithTx(context.Context, func(context.Context, commerce.Tx) error) error {
	return errors.New("db down")
}

func TestFailedSweepIsNotFatal(t *testing.T) {
	m := reservation.NewManager(&failingStore{commercetest.NewStore()})
	r := New(m, time.Minute, zerolog.Nop())

	// must log and return, never panic or abort the loop
	r.sweepOnce(context.Background(), time.Now())
}
