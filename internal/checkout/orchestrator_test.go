package checkout

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
	"github.com/ariefcatur/go-commerce-stock/internal/commerce/commercetest"
	"github.com/ariefcatur/go-commerce-stock/internal/payment"
	"github.com/ariefcatur/go-commerce-stock/internal/reservation"
	"github.com/ariefcatur/go-commerce-stock/internal/shipping"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeGateway struct {
	fail  bool
	calls int
}

func (g *fakeGateway) CreateCharge(_ context.Context, orderID uuid.UUID, amount int64) (payment.Charge, error) {
	g.calls++
	if g.fail {
		return payment.Charge{}, fmt.Errorf("%w: charge refused", commerce.ErrGateway)
	}
	return payment.Charge{Ref: "txn-" + orderID.String()[:8], AmountCents: amount}, nil
}

type fixture struct {
	store *commercetest.Store
	orch  *Orchestrator
	gw    *fakeGateway
	cart  commerce.Cart
	prods []uuid.UUID
}

func newFixture(owner commerce.Owner, stock ...int) *fixture {
	store := commercetest.NewStore()
	var prods []uuid.UUID
	for i, q := range stock {
		id := uuid.New()
		store.AddProduct(commerce.Product{
			ID: id, SKU: fmt.Sprintf("SKU-%d", i), Name: fmt.Sprintf("item %d", i),
			PriceCents: int64(1000 * (i + 1)), StockQuantity: q,
			Active: true, Visible: true, SizeClass: commerce.SizeSmall,
		})
		prods = append(prods, id)
	}
	cart := commerce.Cart{ID: uuid.New(), Owner: owner, Status: commerce.CartActive, CreatedAt: t0}
	store.AddCart(cart)

	m := reservation.NewManager(store)
	m.Now = func() time.Time { return t0 }
	gw := &fakeGateway{}
	orch := &Orchestrator{
		Store:        store,
		Reservations: m,
		Estimator:    shipping.DefaultEstimator(),
		Gateway:      gw,
		HoldTTL:      15 * time.Minute,
		Now:          func() time.Time { return t0 },
	}
	return &fixture{store: store, orch: orch, gw: gw, cart: cart, prods: prods}
}

func TestCheckoutHappyPath(t *testing.T) {
	f := newFixture(commerce.UserOwner(uuid.New()), 10, 10)
	f.store.AddCartItem(f.cart.ID, f.prods[0], 2) // 2 * 1000
	f.store.AddCartItem(f.cart.ID, f.prods[1], 1) // 1 * 2000
	ctx := context.Background()

	res, err := f.orch.Checkout(ctx, Input{CartID: f.cart.ID})
	require.NoError(t, err)

	assert.Equal(t, commerce.OrderPending, res.Order.Status)
	assert.EqualValues(t, 4000, res.Order.TotalCents)
	assert.Empty(t, res.OrderToken, "registered users get no token")
	require.Len(t, res.Items, 2)
	for _, it := range res.Items {
		if it.ProductID == f.prods[0] {
			assert.EqualValues(t, 1000, it.UnitPriceCents)
			assert.EqualValues(t, 2000, it.SubtotalCents)
		}
	}

	// cart flipped, holds placed with the payment window, payment pending
	assert.Equal(t, commerce.CartOrdered, f.store.Cart(f.cart.ID).Status)
	r, ok := f.store.Reservation(f.cart.ID, f.prods[0])
	require.True(t, ok)
	assert.Equal(t, 2, r.Quantity)
	assert.Equal(t, t0.Add(15*time.Minute), r.ExpiresAt)
	assert.Equal(t, commerce.PaymentPending, res.Payment.Status)
	assert.Equal(t, res.Payment.AmountCents, res.Order.TotalCents+res.Order.ShippingCents)

	// on-hand untouched until the webhook approves
	assert.Equal(t, 10, f.store.Product(f.prods[0]).StockQuantity)
}

func TestCheckoutGuestMintsOrderToken(t *testing.T) {
	f := newFixture(commerce.GuestOwner("guest-cart-tok"), 5)
	f.store.AddCartItem(f.cart.ID, f.prods[0], 1)

	res, err := f.orch.Checkout(context.Background(), Input{CartID: f.cart.ID})
	require.NoError(t, err)
	require.NotEmpty(t, res.OrderToken)
	assert.NotEqual(t, "guest-cart-tok", res.OrderToken, "order capability is freshly minted")
	assert.Equal(t, res.OrderToken, res.Order.OrderToken)
}

func TestCheckoutEmptyCart(t *testing.T) {
	f := newFixture(commerce.UserOwner(uuid.New()), 5)
	_, err := f.orch.Checkout(context.Background(), Input{CartID: f.cart.ID})
	assert.ErrorIs(t, err, commerce.ErrCartEmpty)
}

func TestCheckoutInactiveProduct(t *testing.T) {
	f := newFixture(commerce.UserOwner(uuid.New()), 5)
	hidden := uuid.New()
	f.store.AddProduct(commerce.Product{ID: hidden, SKU: "HID", Name: "hidden", PriceCents: 100, StockQuantity: 5, Active: true, Visible: false})
	f.store.AddCartItem(f.cart.ID, f.prods[0], 1)
	f.store.AddCartItem(f.cart.ID, hidden, 1)

	_, err := f.orch.Checkout(context.Background(), Input{CartID: f.cart.ID})
	assert.ErrorIs(t, err, commerce.ErrUnavailable)

	// whole transaction aborted: no order, no holds, cart still active
	assert.Equal(t, 0, f.store.OrderCount())
	assert.Equal(t, 0, f.store.ReservationCount())
	assert.Equal(t, commerce.CartActive, f.store.Cart(f.cart.ID).Status)
}

func TestCheckoutInsufficientStock(t *testing.T) {
	f := newFixture(commerce.UserOwner(uuid.New()), 5)
	f.store.AddCartItem(f.cart.ID, f.prods[0], 6)

	_, err := f.orch.Checkout(context.Background(), Input{CartID: f.cart.ID})
	assert.ErrorIs(t, err, commerce.ErrInsufficientStock)
	assert.Equal(t, commerce.CartActive, f.store.Cart(f.cart.ID).Status)
}

func TestCheckoutRespectsOtherCartsHolds(t *testing.T) {
	f := newFixture(commerce.UserOwner(uuid.New()), 5)
	f.store.AddCartItem(f.cart.ID, f.prods[0], 3)

	// another cart already holds 3 of the 5
	require.NoError(t, f.orch.Reservations.Reserve(context.Background(), uuid.New(), f.prods[0], 3, time.Hour))

	_, err := f.orch.Checkout(context.Background(), Input{CartID: f.cart.ID})
	assert.ErrorIs(t, err, commerce.ErrInsufficientStock)
}

func TestCheckoutGatewayFailureRollsBackEverything(t *testing.T) {
	f := newFixture(commerce.UserOwner(uuid.New()), 5)
	f.store.AddCartItem(f.cart.ID, f.prods[0], 1)
	f.gw.fail = true

	_, err := f.orch.Checkout(context.Background(), Input{CartID: f.cart.ID})
	assert.ErrorIs(t, err, commerce.ErrGateway)

	assert.Equal(t, 0, f.store.OrderCount())
	assert.Equal(t, 0, f.store.ReservationCount())
	assert.Equal(t, commerce.CartActive, f.store.Cart(f.cart.ID).Status)
}

func TestCheckoutAlreadyOrderedCart(t *testing.T) {
	f := newFixture(commerce.UserOwner(uuid.New()), 5)
	f.store.AddCartItem(f.cart.ID, f.prods[0], 1)

	_, err := f.orch.Checkout(context.Background(), Input{CartID: f.cart.ID})
	require.NoError(t, err)

	_, err = f.orch.Checkout(context.Background(), Input{CartID: f.cart.ID})
	assert.ErrorIs(t, err, commerce.ErrCartNotActive)
	assert.Equal(t, 1, f.gw.calls, "no second charge")
}
