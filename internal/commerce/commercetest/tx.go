package commercetest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

// tx implements commerce.Tx directly against the store's state; the store's
// mutex is already held for the whole transaction.
type tx struct{ st *state }

func (t *tx) GetProduct(_ context.Context, id uuid.UUID) (commerce.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return commerce.Product{}, fmt.Errorf("product %s: %w", id, commerce.ErrNotFound)
	}
	return p, nil
}

func (t *tx) GetProductForUpdate(ctx context.Context, id uuid.UUID) (commerce.Product, error) {
	return t.GetProduct(ctx, id)
}

func (t *tx) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) error {
	p, err := t.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if p.StockQuantity+delta < 0 {
		return fmt.Errorf("product %s: %w", productID, commerce.ErrInsufficientStock)
	}
	p.StockQuantity += delta
	t.st.products[productID] = p
	return nil
}

func (t *tx) InsertStockMovement(_ context.Context, m commerce.StockMovement) error {
	t.st.movements = append(t.st.movements, m)
	return nil
}

func (t *tx) ReservedQty(_ context.Context, productID uuid.UUID, exceptCart *uuid.UUID, now time.Time) (int, error) {
	held := 0
	for _, r := range t.st.reservations {
		if r.ProductID != productID || !r.ActiveAt(now) {
			continue
		}
		if exceptCart != nil && r.CartID == *exceptCart {
			continue
		}
		held += r.Quantity
	}
	return held, nil
}

func (t *tx) UpsertReservation(_ context.Context, r commerce.StockReservation) error {
	k := resKey{r.CartID, r.ProductID}
	if old, ok := t.st.reservations[k]; ok {
		old.Quantity = r.Quantity
		old.ExpiresAt = r.ExpiresAt
		t.st.reservations[k] = old
		return nil
	}
	t.st.reservations[k] = r
	return nil
}

func (t *tx) DeleteReservation(_ context.Context, cartID, productID uuid.UUID) (int64, error) {
	k := resKey{cartID, productID}
	if _, ok := t.st.reservations[k]; !ok {
		return 0, nil
	}
	delete(t.st.reservations, k)
	return 1, nil
}

func (t *tx) DeleteCartReservations(_ context.Context, cartID uuid.UUID) (int64, error) {
	var n int64
	for k := range t.st.reservations {
		if k.cart == cartID {
			delete(t.st.reservations, k)
			n++
		}
	}
	return n, nil
}

func (t *tx) DeleteExpiredReservations(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for k, r := range t.st.reservations {
		if !r.ExpiresAt.After(now) {
			delete(t.st.reservations, k)
			n++
		}
	}
	return n, nil
}

func (t *tx) GetCartForUpdate(_ context.Context, id uuid.UUID) (commerce.Cart, error) {
	c, ok := t.st.carts[id]
	if !ok {
		return commerce.Cart{}, fmt.Errorf("cart %s: %w", id, commerce.ErrNotFound)
	}
	return c, nil
}

func (t *tx) ListCartItems(_ context.Context, cartID uuid.UUID) ([]commerce.CartItem, error) {
	var out []commerce.CartItem
	for k, qty := range t.st.cartItems {
		if k.cart == cartID {
			out = append(out, commerce.CartItem{CartID: cartID, ProductID: k.product, Quantity: qty})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}

func (t *tx) UpsertCartItem(_ context.Context, it commerce.CartItem) error {
	t.st.cartItems[resKey{it.CartID, it.ProductID}] = it.Quantity
	return nil
}

func (t *tx) DeleteCartItem(_ context.Context, cartID, productID uuid.UUID) error {
	delete(t.st.cartItems, resKey{cartID, productID})
	return nil
}

func (t *tx) DeleteCartItems(_ context.Context, cartID uuid.UUID) error {
	for k := range t.st.cartItems {
		if k.cart == cartID {
			delete(t.st.cartItems, k)
		}
	}
	return nil
}

func (t *tx) SetCartStatus(ctx context.Context, cartID uuid.UUID, st commerce.CartStatus) error {
	c, err := t.GetCartForUpdate(ctx, cartID)
	if err != nil {
		return err
	}
	c.Status = st
	t.st.carts[cartID] = c
	return nil
}

func (t *tx) SetCartShippingCost(ctx context.Context, cartID uuid.UUID, cents int64) error {
	c, err := t.GetCartForUpdate(ctx, cartID)
	if err != nil {
		return err
	}
	c.ShippingCostCents = cents
	t.st.carts[cartID] = c
	return nil
}

func (t *tx) InsertCart(_ context.Context, c commerce.Cart) error {
	t.st.carts[c.ID] = c
	return nil
}

func (t *tx) InsertOrder(_ context.Context, o commerce.Order) error {
	t.st.orders[o.ID] = o
	return nil
}

func (t *tx) InsertOrderItems(_ context.Context, items []commerce.OrderItem) error {
	for _, it := range items {
		t.st.orderItems[it.OrderID] = append(t.st.orderItems[it.OrderID], it)
	}
	return nil
}

func (t *tx) GetOrderForUpdate(_ context.Context, id uuid.UUID) (commerce.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return commerce.Order{}, fmt.Errorf("order %s: %w", id, commerce.ErrNotFound)
	}
	return o, nil
}

func (t *tx) ListOrderItems(_ context.Context, orderID uuid.UUID) ([]commerce.OrderItem, error) {
	items := append([]commerce.OrderItem(nil), t.st.orderItems[orderID]...)
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID.String() < items[j].ProductID.String()
	})
	return items, nil
}

func (t *tx) SetOrderStatus(ctx context.Context, orderID uuid.UUID, st commerce.OrderStatus) error {
	o, err := t.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	o.Status = st
	t.st.orders[orderID] = o
	return nil
}

func (t *tx) InsertPayment(_ context.Context, p commerce.Payment) error {
	t.st.payments[p.ID] = p
	return nil
}

func (t *tx) GetPaymentByProviderRef(_ context.Context, ref string) (commerce.Payment, error) {
	for _, p := range t.st.payments {
		if p.ProviderRef == ref {
			return p, nil
		}
	}
	return commerce.Payment{}, fmt.Errorf("payment: %w", commerce.ErrNotFound)
}

func (t *tx) SetPaymentStatus(_ context.Context, paymentID uuid.UUID, st commerce.PaymentStatus) error {
	p, ok := t.st.payments[paymentID]
	if !ok {
		return fmt.Errorf("payment %s: %w", paymentID, commerce.ErrNotFound)
	}
	p.Status = st
	t.st.payments[paymentID] = p
	return nil
}
