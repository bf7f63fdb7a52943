// Package commercetest provides an in-memory commerce.Store for tests.
// WithTx serializes on a mutex and restores a snapshot on error, mirroring
// the linearization and rollback the real store gets from Postgres.
package commercetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

type resKey struct{ cart, product uuid.UUID }

type state struct {
	products     map[uuid.UUID]commerce.Product
	movements    []commerce.StockMovement
	reservations map[resKey]commerce.StockReservation
	carts        map[uuid.UUID]commerce.Cart
	cartItems    map[resKey]int
	orders       map[uuid.UUID]commerce.Order
	orderItems   map[uuid.UUID][]commerce.OrderItem
	payments     map[uuid.UUID]commerce.Payment
}

func newState() *state {
	return &state{
		products:     map[uuid.UUID]commerce.Product{},
		reservations: map[resKey]commerce.StockReservation{},
		carts:        map[uuid.UUID]commerce.Cart{},
		cartItems:    map[resKey]int{},
		orders:       map[uuid.UUID]commerce.Order{},
		orderItems:   map[uuid.UUID][]commerce.OrderItem{},
		payments:     map[uuid.UUID]commerce.Payment{},
	}
}

func (st *state) clone() *state {
	c := newState()
	for k, v := range st.products {
		c.products[k] = v
	}
	c.movements = append(c.movements, st.movements...)
	for k, v := range st.reservations {
		c.reservations[k] = v
	}
	for k, v := range st.carts {
		c.carts[k] = v
	}
	for k, v := range st.cartItems {
		c.cartItems[k] = v
	}
	for k, v := range st.orders {
		c.orders[k] = v
	}
	for k, v := range st.orderItems {
		c.orderItems[k] = append([]commerce.OrderItem(nil), v...)
	}
	for k, v := range st.payments {
		c.payments[k] = v
	}
	return c
}

type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store { return &Store{st: newState()} }

// ---- seeding helpers ----

func (s *Store) AddProduct(p commerce.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	s.st.products[p.ID] = p
}

func (s *Store) AddCart(c commerce.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.carts[c.ID] = c
}

func (s *Store) AddCartItem(cartID, productID uuid.UUID, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.cartItems[resKey{cartID, productID}] = qty
}

func (s *Store) Product(id uuid.UUID) commerce.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[id]
}

func (s *Store) Order(id uuid.UUID) commerce.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.orders[id]
}

func (s *Store) Payment(id uuid.UUID) commerce.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.payments[id]
}

func (s *Store) Cart(id uuid.UUID) commerce.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.carts[id]
}

func (s *Store) Reservation(cartID, productID uuid.UUID) (commerce.StockReservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.reservations[resKey{cartID, productID}]
	return r, ok
}

func (s *Store) Movements() []commerce.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]commerce.StockMovement(nil), s.st.movements...)
}

func (s *Store) ReservationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.reservations)
}

func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

// ---- commerce.Store ----

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx commerce.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	if err := fn(ctx, &tx{st: s.st}); err != nil {
		s.st = snapshot // rollback
		return err
	}
	return nil
}

func (s *Store) GetProduct(ctx context.Context, id uuid.UUID) (commerce.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).GetProduct(ctx, id)
}

func (s *Store) AvailableStock(_ context.Context, productID uuid.UUID, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[productID]
	if !ok {
		return 0, fmt.Errorf("product: %w", commerce.ErrNotFound)
	}
	held := 0
	for _, r := range s.st.reservations {
		if r.ProductID == productID && r.ActiveAt(now) {
			held += r.Quantity
		}
	}
	return p.StockQuantity - held, nil
}

func (s *Store) GetCart(ctx context.Context, id uuid.UUID) (commerce.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).GetCartForUpdate(ctx, id)
}

func (s *Store) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]commerce.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).ListCartItems(ctx, cartID)
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (commerce.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).GetOrderForUpdate(ctx, id)
}

func (s *Store) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]commerce.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return (&tx{st: s.st}).ListOrderItems(ctx, orderID)
}

func (s *Store) GetPaymentByOrder(_ context.Context, orderID uuid.UUID) (commerce.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.st.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return commerce.Payment{}, fmt.Errorf("payment: %w", commerce.ErrNotFound)
}

func (s *Store) ListActiveReservations(_ context.Context, f commerce.ReservationFilter, now time.Time) ([]commerce.StockReservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []commerce.StockReservation
	for _, r := range s.st.reservations {
		if !r.ActiveAt(now) {
			continue
		}
		if f.ProductID != nil && r.ProductID != *f.ProductID {
			continue
		}
		if f.CartID != nil && r.CartID != *f.CartID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	return page(out, f.Limit, f.Offset), nil
}

func (s *Store) ListStockMovements(_ context.Context, f commerce.MovementFilter) ([]commerce.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []commerce.StockMovement
	for _, m := range s.st.movements {
		if f.ProductID != nil && m.ProductID != *f.ProductID {
			continue
		}
		if f.Type != nil && m.Type != *f.Type {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Offset), nil
}

func page[T any](in []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if len(in) > limit {
		in = in[:limit]
	}
	return in
}
