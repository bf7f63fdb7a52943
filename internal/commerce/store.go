package commerce

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tx is the set of row operations available inside one storage transaction.
// All multi-row mutations in this module run through Store.WithTx; the store
// guarantees at least snapshot isolation, and GetProductForUpdate linearizes
// concurrent operations on the same product.
type Tx interface {
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	GetProductForUpdate(ctx context.Context, id uuid.UUID) (Product, error)
	// AdjustStock adds delta to stock_quantity; it fails with
	// ErrInsufficientStock instead of ever storing a negative count.
	AdjustStock(ctx context.Context, productID uuid.UUID, delta int) error
	InsertStockMovement(ctx context.Context, m StockMovement) error

	// ReservedQty sums active (non-expired at now) reservation quantities
	// for a product; exceptCart, when non-nil, excludes that cart's own hold.
	ReservedQty(ctx context.Context, productID uuid.UUID, exceptCart *uuid.UUID, now time.Time) (int, error)
	UpsertReservation(ctx context.Context, r StockReservation) error
	DeleteReservation(ctx context.Context, cartID, productID uuid.UUID) (int64, error)
	DeleteCartReservations(ctx context.Context, cartID uuid.UUID) (int64, error)
	// DeleteExpiredReservations deletes rows whose stored expires_at <= now.
	// The predicate runs in the store, so a concurrent refresh wins.
	DeleteExpiredReservations(ctx context.Context, now time.Time) (int64, error)

	GetCartForUpdate(ctx context.Context, id uuid.UUID) (Cart, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error)
	UpsertCartItem(ctx context.Context, it CartItem) error
	DeleteCartItem(ctx context.Context, cartID, productID uuid.UUID) error
	DeleteCartItems(ctx context.Context, cartID uuid.UUID) error
	SetCartStatus(ctx context.Context, cartID uuid.UUID, st CartStatus) error
	SetCartShippingCost(ctx context.Context, cartID uuid.UUID, cents int64) error
	InsertCart(ctx context.Context, c Cart) error

	InsertOrder(ctx context.Context, o Order) error
	InsertOrderItems(ctx context.Context, items []OrderItem) error
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
	SetOrderStatus(ctx context.Context, orderID uuid.UUID, st OrderStatus) error

	InsertPayment(ctx context.Context, p Payment) error
	// GetPaymentByProviderRef locks the matched row for the duration of the
	// transaction so duplicate deliveries serialize.
	GetPaymentByProviderRef(ctx context.Context, ref string) (Payment, error)
	SetPaymentStatus(ctx context.Context, paymentID uuid.UUID, st PaymentStatus) error
}

type ReservationFilter struct {
	ProductID *uuid.UUID
	CartID    *uuid.UUID
	Limit     int
	Offset    int
}

type MovementFilter struct {
	ProductID *uuid.UUID
	Type      *MovementType
	Limit     int
	Offset    int
}

// Store is the transactional source of truth. Read methods outside WithTx
// are single-statement and need no surrounding transaction.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	// AvailableStock = stock_quantity minus active reservations at now.
	AvailableStock(ctx context.Context, productID uuid.UUID, now time.Time) (int, error)
	GetCart(ctx context.Context, id uuid.UUID) (Cart, error)
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItem, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
	GetPaymentByOrder(ctx context.Context, orderID uuid.UUID) (Payment, error)
	ListActiveReservations(ctx context.Context, f ReservationFilter, now time.Time) ([]StockReservation, error)
	ListStockMovements(ctx context.Context, f MovementFilter) ([]StockMovement, error)
}
