package commerce

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID            uuid.UUID
	SKU           string
	Name          string
	PriceCents    int64
	StockQuantity int
	Active        bool
	Visible       bool
	SizeClass     SizeClass
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Sellable = boleh muncul di checkout.
func (p Product) Sellable() bool { return p.Active && p.Visible }

type MovementType string

const (
	MovementEntry MovementType = "entry"
	MovementExit  MovementType = "exit"
)

// StockMovement is the append-only audit row behind every change to
// Product.StockQuantity. Rows are never updated or deleted.
type StockMovement struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Type      MovementType
	Quantity  int
	Reason    string
	CreatedAt time.Time
}

// StockReservation is a soft hold: it subtracts from available stock as
// computed on read, never from StockQuantity itself. At most one row exists
// per (cart_id, product_id).
type StockReservation struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
	ExpiresAt time.Time
	CreatedAt time.Time
}

func (r StockReservation) ActiveAt(now time.Time) bool { return r.ExpiresAt.After(now) }

type Cart struct {
	ID                uuid.UUID
	Owner             Owner
	Status            CartStatus
	ShippingCostCents int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type CartItem struct {
	CartID    uuid.UUID
	ProductID uuid.UUID
	Quantity  int
}

type Order struct {
	ID            uuid.UUID
	CartID        uuid.UUID
	Owner         Owner
	OrderToken    string // guest capability, empty for registered users
	Status        OrderStatus
	TotalCents    int64
	ShippingCents int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem snapshots the unit price at order creation; it is never
// recomputed from the live catalog.
type OrderItem struct {
	OrderID        uuid.UUID
	ProductID      uuid.UUID
	Quantity       int
	UnitPriceCents int64
	SubtotalCents  int64
}

// AccessibleBy gates order lookups: registered owners match on user id,
// guest orders only on the order token capability (a guest has no other
// authenticable identity).
func (o Order) AccessibleBy(viewer Owner, orderToken string) bool {
	if id, ok := o.Owner.User(); ok {
		vid, vok := viewer.User()
		return vok && vid == id
	}
	return o.OrderToken != "" && orderToken == o.OrderToken
}

type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProviderRef string // external transaction id, dedupe key
	Status      PaymentStatus
	AmountCents int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
