package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
	"github.com/ariefcatur/go-commerce-stock/internal/shipping"
)

// Service handles cart mutations. It consults availability read-only (no
// holds are taken before checkout) and recomputes the shipping cost in the
// same transaction as every item change.
type Service struct {
	Store     commerce.Store
	Estimator *shipping.Estimator
	Now       func() time.Time
}

func NewService(store commerce.Store, est *shipping.Estimator) *Service {
	return &Service{Store: store, Estimator: est, Now: time.Now}
}

type Created struct {
	Cart       commerce.Cart
	GuestToken string // returned once for anonymous shoppers
}

// Create opens an active cart for a registered user or, with a nil user id,
// mints a guest cart keyed by a fresh capability token.
func (s *Service) Create(ctx context.Context, userID uuid.UUID) (Created, error) {
	var owner commerce.Owner
	guestToken := ""
	if userID == uuid.Nil {
		guestToken = commerce.NewGuestToken()
		owner = commerce.GuestOwner(guestToken)
	} else {
		owner = commerce.UserOwner(userID)
	}

	c := commerce.Cart{
		ID:        uuid.New(),
		Owner:     owner,
		Status:    commerce.CartActive,
		CreatedAt: s.Now().UTC(),
	}
	err := s.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		return tx.InsertCart(ctx, c)
	})
	if err != nil {
		return Created{}, err
	}
	return Created{Cart: c, GuestToken: guestToken}, nil
}

// SetItem upserts one line. quantity <= 0 removes it. The availability
// check here is advisory (reads can race); the checkout transaction is the
// binding one.
func (s *Service) SetItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) error {
	return s.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		cart, err := tx.GetCartForUpdate(ctx, cartID)
		if err != nil {
			return err
		}
		if cart.Status != commerce.CartActive {
			return fmt.Errorf("cart %s is %s: %w", cart.ID, cart.Status, commerce.ErrCartNotActive)
		}

		if quantity <= 0 {
			if err := tx.DeleteCartItem(ctx, cartID, productID); err != nil {
				return err
			}
			return s.refreshShipping(ctx, tx, cartID)
		}

		p, err := tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !p.Sellable() {
			return fmt.Errorf("product %s: %w", p.ID, commerce.ErrUnavailable)
		}
		held, err := tx.ReservedQty(ctx, p.ID, nil, s.Now().UTC())
		if err != nil {
			return err
		}
		if quantity > p.StockQuantity-held {
			return fmt.Errorf("product %s: want %d, available %d: %w",
				p.ID, quantity, p.StockQuantity-held, commerce.ErrInsufficientStock)
		}

		if err := tx.UpsertCartItem(ctx, commerce.CartItem{CartID: cartID, ProductID: productID, Quantity: quantity}); err != nil {
			return err
		}
		return s.refreshShipping(ctx, tx, cartID)
	})
}

// Abandon closes the cart for good. Items go with it; the order-window
// design means there are no live holds to release here, but any stragglers
// are cleared anyway.
func (s *Service) Abandon(ctx context.Context, cartID uuid.UUID) error {
	return s.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		cart, err := tx.GetCartForUpdate(ctx, cartID)
		if err != nil {
			return err
		}
		if !commerce.CartCanTransition(cart.Status, commerce.CartAbandoned) {
			return fmt.Errorf("cart %s is %s: %w", cart.ID, cart.Status, commerce.ErrCartNotActive)
		}
		if err := tx.SetCartStatus(ctx, cartID, commerce.CartAbandoned); err != nil {
			return err
		}
		if err := tx.DeleteCartItems(ctx, cartID); err != nil {
			return err
		}
		_, err = tx.DeleteCartReservations(ctx, cartID)
		return err
	})
}

func (s *Service) refreshShipping(ctx context.Context, tx commerce.Tx, cartID uuid.UUID) error {
	items, err := tx.ListCartItems(ctx, cartID)
	if err != nil {
		return err
	}
	lines := make([]shipping.Line, 0, len(items))
	for _, it := range items {
		p, err := tx.GetProduct(ctx, it.ProductID)
		if err != nil {
			return err
		}
		lines = append(lines, shipping.Line{Quantity: it.Quantity, SizeClass: p.SizeClass})
	}
	return tx.SetCartShippingCost(ctx, cartID, s.Estimator.Estimate(lines))
}
