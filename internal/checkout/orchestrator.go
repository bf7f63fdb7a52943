package checkout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
	"github.com/ariefcatur/go-commerce-stock/internal/metrics"
	"github.com/ariefcatur/go-commerce-stock/internal/payment"
	"github.com/ariefcatur/go-commerce-stock/internal/reservation"
	"github.com/ariefcatur/go-commerce-stock/internal/shipping"
)

// Orchestrator converts an active cart into a pending order in one
// transaction: validate every line, snapshot prices, place payment-window
// holds, create the provider charge, insert the pending payment. Any single
// failure rolls the whole thing back and the cart stays active.
type Orchestrator struct {
	Store        commerce.Store
	Reservations *reservation.Manager
	Estimator    *shipping.Estimator
	Gateway      payment.Gateway
	HoldTTL      time.Duration // payment-authorization window
	Now          func() time.Time
}

type Input struct {
	CartID uuid.UUID
	// optional delivery metadata, stored nowhere yet but validated here
	Note string
}

type Result struct {
	Order      commerce.Order
	Items      []commerce.OrderItem
	Payment    commerce.Payment
	OrderToken string // set only for guest orders, returned exactly once
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

func (o *Orchestrator) Checkout(ctx context.Context, in Input) (Result, error) {
	ctx, span := otel.Tracer("checkout").Start(ctx, "orchestrator.Checkout")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", in.CartID.String()))

	res, err := o.checkout(ctx, in)
	if err != nil {
		metrics.Checkouts.WithLabelValues("rejected").Inc()
		return Result{}, err
	}
	metrics.Checkouts.WithLabelValues("ok").Inc()
	return res, nil
}

func (o *Orchestrator) checkout(ctx context.Context, in Input) (Result, error) {
	if in.CartID == uuid.Nil {
		return Result{}, fmt.Errorf("%w: missing cart id", commerce.ErrValidation)
	}
	if o.HoldTTL <= 0 {
		return Result{}, fmt.Errorf("%w: hold ttl not configured", commerce.ErrValidation)
	}

	var res Result
	err := o.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		res = Result{}
		now := o.now()

		cart, err := tx.GetCartForUpdate(ctx, in.CartID)
		if err != nil {
			return err
		}
		if cart.Status != commerce.CartActive {
			return fmt.Errorf("cart %s is %s: %w", cart.ID, cart.Status, commerce.ErrCartNotActive)
		}

		items, err := tx.ListCartItems(ctx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return commerce.ErrCartEmpty
		}
		// Deterministic lock order across concurrent checkouts.
		sort.Slice(items, func(i, j int) bool {
			return items[i].ProductID.String() < items[j].ProductID.String()
		})

		orderID := uuid.New()
		var (
			total      int64
			orderItems []commerce.OrderItem
			shipLines  []shipping.Line
		)
		for _, it := range items {
			p, err := tx.GetProductForUpdate(ctx, it.ProductID)
			if err != nil {
				return err
			}
			if !p.Sellable() {
				return fmt.Errorf("product %s: %w", p.ID, commerce.ErrUnavailable)
			}
			heldByOthers, err := tx.ReservedQty(ctx, p.ID, &cart.ID, now)
			if err != nil {
				return err
			}
			if it.Quantity > p.StockQuantity-heldByOthers {
				return fmt.Errorf("product %s: want %d, available %d: %w",
					p.ID, it.Quantity, p.StockQuantity-heldByOthers, commerce.ErrInsufficientStock)
			}

			sub := p.PriceCents * int64(it.Quantity)
			total += sub
			orderItems = append(orderItems, commerce.OrderItem{
				OrderID:        orderID,
				ProductID:      p.ID,
				Quantity:       it.Quantity,
				UnitPriceCents: p.PriceCents, // snapshot, never recomputed
				SubtotalCents:  sub,
			})
			shipLines = append(shipLines, shipping.Line{Quantity: it.Quantity, SizeClass: p.SizeClass})
		}

		order := commerce.Order{
			ID:            orderID,
			CartID:        cart.ID,
			Owner:         cart.Owner,
			Status:        commerce.OrderPending,
			TotalCents:    total,
			ShippingCents: o.Estimator.Estimate(shipLines),
			CreatedAt:     now,
		}
		if _, guest := cart.Owner.Guest(); guest {
			order.OrderToken = commerce.NewGuestToken()
		}

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.InsertOrderItems(ctx, orderItems); err != nil {
			return err
		}
		if err := tx.SetCartStatus(ctx, cart.ID, commerce.CartOrdered); err != nil {
			return err
		}
		for _, it := range items {
			if err := o.Reservations.ReserveLine(ctx, tx, cart.ID, it.ProductID, it.Quantity, o.HoldTTL); err != nil {
				return err
			}
		}

		// Charge creation is the last step so a gateway failure aborts the
		// transaction with nothing to compensate.
		charge, err := o.Gateway.CreateCharge(ctx, order.ID, total+order.ShippingCents)
		if err != nil {
			return err
		}
		pay := commerce.Payment{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProviderRef: charge.Ref,
			Status:      commerce.PaymentPending,
			AmountCents: total + order.ShippingCents,
			CreatedAt:   now,
		}
		if err := tx.InsertPayment(ctx, pay); err != nil {
			return err
		}

		res = Result{Order: order, Items: orderItems, Payment: pay, OrderToken: order.OrderToken}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	metrics.ReservationsCreated.Add(float64(len(res.Items)))
	return res, nil
}
