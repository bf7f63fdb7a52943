package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
	"github.com/ariefcatur/go-commerce-stock/internal/metrics"
	"github.com/ariefcatur/go-commerce-stock/internal/notify"
	"github.com/ariefcatur/go-commerce-stock/internal/redisx"
	"github.com/ariefcatur/go-commerce-stock/internal/reservation"
	"github.com/ariefcatur/go-commerce-stock/internal/stock"
)

// Notification is one gateway delivery: at-least-once, possibly duplicated,
// possibly out of order. ProviderRef is the dedupe key. OrderID is optional
// provider metadata; when present it lets us tell "not ours, ack it" apart
// from "ours but the ref should have matched".
type Notification struct {
	ProviderRef string     `json:"transaction_id"`
	Status      string     `json:"status"`
	OrderID     *uuid.UUID `json:"order_id,omitempty"`
	EventID     string     `json:"event_id,omitempty"`
}

type Outcome string

const (
	OutcomeApplied   Outcome = "applied"   // state advanced this delivery
	OutcomeDuplicate Outcome = "duplicate" // payment already terminal, no-op
	OutcomeIgnored   Outcome = "ignored"   // unknown ref or non-final status
)

// Reconciler drives Payment/Order/stock to a terminal outcome from gateway
// notifications. It is the only component that permanently mutates the
// ledger, and it does so exactly once per payment.
type Reconciler struct {
	Store        commerce.Store
	Ledger       *stock.Ledger
	Reservations *reservation.Manager
	Redis        *redis.Client // optional fast-path dedupe; DB stays authoritative
	Notifier     notify.Notifier
	Log          zerolog.Logger
	Now          func() time.Time
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

// Handle processes one delivery. It returns a terminal Outcome on success;
// any error means the gateway should redeliver.
func (r *Reconciler) Handle(ctx context.Context, n Notification) (Outcome, error) {
	ctx, span := otel.Tracer("payment").Start(ctx, "reconciler.Handle")
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider_ref", n.ProviderRef))

	out, err := r.handle(ctx, n)
	if err == nil {
		metrics.WebhookEvents.WithLabelValues(string(out)).Inc()
	} else {
		metrics.WebhookEvents.WithLabelValues("failed").Inc()
	}
	return out, err
}

func (r *Reconciler) handle(ctx context.Context, n Notification) (Outcome, error) {
	if n.ProviderRef == "" {
		return "", fmt.Errorf("%w: missing transaction id", commerce.ErrValidation)
	}
	target, known := MapProviderStatus(n.Status)
	if !known {
		return "", fmt.Errorf("%w: unknown provider status %q", commerce.ErrValidation, n.Status)
	}
	if target == commerce.PaymentPending {
		// provider heartbeat, nothing to reconcile
		return OutcomeIgnored, nil
	}

	// Fast path: sudah pernah diproses? Redis hanya shortcut, DB tetap
	// sumber kebenaran.
	dedupeKey := fmt.Sprintf(redisx.KeyWebhookDone, n.ProviderRef)
	if r.Redis != nil {
		if ok, _ := redisx.Exists(ctx, r.Redis, dedupeKey); ok {
			return OutcomeDuplicate, nil
		}
	}

	var (
		outcome Outcome
		paidEvt *notify.OrderPaidEvent
		exits   int
	)
	err := r.Store.WithTx(ctx, func(ctx context.Context, tx commerce.Tx) error {
		outcome = ""
		paidEvt = nil
		exits = 0

		pay, err := tx.GetPaymentByProviderRef(ctx, n.ProviderRef)
		if errors.Is(err, commerce.ErrNotFound) {
			return r.unknownRef(ctx, tx, n, &outcome)
		}
		if err != nil {
			return err
		}
		if pay.Status.Terminal() {
			outcome = OutcomeDuplicate
			return nil
		}

		order, err := tx.GetOrderForUpdate(ctx, pay.OrderID)
		if err != nil {
			return err
		}

		switch target {
		case commerce.PaymentApproved:
			evt, n, err := r.approve(ctx, tx, pay, order)
			if err != nil {
				return err
			}
			paidEvt, exits = evt, n
		default: // declined | error
			if err := r.reject(ctx, tx, pay, order, target); err != nil {
				return err
			}
		}
		outcome = OutcomeApplied
		return nil
	})
	if err != nil {
		return "", err
	}

	if r.Redis != nil && outcome != OutcomeIgnored {
		_ = r.Redis.Set(ctx, dedupeKey, "1", redisx.TTLWebhookDone).Err()
	}
	// Counted post-commit: a retried transaction must not double-count.
	if exits > 0 {
		metrics.StockMovements.WithLabelValues(string(commerce.MovementExit)).Add(float64(exits))
	}
	if paidEvt != nil {
		// Best effort: a notification failure never unwinds the payment.
		if err := r.Notifier.OrderPaid(ctx, *paidEvt); err != nil {
			r.Log.Warn().Err(err).Str("order_id", paidEvt.OrderID).Msg("order-paid notification failed")
		}
	}
	return outcome, nil
}

// unknownRef decides between "foreign transaction, ack as processed" and the
// hard PaymentNotFound: the payload named one of our orders, so its ref
// should have matched.
func (r *Reconciler) unknownRef(ctx context.Context, tx commerce.Tx, n Notification, outcome *Outcome) error {
	if n.OrderID != nil {
		if _, err := tx.GetOrderForUpdate(ctx, *n.OrderID); err == nil {
			return fmt.Errorf("order %s, ref %s: %w", n.OrderID, n.ProviderRef, commerce.ErrPaymentNotFound)
		} else if !errors.Is(err, commerce.ErrNotFound) {
			return err
		}
	}
	*outcome = OutcomeIgnored
	return nil
}

// approve finalizes a successful payment: re-verify on-hand per line, write
// one exit movement per line, release the order's holds, flip statuses. If
// any line would oversell, the payment is recorded as error instead -
// overselling must never be recorded as a sale. The second return is the
// number of exit movements written, for post-commit accounting.
func (r *Reconciler) approve(ctx context.Context, tx commerce.Tx, pay commerce.Payment, order commerce.Order) (*notify.OrderPaidEvent, int, error) {
	items, err := tx.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, 0, err
	}

	for _, it := range items {
		p, err := tx.GetProductForUpdate(ctx, it.ProductID)
		if err != nil {
			return nil, 0, err
		}
		if it.Quantity > p.StockQuantity {
			r.Log.Error().
				Str("order_id", order.ID.String()).
				Str("product_id", it.ProductID.String()).
				Int("want", it.Quantity).
				Int("on_hand", p.StockQuantity).
				Msg("approved payment would oversell, recording error")
			return nil, 0, r.reject(ctx, tx, pay, order, commerce.PaymentError)
		}
	}

	for _, it := range items {
		if err := r.Ledger.Apply(ctx, tx, it.ProductID, commerce.MovementExit, it.Quantity, order.ID.String()); err != nil {
			return nil, 0, err
		}
		if err := r.Reservations.ReleaseLine(ctx, tx, order.CartID, it.ProductID); err != nil {
			return nil, 0, err
		}
	}
	if err := tx.SetPaymentStatus(ctx, pay.ID, commerce.PaymentApproved); err != nil {
		return nil, 0, err
	}
	if err := tx.SetOrderStatus(ctx, order.ID, commerce.OrderPaid); err != nil {
		return nil, 0, err
	}
	return &notify.OrderPaidEvent{
		OrderID:     order.ID.String(),
		ProviderRef: pay.ProviderRef,
		AmountCents: pay.AmountCents,
		PaidAt:      r.now(),
	}, len(items), nil
}

// reject ends the payment without any stock movement: nothing was
// decremented pre-approval, so releasing the holds is the whole cleanup.
func (r *Reconciler) reject(ctx context.Context, tx commerce.Tx, pay commerce.Payment, order commerce.Order, st commerce.PaymentStatus) error {
	if err := r.Reservations.ReleaseCartLines(ctx, tx, order.CartID); err != nil {
		return err
	}
	if err := tx.SetPaymentStatus(ctx, pay.ID, st); err != nil {
		return err
	}
	return tx.SetOrderStatus(ctx, order.ID, commerce.OrderCancelled)
}
