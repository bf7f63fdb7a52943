package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-commerce-stock/internal/kafka"
)

const (
	TopicOrderPaid = "commerce.order.paid"

	EventOrderPaid = "OrderPaid"
)

// Envelope is the versioned wrapper every published event rides in.
type Envelope struct {
	EventID       string    `json:"event_id"`
	EventType     string    `json:"event_type"`
	EventVersion  int       `json:"event_version"`
	OccurredAt    time.Time `json:"occurred_at"`
	Producer      string    `json:"producer"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Payload       any       `json:"payload"`
}

type OrderPaidEvent struct {
	OrderID     string    `json:"order_id"`
	ProviderRef string    `json:"provider_ref"`
	AmountCents int64     `json:"amount_cents"`
	PaidAt      time.Time `json:"paid_at"`
}

// Notifier is the best-effort side channel fired after a payment approval
// commits. Failures are logged by callers and never affect the payment.
type Notifier interface {
	OrderPaid(ctx context.Context, ev OrderPaidEvent) error
}

// KafkaNotifier publishes order-paid events through the async producer,
// partitioned by order id so one order's events stay ordered.
type KafkaNotifier struct {
	Producer *kafkax.Producer
	Service  string
}

func (n *KafkaNotifier) OrderPaid(_ context.Context, ev OrderPaidEvent) error {
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: ev.OrderID,
		Payload:       ev,
	}
	n.Producer.Publish([]byte(ev.OrderID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

// NopNotifier is used where no broker is configured.
type NopNotifier struct{}

func (NopNotifier) OrderPaid(context.Context, OrderPaidEvent) error { return nil }
