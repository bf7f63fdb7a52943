package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commerce_reservations_created_total",
		Help: "Stock reservations created or refreshed.",
	})

	ReservationsSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commerce_reservations_swept_total",
		Help: "Expired reservations removed by sweeps.",
	})

	StockMovements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_stock_movements_total",
		Help: "Authoritative stock movements applied.",
	}, []string{"type"})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_checkouts_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_payment_webhooks_total",
		Help: "Payment webhook deliveries by outcome.",
	}, []string{"outcome"})
)
