package commerce

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaymentTransitions(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		ok       bool
	}{
		{PaymentPending, PaymentApproved, true},
		{PaymentPending, PaymentDeclined, true},
		{PaymentPending, PaymentError, true},
		{PaymentApproved, PaymentDeclined, false},
		{PaymentApproved, PaymentPending, false},
		{PaymentDeclined, PaymentApproved, false},
		{PaymentError, PaymentApproved, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, PaymentCanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestPaymentTerminal(t *testing.T) {
	assert.False(t, PaymentPending.Terminal())
	assert.True(t, PaymentApproved.Terminal())
	assert.True(t, PaymentDeclined.Terminal())
	assert.True(t, PaymentError.Terminal())
}

func TestOrderTransitions(t *testing.T) {
	assert.True(t, OrderCanTransition(OrderPending, OrderPaid))
	assert.True(t, OrderCanTransition(OrderPending, OrderCancelled))
	assert.True(t, OrderCanTransition(OrderPaid, OrderShipped))
	assert.True(t, OrderCanTransition(OrderShipped, OrderDelivered))
	assert.False(t, OrderCanTransition(OrderCancelled, OrderPaid))
	assert.False(t, OrderCanTransition(OrderPaid, OrderPending))
	assert.False(t, OrderCanTransition(OrderDelivered, OrderShipped))
}

func TestCartTransitions(t *testing.T) {
	assert.True(t, CartCanTransition(CartActive, CartOrdered))
	assert.True(t, CartCanTransition(CartActive, CartAbandoned))
	assert.False(t, CartCanTransition(CartOrdered, CartActive))
	assert.False(t, CartCanTransition(CartAbandoned, CartOrdered))
}
