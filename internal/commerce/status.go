package commerce

type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartOrdered   CartStatus = "ordered"
	CartAbandoned CartStatus = "abandoned"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentDeclined PaymentStatus = "declined"
	PaymentError    PaymentStatus = "error"
)

var cartNext = map[CartStatus]map[CartStatus]bool{
	CartActive:    {CartOrdered: true, CartAbandoned: true},
	CartOrdered:   {},
	CartAbandoned: {},
}

var orderNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:   {OrderPaid: true, OrderCancelled: true},
	OrderPaid:      {OrderShipped: true},
	OrderShipped:   {OrderDelivered: true},
	OrderDelivered: {},
	OrderCancelled: {},
}

var paymentNext = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:  {PaymentApproved: true, PaymentDeclined: true, PaymentError: true},
	PaymentApproved: {},
	PaymentDeclined: {},
	PaymentError:    {},
}

func CartCanTransition(from, to CartStatus) bool       { return cartNext[from][to] }
func OrderCanTransition(from, to OrderStatus) bool     { return orderNext[from][to] }
func PaymentCanTransition(from, to PaymentStatus) bool { return paymentNext[from][to] }

// Terminal reports whether no further transition exists for the payment.
func (s PaymentStatus) Terminal() bool { return len(paymentNext[s]) == 0 }
