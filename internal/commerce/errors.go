package commerce

import "errors"

var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnavailable       = errors.New("product unavailable")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrCartNotActive     = errors.New("cart is not active")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrGateway           = errors.New("payment gateway error")

	// ErrBusy wraps a lock timeout or serialization failure; callers may
	// retry the whole operation.
	ErrBusy = errors.New("storage busy, retry")
)
