package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the core error taxonomy onto HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, commerce.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, commerce.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, commerce.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, commerce.ErrInsufficientStock),
		errors.Is(err, commerce.ErrUnavailable),
		errors.Is(err, commerce.ErrCartNotActive):
		return http.StatusConflict
	case errors.Is(err, commerce.ErrCartEmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, commerce.ErrPaymentNotFound):
		return http.StatusNotFound
	case errors.Is(err, commerce.ErrGateway):
		return http.StatusBadGateway
	case errors.Is(err, commerce.ErrBusy):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, code, map[string]string{"error": msg})
}
