package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ariefcatur/go-commerce-stock/internal/cart"
	"github.com/ariefcatur/go-commerce-stock/internal/checkout"
	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
	"github.com/ariefcatur/go-commerce-stock/internal/payment"
	"github.com/ariefcatur/go-commerce-stock/internal/redisx"
	"github.com/ariefcatur/go-commerce-stock/internal/reservation"
	"github.com/ariefcatur/go-commerce-stock/internal/stock"
)

type Handler struct {
	Store        commerce.Store
	Carts        *cart.Service
	Checkout     *checkout.Orchestrator
	Reconciler   *payment.Reconciler
	Ledger       *stock.Ledger
	Reservations *reservation.Manager
	Redis        *redis.Client
	Log          zerolog.Logger
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/carts", h.createCart)
	r.Put("/carts/{id}/items/{productID}", h.setCartItem)
	r.Delete("/carts/{id}/items/{productID}", h.removeCartItem)
	r.Post("/carts/{id}/abandon", h.abandonCart)
	r.Get("/carts/{id}", h.getCart)

	r.Post("/checkout", h.checkout)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/products/{id}/availability", h.availability)

	r.Post("/webhooks/payment", h.paymentWebhook)

	r.Post("/admin/sweep", h.sweep)
	r.Get("/admin/reservations", h.listReservations)
	r.Get("/admin/stock-movements", h.listMovements)
}

func urlUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: bad %s", commerce.ErrValidation, name)
	}
	return id, nil
}

// ---- carts ----

type createCartReq struct {
	UserID *uuid.UUID `json:"user_id"` // nil = guest
}

func (h *Handler) createCart(w http.ResponseWriter, r *http.Request) {
	var req createCartReq
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, fmt.Errorf("%w: invalid json", commerce.ErrValidation))
			return
		}
	}
	userID := uuid.Nil
	if req.UserID != nil {
		userID = *req.UserID
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := h.Carts.Create(ctx, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{"cart_id": created.Cart.ID, "status": created.Cart.Status}
	if created.GuestToken != "" {
		resp["guest_token"] = created.GuestToken // shown once
	}
	writeJSON(w, http.StatusCreated, resp)
}

type setItemReq struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) setCartItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	productID, err := urlUUID(r, "productID")
	if err != nil {
		writeError(w, err)
		return
	}
	var req setItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid json", commerce.ErrValidation))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Carts.SetItem(ctx, cartID, productID, req.Quantity); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	cartID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	productID, err := urlUUID(r, "productID")
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Carts.SetItem(ctx, cartID, productID, 0); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) abandonCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Carts.Abandon(ctx, cartID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "abandoned"})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	cartID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Store.GetCart(ctx, cartID)
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.Store.ListCartItems(ctx, cartID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"cart_id":             c.ID,
		"status":              c.Status,
		"shipping_cost_cents": c.ShippingCostCents,
		"items":               items,
	})
}

// ---- checkout & orders ----

type checkoutReq struct {
	CartID uuid.UUID `json:"cart_id"`
	Note   string    `json:"note,omitempty"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: invalid json", commerce.ErrValidation))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.Checkout(ctx, checkout.Input{CartID: req.CartID, Note: req.Note})
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{
		"order_id":       res.Order.ID,
		"status":         res.Order.Status,
		"total_cents":    res.Order.TotalCents,
		"shipping_cents": res.Order.ShippingCents,
		"payment_ref":    res.Payment.ProviderRef,
	}
	if res.OrderToken != "" {
		resp["order_token"] = res.OrderToken // sole guest credential, shown once
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetOrder(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	viewer := commerce.Owner{}
	if uid := r.Header.Get("X-User-ID"); uid != "" {
		id, err := uuid.Parse(uid)
		if err != nil {
			writeError(w, fmt.Errorf("%w: bad user id", commerce.ErrValidation))
			return
		}
		viewer = commerce.UserOwner(id)
	}
	if !o.AccessibleBy(viewer, r.URL.Query().Get("token")) {
		writeError(w, commerce.ErrForbidden)
		return
	}

	items, err := h.Store.ListOrderItems(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{
		"order_id":       o.ID,
		"status":         o.Status,
		"total_cents":    o.TotalCents,
		"shipping_cents": o.ShippingCents,
		"items":          items,
	}
	if p, err := h.Store.GetPaymentByOrder(ctx, orderID); err == nil {
		resp["payment_status"] = p.Status
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	productID, err := urlUUID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyAvailable, productID)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil {
			if n, err := strconv.Atoi(s); err == nil {
				writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "available": n, "cached": true})
				return
			}
		}
	}

	n, err := h.Ledger.Available(ctx, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, strconv.Itoa(n), redisx.TTLAvailable).Err()
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "available": n})
}

// ---- payment webhook ----

func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	var n payment.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, fmt.Errorf("%w: invalid json", commerce.ErrValidation))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	out, err := h.Reconciler.Handle(ctx, n)
	if err != nil {
		h.Log.Warn().Err(err).Str("ref", n.ProviderRef).Msg("webhook rejected")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"outcome": string(out)})
}

// ---- operational surface ----

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	n, err := h.Reservations.Sweep(ctx, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": n})
}

func queryPage(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func queryUUID(r *http.Request, name string) *uuid.UUID {
	if s := r.URL.Query().Get(name); s != "" {
		if id, err := uuid.Parse(s); err == nil {
			return &id
		}
	}
	return nil
}

func (h *Handler) listReservations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit, offset := queryPage(r)
	rs, err := h.Reservations.Active(ctx, commerce.ReservationFilter{
		ProductID: queryUUID(r, "product_id"),
		CartID:    queryUUID(r, "cart_id"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reservations": rs})
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit, offset := queryPage(r)
	f := commerce.MovementFilter{
		ProductID: queryUUID(r, "product_id"),
		Limit:     limit,
		Offset:    offset,
	}
	if t := r.URL.Query().Get("type"); t != "" {
		mt := commerce.MovementType(t)
		f.Type = &mt
	}
	ms, err := h.Ledger.Movements(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"movements": ms})
}
