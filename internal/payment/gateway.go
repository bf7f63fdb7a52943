package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-commerce-stock/internal/commerce"
)

// Charge is the provider-side transaction created when an order is placed.
// Ref is the external transaction id later echoed back by the webhook.
type Charge struct {
	Ref         string
	AmountCents int64
}

// Gateway creates charges against the payment provider. Implementations
// must be safe for concurrent use.
type Gateway interface {
	CreateCharge(ctx context.Context, orderID uuid.UUID, amountCents int64) (Charge, error)
}

// HTTPGateway talks to the provider's REST API.
type HTTPGateway struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPGateway(baseURL, apiKey string) *HTTPGateway {
	return &HTTPGateway{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type chargeRequest struct {
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

type chargeResponse struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount_cents"`
	Status      string `json:"status"`
}

func (g *HTTPGateway) CreateCharge(ctx context.Context, orderID uuid.UUID, amountCents int64) (Charge, error) {
	body, err := json.Marshal(chargeRequest{OrderID: orderID.String(), AmountCents: amountCents, Currency: "USD"})
	if err != nil {
		return Charge{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.BaseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return Charge{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.APIKey)

	resp, err := g.Client.Do(req)
	if err != nil {
		return Charge{}, fmt.Errorf("%w: %v", commerce.ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Charge{}, fmt.Errorf("%w: create charge: status %d", commerce.ErrGateway, resp.StatusCode)
	}
	var out chargeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Charge{}, fmt.Errorf("%w: decode charge: %v", commerce.ErrGateway, err)
	}
	if out.ID == "" {
		return Charge{}, fmt.Errorf("%w: charge response missing id", commerce.ErrGateway)
	}
	return Charge{Ref: out.ID, AmountCents: out.AmountCents}, nil
}

// MapProviderStatus translates the provider's status vocabulary into ours.
// The second return is false for codes we have never seen.
func MapProviderStatus(code string) (commerce.PaymentStatus, bool) {
	switch code {
	case "approved", "succeeded", "captured", "paid":
		return commerce.PaymentApproved, true
	case "declined", "failed", "card_declined", "insufficient_funds":
		return commerce.PaymentDeclined, true
	case "error", "expired", "voided":
		return commerce.PaymentError, true
	case "pending", "in_process", "authorized":
		return commerce.PaymentPending, true
	}
	return "", false
}
