package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/logging"
)

// Client talks to the payment gateway's order API. The gateway order ref
// it returns is opaque to us; it only has to round-trip through the
// checkout flow and the signed callback.
type Client struct {
	baseURL    string
	keyID      string
	secret     string
	httpClient *http.Client
}

func NewClient(baseURL, keyID, secret string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) KeyID() string { return c.keyID }

type createOrderPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers an order with the gateway and returns the
// provider's order reference. Bound by the client timeout; on timeout the
// local order is never created, so no partial state is left behind.
func (c *Client) CreateOrder(ctx context.Context, receipt uuid.UUID, amount int64, currency string) (string, error) {
	log := logging.FromContext(ctx)

	payload := createOrderPayload{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt.String(),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("CreateOrder: marshal: %w", err)
	}

	url := c.baseURL + "/v1/orders"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("CreateOrder: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.secret)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("CreateOrder: send: %w", err)
	}
	defer resp.Body.Close()

	log.Info("provider order response received",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("CreateOrder: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("CreateOrder: decode: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("CreateOrder: provider returned empty order id")
	}
	return out.ID, nil
}
