// mock-provider is a stand-in payment gateway for local compose setups:
// it issues provider order refs and, on capture, fires a signed callback
// at the payments API the way the real gateway would.
package main

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/inkwell-press/payments-service/internal/logging"
	"github.com/inkwell-press/payments-service/internal/provider"
)

type server struct {
	secret      string
	callbackURL string
	client      *http.Client

	mu     sync.Mutex
	orders map[string]orderRecord
}

type orderRecord struct {
	Amount   int64
	Currency string
	Receipt  string
}

func main() {
	logging.Init("mock-provider", "info", os.Getenv("APP_ENV"))

	secret := os.Getenv("PROVIDER_SECRET")
	if secret == "" {
		slog.Error("PROVIDER_SECRET is required")
		os.Exit(1)
	}
	callbackURL := os.Getenv("CALLBACK_URL")
	if callbackURL == "" {
		callbackURL = "http://app:8080/api/v1/payments/verify"
	}

	s := &server{
		secret:      secret,
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 5 * time.Second},
		orders:      make(map[string]orderRecord),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
			slog.Error("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("POST /v1/orders", s.createOrder)
	mux.HandleFunc("POST /v1/orders/{ref}/capture", s.capture)

	slog.Info("mock provider started", "addr", ":8081")
	if err := http.ListenAndServe(":8081", mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (s *server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 || req.Currency == "" {
		http.Error(w, "invalid order", http.StatusBadRequest)
		return
	}

	ref := "order_" + randomID()
	s.mu.Lock()
	s.orders[ref] = orderRecord{Amount: req.Amount, Currency: req.Currency, Receipt: req.Receipt}
	s.mu.Unlock()

	slog.Info("provider order created", "ref", ref, "amount", req.Amount, "receipt", req.Receipt)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"id": ref}); err != nil {
		slog.Error("failed to write order response", "error", err)
	}
}

// capture simulates the buyer completing checkout: the provider fires the
// signed confirmation callback at the payments API.
func (s *server) capture(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")

	s.mu.Lock()
	_, known := s.orders[ref]
	s.mu.Unlock()
	if !known {
		http.Error(w, "unknown order", http.StatusNotFound)
		return
	}

	paymentID := "pay_" + randomID()
	payload, _ := json.Marshal(map[string]string{
		"provider_payment_id": paymentID,
		"provider_order_ref":  ref,
		"signature":           provider.SignCallback(ref, paymentID, s.secret),
	})

	resp, err := s.client.Post(s.callbackURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		slog.Error("callback delivery failed", "ref", ref, "error", err)
		http.Error(w, "callback failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	slog.Info("callback delivered", "ref", ref, "payment_id", paymentID, "status", resp.StatusCode)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"payment_id": paymentID,
		"callback":   resp.StatusCode,
	}); err != nil {
		slog.Error("failed to write capture response", "error", err)
	}
}

func randomID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)
}
