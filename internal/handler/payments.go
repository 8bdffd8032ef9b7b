package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/auth"
	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/logging"
	"github.com/inkwell-press/payments-service/internal/service/settlement"
)

type orderService interface {
	CreateOrder(ctx context.Context, buyerID, articleID uuid.UUID) (*domain.Order, error)
	History(ctx context.Context, buyerID uuid.UUID, page int) ([]domain.PurchaseRecord, int, error)
}

type verifier interface {
	Verify(ctx context.Context, cb settlement.Callback) (*settlement.VerifiedPayment, error)
}

type engine interface {
	Settle(ctx context.Context, vp *settlement.VerifiedPayment) (*settlement.Result, error)
}

type walletService interface {
	Earnings(ctx context.Context, creatorID uuid.UUID, page int) (*domain.EarningsSummary, []domain.EarningsEntry, error)
}

type PaymentsHandler struct {
	orders     orderService
	verifier   verifier
	engine     engine
	wallet     walletService
	keyID      string
	feePercent float64
}

func NewPaymentsHandler(orders orderService, v verifier, e engine, w walletService, keyID string, feePercent float64) *PaymentsHandler {
	return &PaymentsHandler{
		orders:     orders,
		verifier:   v,
		engine:     e,
		wallet:     w,
		keyID:      keyID,
		feePercent: feePercent,
	}
}

type createOrderRequest struct {
	ArticleID string `json:"article_id"`
}

func (r createOrderRequest) Validate() []FieldError {
	var errs []FieldError
	if r.ArticleID == "" {
		errs = append(errs, FieldError{Field: "article_id", Message: "required"})
	} else if _, err := uuid.Parse(r.ArticleID); err != nil {
		errs = append(errs, FieldError{Field: "article_id", Message: "must be a valid UUID"})
	}
	return errs
}

type orderDTO struct {
	ID               uuid.UUID `json:"id"`
	Amount           int64     `json:"amount"`
	Currency         string    `json:"currency"`
	ProviderOrderRef string    `json:"provider_order_ref"`
	ProviderKeyID    string    `json:"provider_key_id"`
	ExpiresAt        time.Time `json:"expires_at"`
}

func (h *PaymentsHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	articleID, _ := uuid.Parse(req.ArticleID)
	order, err := h.orders.CreateOrder(r.Context(), buyerID, articleID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, orderDTO{
		ID:               order.ID,
		Amount:           order.Amount,
		Currency:         string(order.Currency),
		ProviderOrderRef: order.ProviderOrderRef,
		ProviderKeyID:    h.keyID,
		ExpiresAt:        order.ExpiresAt,
	})
}

type verifyRequest struct {
	ProviderPaymentID string `json:"provider_payment_id"`
	ProviderOrderRef  string `json:"provider_order_ref"`
	Signature         string `json:"signature"`
}

func (r verifyRequest) Validate() []FieldError {
	var errs []FieldError
	if r.ProviderPaymentID == "" {
		errs = append(errs, FieldError{Field: "provider_payment_id", Message: "required"})
	}
	if r.ProviderOrderRef == "" {
		errs = append(errs, FieldError{Field: "provider_order_ref", Message: "required"})
	}
	if r.Signature == "" {
		errs = append(errs, FieldError{Field: "signature", Message: "required"})
	}
	return errs
}

// VerifyCallback is the provider's callback entry point. It must be
// idempotent under retry: a duplicate callback for a settled order
// answers success so the provider stops redelivering.
func (h *PaymentsHandler) VerifyCallback(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	vp, err := h.verifier.Verify(r.Context(), settlement.Callback{
		ProviderPaymentID: req.ProviderPaymentID,
		ProviderOrderRef:  req.ProviderOrderRef,
		Signature:         req.Signature,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadySettled) {
			RespondSuccess(w, http.StatusOK, map[string]bool{"success": true})
			return
		}
		RespondDomainError(w, err)
		return
	}

	result, err := h.engine.Settle(r.Context(), vp)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	if result.AlreadySettled {
		log.Info("callback settled by concurrent worker", "provider_order_ref", req.ProviderOrderRef)
	}
	RespondSuccess(w, http.StatusOK, map[string]bool{"success": true})
}

type purchaseDTO struct {
	OrderID      uuid.UUID `json:"order_id"`
	ArticleID    uuid.UUID `json:"article_id"`
	ArticleTitle string    `json:"article_title"`
	ArticleSlug  string    `json:"article_slug"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	PurchasedAt  time.Time `json:"purchased_at"`
}

func (h *PaymentsHandler) History(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	records, total, err := h.orders.History(r.Context(), buyerID, pageParam(r))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	purchases := make([]purchaseDTO, 0, len(records))
	for _, rec := range records {
		purchases = append(purchases, purchaseDTO{
			OrderID:      rec.OrderID,
			ArticleID:    rec.ArticleID,
			ArticleTitle: rec.ArticleTitle,
			ArticleSlug:  rec.ArticleSlug,
			Amount:       rec.Amount,
			Currency:     string(rec.Currency),
			PurchasedAt:  rec.PaidAt,
		})
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"purchases": purchases,
		"total":     total,
	})
}

type earningsEntryDTO struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	GrossAmount int64     `json:"gross_amount"`
	PlatformFee int64     `json:"platform_fee"`
	NetAmount   int64     `json:"net_amount"`
	CreatedAt   time.Time `json:"created_at"`
}

func (h *PaymentsHandler) Earnings(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		RespondAppError(w, ErrMissingToken, nil)
		return
	}

	summary, entries, err := h.wallet.Earnings(r.Context(), creatorID, pageParam(r))
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	dtos := make([]earningsEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, earningsEntryDTO{
			ID:          e.ID,
			OrderID:     e.OrderID,
			GrossAmount: e.GrossAmount,
			PlatformFee: e.PlatformFee,
			NetAmount:   e.NetAmount,
			CreatedAt:   e.CreatedAt,
		})
	}

	RespondSuccess(w, http.StatusOK, map[string]any{
		"total_earnings":       summary.TotalEarnings,
		"platform_fees":        summary.PlatformFees,
		"total_sales":          summary.TotalSales,
		"platform_fee_percent": h.feePercent,
		"earnings":             dtos,
	})
}

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
