package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/logging"
	"github.com/inkwell-press/payments-service/internal/metrics"
	"github.com/inkwell-press/payments-service/internal/provider"
)

// Callback is the provider's signed confirmation of a payment.
type Callback struct {
	ProviderPaymentID string
	ProviderOrderRef  string
	Signature         string
}

// VerifiedPayment is a callback that passed the signature check and maps
// to a known pending order.
type VerifiedPayment struct {
	Order             *domain.Order
	ProviderPaymentID string
}

type verifierOrderRepo interface {
	GetByProviderRef(ctx context.Context, ref string) (*domain.Order, error)
	Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// Verifier authenticates provider callbacks. It is the first idempotency
// gate: duplicate callbacks for an already-paid order surface as
// ErrAlreadySettled, which callers treat as success.
type Verifier struct {
	orders  verifierOrderRepo
	secret  string
	metrics *metrics.PaymentMetrics
}

func NewVerifier(orders verifierOrderRepo, secret string, m *metrics.PaymentMetrics) *Verifier {
	return &Verifier{orders: orders, secret: secret, metrics: m}
}

func (v *Verifier) Verify(ctx context.Context, cb Callback) (*VerifiedPayment, error) {
	log := logging.FromContext(ctx)

	if !provider.VerifyCallback(cb.ProviderOrderRef, cb.ProviderPaymentID, cb.Signature, v.secret) {
		v.metrics.InvalidSignaturesTotal.Inc()
		log.Warn("callback signature verification failed",
			"provider_order_ref", cb.ProviderOrderRef,
			"provider_payment_id", cb.ProviderPaymentID,
		)
		return nil, fmt.Errorf("Verify: %w", domain.ErrInvalidSignature)
	}

	order, err := v.orders.GetByProviderRef(ctx, cb.ProviderOrderRef)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("Verify: %w", domain.ErrUnknownOrder)
		}
		return nil, fmt.Errorf("Verify: %w", err)
	}

	switch order.Status {
	case domain.OrderStatusPending:
		// fallthrough to the expiry check below
	case domain.OrderStatusPaid:
		v.metrics.DuplicateCallbacksTotal.Inc()
		log.Info("duplicate callback for settled order", "order_id", order.ID)
		return nil, fmt.Errorf("Verify: %w", domain.ErrAlreadySettled)
	case domain.OrderStatusExpired:
		return nil, fmt.Errorf("Verify: %w", domain.ErrOrderExpired)
	default:
		return nil, fmt.Errorf("Verify: %w", domain.ErrOrderNotPending)
	}

	now := time.Now().UTC()
	if order.Expired(now) {
		// A late callback never settles a stale order, even when the
		// reaper has not swept it yet.
		if _, err := v.orders.Expire(ctx, order.ID, now); err != nil {
			return nil, fmt.Errorf("Verify: %w", err)
		}
		return nil, fmt.Errorf("Verify: %w", domain.ErrOrderExpired)
	}

	return &VerifiedPayment{Order: order, ProviderPaymentID: cb.ProviderPaymentID}, nil
}
