package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/metrics"
	"github.com/inkwell-press/payments-service/internal/provider"
	"github.com/inkwell-press/payments-service/internal/repository"
	"github.com/inkwell-press/payments-service/internal/testutil"
)

const verifierSecret = "test-callback-secret"

func TestVerifier(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	orders := repository.NewOrderRepository(db)
	v := NewVerifier(orders, verifierSecret, metrics.NewPaymentMetrics(prometheus.NewRegistry()))

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	article := testutil.SeedTestArticle(t, db, creator.ID, "premium-piece", 5000)
	order := testutil.SeedPendingOrder(t, db, buyer.ID, article, "order_ref_v1", time.Now().UTC().Add(15*time.Minute))

	t.Run("valid callback", func(t *testing.T) {
		vp, err := v.Verify(ctx, Callback{
			ProviderPaymentID: "pay_1",
			ProviderOrderRef:  "order_ref_v1",
			Signature:         provider.SignCallback("order_ref_v1", "pay_1", verifierSecret),
		})
		require.NoError(t, err)
		assert.Equal(t, order.ID, vp.Order.ID)
		assert.Equal(t, "pay_1", vp.ProviderPaymentID)
	})

	t.Run("tampered payload leaves order pending", func(t *testing.T) {
		sig := provider.SignCallback("order_ref_v1", "pay_1", verifierSecret)
		_, err := v.Verify(ctx, Callback{
			ProviderPaymentID: "pay_2", // not what was signed
			ProviderOrderRef:  "order_ref_v1",
			Signature:         sig,
		})
		require.ErrorIs(t, err, domain.ErrInvalidSignature)
		assert.Equal(t, domain.OrderStatusPending, testutil.GetOrderStatus(t, db, order.ID))
	})

	t.Run("unknown order", func(t *testing.T) {
		_, err := v.Verify(ctx, Callback{
			ProviderPaymentID: "pay_1",
			ProviderOrderRef:  "order_ref_missing",
			Signature:         provider.SignCallback("order_ref_missing", "pay_1", verifierSecret),
		})
		require.ErrorIs(t, err, domain.ErrUnknownOrder)
	})
}

func TestVerifier_PaidOrderIsIdempotentSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	orders := repository.NewOrderRepository(db)
	v := NewVerifier(orders, verifierSecret, metrics.NewPaymentMetrics(prometheus.NewRegistry()))

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	article := testutil.SeedTestArticle(t, db, creator.ID, "premium-piece", 5000)
	order := testutil.SeedPendingOrder(t, db, buyer.ID, article, "order_ref_p1", time.Now().UTC().Add(15*time.Minute))

	_, err := db.Exec(`UPDATE orders SET status = 'paid' WHERE id = $1`, order.ID)
	require.NoError(t, err)

	_, err = v.Verify(ctx, Callback{
		ProviderPaymentID: "pay_1",
		ProviderOrderRef:  "order_ref_p1",
		Signature:         provider.SignCallback("order_ref_p1", "pay_1", verifierSecret),
	})
	require.ErrorIs(t, err, domain.ErrAlreadySettled)
}

func TestVerifier_LateCallbackExpiresOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	orders := repository.NewOrderRepository(db)
	v := NewVerifier(orders, verifierSecret, metrics.NewPaymentMetrics(prometheus.NewRegistry()))

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	article := testutil.SeedTestArticle(t, db, creator.ID, "premium-piece", 5000)
	// deadline already past, reaper has not swept yet
	order := testutil.SeedPendingOrder(t, db, buyer.ID, article, "order_ref_e1", time.Now().UTC().Add(-time.Minute))

	_, err := v.Verify(ctx, Callback{
		ProviderPaymentID: "pay_late",
		ProviderOrderRef:  "order_ref_e1",
		Signature:         provider.SignCallback("order_ref_e1", "pay_late", verifierSecret),
	})
	require.ErrorIs(t, err, domain.ErrOrderExpired)
	assert.Equal(t, domain.OrderStatusExpired, testutil.GetOrderStatus(t, db, order.ID))
}
