package order

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/metrics"
	"github.com/inkwell-press/payments-service/internal/repository"
	"github.com/inkwell-press/payments-service/internal/testutil"
)

// stubGateway hands out sequential provider refs without talking to a
// real provider.
type stubGateway struct {
	calls atomic.Int64
	err   error
}

func (g *stubGateway) CreateOrder(_ context.Context, receipt uuid.UUID, _ int64, _ string) (string, error) {
	n := g.calls.Add(1)
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf("order_stub_%s_%d", receipt, n), nil
}

func TestService_CreateOrder(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	orders := repository.NewOrderRepository(db)
	grants := repository.NewAccessGrantRepository(db)
	articles := repository.NewArticleRepository(db)
	gw := &stubGateway{}
	svc := NewService(orders, grants, articles, gw, 15*time.Minute, metrics.NewPaymentMetrics(prometheus.NewRegistry()))

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	article := testutil.SeedTestArticle(t, db, creator.ID, "premium-piece", 5000)

	order, err := svc.CreateOrder(ctx, buyer.ID, article.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, int64(5000), order.Amount)
	assert.NotEmpty(t, order.ProviderOrderRef)
	assert.True(t, order.ExpiresAt.After(order.CreatedAt))
	assert.Equal(t, int64(1), gw.calls.Load())

	t.Run("second order while first is pending", func(t *testing.T) {
		_, err := svc.CreateOrder(ctx, buyer.ID, article.ID)
		require.ErrorIs(t, err, domain.ErrOrderInProgress)
		// rejected before the provider is contacted
		assert.Equal(t, int64(1), gw.calls.Load())
	})
}

func TestService_CreateOrder_FreeArticle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	svc := NewService(
		repository.NewOrderRepository(db),
		repository.NewAccessGrantRepository(db),
		repository.NewArticleRepository(db),
		&stubGateway{},
		15*time.Minute,
		metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	)

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	article := testutil.SeedTestArticle(t, db, creator.ID, "free-piece", 5000)

	_, err := db.Exec(`UPDATE articles SET premium = FALSE, price_amount = 0 WHERE id = $1`, article.ID)
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, buyer.ID, article.ID)
	require.ErrorIs(t, err, domain.ErrArticleNotPremium)
}

func TestService_CreateOrder_AlreadyPurchased(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	svc := NewService(
		repository.NewOrderRepository(db),
		repository.NewAccessGrantRepository(db),
		repository.NewArticleRepository(db),
		&stubGateway{},
		15*time.Minute,
		metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	)

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	article := testutil.SeedTestArticle(t, db, creator.ID, "premium-piece", 5000)
	order := testutil.SeedPendingOrder(t, db, buyer.ID, article, "order_ref_ap", time.Now().UTC().Add(15*time.Minute))

	_, err := db.Exec(`UPDATE orders SET status = 'paid' WHERE id = $1`, order.ID)
	require.NoError(t, err)
	_, err = db.Exec(
		`INSERT INTO access_grants (id, buyer_id, article_id, order_id) VALUES ($1, $2, $3, $4)`,
		uuid.New(), buyer.ID, article.ID, order.ID,
	)
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, buyer.ID, article.ID)
	require.ErrorIs(t, err, domain.ErrAlreadyPurchased)
}

func TestService_CreateOrder_StalePendingIsReplaced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	orders := repository.NewOrderRepository(db)
	svc := NewService(
		orders,
		repository.NewAccessGrantRepository(db),
		repository.NewArticleRepository(db),
		&stubGateway{},
		15*time.Minute,
		metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	)

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	article := testutil.SeedTestArticle(t, db, creator.ID, "premium-piece", 5000)
	stale := testutil.SeedPendingOrder(t, db, buyer.ID, article, "order_ref_stale", time.Now().UTC().Add(-time.Minute))

	fresh, err := svc.CreateOrder(ctx, buyer.ID, article.ID)
	require.NoError(t, err)
	assert.NotEqual(t, stale.ID, fresh.ID)
	assert.Equal(t, domain.OrderStatusExpired, testutil.GetOrderStatus(t, db, stale.ID))
	assert.Equal(t, domain.OrderStatusPending, testutil.GetOrderStatus(t, db, fresh.ID))
}

func TestService_CreateOrder_ProviderFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	gw := &stubGateway{err: errors.New("gateway unavailable")}
	svc := NewService(
		repository.NewOrderRepository(db),
		repository.NewAccessGrantRepository(db),
		repository.NewArticleRepository(db),
		gw,
		15*time.Minute,
		metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	)

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	article := testutil.SeedTestArticle(t, db, creator.ID, "premium-piece", 5000)

	_, err := svc.CreateOrder(ctx, buyer.ID, article.ID)
	require.Error(t, err)

	// no half-created order left behind
	_, err = repository.NewOrderRepository(db).GetPendingForPurchase(ctx, buyer.ID, article.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_History(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	orders := repository.NewOrderRepository(db)
	svc := NewService(
		orders,
		repository.NewAccessGrantRepository(db),
		repository.NewArticleRepository(db),
		&stubGateway{},
		15*time.Minute,
		metrics.NewPaymentMetrics(prometheus.NewRegistry()),
	)

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")

	for i := 0; i < 3; i++ {
		article := testutil.SeedTestArticle(t, db, creator.ID, fmt.Sprintf("piece-%d", i), int64(1000*(i+1)))
		order := testutil.SeedPendingOrder(t, db, buyer.ID, article, fmt.Sprintf("order_ref_h%d", i), time.Now().UTC().Add(15*time.Minute))
		_, err := db.Exec(`UPDATE orders SET status = 'paid', updated_at = NOW() + ($2 || ' seconds')::interval WHERE id = $1`, order.ID, i)
		require.NoError(t, err)
	}
	// a pending order never shows up in history
	extra := testutil.SeedTestArticle(t, db, creator.ID, "piece-open", 4000)
	testutil.SeedPendingOrder(t, db, buyer.ID, extra, "order_ref_open", time.Now().UTC().Add(15*time.Minute))

	records, total, err := svc.History(ctx, buyer.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, records, 3)
	// newest first
	assert.Equal(t, "piece-2", records[0].ArticleSlug)
	assert.Equal(t, int64(3000), records[0].Amount)
}

func TestReaper_Sweep(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	orders := repository.NewOrderRepository(db)

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	stale := make([]*domain.Order, 0, 2)
	for i := 0; i < 2; i++ {
		buyer := testutil.SeedTestUser(t, db, fmt.Sprintf("buyer%d@test.com", i), "Buyer")
		article := testutil.SeedTestArticle(t, db, creator.ID, fmt.Sprintf("piece-%d", i), 2000)
		stale = append(stale, testutil.SeedPendingOrder(t, db, buyer.ID, article, fmt.Sprintf("order_ref_r%d", i), time.Now().UTC().Add(-time.Minute)))
	}
	liveBuyer := testutil.SeedTestUser(t, db, "live@test.com", "Buyer")
	liveArticle := testutil.SeedTestArticle(t, db, creator.ID, "piece-live", 2000)
	live := testutil.SeedPendingOrder(t, db, liveBuyer.ID, liveArticle, "order_ref_live", time.Now().UTC().Add(15*time.Minute))

	n, err := orders.ExpireStale(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, o := range stale {
		assert.Equal(t, domain.OrderStatusExpired, testutil.GetOrderStatus(t, db, o.ID))
	}
	assert.Equal(t, domain.OrderStatusPending, testutil.GetOrderStatus(t, db, live.ID))
}
