package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/repository"
	"github.com/inkwell-press/payments-service/internal/testutil"
)

// seedSale writes one settled sale: a paid order, its ledger entry, and
// the wallet credit, the way the settlement engine would.
func seedSale(t *testing.T, db *sql.DB, buyerID uuid.UUID, article *domain.Article, ref string, gross, fee int64) {
	t.Helper()
	ctx := context.Background()

	order := testutil.SeedPendingOrder(t, db, buyerID, article, ref, time.Now().UTC().Add(15*time.Minute))
	_, err := db.Exec(`UPDATE orders SET status = 'paid' WHERE id = $1`, order.ID)
	require.NoError(t, err)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	earnings := repository.NewEarningsRepository(db)
	require.NoError(t, earnings.CreateTx(ctx, tx, &domain.EarningsEntry{
		ID:          uuid.New(),
		OrderID:     order.ID,
		CreatorID:   article.AuthorID,
		GrossAmount: gross,
		PlatformFee: fee,
		NetAmount:   gross - fee,
		CreatedAt:   time.Now().UTC(),
	}))
	wallets := repository.NewWalletRepository(db)
	require.NoError(t, wallets.CreditTx(ctx, tx, article.AuthorID, gross-fee))
	require.NoError(t, tx.Commit())
}

func TestService_Earnings(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	svc := NewService(repository.NewWalletRepository(db), repository.NewEarningsRepository(db))

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")

	for i := 0; i < 3; i++ {
		article := testutil.SeedTestArticle(t, db, creator.ID, fmt.Sprintf("piece-%d", i), 5000)
		seedSale(t, db, buyer.ID, article, fmt.Sprintf("order_ref_w%d", i), 5000, 500)
	}

	summary, entries, err := svc.Earnings(ctx, creator.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(13500), summary.TotalEarnings)
	assert.Equal(t, int64(1500), summary.PlatformFees)
	assert.Equal(t, int64(3), summary.TotalSales)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, creator.ID, e.CreatorID)
		assert.Equal(t, e.GrossAmount, e.PlatformFee+e.NetAmount)
	}

	balance, err := svc.GetBalance(ctx, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(13500), balance)

	ok, err := svc.Reconcile(ctx, creator.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestService_EarningsEmptyLedger(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	svc := NewService(repository.NewWalletRepository(db), repository.NewEarningsRepository(db))
	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")

	summary, entries, err := svc.Earnings(ctx, creator.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.TotalEarnings)
	assert.Equal(t, int64(0), summary.TotalSales)
	assert.Empty(t, entries)

	balance, err := svc.GetBalance(ctx, creator.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestService_ReconcileDetectsDrift(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	svc := NewService(repository.NewWalletRepository(db), repository.NewEarningsRepository(db))

	creator := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	buyer := testutil.SeedTestUser(t, db, "buyer@test.com", "Buyer")
	article := testutil.SeedTestArticle(t, db, creator.ID, "piece", 5000)
	seedSale(t, db, buyer.ID, article, "order_ref_drift", 5000, 500)

	_, err := db.Exec(`UPDATE wallets SET balance = balance + 1 WHERE user_id = $1`, creator.ID)
	require.NoError(t, err)

	ok, err := svc.Reconcile(ctx, creator.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}
