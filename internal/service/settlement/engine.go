package settlement

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/logging"
	"github.com/inkwell-press/payments-service/internal/metrics"
	"github.com/inkwell-press/payments-service/internal/repository"
)

type engineOrderRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	MarkPaidTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (int64, error)
}

type engineGrantRepo interface {
	CreateTx(ctx context.Context, tx *sql.Tx, grant *domain.AccessGrant) error
}

type engineEarningsRepo interface {
	CreateTx(ctx context.Context, tx *sql.Tx, entry *domain.EarningsEntry) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.EarningsEntry, error)
}

type engineWalletRepo interface {
	CreditTx(ctx context.Context, tx *sql.Tx, userID uuid.UUID, amount int64) error
}

type engineArticleRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error)
}

type engineUserRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type dispatcher interface {
	Enqueue(ctx context.Context, job *domain.NotificationJob) error
}

// Result reports one settlement. AlreadySettled marks the idempotent
// path: another settlement of the same order won, with the same
// financial outcome.
type Result struct {
	Order          *domain.Order
	Entry          *domain.EarningsEntry
	AlreadySettled bool
}

// Engine performs the correctness-critical state transition: order to
// paid, access granted, ledger appended, wallet credited, all in one
// transaction, exactly once per order. Correctness under concurrent
// duplicate callbacks comes from the conditional status transition plus
// the uniqueness constraint on earnings_entries.order_id, not from any
// coarse lock; settlements of different orders proceed fully in parallel.
type Engine struct {
	db         *sql.DB
	orders     engineOrderRepo
	grants     engineGrantRepo
	earnings   engineEarningsRepo
	wallets    engineWalletRepo
	articles   engineArticleRepo
	users      engineUserRepo
	dispatcher dispatcher
	feeRate    decimal.Decimal
	metrics    *metrics.PaymentMetrics
}

func NewEngine(
	db *sql.DB,
	orders engineOrderRepo,
	grants engineGrantRepo,
	earnings engineEarningsRepo,
	wallets engineWalletRepo,
	articles engineArticleRepo,
	users engineUserRepo,
	d dispatcher,
	feeRate decimal.Decimal,
	m *metrics.PaymentMetrics,
) *Engine {
	return &Engine{
		db:         db,
		orders:     orders,
		grants:     grants,
		earnings:   earnings,
		wallets:    wallets,
		articles:   articles,
		users:      users,
		dispatcher: d,
		feeRate:    feeRate,
		metrics:    m,
	}
}

func (e *Engine) Settle(ctx context.Context, vp *VerifiedPayment) (*Result, error) {
	log := logging.FromContext(ctx)
	start := time.Now()
	order := vp.Order

	article, err := e.articles.GetByID(ctx, order.ArticleID)
	if err != nil {
		return nil, fmt.Errorf("Settle: %w", err)
	}
	split := domain.SplitFee(order.Amount, e.feeRate)

	result, err := e.settleTx(ctx, order, article.AuthorID, split)
	if err != nil {
		return nil, fmt.Errorf("Settle: %w", err)
	}

	if result.AlreadySettled {
		return result, nil
	}

	e.metrics.SettlementsTotal.Inc()
	e.metrics.SettledAmountTotal.Add(float64(split.Gross))
	e.metrics.PlatformFeeTotal.Add(float64(split.Fee))
	e.metrics.SettlementDuration.Observe(time.Since(start).Seconds())

	log.Info("order settled",
		"order_id", order.ID,
		"creator_id", article.AuthorID,
		"gross_amount", split.Gross,
		"platform_fee", split.Fee,
		"net_amount", split.Net,
		"provider_payment_id", vp.ProviderPaymentID,
	)

	// Outside the atomic scope on purpose: losing the notification must
	// never unwind the financial write.
	e.notifyCreator(ctx, article, order, split)

	return result, nil
}

func (e *Engine) settleTx(ctx context.Context, order *domain.Order, creatorID uuid.UUID, split domain.FeeSplit) (*Result, error) {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, retryable(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	rows, err := e.orders.MarkPaidTx(ctx, tx, order.ID)
	if err != nil {
		return nil, retryable(fmt.Errorf("mark paid: %w", err))
	}
	if rows == 0 {
		// The order is no longer pending: a concurrent settlement won, or
		// the reaper expired it between verification and here.
		return e.resolveNonPending(ctx, order.ID, split)
	}

	now := time.Now().UTC()
	grant := &domain.AccessGrant{
		ID:        uuid.New(),
		BuyerID:   order.BuyerID,
		ArticleID: order.ArticleID,
		OrderID:   order.ID,
		GrantedAt: now,
	}
	if err := e.grants.CreateTx(ctx, tx, grant); err != nil {
		if repository.IsUniqueViolation(err, "") {
			return e.confirmSettled(ctx, order.ID, split)
		}
		return nil, retryable(fmt.Errorf("create grant: %w", err))
	}

	entry := &domain.EarningsEntry{
		ID:          uuid.New(),
		OrderID:     order.ID,
		CreatorID:   creatorID,
		GrossAmount: split.Gross,
		PlatformFee: split.Fee,
		NetAmount:   split.Net,
		CreatedAt:   now,
	}
	if err := e.earnings.CreateTx(ctx, tx, entry); err != nil {
		if repository.IsUniqueViolation(err, "") {
			// Another settlement already appended this order's entry;
			// same financial outcome, so the loser reports success too.
			return e.confirmSettled(ctx, order.ID, split)
		}
		return nil, retryable(fmt.Errorf("append earnings: %w", err))
	}

	if err := e.wallets.CreditTx(ctx, tx, creatorID, split.Net); err != nil {
		return nil, retryable(fmt.Errorf("credit wallet: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return nil, retryable(fmt.Errorf("commit: %w", err))
	}

	settled := *order
	settled.Status = domain.OrderStatusPaid
	settled.UpdatedAt = now
	return &Result{Order: &settled, Entry: entry}, nil
}

// resolveNonPending classifies an order that lost the conditional
// transition race.
func (e *Engine) resolveNonPending(ctx context.Context, orderID uuid.UUID, split domain.FeeSplit) (*Result, error) {
	current, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, retryable(err)
	}
	switch current.Status {
	case domain.OrderStatusPaid:
		return e.confirmSettled(ctx, orderID, split)
	case domain.OrderStatusExpired:
		return nil, domain.ErrOrderExpired
	default:
		return nil, domain.ErrOrderNotPending
	}
}

// confirmSettled validates that the winning settlement wrote the same
// amounts this one computed. A mismatch means two different nets for one
// order, which is ledger corruption and must halt for investigation.
func (e *Engine) confirmSettled(ctx context.Context, orderID uuid.UUID, split domain.FeeSplit) (*Result, error) {
	log := logging.FromContext(ctx)

	entry, err := e.earnings.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The winner's transaction has not committed yet; the
			// provider's retry will find the settled state.
			return nil, retryable(fmt.Errorf("settlement in flight for order %s", orderID))
		}
		return nil, retryable(err)
	}
	if entry.GrossAmount != split.Gross || entry.PlatformFee != split.Fee || entry.NetAmount != split.Net {
		log.Error("earnings entry conflicts with recomputed split",
			"order_id", orderID,
			"ledger_gross", entry.GrossAmount, "computed_gross", split.Gross,
			"ledger_fee", entry.PlatformFee, "computed_fee", split.Fee,
		)
		return nil, domain.ErrLedgerCorrupt
	}

	e.metrics.DuplicateCallbacksTotal.Inc()
	return &Result{Entry: entry, AlreadySettled: true}, nil
}

func (e *Engine) notifyCreator(ctx context.Context, article *domain.Article, order *domain.Order, split domain.FeeSplit) {
	log := logging.FromContext(ctx)

	buyerName := "A reader"
	if buyer, err := e.users.GetByID(ctx, order.BuyerID); err == nil {
		buyerName = buyer.DisplayName()
	}

	payload, err := json.Marshal(map[string]any{
		"order_id":   order.ID,
		"article_id": article.ID,
		"slug":       article.Slug,
		"amount":     split.Gross,
		"net_amount": split.Net,
	})
	if err != nil {
		log.Error("failed to marshal notification payload", "order_id", order.ID, "error", err)
		return
	}

	job := &domain.NotificationJob{
		ID:      uuid.New(),
		UserID:  article.AuthorID,
		Type:    domain.NotificationTypePurchase,
		Title:   "Article purchased",
		Message: fmt.Sprintf("%s purchased %q", buyerName, article.Title),
		Payload: payload,
		Status:  domain.NotificationJobStatusPending,
	}
	if err := e.dispatcher.Enqueue(ctx, job); err != nil {
		log.Error("failed to enqueue purchase notification",
			"order_id", order.ID,
			"creator_id", article.AuthorID,
			"error", err,
		)
	}
}

func retryable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrSettlementRetry, err)
}
