package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/logging"
	"github.com/inkwell-press/payments-service/internal/metrics"
	"github.com/inkwell-press/payments-service/internal/repository"
)

type orderRepo interface {
	Create(ctx context.Context, order *domain.Order) error
	GetPendingForPurchase(ctx context.Context, buyerID, articleID uuid.UUID) (*domain.Order, error)
	Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	ListPaidByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]domain.PurchaseRecord, int, error)
}

type grantRepo interface {
	Exists(ctx context.Context, buyerID, articleID uuid.UUID) (bool, error)
}

type articleRepo interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error)
}

type gateway interface {
	CreateOrder(ctx context.Context, receipt uuid.UUID, amount int64, currency string) (string, error)
}

const historyPageSize = 20

type Service struct {
	orders   orderRepo
	grants   grantRepo
	articles articleRepo
	gateway  gateway
	ttl      time.Duration
	metrics  *metrics.PaymentMetrics
}

func NewService(orders orderRepo, grants grantRepo, articles articleRepo, gw gateway, ttl time.Duration, m *metrics.PaymentMetrics) *Service {
	return &Service{
		orders:   orders,
		grants:   grants,
		articles: articles,
		gateway:  gw,
		ttl:      ttl,
		metrics:  m,
	}
}

// CreateOrder opens a pending purchase order for (buyer, article) and
// registers it with the payment gateway. A buyer who already holds access
// or already has a live pending order is rejected before any provider
// interaction happens.
func (s *Service) CreateOrder(ctx context.Context, buyerID, articleID uuid.UUID) (*domain.Order, error) {
	log := logging.FromContext(ctx)

	article, err := s.articles.GetByID(ctx, articleID)
	if err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}
	if !article.Premium || article.PriceAmount <= 0 {
		return nil, fmt.Errorf("CreateOrder: %w", domain.ErrArticleNotPremium)
	}

	purchased, err := s.grants.Exists(ctx, buyerID, articleID)
	if err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}
	if purchased {
		return nil, fmt.Errorf("CreateOrder: %w", domain.ErrAlreadyPurchased)
	}

	now := time.Now().UTC()
	if err := s.checkPending(ctx, buyerID, articleID, now); err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}

	id := uuid.New()
	providerRef, err := s.gateway.CreateOrder(ctx, id, article.PriceAmount, string(article.Currency))
	if err != nil {
		return nil, fmt.Errorf("CreateOrder: provider: %w", err)
	}

	order := &domain.Order{
		ID:               id,
		BuyerID:          buyerID,
		ArticleID:        articleID,
		Amount:           article.PriceAmount,
		Currency:         article.Currency,
		Status:           domain.OrderStatusPending,
		ProviderOrderRef: providerRef,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.ttl),
		UpdatedAt:        now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		// The partial unique index on pending (buyer, article) closes the
		// window between the pending check and this insert.
		if repository.IsUniqueViolation(err, "uniq_orders_pending_purchase") {
			return nil, fmt.Errorf("CreateOrder: %w", domain.ErrOrderInProgress)
		}
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}

	s.metrics.OrdersCreatedTotal.Inc()
	log.Info("order created",
		"order_id", order.ID,
		"buyer_id", buyerID,
		"article_id", articleID,
		"amount", order.Amount,
		"provider_order_ref", providerRef,
	)
	return order, nil
}

// checkPending enforces the one-live-order rule, lazily expiring a stale
// pending order instead of waiting for the reaper.
func (s *Service) checkPending(ctx context.Context, buyerID, articleID uuid.UUID, now time.Time) error {
	pending, err := s.orders.GetPendingForPurchase(ctx, buyerID, articleID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if !pending.Expired(now) {
		return domain.ErrOrderInProgress
	}
	expired, err := s.orders.Expire(ctx, pending.ID, now)
	if err != nil {
		return err
	}
	if !expired {
		// Lost the race to a concurrent settlement of the stale order.
		return domain.ErrOrderInProgress
	}
	s.metrics.OrdersExpiredTotal.Inc()
	return nil
}

// History lists the buyer's paid orders, newest first.
func (s *Service) History(ctx context.Context, buyerID uuid.UUID, page int) ([]domain.PurchaseRecord, int, error) {
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * historyPageSize
	records, total, err := s.orders.ListPaidByBuyer(ctx, buyerID, historyPageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("History: %w", err)
	}
	return records, total, nil
}
