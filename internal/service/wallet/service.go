package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/logging"
)

type walletRepo interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (int64, error)
}

type earningsRepo interface {
	ListByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]domain.EarningsEntry, int, error)
	Summary(ctx context.Context, creatorID uuid.UUID) (*domain.EarningsSummary, error)
}

const earningsPageSize = 20

// Service is the read-only side of the wallet. The balance is a cached
// projection; everything creator-facing is derived from the ledger so
// statements stay auditable against individual sales.
type Service struct {
	wallets  walletRepo
	earnings earningsRepo
}

func NewService(wallets walletRepo, earnings earningsRepo) *Service {
	return &Service{wallets: wallets, earnings: earnings}
}

func (s *Service) GetBalance(ctx context.Context, creatorID uuid.UUID) (int64, error) {
	balance, err := s.wallets.GetBalance(ctx, creatorID)
	if err != nil {
		return 0, fmt.Errorf("GetBalance: %w", err)
	}
	return balance, nil
}

// Earnings returns the ledger-derived summary and one page of entries.
// Drift between the wallet projection and the ledger sum is logged, never
// papered over: the ledger is the source of truth in the response.
func (s *Service) Earnings(ctx context.Context, creatorID uuid.UUID, page int) (*domain.EarningsSummary, []domain.EarningsEntry, error) {
	log := logging.FromContext(ctx)

	summary, err := s.earnings.Summary(ctx, creatorID)
	if err != nil {
		return nil, nil, fmt.Errorf("Earnings: %w", err)
	}

	balance, err := s.wallets.GetBalance(ctx, creatorID)
	if err != nil {
		return nil, nil, fmt.Errorf("Earnings: %w", err)
	}
	if balance != summary.TotalEarnings {
		log.Error("wallet balance drifted from earnings ledger",
			"creator_id", creatorID,
			"wallet_balance", balance,
			"ledger_total", summary.TotalEarnings,
		)
	}

	if page < 1 {
		page = 1
	}
	entries, _, err := s.earnings.ListByCreator(ctx, creatorID, earningsPageSize, (page-1)*earningsPageSize)
	if err != nil {
		return nil, nil, fmt.Errorf("Earnings: %w", err)
	}
	return summary, entries, nil
}

// Reconcile compares the wallet projection against the ledger sum.
func (s *Service) Reconcile(ctx context.Context, creatorID uuid.UUID) (bool, error) {
	summary, err := s.earnings.Summary(ctx, creatorID)
	if err != nil {
		return false, fmt.Errorf("Reconcile: %w", err)
	}
	balance, err := s.wallets.GetBalance(ctx, creatorID)
	if err != nil {
		return false, fmt.Errorf("Reconcile: %w", err)
	}
	return balance == summary.TotalEarnings, nil
}
