package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
)

const earningsColumns = `id, order_id, creator_id, gross_amount, platform_fee,
	net_amount, created_at`

type EarningsRepository struct {
	db *sql.DB
}

func NewEarningsRepository(db *sql.DB) *EarningsRepository {
	return &EarningsRepository{db: db}
}

func (r *EarningsRepository) CreateTx(ctx context.Context, tx *sql.Tx, entry *domain.EarningsEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO earnings_entries (
			id, order_id, creator_id, gross_amount, platform_fee, net_amount, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.OrderID, entry.CreatorID, entry.GrossAmount,
		entry.PlatformFee, entry.NetAmount, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateTx: %w", err)
	}
	return nil
}

func (r *EarningsRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.EarningsEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+earningsColumns+` FROM earnings_entries WHERE order_id = $1`, orderID,
	)
	e, err := scanEarningsEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOrderID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByOrderID: %w", err)
	}
	return e, nil
}

// ListByCreator reads the ledger directly, newest first, so creator
// statements stay auditable against individual sales.
func (r *EarningsRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]domain.EarningsEntry, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM earnings_entries WHERE creator_id = $1`, creatorID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByCreator: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+earningsColumns+` FROM earnings_entries
		WHERE creator_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		creatorID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByCreator: %w", err)
	}
	defer rows.Close()

	var entries []domain.EarningsEntry
	for rows.Next() {
		e, err := scanEarningsEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByCreator: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByCreator: rows: %w", err)
	}
	return entries, total, nil
}

// Summary aggregates the ledger for a creator. COALESCE keeps a creator
// with no sales at zero rather than NULL.
func (r *EarningsRepository) Summary(ctx context.Context, creatorID uuid.UUID) (*domain.EarningsSummary, error) {
	var s domain.EarningsSummary
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(net_amount), 0), COALESCE(SUM(platform_fee), 0), COUNT(*)
		FROM earnings_entries WHERE creator_id = $1`, creatorID,
	).Scan(&s.TotalEarnings, &s.PlatformFees, &s.TotalSales)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	return &s, nil
}

func scanEarningsEntry(s scanner) (*domain.EarningsEntry, error) {
	var e domain.EarningsEntry
	err := s.Scan(
		&e.ID, &e.OrderID, &e.CreatorID, &e.GrossAmount,
		&e.PlatformFee, &e.NetAmount, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
