package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
)

const orderColumns = `id, buyer_id, article_id, amount, currency, status,
	provider_order_ref, created_at, expires_at, updated_at`

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (
			id, buyer_id, article_id, amount, currency, status,
			provider_order_ref, created_at, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		order.ID, order.BuyerID, order.ArticleID, order.Amount, order.Currency,
		order.Status, order.ProviderOrderRef, order.CreatedAt, order.ExpiresAt,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) GetByProviderRef(ctx context.Context, ref string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE provider_order_ref = $1`, ref,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByProviderRef: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByProviderRef: %w", err)
	}
	return o, nil
}

// GetPendingForPurchase returns the buyer's live pending order for an
// article, if one exists.
func (r *OrderRepository) GetPendingForPurchase(ctx context.Context, buyerID, articleID uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		WHERE buyer_id = $1 AND article_id = $2 AND status = $3`,
		buyerID, articleID, domain.OrderStatusPending,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetPendingForPurchase: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetPendingForPurchase: %w", err)
	}
	return o, nil
}

// MarkPaidTx transitions an order from pending to paid inside the
// settlement transaction. The returned count is 0 when the order was not
// pending, which is the caller's idempotency signal.
func (r *OrderRepository) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`,
		domain.OrderStatusPaid, id, domain.OrderStatusPending,
	)
	if err != nil {
		return 0, fmt.Errorf("MarkPaidTx: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("MarkPaidTx: rows affected: %w", err)
	}
	return rows, nil
}

// Expire moves a single pending order past its deadline to expired. The
// status condition keeps it from racing a concurrent settlement.
func (r *OrderRepository) Expire(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3 AND expires_at < $4`,
		domain.OrderStatusExpired, id, domain.OrderStatusPending, now,
	)
	if err != nil {
		return false, fmt.Errorf("Expire: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("Expire: rows affected: %w", err)
	}
	return rows > 0, nil
}

// ExpireStale is the reaper's sweep: every pending order past its
// deadline flips to expired in one statement.
func (r *OrderRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = $1, updated_at = now()
		WHERE status = $2 AND expires_at < $3`,
		domain.OrderStatusExpired, domain.OrderStatusPending, now,
	)
	if err != nil {
		return 0, fmt.Errorf("ExpireStale: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ExpireStale: rows affected: %w", err)
	}
	return rows, nil
}

// ListPaidByBuyer returns the buyer's purchase history joined with the
// article read fields, newest first.
func (r *OrderRepository) ListPaidByBuyer(ctx context.Context, buyerID uuid.UUID, limit, offset int) ([]domain.PurchaseRecord, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE buyer_id = $1 AND status = $2`,
		buyerID, domain.OrderStatusPaid,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListPaidByBuyer: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT o.id, o.article_id, a.title, a.slug, o.amount, o.currency, o.updated_at
		FROM orders o
		JOIN articles a ON a.id = o.article_id
		WHERE o.buyer_id = $1 AND o.status = $2
		ORDER BY o.updated_at DESC LIMIT $3 OFFSET $4`,
		buyerID, domain.OrderStatusPaid, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListPaidByBuyer: %w", err)
	}
	defer rows.Close()

	var records []domain.PurchaseRecord
	for rows.Next() {
		var rec domain.PurchaseRecord
		err := rows.Scan(
			&rec.OrderID, &rec.ArticleID, &rec.ArticleTitle, &rec.ArticleSlug,
			&rec.Amount, &rec.Currency, &rec.PaidAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("ListPaidByBuyer: scan: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListPaidByBuyer: rows: %w", err)
	}
	return records, total, nil
}

func scanOrder(s scanner) (*domain.Order, error) {
	var o domain.Order
	err := s.Scan(
		&o.ID, &o.BuyerID, &o.ArticleID, &o.Amount, &o.Currency, &o.Status,
		&o.ProviderOrderRef, &o.CreatedAt, &o.ExpiresAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
