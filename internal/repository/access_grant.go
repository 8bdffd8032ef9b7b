package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
)

type AccessGrantRepository struct {
	db *sql.DB
}

func NewAccessGrantRepository(db *sql.DB) *AccessGrantRepository {
	return &AccessGrantRepository{db: db}
}

func (r *AccessGrantRepository) CreateTx(ctx context.Context, tx *sql.Tx, grant *domain.AccessGrant) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO access_grants (id, buyer_id, article_id, order_id, granted_at)
		VALUES ($1, $2, $3, $4, $5)`,
		grant.ID, grant.BuyerID, grant.ArticleID, grant.OrderID, grant.GrantedAt,
	)
	if err != nil {
		return fmt.Errorf("CreateTx: %w", err)
	}
	return nil
}

func (r *AccessGrantRepository) Exists(ctx context.Context, buyerID, articleID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM access_grants WHERE buyer_id = $1 AND article_id = $2
		)`,
		buyerID, articleID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("Exists: %w", err)
	}
	return exists, nil
}

func (r *AccessGrantRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.AccessGrant, error) {
	var g domain.AccessGrant
	err := r.db.QueryRowContext(ctx,
		`SELECT id, buyer_id, article_id, order_id, granted_at
		FROM access_grants WHERE order_id = $1`, orderID,
	).Scan(&g.ID, &g.BuyerID, &g.ArticleID, &g.OrderID, &g.GrantedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByOrderID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByOrderID: %w", err)
	}
	return &g, nil
}
