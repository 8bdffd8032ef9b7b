package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
)

type ArticleRepository struct {
	db *sql.DB
}

func NewArticleRepository(db *sql.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

func (r *ArticleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	var a domain.Article
	err := r.db.QueryRowContext(ctx,
		`SELECT id, author_id, title, slug, premium, price_amount, currency, created_at
		FROM articles WHERE id = $1`, id,
	).Scan(&a.ID, &a.AuthorID, &a.Title, &a.Slug, &a.Premium, &a.PriceAmount, &a.Currency, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return &a, nil
}
