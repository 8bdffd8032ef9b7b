package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/inkwell-press/payments-service/internal/domain"
)

func SeedTestUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	if name != "" {
		u.Name = &name
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user %s: %v", email, err)
	}
	return u
}

func SeedTestArticle(t *testing.T, db *sql.DB, authorID uuid.UUID, slug string, price int64) *domain.Article {
	t.Helper()

	a := &domain.Article{
		ID:          uuid.New(),
		AuthorID:    authorID,
		Title:       "Test Article " + slug,
		Slug:        slug,
		Premium:     price > 0,
		PriceAmount: price,
		Currency:    domain.CurrencyINR,
		CreatedAt:   time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO articles (id, author_id, title, slug, premium, price_amount, currency, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.AuthorID, a.Title, a.Slug, a.Premium, a.PriceAmount, a.Currency, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test article %s: %v", slug, err)
	}
	return a
}

func SeedPendingOrder(t *testing.T, db *sql.DB, buyerID uuid.UUID, article *domain.Article, providerRef string, expiresAt time.Time) *domain.Order {
	t.Helper()

	now := time.Now().UTC()
	o := &domain.Order{
		ID:               uuid.New(),
		BuyerID:          buyerID,
		ArticleID:        article.ID,
		Amount:           article.PriceAmount,
		Currency:         article.Currency,
		Status:           domain.OrderStatusPending,
		ProviderOrderRef: providerRef,
		CreatedAt:        now,
		ExpiresAt:        expiresAt,
		UpdatedAt:        now,
	}

	_, err := db.Exec(
		`INSERT INTO orders (id, buyer_id, article_id, amount, currency, status,
			provider_order_ref, created_at, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.BuyerID, o.ArticleID, o.Amount, o.Currency, o.Status,
		o.ProviderOrderRef, o.CreatedAt, o.ExpiresAt, o.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed pending order %s: %v", providerRef, err)
	}
	return o
}

func GetOrderStatus(t *testing.T, db *sql.DB, orderID uuid.UUID) domain.OrderStatus {
	t.Helper()

	var status domain.OrderStatus
	if err := db.QueryRow(`SELECT status FROM orders WHERE id = $1`, orderID).Scan(&status); err != nil {
		t.Fatalf("get order status %s: %v", orderID, err)
	}
	return status
}

func GetWalletBalance(t *testing.T, db *sql.DB, userID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(`SELECT balance FROM wallets WHERE user_id = $1`, userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0
	}
	if err != nil {
		t.Fatalf("get wallet balance %s: %v", userID, err)
	}
	return balance
}

func CountEarningsEntries(t *testing.T, db *sql.DB, orderID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM earnings_entries WHERE order_id = $1`, orderID).Scan(&count)
	if err != nil {
		t.Fatalf("count earnings entries for order %s: %v", orderID, err)
	}
	return count
}

func CountAccessGrants(t *testing.T, db *sql.DB, buyerID, articleID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM access_grants WHERE buyer_id = $1 AND article_id = $2`,
		buyerID, articleID,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count access grants: %v", err)
	}
	return count
}
