package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPaid    OrderStatus = "paid"
	OrderStatusFailed  OrderStatus = "failed"
	OrderStatusExpired OrderStatus = "expired"
)

// Order is a pending request to purchase access to one premium article.
// It transitions to paid exactly once, inside the settlement transaction;
// the expiry sweep may move a stale pending order to expired instead.
type Order struct {
	ID               uuid.UUID
	BuyerID          uuid.UUID
	ArticleID        uuid.UUID
	Amount           int64
	Currency         Currency
	Status           OrderStatus
	ProviderOrderRef string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	UpdatedAt        time.Time
}

func (o *Order) Expired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// PurchaseRecord is the buyer-facing history row: a paid order joined
// with the article fields a statement needs.
type PurchaseRecord struct {
	OrderID      uuid.UUID
	ArticleID    uuid.UUID
	ArticleTitle string
	ArticleSlug  string
	Amount       int64
	Currency     Currency
	PaidAt       time.Time
}
