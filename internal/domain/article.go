package domain

import (
	"time"

	"github.com/google/uuid"
)

// Article carries only what the payment pipeline needs: the premium price
// for order creation and title/slug for purchase-history read models.
// Content storage and rendering live elsewhere.
type Article struct {
	ID          uuid.UUID
	AuthorID    uuid.UUID
	Title       string
	Slug        string
	Premium     bool
	PriceAmount int64
	Currency    Currency
	CreatedAt   time.Time
}
