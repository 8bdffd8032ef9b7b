package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccessGrant is the durable record that a buyer has paid for an article.
// Its existence is the sole authority for premium access; this subsystem
// creates it exactly once per settled order and never deletes it.
type AccessGrant struct {
	ID        uuid.UUID
	BuyerID   uuid.UUID
	ArticleID uuid.UUID
	OrderID   uuid.UUID
	GrantedAt time.Time
}
