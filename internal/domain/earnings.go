package domain

import (
	"time"

	"github.com/google/uuid"
)

// EarningsEntry is one row of the append-only creator earnings ledger.
// order_id carries a uniqueness constraint, which is what enforces
// exactly-once settlement at the data layer.
type EarningsEntry struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	CreatorID   uuid.UUID
	GrossAmount int64
	PlatformFee int64
	NetAmount   int64
	CreatedAt   time.Time
}

// Wallet is a creator's cumulative net balance. It is a projection of the
// earnings ledger, mutated only inside the settlement transaction.
type Wallet struct {
	UserID    uuid.UUID
	Balance   int64
	UpdatedAt time.Time
}

// EarningsSummary is the creator-facing rollup derived from the ledger.
type EarningsSummary struct {
	TotalEarnings int64
	PlatformFees  int64
	TotalSales    int64
}
