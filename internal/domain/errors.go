package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrArticleNotPremium = errors.New("article is not premium priced")
	ErrAlreadyPurchased  = errors.New("article already purchased")
	ErrOrderInProgress   = errors.New("order already in progress")
	ErrOrderExpired      = errors.New("order expired")
	ErrInvalidSignature  = errors.New("invalid callback signature")
	ErrUnknownOrder      = errors.New("unknown provider order reference")
	ErrOrderNotPending   = errors.New("order is not pending")
	ErrAlreadySettled    = errors.New("order already settled")
	ErrSettlementRetry   = errors.New("settlement failed, retryable")
	ErrLedgerCorrupt     = errors.New("earnings ledger conflict with different amounts")
	ErrInvalidRequest    = errors.New("invalid request")
)
