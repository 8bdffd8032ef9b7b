package handler

import "net/http"

type AppError struct {
	Status  int
	Code    string
	Message string
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header required"}
	ErrInvalidToken     = &AppError{http.StatusUnauthorized, "INVALID_TOKEN", "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body"}
	ErrValidationFailed = &AppError{http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed"}
	ErrResourceNotFound = &AppError{http.StatusNotFound, "RESOURCE_NOT_FOUND", "Resource not found"}
	ErrInternalError    = &AppError{http.StatusInternalServerError, "INTERNAL_ERROR", "An unexpected error occurred"}

	ErrArticleNotPremium = &AppError{http.StatusUnprocessableEntity, "ARTICLE_NOT_PREMIUM", "Article is not premium priced"}
	ErrAlreadyPurchased  = &AppError{http.StatusConflict, "ALREADY_PURCHASED", "Article already purchased"}
	ErrOrderInProgress   = &AppError{http.StatusConflict, "ORDER_IN_PROGRESS", "An order for this article is already in progress"}
	ErrOrderExpired      = &AppError{http.StatusConflict, "ORDER_EXPIRED", "Order has expired"}
	ErrInvalidSignature  = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Callback signature is invalid"}
	ErrUnknownOrder      = &AppError{http.StatusNotFound, "UNKNOWN_ORDER", "No order matches the provider reference"}
	ErrOrderNotPending   = &AppError{http.StatusConflict, "ORDER_NOT_PENDING", "Order is not pending"}
	ErrSettlementRetry   = &AppError{http.StatusServiceUnavailable, "SETTLEMENT_RETRYABLE", "Settlement temporarily failed, retry the callback"}
	ErrLedgerCorrupt     = &AppError{http.StatusInternalServerError, "LEDGER_CONFLICT", "Settlement halted pending manual investigation"}
)
