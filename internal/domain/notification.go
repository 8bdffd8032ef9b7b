package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeFollow   NotificationType = "FOLLOW"
	NotificationTypeLike     NotificationType = "LIKE"
	NotificationTypeComment  NotificationType = "COMMENT"
	NotificationTypeReply    NotificationType = "REPLY"
	NotificationTypePurchase NotificationType = "PURCHASE"
	NotificationTypeSystem   NotificationType = "SYSTEM"
)

type NotificationJobStatus string

const (
	NotificationJobStatusPending    NotificationJobStatus = "pending"
	NotificationJobStatusDispatched NotificationJobStatus = "dispatched"
	NotificationJobStatusDeadLetter NotificationJobStatus = "dead_letter"
)

// NotificationJob is the durable queue entry handed off by settlement.
// Delivery is at-least-once: the worker retries with backoff up to a
// bounded attempt count, then parks the job as dead_letter.
type NotificationJob struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Type        NotificationType
	Title       string
	Message     string
	Payload     json.RawMessage
	Status      NotificationJobStatus
	Attempts    int
	LastAttempt *time.Time
	CreatedAt   time.Time
}

// Notification is the persisted record the worker writes when a job is
// processed, and what the (out-of-scope) inbox UI reads.
type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      NotificationType
	Title     string
	Message   string
	Data      json.RawMessage
	Read      bool
	CreatedAt time.Time
}
