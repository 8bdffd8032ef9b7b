package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
)

const notificationJobColumns = `id, user_id, type, title, message, payload,
	status, attempts, last_attempt, next_attempt_at, created_at`

type NotificationJobRepository struct {
	db *sql.DB
}

func NewNotificationJobRepository(db *sql.DB) *NotificationJobRepository {
	return &NotificationJobRepository{db: db}
}

func (r *NotificationJobRepository) Enqueue(ctx context.Context, job *domain.NotificationJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_jobs (
			id, user_id, type, title, message, payload, status, attempts, next_attempt_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.UserID, job.Type, job.Title, job.Message, job.Payload,
		job.Status, job.Attempts, job.CreatedAt, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Enqueue: %w", err)
	}
	return nil
}

// GetDue claims jobs ready for a delivery attempt. FOR UPDATE SKIP LOCKED
// prevents multiple workers from claiming the same job.
func (r *NotificationJobRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]domain.NotificationJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationJobColumns+` FROM notification_jobs
		WHERE status = $1 AND next_attempt_at <= $2
		ORDER BY created_at LIMIT $3 FOR UPDATE SKIP LOCKED`,
		domain.NotificationJobStatusPending, now, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("GetDue: %w", err)
	}
	defer rows.Close()

	var jobs []domain.NotificationJob
	for rows.Next() {
		var j domain.NotificationJob
		var nextAttempt time.Time
		err := rows.Scan(
			&j.ID, &j.UserID, &j.Type, &j.Title, &j.Message, &j.Payload,
			&j.Status, &j.Attempts, &j.LastAttempt, &nextAttempt, &j.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("GetDue: scan: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("GetDue: rows: %w", err)
	}
	return jobs, nil
}

func (r *NotificationJobRepository) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	return r.updateStatus(ctx, id, domain.NotificationJobStatusDispatched, nil)
}

// RetryLater records a failed attempt and schedules the next one.
func (r *NotificationJobRepository) RetryLater(ctx context.Context, id uuid.UUID, nextAttempt time.Time) error {
	return r.updateStatus(ctx, id, domain.NotificationJobStatusPending, &nextAttempt)
}

func (r *NotificationJobRepository) MarkDeadLetter(ctx context.Context, id uuid.UUID) error {
	return r.updateStatus(ctx, id, domain.NotificationJobStatusDeadLetter, nil)
}

func (r *NotificationJobRepository) updateStatus(ctx context.Context, id uuid.UUID, status domain.NotificationJobStatus, nextAttempt *time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notification_jobs
		SET status = $1, attempts = attempts + 1, last_attempt = now(),
			next_attempt_at = COALESCE($2, next_attempt_at)
		WHERE id = $3`,
		status, nextAttempt, id,
	)
	if err != nil {
		return fmt.Errorf("updateStatus: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updateStatus: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("updateStatus: %w", domain.ErrNotFound)
	}
	return nil
}

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, type, title, message, data, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Data, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *NotificationRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("CountByUser: %w", err)
	}
	return count, nil
}
