package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/metrics"
)

type workerJobRepo interface {
	GetDue(ctx context.Context, now time.Time, limit int) ([]domain.NotificationJob, error)
	MarkDispatched(ctx context.Context, id uuid.UUID) error
	RetryLater(ctx context.Context, id uuid.UUID, nextAttempt time.Time) error
	MarkDeadLetter(ctx context.Context, id uuid.UUID) error
}

type notificationRepo interface {
	Create(ctx context.Context, n *domain.Notification) error
}

const (
	pollBatchSize   = 10
	retryBackoff    = 2 * time.Second
	maxRetryBackoff = 5 * time.Minute
)

// Worker drains the notification job queue with at-least-once delivery:
// a failed attempt is retried with exponential backoff until the attempt
// budget is spent, then the job is parked as dead_letter and logged. A
// job is never silently dropped.
type Worker struct {
	jobs          workerJobRepo
	notifications notificationRepo
	interval      time.Duration
	maxAttempts   int
	metrics       *metrics.PaymentMetrics
	logger        *slog.Logger
}

func NewWorker(jobs workerJobRepo, notifications notificationRepo, interval time.Duration, maxAttempts int, m *metrics.PaymentMetrics, logger *slog.Logger) *Worker {
	return &Worker{
		jobs:          jobs,
		notifications: notifications,
		interval:      interval,
		maxAttempts:   maxAttempts,
		metrics:       m,
		logger:        logger,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("notification worker started", "interval", w.interval, "max_attempts", w.maxAttempts)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("notification worker stopped")
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	jobs, err := w.jobs.GetDue(ctx, time.Now().UTC(), pollBatchSize)
	if err != nil {
		w.logger.Error("failed to fetch due notification jobs", "error", err)
		return
	}
	for _, job := range jobs {
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job domain.NotificationJob) {
	n := &domain.Notification{
		ID:        uuid.New(),
		UserID:    job.UserID,
		Type:      job.Type,
		Title:     job.Title,
		Message:   job.Message,
		Data:      job.Payload,
		CreatedAt: time.Now().UTC(),
	}

	if err := w.notifications.Create(ctx, n); err != nil {
		w.handleFailure(ctx, job, err)
		return
	}

	if err := w.jobs.MarkDispatched(ctx, job.ID); err != nil {
		// The notification row exists; a redelivery here means the
		// consumer sees a duplicate, which at-least-once tolerates.
		w.logger.Error("failed to mark notification job dispatched", "job_id", job.ID, "error", err)
		return
	}

	w.metrics.NotificationsDispatched.Inc()
	w.logger.Info("notification dispatched",
		"job_id", job.ID,
		"user_id", job.UserID,
		"type", job.Type,
	)
}

func (w *Worker) handleFailure(ctx context.Context, job domain.NotificationJob, cause error) {
	attempt := job.Attempts + 1
	if attempt >= w.maxAttempts {
		if err := w.jobs.MarkDeadLetter(ctx, job.ID); err != nil {
			w.logger.Error("failed to dead-letter notification job", "job_id", job.ID, "error", err)
			return
		}
		w.metrics.NotificationsDeadLetter.Inc()
		w.logger.Error("notification job moved to dead letter",
			"job_id", job.ID,
			"user_id", job.UserID,
			"attempts", attempt,
			"error", cause,
		)
		return
	}

	next := time.Now().UTC().Add(backoff(attempt))
	if err := w.jobs.RetryLater(ctx, job.ID, next); err != nil {
		w.logger.Error("failed to schedule notification retry", "job_id", job.ID, "error", err)
		return
	}
	w.metrics.NotificationsRetried.Inc()
	w.logger.Warn("notification job failed, retry scheduled",
		"job_id", job.ID,
		"attempt", attempt,
		"next_attempt_at", next,
		"error", cause,
	)
}

func backoff(attempt int) time.Duration {
	d := retryBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	return d
}
