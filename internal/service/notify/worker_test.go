package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-press/payments-service/internal/domain"
	"github.com/inkwell-press/payments-service/internal/metrics"
	"github.com/inkwell-press/payments-service/internal/repository"
	"github.com/inkwell-press/payments-service/internal/testutil"
)

// failingNotificationRepo rejects every write, simulating a downstream
// that is temporarily unavailable.
type failingNotificationRepo struct {
	calls int
}

func (r *failingNotificationRepo) Create(_ context.Context, _ *domain.Notification) error {
	r.calls++
	return errors.New("notification store unavailable")
}

func newTestWorker(jobs *repository.NotificationJobRepository, notifications notificationRepo, maxAttempts int) *Worker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWorker(jobs, notifications, time.Second, maxAttempts, metrics.NewPaymentMetrics(prometheus.NewRegistry()), logger)
}

func enqueueTestJob(t *testing.T, d *Dispatcher, userID uuid.UUID) *domain.NotificationJob {
	t.Helper()
	job := &domain.NotificationJob{
		UserID:  userID,
		Type:    domain.NotificationTypePurchase,
		Title:   "Your article was purchased",
		Message: "Someone bought your article",
		Payload: json.RawMessage(`{"order_id":"test"}`),
	}
	require.NoError(t, d.Enqueue(context.Background(), job))
	return job
}

func TestWorker_DispatchesJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	jobs := repository.NewNotificationJobRepository(db)
	notifications := repository.NewNotificationRepository(db)
	w := newTestWorker(jobs, notifications, 5)

	user := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	job := enqueueTestJob(t, NewDispatcher(jobs), user.ID)

	w.poll(ctx)

	count, err := notifications.CountByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var status string
	require.NoError(t, db.QueryRow(
		`SELECT status FROM notification_jobs WHERE id = $1`, job.ID,
	).Scan(&status))
	assert.Equal(t, string(domain.NotificationJobStatusDispatched), status)

	// dispatched jobs are not picked up again
	due, err := jobs.GetDue(ctx, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestWorker_RetriesWithBackoff(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	jobs := repository.NewNotificationJobRepository(db)
	failing := &failingNotificationRepo{}
	w := newTestWorker(jobs, failing, 5)

	user := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	job := enqueueTestJob(t, NewDispatcher(jobs), user.ID)

	w.poll(ctx)
	assert.Equal(t, 1, failing.calls)

	var status string
	var attempts int
	var nextAttempt time.Time
	require.NoError(t, db.QueryRow(
		`SELECT status, attempts, next_attempt_at FROM notification_jobs WHERE id = $1`, job.ID,
	).Scan(&status, &attempts, &nextAttempt))
	assert.Equal(t, string(domain.NotificationJobStatusPending), status)
	assert.Equal(t, 1, attempts)
	assert.True(t, nextAttempt.After(time.Now().UTC()), "retry must be scheduled in the future")

	// not due yet, so an immediate poll finds nothing
	w.poll(ctx)
	assert.Equal(t, 1, failing.calls)
}

func TestWorker_DeadLettersAfterMaxAttempts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	jobs := repository.NewNotificationJobRepository(db)
	failing := &failingNotificationRepo{}
	maxAttempts := 3
	w := newTestWorker(jobs, failing, maxAttempts)

	user := testutil.SeedTestUser(t, db, "creator@test.com", "Creator")
	job := enqueueTestJob(t, NewDispatcher(jobs), user.ID)

	for i := 0; i < maxAttempts; i++ {
		// pull the retry forward instead of sleeping out the backoff
		_, err := db.Exec(`UPDATE notification_jobs SET next_attempt_at = now() WHERE id = $1`, job.ID)
		require.NoError(t, err)
		w.poll(ctx)
	}
	assert.Equal(t, maxAttempts, failing.calls)

	var status string
	require.NoError(t, db.QueryRow(
		`SELECT status FROM notification_jobs WHERE id = $1`, job.ID,
	).Scan(&status))
	assert.Equal(t, string(domain.NotificationJobStatusDeadLetter), status)

	// dead-lettered jobs stay parked
	_, err := db.Exec(`UPDATE notification_jobs SET next_attempt_at = now() WHERE id = $1`, job.ID)
	require.NoError(t, err)
	w.poll(ctx)
	assert.Equal(t, maxAttempts, failing.calls)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoff(1))
	assert.Equal(t, 4*time.Second, backoff(2))
	assert.Equal(t, 16*time.Second, backoff(4))
	assert.Equal(t, maxRetryBackoff, backoff(20))
}
