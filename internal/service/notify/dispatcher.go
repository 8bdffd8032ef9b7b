package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/inkwell-press/payments-service/internal/domain"
)

type jobRepo interface {
	Enqueue(ctx context.Context, job *domain.NotificationJob) error
}

// Dispatcher is the synchronous side of the notification boundary: a
// fast, durable handoff into the job queue. Processing happens later on
// worker capacity, decoupled in time from whatever produced the job.
type Dispatcher struct {
	jobs jobRepo
}

func NewDispatcher(jobs jobRepo) *Dispatcher {
	return &Dispatcher{jobs: jobs}
}

func (d *Dispatcher) Enqueue(ctx context.Context, job *domain.NotificationJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.Status == "" {
		job.Status = domain.NotificationJobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if err := d.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("Enqueue: %w", err)
	}
	return nil
}
