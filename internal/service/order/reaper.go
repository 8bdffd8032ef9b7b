package order

import (
	"context"
	"log/slog"
	"time"

	"github.com/inkwell-press/payments-service/internal/metrics"
)

type reaperRepo interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

// Reaper is the only periodic task in the pipeline: it sweeps pending
// orders past their deadline to expired. The sweep conditions on pending
// status, so it cannot race a settlement of the same order.
type Reaper struct {
	orders   reaperRepo
	interval time.Duration
	metrics  *metrics.PaymentMetrics
	logger   *slog.Logger
}

func NewReaper(orders reaperRepo, interval time.Duration, m *metrics.PaymentMetrics, logger *slog.Logger) *Reaper {
	return &Reaper{
		orders:   orders,
		interval: interval,
		metrics:  m,
		logger:   logger,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	r.logger.Info("order reaper started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("order reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	n, err := r.orders.ExpireStale(ctx, time.Now().UTC())
	if err != nil {
		r.logger.Error("order expiry sweep failed", "error", err)
		return
	}
	if n > 0 {
		r.metrics.OrdersExpiredTotal.Add(float64(n))
		r.logger.Info("expired stale orders", "count", n)
	}
}
