package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/weavekeeper/internal/logging"
	"github.com/dmitrijs2005/weavekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/weavekeeper/internal/server/repositories/uploads"
)

// Reaper fails uploads stuck in processing, for example after a crash in the
// middle of a submission, so that they become retryable.
type Reaper struct {
	repo     uploads.Repository
	interval time.Duration
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   logging.Logger
	now      func() time.Time
}

func NewReaper(repo uploads.Repository, interval, timeout time.Duration, m *metrics.Metrics, logger logging.Logger) *Reaper {
	return &Reaper{
		repo:     repo,
		interval: interval,
		timeout:  timeout,
		metrics:  m,
		logger:   logger.With("module", "reaper"),
		now:      time.Now,
	}
}

// Enabled is false when either the interval or the timeout is zero.
func (r *Reaper) Enabled() bool {
	return r.interval > 0 && r.timeout > 0
}

// Run sweeps every interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) error {
	if !r.Enabled() {
		r.logger.Info(ctx, "reaper disabled")
		return nil
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep fails every processing upload untouched for longer than the timeout.
func (r *Reaper) Sweep(ctx context.Context) int64 {
	n, err := r.repo.FailStale(ctx, r.now().Add(-r.timeout))
	if err != nil {
		r.logger.Error(ctx, "reaper sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		r.logger.Warn(ctx, "stale uploads marked failed", "count", n)
		r.metrics.RecordReaped(n)
	}
	return n
}
