package guard

import (
	"context"
	"time"

	"plantshot/internal/infra"
)

// StaleJobFailer marks processing batches that started before cutoff as failed.
type StaleJobFailer interface {
	FailStaleJobs(ctx context.Context, cutoff time.Time) (int, error)
}

// Sweeper releases organizations whose batch died without a terminal update,
// for example after a crash mid-run. Without it the guard would report that
// organization as busy forever.
type Sweeper struct {
	jobs     StaleJobFailer
	after    time.Duration
	interval time.Duration
	logger   *infra.Logger
	now      func() time.Time
}

func NewSweeper(jobs StaleJobFailer, after, interval time.Duration, logger *infra.Logger) *Sweeper {
	if logger == nil {
		logger = infra.NopLogger()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{jobs: jobs, after: after, interval: interval, logger: logger, now: time.Now}
}

// SweepOnce fails every batch older than the staleness window.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.after)
	n, err := s.jobs.FailStaleJobs(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("guard: stale job sweep failed")
		return 0, err
	}
	if n > 0 {
		s.logger.Warn().Int("jobs", n).Time("cutoff", cutoff).Msg("guard: failed stale generation jobs")
	}
	return n, nil
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		_, _ = s.SweepOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
