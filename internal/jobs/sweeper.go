package jobs

import (
	"context"
	"time"

	"github.com/rhenium-075/Kilexep-Prototype-Q1/internal/logger"
)

// Sweeper periodically deletes terminal jobs past the retention window.
type Sweeper struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewSweeper(store Store, retention, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}
}

// Run sweeps once immediately, then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep performs a single retention pass and returns how many jobs it removed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.retention)

	n, err := s.store.DeleteCompletedBefore(ctx, cutoff)
	if err != nil {
		logger.Error("job sweep failed", map[string]any{
			"error":   err,
			"deleted": n,
		})
		return n
	}
	if n > 0 {
		logger.Info("job sweep", map[string]any{
			"deleted": n,
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
		})
	}
	return n
}
