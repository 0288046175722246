package scheduler

import (
	"context"
	"fmt"

	"github.com/medbot/rounds/core/logger"
	"github.com/medbot/rounds/core/monitoring"
)

// CompletionResetter clears completion state on every batch.
type CompletionResetter interface {
	ResetCompletion(ctx context.Context) (int64, error)
}

// Sweeper runs the weekly maintenance that makes every batch runnable again.
type Sweeper struct {
	store CompletionResetter
	retry RetryPolicy
	log   logger.Logger
}

func NewSweeper(s CompletionResetter, retry RetryPolicy, log logger.Logger) *Sweeper {
	return &Sweeper{store: s, retry: retry, log: logger.OrNop(log)}
}

// Run resets completion time and notified flag on every batch and returns
// the number of batches touched.
func (s *Sweeper) Run(ctx context.Context) (int64, error) {
	var n int64
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		n, err = s.store.ResetCompletion(ctx)
		return err
	})
	if err != nil {
		monitoring.CaptureException(err, map[string]string{"component": "sweeper"})
		return 0, fmt.Errorf("weekly sweep: %w", err)
	}
	s.log.Infof("weekly sweep reset %d batches", n)
	return n, nil
}

// Tick runs the sweep and logs its failure.
func (s *Sweeper) Tick(ctx context.Context) {
	if _, err := s.Run(ctx); err != nil {
		s.log.Errorf("%v", err)
	}
}
