// Package sweep closes disputes whose homeowner response window has passed.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Expirer moves every overdue pending_homeowner dispute to expired and
// reports how many moved.
type Expirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// Locker elects a single sweeping replica for one tick. Acquire returns
// false when another holder owns the lease.
type Locker interface {
	Acquire(ctx context.Context, ttl time.Duration) (bool, error)
	Release(ctx context.Context) error
}

type Sweeper struct {
	logger   *slog.Logger
	expirer  Expirer
	locker   Locker
	interval time.Duration
}

func New(logger *slog.Logger, expirer Expirer, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		logger:   logger.With("module", "sweep", "layer", "worker"),
		expirer:  expirer,
		interval: interval,
	}
}

// WithLocker restricts each tick to the replica holding the lease.
func (s *Sweeper) WithLocker(l Locker) *Sweeper {
	s.locker = l
	return s
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.ErrorContext(ctx, "sweep iteration failed",
				"operation", "sweep_once",
				"outcome", "failure",
				"error", err,
			)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SweepOnce runs one expiry pass. It returns zero without touching the store
// when another replica holds the lease.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.locker != nil {
		ok, err := s.locker.Acquire(ctx, s.interval)
		if err != nil {
			return 0, err
		}
		if !ok {
			s.logger.DebugContext(ctx, "sweep lease held elsewhere",
				"operation", "sweep_once",
				"outcome", "skipped",
			)
			return 0, nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "release sweep lease failed",
					"operation", "sweep_once",
					"error", err,
				)
			}
		}()
	}

	n, err := s.expirer.ExpireStale(ctx)
	if err != nil {
		return 0, err
	}
	return n, nil
}
