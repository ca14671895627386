package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Relay struct {
	logger      *slog.Logger
	queue       Queue
	publisher   Publisher
	interval    time.Duration
	batchSize   int
	lease       time.Duration
	maxAttempts int
}

func NewRelay(logger *slog.Logger, queue Queue, publisher Publisher, interval time.Duration, batchSize int) *Relay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		logger:      logger.With("module", "outbox.relay", "layer", "worker"),
		queue:       queue,
		publisher:   publisher,
		interval:    interval,
		batchSize:   batchSize,
		lease:       30 * time.Second,
		maxAttempts: 10,
	}
}

// WithMaxAttempts sets how many failed deliveries dead-letter a message.
func (r *Relay) WithMaxAttempts(n int) *Relay {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.RelayOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.ErrorContext(ctx, "outbox iteration failed",
				"operation", "relay_once",
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

// RelayOnce claims one batch and publishes it. It returns how many messages
// were delivered.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	msgs, err := r.queue.Claim(ctx, r.batchSize, r.lease)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for _, m := range msgs {
		if err := r.publisher.Publish(ctx, m); err != nil {
			r.logger.WarnContext(ctx, "outbox publish failed",
				"operation", "publish",
				"outcome", "failure",
				"outbox_id", m.ID,
				"topic", m.Topic,
				"attempts", m.Attempts+1,
				"error", err,
			)
			if markErr := r.queue.MarkFailed(ctx, m.ID, err.Error(), r.maxAttempts); markErr != nil {
				return delivered, markErr
			}
			continue
		}
		if err := r.queue.MarkProcessed(ctx, m.ID); err != nil {
			return delivered, err
		}
		delivered++
	}
	return delivered, nil
}
