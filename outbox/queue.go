package outbox

import (
	"context"
	"fmt"
	"time"

	"cleanflow/db"
)

// Queue is the relay's view of the outbox table.
type Queue interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]Message, error)
	MarkProcessed(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string, maxAttempts int) error
}

// PGQueue claims rows with SKIP LOCKED so several relays can run at once.
type PGQueue struct {
	pool db.Querier
}

func NewPGQueue(pool db.Querier) *PGQueue {
	return &PGQueue{pool: pool}
}

func (q *PGQueue) Claim(ctx context.Context, limit int, lease time.Duration) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	const claimSQL = `
UPDATE outbox o
SET claimed_until = now() + make_interval(secs => $2)
FROM (
	SELECT id FROM outbox
	WHERE status = 'pending'
	  AND (claimed_until IS NULL OR claimed_until < now())
	ORDER BY id
	LIMIT $1
	FOR UPDATE SKIP LOCKED
) picked
WHERE o.id = picked.id
RETURNING o.id, o.topic, o.partition_key, o.payload, o.attempts, o.created_at;
`
	rows, err := q.pool.Query(ctx, claimSQL, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("outbox: claim: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Topic, &m.PartitionKey, &m.Payload, &m.Attempts, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate: %w", err)
	}
	return out, nil
}

func (q *PGQueue) MarkProcessed(ctx context.Context, id int64) error {
	const updateSQL = `
UPDATE outbox
SET status = 'processed', processed_at = now(), claimed_until = NULL
WHERE id = $1;
`
	if _, err := q.pool.Exec(ctx, updateSQL, id); err != nil {
		return fmt.Errorf("outbox: mark processed: %w", err)
	}
	return nil
}

// MarkFailed records a delivery failure and dead-letters the row once it has
// been attempted maxAttempts times.
func (q *PGQueue) MarkFailed(ctx context.Context, id int64, reason string, maxAttempts int) error {
	const updateSQL = `
UPDATE outbox
SET attempts = attempts + 1,
    last_error = $2,
    claimed_until = NULL,
    status = CASE WHEN attempts + 1 >= $3 THEN 'dead' ELSE status END
WHERE id = $1;
`
	if _, err := q.pool.Exec(ctx, updateSQL, id, reason, maxAttempts); err != nil {
		return fmt.Errorf("outbox: mark failed: %w", err)
	}
	return nil
}
