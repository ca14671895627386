// Package trust maintains the per-user false-report counters raised when an
// arbiter resolves a dispute against a party.
package trust

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"cleanflow/db"
)

// Counter names a trust counter column on users.
type Counter string

const (
	// FalseClaim counts cleaner claims an arbiter denied.
	FalseClaim Counter = "false_claim"
	// FalseHomeSize counts homeowner listings an arbiter found undersized.
	FalseHomeSize Counter = "false_home_size"
)

var (
	ErrUserNotFound   = errors.New("trust: user not found")
	ErrUnknownCounter = errors.New("trust: unknown counter")
)

// Counters is a snapshot of one user's trust counters.
type Counters struct {
	FalseClaim    int64
	FalseHomeSize int64
}

func (c Counter) column() (string, error) {
	switch c {
	case FalseClaim:
		return "false_claim_count", nil
	case FalseHomeSize:
		return "false_home_size_count", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCounter, string(c))
	}
}

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Increment bumps counter c for userID by exactly one within q and returns
// both counters as they stand after the update.
func (l *Ledger) Increment(ctx context.Context, q db.Querier, userID string, c Counter) (Counters, error) {
	column, err := c.column()
	if err != nil {
		return Counters{}, err
	}
	// column is one of two constants, never caller input.
	sql := "UPDATE users SET " + column + " = " + column + " + 1, updated_at = now() WHERE id = $1" +
		" RETURNING false_claim_count, false_home_size_count"

	var out Counters
	if err := q.QueryRow(ctx, sql, userID).Scan(&out.FalseClaim, &out.FalseHomeSize); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Counters{}, ErrUserNotFound
		}
		return Counters{}, fmt.Errorf("trust: increment %s: %w", c, err)
	}
	return out, nil
}
