package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"cleanflow/db"
	"cleanflow/pricing"
)

// ErrNotFound signals the requested appointment does not exist.
var ErrNotFound = errors.New("appointment: not found")

// Repository reads appointments and applies dispute-driven price changes.
type Repository struct {
	pool db.Querier
}

func NewRepository(pool db.Querier) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches an appointment with its home size and cleaner assignments.
func (r *Repository) GetByID(ctx context.Context, id string) (Appointment, error) {
	const query = `
		SELECT a.id::text, a.home_id::text, h.homeowner_id::text, h.beds, h.baths, a.price_cents, a.updated_at,
		       COALESCE(array_agg(ac.cleaner_id::text) FILTER (WHERE ac.cleaner_id IS NOT NULL), '{}')
		FROM appointments a
		JOIN homes h ON h.id = a.home_id
		LEFT JOIN appointment_cleaners ac ON ac.appointment_id = a.id
		WHERE a.id = $1
		GROUP BY a.id, h.id
	`

	var appt Appointment
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&appt.ID,
		&appt.HomeID,
		&appt.HomeownerID,
		&appt.Beds,
		&appt.Baths,
		&appt.Price,
		&appt.UpdatedAt,
		&appt.CleanerIDs,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, ErrNotFound
		}
		return Appointment{}, fmt.Errorf("appointment: query by id: %w", err)
	}
	return appt, nil
}

// ApplyPrice sets the appointment price inside the caller's transaction.
func ApplyPrice(ctx context.Context, q db.Querier, id string, price pricing.Cents, now time.Time) error {
	const updateSQL = `
		UPDATE appointments
		SET price_cents = $2, updated_at = $3
		WHERE id = $1
	`
	tag, err := q.Exec(ctx, updateSQL, id, int64(price), now)
	if err != nil {
		return fmt.Errorf("appointment: apply price: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
