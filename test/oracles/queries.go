package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All lists queries that must return no rows at any point during a run.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_one_open_dispute_per_appointment",
			SQL: `SELECT appointment_id, COUNT(*) FROM dispute_requests
                  WHERE status IN ('pending_homeowner','pending_owner')
                  GROUP BY appointment_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_event_edges_legal",
			SQL: `SELECT id, dispute_id, from_status, to_status FROM dispute_events
                  WHERE NOT (
                      (from_status IS NULL AND to_status = 'pending_homeowner')
                      OR (from_status, to_status) IN (
                          ('pending_homeowner','approved'),
                          ('pending_homeowner','pending_owner'),
                          ('pending_homeowner','expired'),
                          ('pending_owner','owner_approved'),
                          ('pending_owner','owner_denied')))`,
		},
		{
			Name: "O3_single_exit_per_state",
			SQL: `SELECT dispute_id, from_status, COUNT(*) FROM dispute_events
                  WHERE from_status IS NOT NULL
                  GROUP BY dispute_id, from_status HAVING COUNT(*) > 1`,
		},
		{
			Name: "O4_status_matches_last_event",
			SQL: `SELECT d.id, d.status::text, e.to_status FROM dispute_requests d
                  JOIN LATERAL (
                      SELECT to_status FROM dispute_events
                      WHERE dispute_id = d.id ORDER BY id DESC LIMIT 1) e ON true
                  WHERE d.status::text <> e.to_status`,
		},
		{
			Name: "O5_trust_counters_match_resolutions",
			SQL: `SELECT u.id, u.false_claim_count, u.false_home_size_count FROM users u
                  WHERE u.false_claim_count <> (
                          SELECT COUNT(*) FROM dispute_requests
                          WHERE cleaner_id = u.id AND status = 'owner_denied')
                     OR u.false_home_size_count <> (
                          SELECT COUNT(*) FROM dispute_requests
                          WHERE homeowner_id = u.id AND status = 'owner_approved')`,
		},
		{
			Name: "O6_price_follows_last_approval",
			SQL: `SELECT a.id, a.price_cents, last.recalculated_price_cents FROM appointments a
                  JOIN LATERAL (
                      SELECT d.recalculated_price_cents FROM dispute_events e
                      JOIN dispute_requests d ON d.id = e.dispute_id
                      WHERE d.appointment_id = a.id AND e.to_status IN ('approved','owner_approved')
                      ORDER BY e.id DESC LIMIT 1) last ON true
                  WHERE a.price_cents <> last.recalculated_price_cents`,
		},
		{
			Name: "O7_expired_untouched",
			SQL: `SELECT id FROM dispute_requests
                  WHERE status = 'expired'
                    AND (homeowner_responded_at IS NOT NULL OR resolved_at IS NOT NULL
                         OR homeowner_response_text IS NOT NULL OR resolver_id IS NOT NULL)`,
		},
		{
			Name: "O8_evidence_complete",
			SQL: `SELECT d.id, d.reported_beds, d.reported_baths,
                         COUNT(p.id) FILTER (WHERE p.room_type = 'bedroom') AS bedrooms,
                         COUNT(p.id) FILTER (WHERE p.room_type = 'bathroom') AS bathrooms
                  FROM dispute_requests d LEFT JOIN evidence_photos p ON p.dispute_request_id = d.id
                  GROUP BY d.id
                  HAVING COUNT(p.id) FILTER (WHERE p.room_type = 'bedroom') < GREATEST(d.reported_beds - d.original_beds, 0)
                      OR COUNT(p.id) FILTER (WHERE p.room_type = 'bathroom') < GREATEST(d.reported_baths - d.original_baths, 0)
                      OR COUNT(p.id) FILTER (WHERE p.room_type = 'bedroom' AND p.room_number > d.reported_beds) > 0
                      OR COUNT(p.id) FILTER (WHERE p.room_type = 'bathroom' AND p.room_number > d.reported_baths) > 0`,
		},
		{
			Name: "O9_outbox_not_stuck",
			SQL: `SELECT id FROM outbox
                  WHERE status = 'pending' AND now() - created_at > interval '5 minutes'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
