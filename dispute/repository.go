package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"cleanflow/appointment"
	"cleanflow/db"
	"cleanflow/evidence"
	"cleanflow/outbox"
	"cleanflow/pricing"
	"cleanflow/trust"
)

const openDisputeIndex = "dispute_requests_one_open_per_appointment"

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	db.Querier
	db.TxBeginner
}

// Repository is the Postgres Store.
type Repository struct {
	pool   Pool
	photos *evidence.Repository
	ledger *trust.Ledger
	newID  func() string
}

func NewRepository(pool Pool) *Repository {
	return &Repository{
		pool:   pool,
		photos: evidence.NewRepository(),
		ledger: trust.NewLedger(),
		newID:  uuid.NewString,
	}
}

func (r *Repository) Insert(ctx context.Context, rec Request, uploads []evidence.Upload) error {
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const insertSQL = `
			INSERT INTO dispute_requests (
				id, appointment_id, home_id, cleaner_id, homeowner_id,
				original_beds, original_baths, original_price_cents,
				reported_beds, reported_baths, recalculated_price_cents, price_delta_cents,
				cleaner_note, status, expires_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::text::dispute_status, $15, $16, $17)
		`
		_, err := tx.Exec(ctx, insertSQL,
			rec.ID, rec.AppointmentID, rec.HomeID, rec.CleanerID, rec.HomeownerID,
			rec.OriginalBeds, rec.OriginalBaths, int64(rec.OriginalPrice),
			rec.ReportedBeds, rec.ReportedBaths, int64(rec.RecalculatedPrice), int64(rec.PriceDelta),
			rec.CleanerNote, string(rec.Status), rec.ExpiresAt, rec.CreatedAt, rec.UpdatedAt,
		)
		if err != nil {
			if db.IsUniqueViolation(err, openDisputeIndex) {
				return ErrOpenDispute
			}
			return fmt.Errorf("dispute: insert: %w", err)
		}

		if _, err := r.photos.InsertAll(ctx, tx, rec.ID, uploads, r.newID, rec.CreatedAt); err != nil {
			return err
		}

		payload := map[string]any{
			"dispute_id":               rec.ID,
			"appointment_id":           rec.AppointmentID,
			"home_id":                  rec.HomeID,
			"recalculated_price_cents": int64(rec.RecalculatedPrice),
			"price_delta_cents":        int64(rec.PriceDelta),
			"expires_at":               rec.ExpiresAt.UTC(),
		}
		if err := appendEvent(ctx, tx, rec.ID, "created", "", rec.Status, rec.CleanerID, payload, rec.CreatedAt); err != nil {
			return err
		}
		return outbox.Enqueue(ctx, tx, outbox.TopicDisputeCreated, rec.ID, payload)
	})
}

func (r *Repository) Transition(ctx context.Context, t Transition) error {
	if !CanTransition(t.From, t.To) {
		return fmt.Errorf("dispute: illegal edge %s -> %s", t.From, t.To)
	}
	return db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const updateSQL = `
			UPDATE dispute_requests
			SET status = $3::text::dispute_status,
			    updated_at = $4,
			    homeowner_responded_at = CASE WHEN $5::boolean THEN $4 ELSE homeowner_responded_at END,
			    resolved_at = CASE WHEN $6::boolean THEN $4 ELSE resolved_at END,
			    homeowner_response_text = COALESCE($7::text, homeowner_response_text),
			    resolver_id = COALESCE($8::text::uuid, resolver_id),
			    resolver_note = COALESCE($9::text, resolver_note)
			WHERE id = $1
			  AND status = $2::text::dispute_status
			  AND ($10::text = '' OR homeowner_id::text = $10::text)
			  AND (NOT $11::boolean OR expires_at > $4)
			RETURNING appointment_id::text, cleaner_id::text, homeowner_id::text, recalculated_price_cents
		`
		var (
			appointmentID string
			cleanerID     string
			homeownerID   string
			price         int64
		)
		err := tx.QueryRow(ctx, updateSQL,
			t.ID, string(t.From), string(t.To), t.Now,
			t.StampResponded, t.StampResolved,
			t.ResponseText, t.ResolverID, t.ResolverNote,
			t.HomeownerID, t.RequireOpenWindow,
		).Scan(&appointmentID, &cleanerID, &homeownerID, &price)
		if errors.Is(err, pgx.ErrNoRows) {
			return classifyMiss(ctx, tx, t)
		}
		if err != nil {
			return fmt.Errorf("dispute: transition %s: %w", t.EventType(), err)
		}

		payload := map[string]any{
			"dispute_id":     t.ID,
			"appointment_id": appointmentID,
			"from":           string(t.From),
			"to":             string(t.To),
			"at":             t.Now.UTC(),
		}

		if t.ApplyPrice {
			if err := appointment.ApplyPrice(ctx, tx, appointmentID, pricing.Cents(price), t.Now); err != nil {
				return err
			}
			payload["price_cents"] = price
			if err := outbox.Enqueue(ctx, tx, outbox.TopicAppointmentPriceChanged, appointmentID, map[string]any{
				"appointment_id": appointmentID,
				"dispute_id":     t.ID,
				"price_cents":    price,
			}); err != nil {
				return err
			}
		}

		if t.Penalty != nil {
			target := cleanerID
			if t.Penalty.Party == PartyHomeowner {
				target = homeownerID
			}
			counters, err := r.ledger.Increment(ctx, tx, target, t.Penalty.Counter)
			if err != nil {
				return err
			}
			payload["penalized_user_id"] = target
			payload["counter"] = string(t.Penalty.Counter)
			payload["false_claim_count"] = counters.FalseClaim
			payload["false_home_size_count"] = counters.FalseHomeSize
		}

		if err := appendEvent(ctx, tx, t.ID, t.EventType(), t.From, t.To, t.ActorID, payload, t.Now); err != nil {
			return err
		}
		return outbox.Enqueue(ctx, tx, topicFor(t.To), t.ID, payload)
	})
}

// classifyMiss explains why a guarded update matched no row.
func classifyMiss(ctx context.Context, q db.Querier, t Transition) error {
	const check = `
		SELECT status::text, homeowner_id::text, expires_at
		FROM dispute_requests
		WHERE id = $1
	`
	var (
		status      Status
		homeownerID string
		expiresAt   time.Time
	)
	if err := q.QueryRow(ctx, check, t.ID).Scan(&status, &homeownerID, &expiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("dispute: transition fetch: %w", err)
	}
	return missReason(t, status, homeownerID, expiresAt)
}

func missReason(t Transition, status Status, homeownerID string, expiresAt time.Time) error {
	if t.HomeownerID != "" && t.HomeownerID != homeownerID {
		return &AuthorizationError{Action: "respond to this dispute"}
	}
	if status != t.From {
		return &StaleStateError{ID: t.ID, Expected: t.From, Actual: status}
	}
	if t.RequireOpenWindow && !expiresAt.After(t.Now) {
		return &StaleStateError{ID: t.ID, Expected: t.From, Actual: status, Expired: true}
	}
	return &StaleStateError{ID: t.ID, Expected: t.From, Actual: status}
}

func (r *Repository) ExpireStale(ctx context.Context, now time.Time) ([]string, error) {
	var expired []string
	err := db.InTx(ctx, r.pool, func(tx pgx.Tx) error {
		const updateSQL = `
			UPDATE dispute_requests
			SET status = 'expired', updated_at = $1
			WHERE status = 'pending_homeowner' AND expires_at <= $1
			RETURNING id::text, appointment_id::text
		`
		rows, err := tx.Query(ctx, updateSQL, now)
		if err != nil {
			return fmt.Errorf("dispute: expire: %w", err)
		}
		type row struct{ id, appointmentID string }
		var moved []row
		for rows.Next() {
			var rw row
			if err := rows.Scan(&rw.id, &rw.appointmentID); err != nil {
				rows.Close()
				return fmt.Errorf("dispute: expire scan: %w", err)
			}
			moved = append(moved, rw)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("dispute: expire iterate: %w", err)
		}

		for _, rw := range moved {
			payload := map[string]any{
				"dispute_id":     rw.id,
				"appointment_id": rw.appointmentID,
				"from":           string(StatusPendingHomeowner),
				"to":             string(StatusExpired),
				"at":             now.UTC(),
			}
			if err := appendEvent(ctx, tx, rw.id, "pending_homeowner->expired", StatusPendingHomeowner, StatusExpired, "", payload, now); err != nil {
				return err
			}
			if err := outbox.Enqueue(ctx, tx, outbox.TopicDisputeExpired, rw.id, payload); err != nil {
				return err
			}
			expired = append(expired, rw.id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (r *Repository) Load(ctx context.Context, id string, scope Scope, plan Plan) (Loaded, error) {
	out, err := r.query(ctx, Filter{Scope: scope, Limit: 1}, plan, id)
	if err != nil {
		return Loaded{}, err
	}
	if len(out) == 0 {
		return Loaded{}, ErrNotFound
	}
	return out[0], nil
}

func (r *Repository) List(ctx context.Context, f Filter, plan Plan) ([]Loaded, error) {
	return r.query(ctx, f, plan, "")
}

func (r *Repository) query(ctx context.Context, f Filter, plan Plan, id string) ([]Loaded, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if id != "" {
		add("d.id = $%d", id)
	}
	if f.Scope.CleanerID != "" {
		add("d.cleaner_id::text = $%d", f.Scope.CleanerID)
	}
	if f.Scope.HomeownerID != "" {
		add("d.homeowner_id::text = $%d", f.Scope.HomeownerID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("d.status::text = ANY($%d::text[])", statuses)
	}
	if f.HomeID != "" {
		add("d.home_id::text = $%d", f.HomeID)
	}
	if f.OpenAt != nil {
		add("(d.status <> 'pending_homeowner' OR d.expires_at > $%d)", *f.OpenAt)
	}

	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(selectColumns(plan))
	sb.WriteString(`
		FROM dispute_requests d
		JOIN users c ON c.id = d.cleaner_id
		JOIN users hu ON hu.id = d.homeowner_id`)
	if len(where) > 0 {
		sb.WriteString("\n\t\tWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, "\n\t\tORDER BY d.created_at DESC, d.id\n\t\tLIMIT %d", limit)

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Loaded, 0, 8)
	for rows.Next() {
		l, err := scanLoaded(rows, plan)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}

	if plan.JoinPhotos && len(out) > 0 {
		ids := make([]string, len(out))
		for i := range out {
			ids[i] = out[i].Request.ID
		}
		byDispute, err := r.photos.ListByDispute(ctx, r.pool, ids)
		if err != nil {
			return nil, err
		}
		for i := range out {
			out[i].Photos = byDispute[out[i].Request.ID]
		}
	}
	return out, nil
}

// selectColumns lists the projection for plan. Columns outside the plan are
// NULL literals so the row shape never changes.
func selectColumns(p Plan) string {
	opt := func(ok bool, expr, typ string) string {
		if ok {
			return expr
		}
		return "NULL::" + typ
	}
	party := func(alias string) []string {
		return []string{
			alias + ".id::text",
			alias + ".first_name",
			opt(p.PartyDetail, alias+".last_name", "text"),
			opt(p.PartyDetail, alias+".email", "text"),
			opt(p.PartyDetail, alias+".false_claim_count", "bigint"),
			opt(p.PartyDetail, alias+".false_home_size_count", "bigint"),
		}
	}
	cols := []string{
		"d.id::text", "d.appointment_id::text", "d.home_id::text", "d.cleaner_id::text", "d.homeowner_id::text",
		opt(p.SelectResolver, "d.resolver_id::text", "text"),
		"d.original_beds", "d.original_baths", "d.original_price_cents",
		"d.reported_beds", "d.reported_baths", "d.recalculated_price_cents", "d.price_delta_cents",
		"d.cleaner_note",
		opt(p.SelectResponseText, "d.homeowner_response_text", "text"),
		opt(p.SelectResolver, "d.resolver_note", "text"),
		"d.status::text", "d.expires_at", "d.homeowner_responded_at", "d.resolved_at", "d.created_at", "d.updated_at",
	}
	cols = append(cols, party("c")...)
	cols = append(cols, party("hu")...)
	return strings.Join(cols, ", ")
}

type scanner interface {
	Scan(dest ...any) error
}

// scanLoaded maps one row in selectColumns order to a Loaded.
func scanLoaded(row scanner, plan Plan) (Loaded, error) {
	l := Loaded{Plan: plan}
	var originalPrice, recalculated, delta int64
	req := &l.Request
	err := row.Scan(
		&req.ID, &req.AppointmentID, &req.HomeID, &req.CleanerID, &req.HomeownerID,
		&req.ResolverID,
		&req.OriginalBeds, &req.OriginalBaths, &originalPrice,
		&req.ReportedBeds, &req.ReportedBaths, &recalculated, &delta,
		&req.CleanerNote,
		&req.HomeownerResponseText,
		&req.ResolverNote,
		&req.Status, &req.ExpiresAt, &req.HomeownerRespondedAt, &req.ResolvedAt, &req.CreatedAt, &req.UpdatedAt,
		&l.Cleaner.ID, &l.Cleaner.FirstName, &l.Cleaner.LastName, &l.Cleaner.Email,
		&l.Cleaner.FalseClaimCount, &l.Cleaner.FalseHomeSizeCount,
		&l.Homeowner.ID, &l.Homeowner.FirstName, &l.Homeowner.LastName, &l.Homeowner.Email,
		&l.Homeowner.FalseClaimCount, &l.Homeowner.FalseHomeSizeCount,
	)
	if err != nil {
		return Loaded{}, fmt.Errorf("dispute: scan: %w", err)
	}
	req.OriginalPrice = pricing.Cents(originalPrice)
	req.RecalculatedPrice = pricing.Cents(recalculated)
	req.PriceDelta = pricing.Cents(delta)
	return l, nil
}

func appendEvent(ctx context.Context, q db.Querier, disputeID, eventType string, from, to Status, actorID string, payload map[string]any, at time.Time) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispute: marshal event payload: %w", err)
	}

	var fromStatus, actor any
	if from != "" {
		fromStatus = string(from)
	}
	if actorID != "" {
		actor = actorID
	}

	const insertSQL = `
INSERT INTO dispute_events (dispute_id, type, from_status, to_status, actor_id, payload, created_at)
VALUES ($1, $2, $3::text, $4::text, $5::text::uuid, $6, $7);
`
	if _, err := q.Exec(ctx, insertSQL, disputeID, eventType, fromStatus, string(to), actor, payloadBytes, at); err != nil {
		return fmt.Errorf("dispute: insert event: %w", err)
	}
	return nil
}
