package dispute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"cleanflow/appointment"
	"cleanflow/auth"
	"cleanflow/evidence"
	"cleanflow/pii"
	"cleanflow/pricing"
	"cleanflow/trust"
)

// DefaultWindow is how long a homeowner has to answer a claim.
const DefaultWindow = 24 * time.Hour

// MaxRooms bounds reported sizes.
const MaxRooms = 50

// AppointmentReader loads the appointment of record for a new claim.
type AppointmentReader interface {
	GetByID(ctx context.Context, id string) (appointment.Appointment, error)
}

type Service struct {
	store        Store
	appointments AppointmentReader
	codec        pii.Codec
	projector    *Projector
	logger       *slog.Logger
	now          func() time.Time
	idGenerator  func() string
	window       time.Duration
	policy       pricing.Policy
}

func NewService(store Store, appointments AppointmentReader, codec pii.Codec, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		appointments: appointments,
		codec:        codec,
		projector:    NewProjector(pii.NewReader(codec, logger)),
		logger:       logger.With("module", "dispute", "layer", "service"),
		now:          time.Now,
		idGenerator:  uuid.NewString,
		window:       DefaultWindow,
		policy:       pricing.DefaultPolicy,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGenerator = gen
	return s
}

// WithWindow sets the homeowner response window. Non-positive values keep
// the current window.
func (s *Service) WithWindow(d time.Duration) *Service {
	if d > 0 {
		s.window = d
	}
	return s
}

func (s *Service) WithPolicy(p pricing.Policy) *Service {
	s.policy = p
	return s
}

// Create files a size claim for an appointment the calling cleaner works.
func (s *Service) Create(ctx context.Context, viewer auth.Principal, params CreateParams) (View, error) {
	if viewer.Role != auth.RoleCleaner {
		return nil, &AuthorizationError{Action: "file a dispute"}
	}
	if params.AppointmentID == "" {
		return nil, invalid("appointmentId", "required")
	}
	if !validUUID(params.AppointmentID) {
		return nil, &AuthorizationError{Action: "file a dispute"}
	}
	if params.ReportedBeds < 0 || params.ReportedBeds > MaxRooms {
		return nil, invalid("reportedBeds", fmt.Sprintf("must be between 0 and %d", MaxRooms))
	}
	if params.ReportedBaths < 0 || params.ReportedBaths > MaxRooms {
		return nil, invalid("reportedBaths", fmt.Sprintf("must be between 0 and %d", MaxRooms))
	}

	appt, err := s.appointments.GetByID(ctx, params.AppointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrNotFound) {
			return nil, &AuthorizationError{Action: "file a dispute"}
		}
		return nil, fmt.Errorf("dispute: load appointment: %w", err)
	}
	if !appt.HasCleaner(viewer.UserID) {
		return nil, &AuthorizationError{Action: "file a dispute"}
	}
	if params.HomeID != "" && params.HomeID != appt.HomeID {
		return nil, invalid("homeId", "does not match the appointment")
	}
	if params.ReportedBeds == appt.Beds && params.ReportedBaths == appt.Baths {
		return nil, invalid("reportedBeds", "reported size matches the home of record")
	}
	if err := evidence.CheckComplete(
		evidence.Rooms{Beds: appt.Beds, Baths: appt.Baths},
		evidence.Rooms{Beds: params.ReportedBeds, Baths: params.ReportedBaths},
		params.Photos,
	); err != nil {
		return nil, &ValidationError{Field: "photos", Reason: "evidence incomplete or malformed", Err: err}
	}

	note, err := pii.Seal(s.codec, params.CleanerNote)
	if err != nil {
		s.logger.ErrorContext(ctx, "encrypt cleaner note failed",
			"operation", "create",
			"outcome", "failure",
			"appointment_id", appt.ID,
			"error", err,
		)
		return nil, err
	}

	quote := s.policy.Recalculate(pricing.Claim{
		OriginalBeds:  appt.Beds,
		OriginalBaths: appt.Baths,
		OriginalPrice: appt.Price,
		ReportedBeds:  params.ReportedBeds,
		ReportedBaths: params.ReportedBaths,
	})

	now := s.now().UTC()
	rec := Request{
		ID:                s.idGenerator(),
		AppointmentID:     appt.ID,
		HomeID:            appt.HomeID,
		CleanerID:         viewer.UserID,
		HomeownerID:       appt.HomeownerID,
		OriginalBeds:      appt.Beds,
		OriginalBaths:     appt.Baths,
		OriginalPrice:     appt.Price,
		ReportedBeds:      params.ReportedBeds,
		ReportedBaths:     params.ReportedBaths,
		RecalculatedPrice: quote.NewPrice,
		PriceDelta:        quote.Delta,
		CleanerNote:       note,
		Status:            StatusPendingHomeowner,
		ExpiresAt:         now.Add(s.window),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Insert(ctx, rec, params.Photos); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "dispute created",
		"operation", "create",
		"outcome", "success",
		"dispute_id", rec.ID,
		"appointment_id", rec.AppointmentID,
		"price_delta_cents", int64(rec.PriceDelta),
	)
	return s.reload(ctx, viewer, rec.ID)
}

// HomeownerRespond records the homeowner's answer while the window is open.
func (s *Service) HomeownerRespond(ctx context.Context, viewer auth.Principal, id string, params RespondParams) (View, error) {
	if viewer.Role != auth.RoleHomeowner {
		return nil, &AuthorizationError{Action: "respond to a dispute"}
	}
	if !validUUID(id) {
		return nil, &AuthorizationError{Action: "respond to this dispute"}
	}

	t := Transition{
		ID:                id,
		From:              StatusPendingHomeowner,
		ActorID:           viewer.UserID,
		Now:               s.now().UTC(),
		HomeownerID:       viewer.UserID,
		RequireOpenWindow: true,
		StampResponded:    true,
	}
	if params.Approve {
		t.To = StatusApproved
		t.ApplyPrice = true
	} else {
		t.To = StatusPendingOwner
	}
	// An approval may carry a comment too; it is stored like a rebuttal.
	text, err := pii.Seal(s.codec, params.ResponseText)
	if err != nil {
		return nil, err
	}
	t.ResponseText = text

	if err := s.transition(ctx, viewer, t); err != nil {
		return nil, err
	}
	return s.reload(ctx, viewer, id)
}

// OwnerResolve settles an escalated dispute. It succeeds at most once per
// dispute.
func (s *Service) OwnerResolve(ctx context.Context, viewer auth.Principal, id string, params ResolveParams) (View, error) {
	if !viewer.Role.IsArbiter() {
		return nil, &AuthorizationError{Action: "resolve a dispute"}
	}
	if !validUUID(id) {
		return nil, ErrNotFound
	}

	t := Transition{
		ID:            id,
		From:          StatusPendingOwner,
		ActorID:       viewer.UserID,
		Now:           s.now().UTC(),
		ResolverID:    &viewer.UserID,
		StampResolved: true,
	}
	switch params.Decision {
	case DecisionApprove:
		t.To = StatusOwnerApproved
		t.ApplyPrice = true
		t.Penalty = &Penalty{Counter: trust.FalseHomeSize, Party: PartyHomeowner}
	case DecisionDeny:
		t.To = StatusOwnerDenied
		t.Penalty = &Penalty{Counter: trust.FalseClaim, Party: PartyCleaner}
	default:
		return nil, invalid("decision", `must be "approve" or "deny"`)
	}

	note, err := pii.Seal(s.codec, params.Note)
	if err != nil {
		return nil, err
	}
	t.ResolverNote = note

	if err := s.transition(ctx, viewer, t); err != nil {
		return nil, err
	}
	return s.reload(ctx, viewer, id)
}

// ExpireStale closes every pending_homeowner dispute whose window has passed.
// Expiry changes neither prices nor trust counters.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	ids, err := s.store.ExpireStale(ctx, s.now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "expire stale disputes failed",
			"operation", "expire_stale",
			"outcome", "failure",
			"error", err,
		)
		return 0, err
	}
	if len(ids) > 0 {
		s.logger.InfoContext(ctx, "disputes expired",
			"operation", "expire_stale",
			"outcome", "success",
			"count", len(ids),
		)
	}
	return len(ids), nil
}

// Get returns one dispute projected for the caller.
func (s *Service) Get(ctx context.Context, viewer auth.Principal, id string) (View, error) {
	if !viewer.Role.Valid() {
		return nil, &AuthorizationError{Action: "view this dispute"}
	}
	if !validUUID(id) {
		return nil, s.hide(viewer, ErrNotFound, "view this dispute")
	}
	return s.reload(ctx, viewer, id)
}

// ListPending returns the disputes awaiting action that concern the caller.
func (s *Service) ListPending(ctx context.Context, viewer auth.Principal) ([]View, error) {
	f := Filter{Scope: ScopeFor(viewer)}
	switch viewer.Role {
	case auth.RoleCleaner:
		f.Statuses = OpenStatuses
	case auth.RoleHomeowner:
		now := s.now().UTC()
		f.Statuses = []Status{StatusPendingHomeowner}
		f.OpenAt = &now
	case auth.RoleOwner, auth.RoleHR:
		f.Statuses = []Status{StatusPendingOwner}
	default:
		return nil, &AuthorizationError{Action: "list disputes"}
	}
	return s.list(ctx, viewer, f)
}

// History returns terminal disputes for a home that the caller may see.
func (s *Service) History(ctx context.Context, viewer auth.Principal, homeID string) ([]View, error) {
	if !viewer.Role.Valid() {
		return nil, &AuthorizationError{Action: "view dispute history"}
	}
	if homeID == "" {
		return nil, invalid("homeId", "required")
	}
	return s.list(ctx, viewer, Filter{
		Scope:    ScopeFor(viewer),
		Statuses: TerminalStatuses,
		HomeID:   homeID,
	})
}

func (s *Service) list(ctx context.Context, viewer auth.Principal, f Filter) ([]View, error) {
	loaded, err := s.store.List(ctx, f, PlanFor(viewer.Role))
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(loaded))
	for _, l := range loaded {
		out = append(out, s.projector.Project(l))
	}
	return out, nil
}

func (s *Service) transition(ctx context.Context, viewer auth.Principal, t Transition) error {
	err := s.store.Transition(ctx, t)
	if err != nil {
		err = s.hide(viewer, err, "act on this dispute")
		s.logger.WarnContext(ctx, "dispute transition rejected",
			"operation", t.EventType(),
			"outcome", "failure",
			"dispute_id", t.ID,
			"error", err,
		)
		return err
	}
	s.logger.InfoContext(ctx, "dispute transitioned",
		"operation", t.EventType(),
		"outcome", "success",
		"dispute_id", t.ID,
		"actor_id", t.ActorID,
	)
	return nil
}

func (s *Service) reload(ctx context.Context, viewer auth.Principal, id string) (View, error) {
	l, err := s.store.Load(ctx, id, ScopeFor(viewer), PlanFor(viewer.Role))
	if err != nil {
		return nil, s.hide(viewer, err, "view this dispute")
	}
	return s.projector.Project(l), nil
}

// hide turns not-found into an authorization failure for the parties so
// they cannot probe for dispute ids. Arbiters see the real error.
func (s *Service) hide(viewer auth.Principal, err error, action string) error {
	if errors.Is(err, ErrNotFound) && !viewer.Role.IsArbiter() {
		return &AuthorizationError{Action: action}
	}
	return err
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
