package dispute

import (
	"context"
	"time"

	"cleanflow/evidence"
	"cleanflow/outbox"
	"cleanflow/trust"
)

// Store persists disputes. Every write is atomic; every read is shaped by a
// Plan before it executes.
type Store interface {
	// Insert writes the dispute, its photos, a history event and an outbox
	// message together. It returns ErrOpenDispute when the appointment
	// already has an unresolved dispute.
	Insert(ctx context.Context, rec Request, photos []evidence.Upload) error
	// Transition applies t as a single conditional update. A guard miss
	// yields ErrNotFound, *AuthorizationError or *StaleStateError.
	Transition(ctx context.Context, t Transition) error
	// ExpireStale moves every pending_homeowner dispute whose window closed
	// at or before now to expired and returns the ids it moved.
	ExpireStale(ctx context.Context, now time.Time) ([]string, error)
	Load(ctx context.Context, id string, scope Scope, plan Plan) (Loaded, error)
	List(ctx context.Context, f Filter, plan Plan) ([]Loaded, error)
}

// PartyRole picks which side of a dispute a penalty lands on.
type PartyRole string

const (
	PartyCleaner   PartyRole = "cleaner"
	PartyHomeowner PartyRole = "homeowner"
)

// Penalty is a trust counter increment bound to a transition.
type Penalty struct {
	Counter trust.Counter
	Party   PartyRole
}

// Transition describes one guarded edge of the lifecycle and the effects
// that commit with it.
type Transition struct {
	ID      string
	From    Status
	To      Status
	ActorID string
	Now     time.Time

	// HomeownerID, when set, must own the dispute.
	HomeownerID string
	// RequireOpenWindow guards on expires_at > Now.
	RequireOpenWindow bool

	ResponseText *string
	ResolverID   *string
	ResolverNote *string

	StampResponded bool
	StampResolved  bool

	// ApplyPrice sets the appointment price to the recalculated price.
	ApplyPrice bool
	Penalty    *Penalty
}

// EventType is the dispute_events type recorded for the edge.
func (t Transition) EventType() string {
	return string(t.From) + "->" + string(t.To)
}

var transitionTopics = map[Status]string{
	StatusApproved:      outbox.TopicDisputeHomeownerApproved,
	StatusPendingOwner:  outbox.TopicDisputeEscalated,
	StatusOwnerApproved: outbox.TopicDisputeOwnerApproved,
	StatusOwnerDenied:   outbox.TopicDisputeOwnerDenied,
	StatusExpired:       outbox.TopicDisputeExpired,
}

func topicFor(to Status) string {
	return transitionTopics[to]
}
