package dispute

// Status is the lifecycle position of a dispute.
type Status string

const (
	StatusPendingHomeowner Status = "pending_homeowner"
	StatusApproved         Status = "approved"
	StatusPendingOwner     Status = "pending_owner"
	StatusOwnerApproved    Status = "owner_approved"
	StatusOwnerDenied      Status = "owner_denied"
	StatusExpired          Status = "expired"
)

// allowed lists every legal edge. Anything absent is rejected.
var allowed = map[Status][]Status{
	StatusPendingHomeowner: {StatusApproved, StatusPendingOwner, StatusExpired},
	StatusPendingOwner:     {StatusOwnerApproved, StatusOwnerDenied},
}

// OpenStatuses are the statuses a dispute can still leave.
var OpenStatuses = []Status{StatusPendingHomeowner, StatusPendingOwner}

// TerminalStatuses are permanent.
var TerminalStatuses = []Status{StatusApproved, StatusOwnerApproved, StatusOwnerDenied, StatusExpired}

func (s Status) Valid() bool {
	_, ok := ranks[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(allowed[s]) == 0
}

var ranks = map[Status]int{
	StatusPendingHomeowner: 0,
	StatusApproved:         1,
	StatusPendingOwner:     1,
	StatusOwnerApproved:    2,
	StatusOwnerDenied:      2,
	StatusExpired:          2,
}

// Rank is the lattice height of s, or -1 for unknown statuses. Approved is
// terminal despite sharing a rank with pending_owner.
func (s Status) Rank() int {
	r, ok := ranks[s]
	if !ok {
		return -1
	}
	return r
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range allowed[from] {
		if next == to {
			return true
		}
	}
	return false
}
