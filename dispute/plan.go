package dispute

import "cleanflow/auth"

// Plan is the access matrix for one role, resolved before any query runs.
// Stores read it to decide which relations and columns to fetch.
type Plan struct {
	Role               auth.Role
	JoinPhotos         bool
	SelectResponseText bool
	SelectResolver     bool
	PartyDetail        bool
}

// PlanFor returns the query plan for role. Unknown roles get the most
// restrictive plan.
func PlanFor(role auth.Role) Plan {
	switch role {
	case auth.RoleOwner, auth.RoleHR:
		return Plan{
			Role:               role,
			JoinPhotos:         true,
			SelectResponseText: true,
			SelectResolver:     true,
			PartyDetail:        true,
		}
	case auth.RoleHomeowner:
		return Plan{Role: role, SelectResponseText: true}
	default:
		return Plan{Role: auth.RoleCleaner}
	}
}

// Scope restricts reads to disputes a party belongs to. Empty fields do not
// restrict.
type Scope struct {
	CleanerID   string
	HomeownerID string
}

// ScopeFor derives the row scope for a caller.
func ScopeFor(p auth.Principal) Scope {
	switch p.Role {
	case auth.RoleCleaner:
		return Scope{CleanerID: p.UserID}
	case auth.RoleHomeowner:
		return Scope{HomeownerID: p.UserID}
	case auth.RoleOwner, auth.RoleHR:
		return Scope{}
	default:
		// Matches nothing.
		return Scope{CleanerID: "-", HomeownerID: "-"}
	}
}

func (s Scope) Allows(r Request) bool {
	if s.CleanerID != "" && s.CleanerID != r.CleanerID {
		return false
	}
	if s.HomeownerID != "" && s.HomeownerID != r.HomeownerID {
		return false
	}
	return true
}
