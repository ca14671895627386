package dispute

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allStatuses = []Status{
	StatusPendingHomeowner, StatusApproved, StatusPendingOwner,
	StatusOwnerApproved, StatusOwnerDenied, StatusExpired,
}

func TestCanTransition_Edges(t *testing.T) {
	legal := map[[2]Status]bool{
		{StatusPendingHomeowner, StatusApproved}:     true,
		{StatusPendingHomeowner, StatusPendingOwner}: true,
		{StatusPendingHomeowner, StatusExpired}:      true,
		{StatusPendingOwner, StatusOwnerApproved}:    true,
		{StatusPendingOwner, StatusOwnerDenied}:      true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legal[[2]Status{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
	if CanTransition("draft", StatusPendingHomeowner) {
		t.Error("unknown statuses have no edges")
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range TerminalStatuses {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range OpenStatuses {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if Status("draft").Terminal() || Status("draft").Valid() || Status("draft").Rank() != -1 {
		t.Error("unknown status must be invalid")
	}
}

func TestLatticeIsMonotone(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	// Any sequence of attempted moves, applied only when legal, never lowers
	// the rank and never leaves a terminal status.
	properties.Property("no backward transitions", prop.ForAll(
		func(attempts []int) bool {
			current := StatusPendingHomeowner
			for _, a := range attempts {
				next := allStatuses[a]
				if !CanTransition(current, next) {
					continue
				}
				if current.Terminal() || next.Rank() <= current.Rank() {
					return false
				}
				current = next
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(allStatuses)-1)),
	))

	properties.Property("edges only climb the lattice", prop.ForAll(
		func(i, j int) bool {
			from, to := allStatuses[i], allStatuses[j]
			return !CanTransition(from, to) || to.Rank() > from.Rank()
		},
		gen.IntRange(0, len(allStatuses)-1),
		gen.IntRange(0, len(allStatuses)-1),
	))

	properties.TestingRun(t)
}
