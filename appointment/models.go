package appointment

import (
	"slices"
	"time"

	"cleanflow/pricing"
)

// Appointment is the slice of a scheduled cleaning the dispute workflow reads:
// the home of record, its parties, and the price being charged.
type Appointment struct {
	ID          string
	HomeID      string
	HomeownerID string
	CleanerIDs  []string
	Beds        int
	Baths       int
	Price       pricing.Cents
	UpdatedAt   time.Time
}

// HasCleaner reports whether cleanerID is assigned to the appointment.
func (a Appointment) HasCleaner(cleanerID string) bool {
	return slices.Contains(a.CleanerIDs, cleanerID)
}
