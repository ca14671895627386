package dispute

import (
	"time"

	"cleanflow/evidence"
	"cleanflow/pricing"
)

// Request mirrors the dispute_requests table. Narrative fields hold
// ciphertext as stored; they are decrypted only during projection.
type Request struct {
	ID            string
	AppointmentID string
	HomeID        string
	CleanerID     string
	HomeownerID   string
	ResolverID    *string

	OriginalBeds      int
	OriginalBaths     int
	OriginalPrice     pricing.Cents
	ReportedBeds      int
	ReportedBaths     int
	RecalculatedPrice pricing.Cents
	PriceDelta        pricing.Cents

	CleanerNote           *string
	HomeownerResponseText *string
	ResolverNote          *string

	Status               Status
	ExpiresAt            time.Time
	HomeownerRespondedAt *time.Time
	ResolvedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Party is a user row joined for projection. Name and email columns are
// encrypted at rest. Fields the plan did not select are nil.
type Party struct {
	ID                 string
	FirstName          *string
	LastName           *string
	Email              *string
	FalseClaimCount    *int64
	FalseHomeSizeCount *int64
}

// Loaded is everything a store fetched for one dispute under a Plan. The
// projector shapes only what is here.
type Loaded struct {
	Plan      Plan
	Request   Request
	Cleaner   Party
	Homeowner Party
	Photos    []evidence.Photo
}

type CreateParams struct {
	AppointmentID string
	// HomeID is optional; when set it must match the appointment's home.
	HomeID        string
	ReportedBeds  int
	ReportedBaths int
	CleanerNote   *string
	Photos        []evidence.Upload
}

type RespondParams struct {
	Approve      bool
	ResponseText *string
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionDeny    Decision = "deny"
)

type ResolveParams struct {
	Decision Decision
	Note     *string
}

// Filter selects disputes for list reads.
type Filter struct {
	Scope    Scope
	Statuses []Status
	HomeID   string
	// OpenAt, when set, drops pending_homeowner rows whose window closed
	// at or before it.
	OpenAt *time.Time
	Limit  int
}
