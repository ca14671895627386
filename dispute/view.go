package dispute

import (
	"time"

	"cleanflow/auth"
	"cleanflow/evidence"
	"cleanflow/pricing"
)

// View is a role-shaped projection of one dispute. The concrete type fixes
// the JSON key set.
type View interface {
	ViewRole() auth.Role
	DisputeID() string
}

// ClaimView is the part of a dispute every role may see.
type ClaimView struct {
	ID                   string        `json:"id"`
	AppointmentID        string        `json:"appointmentId"`
	HomeID               string        `json:"homeId"`
	Status               Status        `json:"status"`
	OriginalBeds         int           `json:"originalBeds"`
	OriginalBaths        int           `json:"originalBaths"`
	OriginalPrice        pricing.Cents `json:"originalPrice"`
	ReportedBeds         int           `json:"reportedBeds"`
	ReportedBaths        int           `json:"reportedBaths"`
	RecalculatedPrice    pricing.Cents `json:"recalculatedPrice"`
	PriceDelta           pricing.Cents `json:"priceDelta"`
	CleanerNote          *string       `json:"cleanerNote"`
	ExpiresAt            time.Time     `json:"expiresAt"`
	HomeownerRespondedAt *time.Time    `json:"homeownerRespondedAt"`
	ResolvedAt           *time.Time    `json:"resolvedAt"`
	CreatedAt            time.Time     `json:"createdAt"`
	UpdatedAt            time.Time     `json:"updatedAt"`
}

func (c ClaimView) DisputeID() string { return c.ID }

// PartySummary is the minimal identity shown to the parties themselves.
type PartySummary struct {
	ID        string  `json:"id"`
	FirstName *string `json:"firstName"`
}

// PartyProfile is the full identity shown to arbiters.
type PartyProfile struct {
	ID                 string  `json:"id"`
	FirstName          *string `json:"firstName"`
	LastName           *string `json:"lastName"`
	Email              *string `json:"email"`
	FalseClaimCount    int64   `json:"falseClaimCount"`
	FalseHomeSizeCount int64   `json:"falseHomeSizeCount"`
}

type PhotoView struct {
	ID         string            `json:"id"`
	RoomType   evidence.RoomType `json:"roomType"`
	RoomNumber int               `json:"roomNumber"`
	PhotoURL   string            `json:"photoUrl"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type CleanerView struct {
	ClaimView
	Cleaner   PartySummary `json:"cleaner"`
	Homeowner PartySummary `json:"homeowner"`
}

func (CleanerView) ViewRole() auth.Role { return auth.RoleCleaner }

type HomeownerView struct {
	ClaimView
	HomeownerResponseText *string      `json:"homeownerResponseText"`
	Cleaner               PartySummary `json:"cleaner"`
	Homeowner             PartySummary `json:"homeowner"`
}

func (HomeownerView) ViewRole() auth.Role { return auth.RoleHomeowner }

type ArbiterView struct {
	ClaimView
	HomeownerResponseText *string      `json:"homeownerResponseText"`
	ResolverID            *string      `json:"resolverId"`
	ResolverNote          *string      `json:"resolverNote"`
	Cleaner               PartyProfile `json:"cleaner"`
	Homeowner             PartyProfile `json:"homeowner"`
	Photos                []PhotoView  `json:"photos"`

	role auth.Role
}

func (v ArbiterView) ViewRole() auth.Role {
	if v.role == "" {
		return auth.RoleOwner
	}
	return v.role
}
