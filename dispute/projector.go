package dispute

import (
	"cleanflow/auth"
	"cleanflow/pii"
)

// Projector turns a Loaded dispute into the view for the plan it was loaded
// under. It never removes data; a field the plan did not fetch is simply
// absent from Loaded.
type Projector struct {
	pii *pii.Reader
}

func NewProjector(reader *pii.Reader) *Projector {
	return &Projector{pii: reader}
}

func (p *Projector) Project(l Loaded) View {
	claim := p.claim(l.Request)

	switch l.Plan.Role {
	case auth.RoleOwner, auth.RoleHR:
		photos := make([]PhotoView, 0, len(l.Photos))
		for _, ph := range l.Photos {
			photos = append(photos, PhotoView{
				ID:         ph.ID,
				RoomType:   ph.RoomType,
				RoomNumber: ph.RoomNumber,
				PhotoURL:   ph.Image,
				CreatedAt:  ph.CreatedAt,
			})
		}
		return ArbiterView{
			ClaimView:             claim,
			HomeownerResponseText: p.pii.Field(l.Request.HomeownerResponseText),
			ResolverID:            l.Request.ResolverID,
			ResolverNote:          p.pii.Field(l.Request.ResolverNote),
			Cleaner:               p.profile(l.Cleaner),
			Homeowner:             p.profile(l.Homeowner),
			Photos:                photos,
			role:                  l.Plan.Role,
		}
	case auth.RoleHomeowner:
		return HomeownerView{
			ClaimView:             claim,
			HomeownerResponseText: p.pii.Field(l.Request.HomeownerResponseText),
			Cleaner:               p.summary(l.Cleaner),
			Homeowner:             p.summary(l.Homeowner),
		}
	default:
		return CleanerView{
			ClaimView: claim,
			Cleaner:   p.summary(l.Cleaner),
			Homeowner: p.summary(l.Homeowner),
		}
	}
}

func (p *Projector) claim(r Request) ClaimView {
	return ClaimView{
		ID:                   r.ID,
		AppointmentID:        r.AppointmentID,
		HomeID:               r.HomeID,
		Status:               r.Status,
		OriginalBeds:         r.OriginalBeds,
		OriginalBaths:        r.OriginalBaths,
		OriginalPrice:        r.OriginalPrice,
		ReportedBeds:         r.ReportedBeds,
		ReportedBaths:        r.ReportedBaths,
		RecalculatedPrice:    r.RecalculatedPrice,
		PriceDelta:           r.PriceDelta,
		CleanerNote:          p.pii.Field(r.CleanerNote),
		ExpiresAt:            r.ExpiresAt,
		HomeownerRespondedAt: r.HomeownerRespondedAt,
		ResolvedAt:           r.ResolvedAt,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
	}
}

func (p *Projector) summary(party Party) PartySummary {
	return PartySummary{ID: party.ID, FirstName: p.pii.Field(party.FirstName)}
}

func (p *Projector) profile(party Party) PartyProfile {
	out := PartyProfile{
		ID:        party.ID,
		FirstName: p.pii.Field(party.FirstName),
		LastName:  p.pii.Field(party.LastName),
		Email:     p.pii.Field(party.Email),
	}
	if party.FalseClaimCount != nil {
		out.FalseClaimCount = *party.FalseClaimCount
	}
	if party.FalseHomeSizeCount != nil {
		out.FalseHomeSizeCount = *party.FalseHomeSizeCount
	}
	return out
}
