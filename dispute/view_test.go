package dispute

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleanflow/auth"
	"cleanflow/evidence"
	"cleanflow/pii"
	"cleanflow/pii/piitest"
	"cleanflow/pricing"
)

var claimKeys = []string{
	"id", "appointmentId", "homeId", "status",
	"originalBeds", "originalBaths", "originalPrice",
	"reportedBeds", "reportedBaths", "recalculatedPrice", "priceDelta",
	"cleanerNote", "expiresAt", "homeownerRespondedAt", "resolvedAt",
	"createdAt", "updatedAt",
}

func keysOf(t *testing.T, v any) []string {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &m))
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func with(base []string, extra ...string) []string {
	out := append(append([]string(nil), base...), extra...)
	sort.Strings(out)
	return out
}

// fullyLoaded fills every field a store could return, including the ones a
// plan would normally exclude.
func fullyLoaded(codec *piitest.Codec, plan Plan) Loaded {
	seal := func(s string) *string {
		v := codec.Seal(s)
		return &v
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var claims, sizes int64 = 2, 3
	resolver := arbiterID
	return Loaded{
		Plan: plan,
		Request: Request{
			ID: "d-1", AppointmentID: apptID, HomeID: homeID,
			CleanerID: cleanerID, HomeownerID: homeownerID, ResolverID: &resolver,
			OriginalBeds: 2, OriginalBaths: 1, OriginalPrice: pricing.Dollars(100),
			ReportedBeds: 4, ReportedBaths: 2, RecalculatedPrice: pricing.Dollars(165), PriceDelta: pricing.Dollars(65),
			CleanerNote:           seal("cleaner note"),
			HomeownerResponseText: seal("actually 2/1"),
			ResolverNote:          seal("resolver note"),
			Status:                StatusOwnerApproved,
			ExpiresAt:             now.Add(24 * time.Hour),
			CreatedAt:             now,
			UpdatedAt:             now,
		},
		Cleaner: Party{ID: cleanerID, FirstName: seal("Casey"), LastName: seal("Nguyen"), Email: seal("casey@example.com"),
			FalseClaimCount: &claims, FalseHomeSizeCount: &sizes},
		Homeowner: Party{ID: homeownerID, FirstName: seal("Harper"), LastName: seal("Lee"), Email: seal("harper@example.com"),
			FalseClaimCount: &claims, FalseHomeSizeCount: &sizes},
		Photos: []evidence.Photo{{ID: "p-1", DisputeRequestID: "d-1", RoomType: evidence.Bedroom, RoomNumber: 1, Image: "data:image/png;base64,AA==", CreatedAt: now}},
	}
}

func TestProjectorKeySets(t *testing.T) {
	codec := &piitest.Codec{}
	projector := NewProjector(pii.NewReader(codec, nil))

	tests := []struct {
		role       auth.Role
		keys       []string
		partyKeys  []string
		photoCount int
	}{
		{
			role:      auth.RoleCleaner,
			keys:      with(claimKeys, "cleaner", "homeowner"),
			partyKeys: []string{"firstName", "id"},
		},
		{
			role:      auth.RoleHomeowner,
			keys:      with(claimKeys, "cleaner", "homeowner", "homeownerResponseText"),
			partyKeys: []string{"firstName", "id"},
		},
		{
			role:       auth.RoleOwner,
			keys:       with(claimKeys, "cleaner", "homeowner", "homeownerResponseText", "resolverId", "resolverNote", "photos"),
			partyKeys:  []string{"email", "falseClaimCount", "falseHomeSizeCount", "firstName", "id", "lastName"},
			photoCount: 1,
		},
		{
			role:       auth.RoleHR,
			keys:       with(claimKeys, "cleaner", "homeowner", "homeownerResponseText", "resolverId", "resolverNote", "photos"),
			partyKeys:  []string{"email", "falseClaimCount", "falseHomeSizeCount", "firstName", "id", "lastName"},
			photoCount: 1,
		},
	}
	for _, tc := range tests {
		t.Run(string(tc.role), func(t *testing.T) {
			// Deliberately over-fetched: the view type alone must keep
			// private fields out.
			view := projector.Project(fullyLoaded(codec, PlanFor(tc.role)))
			assert.Equal(t, tc.role, view.ViewRole())
			assert.Equal(t, tc.keys, keysOf(t, view))

			body, err := json.Marshal(view)
			require.NoError(t, err)
			var decoded struct {
				Cleaner map[string]any   `json:"cleaner"`
				Photos  []map[string]any `json:"photos"`
			}
			require.NoError(t, json.Unmarshal(body, &decoded))
			assert.Equal(t, tc.partyKeys, keysOf(t, decoded.Cleaner))
			assert.Len(t, decoded.Photos, tc.photoCount)
			if tc.photoCount > 0 {
				assert.Equal(t, []string{"createdAt", "id", "photoUrl", "roomNumber", "roomType"}, keysOf(t, decoded.Photos[0]))
			}
		})
	}
}

func TestProjectorHidesPrivateTextFromCleaner(t *testing.T) {
	codec := &piitest.Codec{}
	view := NewProjector(pii.NewReader(codec, nil)).Project(fullyLoaded(codec, PlanFor(auth.RoleCleaner)))
	body, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "actually 2/1")
	assert.NotContains(t, string(body), "resolver note")
	assert.NotContains(t, string(body), "casey@example.com")
	assert.NotContains(t, string(body), "photoUrl")
	assert.Contains(t, string(body), "cleaner note")
}

func TestProjectorArbiterPhotosNeverNull(t *testing.T) {
	codec := &piitest.Codec{}
	l := fullyLoaded(codec, PlanFor(auth.RoleOwner))
	l.Photos = nil
	body, err := json.Marshal(NewProjector(pii.NewReader(codec, nil)).Project(l))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"photos":[]`)
}

func TestProjectorDecryptsEachFieldOnce(t *testing.T) {
	codec := &piitest.Codec{}
	l := fullyLoaded(codec, PlanFor(auth.RoleOwner))
	before := codec.Decrypts()

	view := NewProjector(pii.NewReader(codec, nil)).Project(l).(ArbiterView)

	// cleaner note, response text, resolver note, and three PII fields per party.
	assert.Equal(t, 3+2*3, codec.Decrypts()-before)
	assert.Equal(t, "Casey", *view.Cleaner.FirstName)
	assert.Equal(t, "harper@example.com", *view.Homeowner.Email)
	assert.Equal(t, int64(2), view.Cleaner.FalseClaimCount)
	assert.Equal(t, int64(3), view.Homeowner.FalseHomeSizeCount)
}

func TestProjectorToleratesLegacyValues(t *testing.T) {
	codec := &piitest.Codec{}
	l := fullyLoaded(codec, PlanFor(auth.RoleOwner))
	plain := "legacy plaintext note"
	broken := pii.Prefix + "%%%not-base64"
	l.Request.CleanerNote = &plain
	l.Request.ResolverNote = &broken
	l.Request.HomeownerResponseText = nil

	view := NewProjector(pii.NewReader(codec, nil)).Project(l).(ArbiterView)
	assert.Equal(t, plain, *view.CleanerNote)
	assert.Equal(t, broken, *view.ResolverNote)
	assert.Nil(t, view.HomeownerResponseText)
}

func TestMoneyRendersAsDollars(t *testing.T) {
	codec := &piitest.Codec{}
	body, err := json.Marshal(NewProjector(pii.NewReader(codec, nil)).Project(fullyLoaded(codec, PlanFor(auth.RoleHomeowner))))
	require.NoError(t, err)
	assert.Contains(t, string(body), `"originalPrice":100.00`)
	assert.Contains(t, string(body), `"recalculatedPrice":165.00`)
	assert.Contains(t, string(body), `"priceDelta":65.00`)
}
