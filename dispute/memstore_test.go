package dispute

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"cleanflow/appointment"
	"cleanflow/evidence"
	"cleanflow/pricing"
	"cleanflow/trust"
)

// memStore is an in-memory Store with the same guard semantics as the
// Postgres repository: every transition is a compare-and-set under one lock.
type memStore struct {
	mu           sync.Mutex
	disputes     map[string]Request
	photos       map[string][]evidence.Photo
	users        map[string]Party
	appointments map[string]*appointment.Appointment
	counters     map[string]*trust.Counters
	events       []string
	topics       []string
	photoSeq     int

	insertErr error
}

func newMemStore() *memStore {
	return &memStore{
		disputes:     make(map[string]Request),
		photos:       make(map[string][]evidence.Photo),
		users:        make(map[string]Party),
		appointments: make(map[string]*appointment.Appointment),
		counters:     make(map[string]*trust.Counters),
	}
}

func (m *memStore) addUser(p Party) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[p.ID] = p
	m.counters[p.ID] = &trust.Counters{}
}

func (m *memStore) addAppointment(a appointment.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments[a.ID] = &a
}

// GetByID makes memStore its own AppointmentReader.
func (m *memStore) GetByID(_ context.Context, id string) (appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	return *a, nil
}

func (m *memStore) price(appointmentID string) pricing.Cents {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appointments[appointmentID].Price
}

func (m *memStore) countersFor(userID string) trust.Counters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.counters[userID]
}

func (m *memStore) raw(id string) Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disputes[id]
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.disputes)
}

func (m *memStore) Insert(_ context.Context, rec Request, uploads []evidence.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	for _, d := range m.disputes {
		if d.AppointmentID == rec.AppointmentID && slices.Contains(OpenStatuses, d.Status) {
			return ErrOpenDispute
		}
	}
	m.disputes[rec.ID] = rec
	for _, u := range uploads {
		m.photoSeq++
		m.photos[rec.ID] = append(m.photos[rec.ID], evidence.Photo{
			ID:               fmt.Sprintf("photo-%d", m.photoSeq),
			DisputeRequestID: rec.ID,
			RoomType:         u.RoomType,
			RoomNumber:       u.RoomNumber,
			Image:            u.Image,
			CreatedAt:        rec.CreatedAt,
		})
	}
	m.events = append(m.events, rec.ID+":created")
	m.topics = append(m.topics, "dispute.created")
	return nil
}

func (m *memStore) Transition(_ context.Context, t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[t.ID]
	if !ok {
		return ErrNotFound
	}
	guard := d.Status == t.From &&
		(t.HomeownerID == "" || t.HomeownerID == d.HomeownerID) &&
		(!t.RequireOpenWindow || d.ExpiresAt.After(t.Now))
	if !guard {
		return missReason(t, d.Status, d.HomeownerID, d.ExpiresAt)
	}

	d.Status = t.To
	d.UpdatedAt = t.Now
	if t.StampResponded {
		now := t.Now
		d.HomeownerRespondedAt = &now
	}
	if t.StampResolved {
		now := t.Now
		d.ResolvedAt = &now
	}
	if t.ResponseText != nil {
		d.HomeownerResponseText = t.ResponseText
	}
	if t.ResolverID != nil {
		id := *t.ResolverID
		d.ResolverID = &id
	}
	if t.ResolverNote != nil {
		d.ResolverNote = t.ResolverNote
	}
	if t.ApplyPrice {
		m.appointments[d.AppointmentID].Price = d.RecalculatedPrice
		m.topics = append(m.topics, "appointment.price_changed")
	}
	if t.Penalty != nil {
		target := d.CleanerID
		if t.Penalty.Party == PartyHomeowner {
			target = d.HomeownerID
		}
		switch t.Penalty.Counter {
		case trust.FalseClaim:
			m.counters[target].FalseClaim++
		case trust.FalseHomeSize:
			m.counters[target].FalseHomeSize++
		}
	}
	m.disputes[t.ID] = d
	m.events = append(m.events, t.ID+":"+t.EventType())
	m.topics = append(m.topics, topicFor(t.To))
	return nil
}

func (m *memStore) ExpireStale(_ context.Context, now time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, d := range m.disputes {
		if d.Status == StatusPendingHomeowner && !d.ExpiresAt.After(now) {
			d.Status = StatusExpired
			d.UpdatedAt = now
			m.disputes[id] = d
			m.events = append(m.events, id+":pending_homeowner->expired")
			m.topics = append(m.topics, "dispute.expired")
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) Load(ctx context.Context, id string, scope Scope, plan Plan) (Loaded, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.disputes[id]
	if !ok || !scope.Allows(d) {
		return Loaded{}, ErrNotFound
	}
	return m.load(d, plan), nil
}

func (m *memStore) List(_ context.Context, f Filter, plan Plan) ([]Loaded, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Request
	for _, d := range m.disputes {
		if !f.Scope.Allows(d) {
			continue
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, d.Status) {
			continue
		}
		if f.HomeID != "" && f.HomeID != d.HomeID {
			continue
		}
		if f.OpenAt != nil && d.Status == StatusPendingHomeowner && !d.ExpiresAt.After(*f.OpenAt) {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	out := make([]Loaded, 0, len(matched))
	for _, d := range matched {
		out = append(out, m.load(d, plan))
	}
	return out, nil
}

// load copies only what plan selects, as selectColumns does in SQL.
func (m *memStore) load(d Request, plan Plan) Loaded {
	if !plan.SelectResponseText {
		d.HomeownerResponseText = nil
	}
	if !plan.SelectResolver {
		d.ResolverID = nil
		d.ResolverNote = nil
	}
	l := Loaded{
		Plan:      plan,
		Request:   d,
		Cleaner:   m.party(d.CleanerID, plan),
		Homeowner: m.party(d.HomeownerID, plan),
	}
	if plan.JoinPhotos {
		l.Photos = append([]evidence.Photo(nil), m.photos[d.ID]...)
	}
	return l
}

func (m *memStore) party(id string, plan Plan) Party {
	u := m.users[id]
	p := Party{ID: u.ID, FirstName: u.FirstName}
	if plan.PartyDetail {
		c := m.counters[id]
		claims, sizes := c.FalseClaim, c.FalseHomeSize
		p.LastName = u.LastName
		p.Email = u.Email
		p.FalseClaimCount = &claims
		p.FalseHomeSizeCount = &sizes
	}
	return p
}
