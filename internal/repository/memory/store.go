// Package memory is an in-process implementation of the repository
// interfaces. Transactions snapshot the whole store and restore it on error;
// concurrent transactions are not isolated from each other.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type txKey struct{}

type state struct {
	businesses     map[uuid.UUID]model.Business
	services       map[uuid.UUID]model.Service
	staff          map[uuid.UUID]model.StaffMember
	qualifications []model.StaffQualification
	templates      map[uuid.UUID]model.AvailabilityTemplate
	rules          []model.AvailabilitySlotRule
	overrides      []model.AvailabilityOverride
	holds          map[uuid.UUID]model.Hold
	bookings       map[uuid.UUID]model.Booking
	customers      map[uuid.UUID]model.Customer
	outbox         []model.OutboxEvent
	actions        []model.BookingAction
}

func newState() state {
	return state{
		businesses: map[uuid.UUID]model.Business{},
		services:   map[uuid.UUID]model.Service{},
		staff:      map[uuid.UUID]model.StaffMember{},
		templates:  map[uuid.UUID]model.AvailabilityTemplate{},
		holds:      map[uuid.UUID]model.Hold{},
		bookings:   map[uuid.UUID]model.Booking{},
		customers:  map[uuid.UUID]model.Customer{},
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.businesses {
		c.businesses[k] = v
	}
	for k, v := range s.services {
		c.services[k] = v
	}
	for k, v := range s.staff {
		c.staff[k] = v
	}
	for k, v := range s.templates {
		c.templates[k] = v
	}
	for k, v := range s.holds {
		c.holds[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	c.qualifications = append(c.qualifications, s.qualifications...)
	c.rules = append(c.rules, s.rules...)
	c.overrides = append(c.overrides, s.overrides...)
	c.outbox = append(c.outbox, s.outbox...)
	c.actions = append(c.actions, s.actions...)
	return c
}

// Store holds every table in memory.
type Store struct {
	mu sync.Mutex
	st state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

// WithinTx implements repository.TxManager.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	defer func() {
		if p := recover(); p != nil {
			s.restore(snapshot)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Store) restore(snapshot state) {
	s.mu.Lock()
	s.st = snapshot
	s.mu.Unlock()
}

func (s *Store) Businesses() repository.BusinessRepository {
	return &businessRepo{s}
}

func (s *Store) Catalog() repository.CatalogRepository {
	return &catalogRepo{s}
}

func (s *Store) Schedules() repository.ScheduleRepository {
	return &scheduleRepo{s}
}

func (s *Store) Holds() repository.HoldRepository {
	return &holdRepo{s}
}

func (s *Store) Bookings() repository.BookingRepository {
	return &bookingRepo{s}
}

func (s *Store) Customers() repository.CustomerRepository {
	return &customerRepo{s}
}

func (s *Store) Outbox() repository.OutboxRepository {
	return &outboxRepo{s}
}

func (s *Store) BookingActions() repository.BookingActionRepository {
	return &actionRepo{s}
}

// Seeding helpers.

func (s *Store) AddBusiness(b model.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.businesses[b.ID] = b
}

func (s *Store) AddService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.services[svc.ID] = svc
}

func (s *Store) AddStaff(m model.StaffMember, quals ...model.StaffQualification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.staff[m.ID] = m
	for _, q := range quals {
		q.StaffID = m.ID
		s.st.qualifications = append(s.st.qualifications, q)
	}
}

func (s *Store) AddTemplate(t model.AvailabilityTemplate, rules ...model.AvailabilitySlotRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.templates[t.ID] = t
	for _, r := range rules {
		r.TemplateID = t.ID
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		s.st.rules = append(s.st.rules, r)
	}
}

func (s *Store) AddOverride(o model.AvailabilityOverride) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	s.st.overrides = append(s.st.overrides, o)
}

func (s *Store) AddHold(h model.Hold) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.holds[h.ID] = h
}

func (s *Store) AddBooking(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.bookings[b.ID] = b
}

// Inspection helpers.

func (s *Store) AllBookings() []model.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Booking, 0, len(s.st.bookings))
	for _, b := range s.st.bookings {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Store) AllHolds() []model.Hold {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Hold, 0, len(s.st.holds))
	for _, h := range s.st.holds {
		out = append(out, h)
	}
	return out
}

func (s *Store) AllOutboxEvents() []model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OutboxEvent(nil), s.st.outbox...)
}

func (s *Store) AllBookingActions() []model.BookingAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.BookingAction(nil), s.st.actions...)
}

func (s *Store) AllCustomers() []model.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Customer, 0, len(s.st.customers))
	for _, c := range s.st.customers {
		out = append(out, c)
	}
	return out
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func sameStaff(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func containsID(ids []uuid.UUID, id *uuid.UUID) bool {
	if id == nil {
		return false
	}
	for _, candidate := range ids {
		if candidate == *id {
			return true
		}
	}
	return false
}

type businessRepo struct{ s *Store }

func (r *businessRepo) Get(ctx context.Context, id uuid.UUID) (*model.Business, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.st.businesses[id]
	if !ok {
		return nil, fmt.Errorf("failed to get business: %w", repository.ErrNotFound)
	}
	return &b, nil
}

func (r *businessRepo) GetBySlug(ctx context.Context, slug string) (*model.Business, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.st.businesses {
		if b.Slug == slug {
			b := b
			return &b, nil
		}
	}
	return nil, fmt.Errorf("failed to get business by slug: %w", repository.ErrNotFound)
}

type catalogRepo struct{ s *Store }

func (r *catalogRepo) GetService(ctx context.Context, businessID, serviceID uuid.UUID) (*model.Service, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	svc, ok := r.s.st.services[serviceID]
	if !ok || svc.BusinessID != businessID {
		return nil, fmt.Errorf("failed to get service: %w", repository.ErrNotFound)
	}
	return &svc, nil
}

func (r *catalogRepo) GetStaff(ctx context.Context, businessID, staffID uuid.UUID) (*model.StaffMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.st.staff[staffID]
	if !ok || m.BusinessID != businessID {
		return nil, fmt.Errorf("failed to get staff member: %w", repository.ErrNotFound)
	}
	return &m, nil
}

func (r *catalogRepo) ListQualifiedStaff(ctx context.Context, businessID, serviceID uuid.UUID) ([]*model.QualifiedStaff, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.QualifiedStaff
	for _, q := range r.s.st.qualifications {
		if q.ServiceID != serviceID {
			continue
		}
		m, ok := r.s.st.staff[q.StaffID]
		if !ok || m.BusinessID != businessID || !m.IsActive {
			continue
		}
		out = append(out, &model.QualifiedStaff{StaffMember: m, Priority: q.Priority})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (r *catalogRepo) IsQualified(ctx context.Context, staffID, serviceID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, q := range r.s.st.qualifications {
		if q.StaffID == staffID && q.ServiceID == serviceID {
			return true, nil
		}
	}
	return false, nil
}

func (r *catalogRepo) LockService(ctx context.Context, businessID, serviceID uuid.UUID) error {
	_, err := r.GetService(ctx, businessID, serviceID)
	return err
}

func (r *catalogRepo) LockStaff(ctx context.Context, businessID, staffID uuid.UUID) error {
	_, err := r.GetStaff(ctx, businessID, staffID)
	return err
}

type scheduleRepo struct{ s *Store }

func (r *scheduleRepo) GetOverride(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, date time.Time) (*model.AvailabilityOverride, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	day := date.Format(model.DateLayout)
	for _, o := range r.s.st.overrides {
		if o.BusinessID == businessID && sameStaff(o.StaffID, staffID) && o.Date.Format(model.DateLayout) == day {
			o := o
			return &o, nil
		}
	}
	return nil, fmt.Errorf("failed to get availability override: %w", repository.ErrNotFound)
}

func (r *scheduleRepo) GetDefaultTemplate(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID) (*model.AvailabilityTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.st.templates {
		if t.BusinessID == businessID && t.IsDefault && sameStaff(t.StaffID, staffID) {
			t := t
			return &t, nil
		}
	}
	return nil, fmt.Errorf("failed to get default template: %w", repository.ErrNotFound)
}

func (r *scheduleRepo) ListRules(ctx context.Context, templateID uuid.UUID, weekday time.Weekday) ([]*model.AvailabilitySlotRule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.AvailabilitySlotRule
	for _, rule := range r.s.st.rules {
		if rule.TemplateID == templateID && rule.DayOfWeek == int(weekday) {
			rule := rule
			out = append(out, &rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

type holdRepo struct{ s *Store }

func (r *holdRepo) Create(ctx context.Context, hold *model.Hold) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.st.holds[hold.ID]; ok {
		return fmt.Errorf("failed to create hold: %w: holds_pkey", repository.ErrDuplicate)
	}
	if hold.IdempotencyKey != nil {
		for _, h := range r.s.st.holds {
			if h.BusinessID == hold.BusinessID && h.IdempotencyKey != nil && *h.IdempotencyKey == *hold.IdempotencyKey {
				return fmt.Errorf("failed to create hold: %w: holds_business_id_idempotency_key_key", repository.ErrDuplicate)
			}
		}
	}
	r.s.st.holds[hold.ID] = *hold
	return nil
}

func (r *holdRepo) Get(ctx context.Context, businessID, id uuid.UUID) (*model.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.st.holds[id]
	if !ok || h.BusinessID != businessID {
		return nil, fmt.Errorf("failed to get hold: %w", repository.ErrNotFound)
	}
	return &h, nil
}

func (r *holdRepo) GetByIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string) (*model.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, h := range r.s.st.holds {
		if h.BusinessID == businessID && h.IdempotencyKey != nil && *h.IdempotencyKey == key {
			h := h
			return &h, nil
		}
	}
	return nil, fmt.Errorf("failed to get hold: %w", repository.ErrNotFound)
}

func (r *holdRepo) Delete(ctx context.Context, businessID, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.st.holds[id]
	if !ok || h.BusinessID != businessID {
		return false, nil
	}
	delete(r.s.st.holds, id)
	return true, nil
}

func (r *holdRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, h := range r.s.st.holds {
		if h.ExpiresAt.Before(now) {
			delete(r.s.st.holds, id)
			n++
		}
	}
	return n, nil
}

func (r *holdRepo) ListActive(ctx context.Context, f model.HoldFilter, now time.Time) ([]*model.Hold, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Hold
	for _, h := range r.s.st.holds {
		if h.BusinessID != f.BusinessID || h.ExpiresAt.Before(now) {
			continue
		}
		if f.ServiceID != nil && h.ServiceID != *f.ServiceID {
			continue
		}
		if len(f.StaffIDs) > 0 && !containsID(f.StaffIDs, h.StaffID) {
			continue
		}
		if f.From != nil && !h.EndsAt.After(*f.From) {
			continue
		}
		if f.To != nil && !h.StartsAt.Before(*f.To) {
			continue
		}
		h := h
		out = append(out, &h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

type bookingRepo struct{ s *Store }

func (r *bookingRepo) Create(ctx context.Context, b *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.bookings {
		if b.HoldID != nil && existing.HoldID != nil && *existing.HoldID == *b.HoldID {
			return fmt.Errorf("failed to create booking: %w: bookings_hold_id_key", repository.ErrDuplicate)
		}
		if b.IdempotencyKey != nil && existing.IdempotencyKey != nil && *existing.IdempotencyKey == *b.IdempotencyKey {
			return fmt.Errorf("failed to create booking: %w: bookings_idempotency_key_key", repository.ErrDuplicate)
		}
		if b.Exclusive && existing.Exclusive && b.StaffID != nil && sameStaff(existing.StaffID, b.StaffID) &&
			existing.Status.OccupiesSlot() && b.Status.OccupiesSlot() &&
			overlaps(existing.StartsAt, existing.EndsAt, b.StartsAt, b.EndsAt) {
			return fmt.Errorf("failed to create booking: %w: bookings_no_staff_overlap", repository.ErrOverlap)
		}
	}
	if _, ok := r.s.st.customers[b.CustomerID]; !ok {
		return fmt.Errorf("failed to create booking: unknown customer %s", b.CustomerID)
	}
	r.s.st.bookings[b.ID] = *b
	return nil
}

func (r *bookingRepo) GetByIdempotencyKey(ctx context.Context, key string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.st.bookings {
		if b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			b := b
			return &b, nil
		}
	}
	return nil, fmt.Errorf("failed to get booking by idempotency key: %w", repository.ErrNotFound)
}

func (r *bookingRepo) ListActive(ctx context.Context, f model.BookingFilter) ([]*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Booking
	for _, b := range r.s.st.bookings {
		if b.BusinessID != f.BusinessID || !b.Status.OccupiesSlot() {
			continue
		}
		if !overlaps(b.StartsAt, b.EndsAt, f.From, f.To) {
			continue
		}
		if f.ServiceID != nil && b.ServiceID != *f.ServiceID {
			continue
		}
		if len(f.StaffIDs) > 0 && !containsID(f.StaffIDs, b.StaffID) {
			continue
		}
		b := b
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (r *bookingRepo) CountActiveAt(ctx context.Context, businessID, serviceID uuid.UUID, startsAt time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, b := range r.s.st.bookings {
		if b.BusinessID == businessID && b.ServiceID == serviceID && b.StartsAt.Equal(startsAt) && b.Status.OccupiesSlot() {
			n++
		}
	}
	return n, nil
}

func (r *bookingRepo) HasOverlap(ctx context.Context, businessID, staffID uuid.UUID, start, end time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.st.bookings {
		if b.BusinessID == businessID && b.StaffID != nil && *b.StaffID == staffID &&
			b.Status.OccupiesSlot() && overlaps(b.StartsAt, b.EndsAt, start, end) {
			return true, nil
		}
	}
	return false, nil
}

type customerRepo struct{ s *Store }

func (r *customerRepo) Upsert(ctx context.Context, c *model.Customer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, existing := range r.s.st.customers {
		if existing.BusinessID == c.BusinessID && strings.EqualFold(existing.Email, c.Email) {
			if c.Name != "" {
				existing.Name = c.Name
			}
			if c.Phone != nil {
				existing.Phone = c.Phone
			}
			existing.UpdatedAt = c.UpdatedAt
			r.s.st.customers[id] = existing
			*c = existing
			return nil
		}
	}
	r.s.st.customers[c.ID] = *c
	return nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.outbox = append(r.s.st.outbox, *event)
	return nil
}

func (r *outboxRepo) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.s.st.outbox {
		if !e.IsDue(now) {
			continue
		}
		e := e
		out = append(out, &e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *outboxRepo) Claim(ctx context.Context, ids []uuid.UUID, until time.Time) error {
	for _, id := range ids {
		if err := r.update(id, func(e *model.OutboxEvent) { e.NextRetryAt = &until }); err != nil {
			return err
		}
	}
	return nil
}

func (r *outboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Attempts++
		e.ProcessedAt = &at
		e.LastError = nil
		e.NextRetryAt = nil
	})
}

func (r *outboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError string, nextRetryAt time.Time) error {
	return r.update(id, func(e *model.OutboxEvent) {
		e.Attempts++
		e.LastError = &lastError
		e.NextRetryAt = &nextRetryAt
	})
}

func (r *outboxRepo) update(id uuid.UUID, fn func(*model.OutboxEvent)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.st.outbox {
		if r.s.st.outbox[i].ID == id {
			fn(&r.s.st.outbox[i])
			return nil
		}
	}
	return fmt.Errorf("failed to update outbox event: %w", repository.ErrNotFound)
}

type actionRepo struct{ s *Store }

func (r *actionRepo) Create(ctx context.Context, a *model.BookingAction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.st.actions = append(r.s.st.actions, *a)
	return nil
}
