// Package availability computes bookable slots for a service on a date from
// working schedules, existing bookings and live holds. It only reads.
package availability

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/service/schedule"
	"github.com/jwalitptl/booking-api/pkg/clock"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

// Query selects the slots to look for. Date is a civil date (YYYY-MM-DD) in
// the business timezone.
type Query struct {
	ServiceID uuid.UUID
	Date      string
	StaffID   *uuid.UUID
}

type Service struct {
	catalog  repository.CatalogRepository
	bookings repository.BookingRepository
	holds    repository.HoldRepository
	schedule *schedule.Service
	clock    clock.Clock
	step     time.Duration
	metrics  *metrics.Metrics
}

type Option func(*Service)

// WithStep fixes the distance between candidate starts. Without it the
// service duration is used.
func WithStep(step time.Duration) Option {
	return func(s *Service) { s.step = step }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(
	catalog repository.CatalogRepository,
	bookings repository.BookingRepository,
	holds repository.HoldRepository,
	schedule *schedule.Service,
	clk clock.Clock,
	opts ...Option,
) *Service {
	s := &Service{
		catalog:  catalog,
		bookings: bookings,
		holds:    holds,
		schedule: schedule,
		clock:    clk,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// candidate is a staff member offering the service. A nil staff stands for
// the business as a whole.
type candidate struct {
	staff    *model.StaffMember
	priority int
}

func (c candidate) staffID() *uuid.UUID {
	if c.staff == nil {
		return nil
	}
	id := c.staff.ID
	return &id
}

type interval struct {
	start, end time.Time
}

func (i interval) overlaps(start, end time.Time) bool {
	return i.start.Before(end) && start.Before(i.end)
}

// FindSlots returns free slots ordered by start time. When no staff member
// is requested, each start time appears once, attributed to the staff member
// with the fewest bookings that day, then the best priority.
func (s *Service) FindSlots(ctx context.Context, business *model.Business, q Query) ([]model.Slot, error) {
	if s.metrics != nil {
		timer := prometheus.NewTimer(s.metrics.SlotSearchDuration)
		defer timer.ObserveDuration()
	}

	loc, err := business.Location()
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	day, err := model.ParseDate(q.Date, loc)
	if err != nil {
		return nil, apperrors.NewValidation("date must be formatted as YYYY-MM-DD", err)
	}

	svc, err := s.catalog.GetService(ctx, business.ID, q.ServiceID)
	if err != nil {
		return nil, notFoundOrInternal("service", err)
	}
	if !svc.IsActive {
		return nil, apperrors.NewValidation("service is not bookable", nil)
	}
	if svc.DurationMinutes <= 0 {
		return nil, apperrors.NewInternal(errors.New("service duration must be positive"))
	}

	candidates, err := s.candidates(ctx, business.ID, svc, q.StaffID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	earliest := now.Add(business.MinNotice())
	horizon, hasHorizon := business.Horizon(now)
	inRange := func(start time.Time) bool {
		if start.Before(earliest) {
			return false
		}
		return !hasHorizon || !start.After(horizon)
	}

	dayStart := day
	dayEnd := day.AddDate(0, 0, 1)
	busy, err := s.loadBusy(ctx, business.ID, svc, candidates, dayStart.Add(-svc.Buffer()), dayEnd.Add(svc.Buffer()), now)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	step := s.step
	if step <= 0 {
		step = svc.Duration()
	}

	type pick struct {
		slot     model.Slot
		load     int
		priority int
	}
	best := map[int64]pick{}
	var single []model.Slot

	for _, c := range candidates {
		windows, err := s.schedule.ResolveWorkingWindows(ctx, business, c.staffID(), day)
		if err != nil {
			return nil, err
		}

		var slots []model.Slot
		for _, w := range windows {
			if svc.IsExclusive() {
				slots = append(slots, exclusiveSlots(w, svc, step, busy.intervalsFor(c), inRange)...)
			} else {
				slots = append(slots, sharedSlots(w, svc, step, busy.sharedCounts, inRange)...)
			}
		}
		for i := range slots {
			if c.staff != nil {
				slots[i].StaffID = c.staffID()
				slots[i].StaffName = c.staff.Name
			}
		}

		if len(candidates) == 1 {
			single = slots
			break
		}

		load := busy.dayLoad(c, dayStart, dayEnd)
		for _, slot := range slots {
			key := slot.Start.UnixNano()
			current, ok := best[key]
			if !ok || better(load, c.priority, slot.StaffID, current.load, current.priority, current.slot.StaffID) {
				best[key] = pick{slot: slot, load: load, priority: c.priority}
			}
		}
	}

	if single == nil && len(best) > 0 {
		single = make([]model.Slot, 0, len(best))
		for _, p := range best {
			single = append(single, p.slot)
		}
	}
	sort.Slice(single, func(i, j int) bool { return single[i].Start.Before(single[j].Start) })
	if single == nil {
		single = []model.Slot{}
	}
	return single, nil
}

func better(load, priority int, staffID *uuid.UUID, curLoad, curPriority int, curStaffID *uuid.UUID) bool {
	if load != curLoad {
		return load < curLoad
	}
	if priority != curPriority {
		return priority < curPriority
	}
	if staffID == nil || curStaffID == nil {
		return false
	}
	return staffID.String() < curStaffID.String()
}

func (s *Service) candidates(ctx context.Context, businessID uuid.UUID, svc *model.Service, staffID *uuid.UUID) ([]candidate, error) {
	if staffID != nil {
		m, err := s.catalog.GetStaff(ctx, businessID, *staffID)
		if err != nil {
			return nil, notFoundOrInternal("staff member", err)
		}
		if !m.IsActive {
			return nil, apperrors.NewNotFound("staff member", nil)
		}
		ok, err := s.catalog.IsQualified(ctx, m.ID, svc.ID)
		if err != nil {
			return nil, apperrors.NewInternal(err)
		}
		if !ok {
			return nil, apperrors.NewValidation("staff member does not perform this service", nil)
		}
		return []candidate{{staff: m}}, nil
	}

	qualified, err := s.catalog.ListQualifiedStaff(ctx, businessID, svc.ID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if len(qualified) == 0 {
		return []candidate{{}}, nil
	}
	out := make([]candidate, 0, len(qualified))
	for _, q := range qualified {
		m := q.StaffMember
		out = append(out, candidate{staff: &m, priority: q.Priority})
	}
	return out, nil
}

// busySet is everything already occupying time around the requested date.
type busySet struct {
	byStaff      map[uuid.UUID][]interval
	unassigned   []interval
	staffStarts  map[uuid.UUID][]time.Time
	sharedCounts map[int64]int
}

func (b *busySet) intervalsFor(c candidate) []interval {
	if c.staff == nil {
		return b.unassigned
	}
	return b.byStaff[c.staff.ID]
}

func (b *busySet) dayLoad(c candidate, from, to time.Time) int {
	if c.staff == nil {
		return 0
	}
	n := 0
	for _, start := range b.staffStarts[c.staff.ID] {
		if !start.Before(from) && start.Before(to) {
			n++
		}
	}
	return n
}

func (s *Service) loadBusy(ctx context.Context, businessID uuid.UUID, svc *model.Service, candidates []candidate, from, to, now time.Time) (*busySet, error) {
	busy := &busySet{
		byStaff:      map[uuid.UUID][]interval{},
		staffStarts:  map[uuid.UUID][]time.Time{},
		sharedCounts: map[int64]int{},
	}

	var staffIDs []uuid.UUID
	for _, c := range candidates {
		if c.staff != nil {
			staffIDs = append(staffIDs, c.staff.ID)
		}
	}

	if len(staffIDs) > 0 {
		bookings, err := s.bookings.ListActive(ctx, model.BookingFilter{
			BusinessID: businessID,
			StaffIDs:   staffIDs,
			From:       from,
			To:         to,
		})
		if err != nil {
			return nil, err
		}
		for _, b := range bookings {
			busy.byStaff[*b.StaffID] = append(busy.byStaff[*b.StaffID], interval{b.StartsAt, b.EndsAt})
			busy.staffStarts[*b.StaffID] = append(busy.staffStarts[*b.StaffID], b.StartsAt)
		}

		holds, err := s.holds.ListActive(ctx, model.HoldFilter{
			BusinessID: businessID,
			StaffIDs:   staffIDs,
			From:       &from,
			To:         &to,
		}, now)
		if err != nil {
			return nil, err
		}
		for _, h := range holds {
			busy.byStaff[*h.StaffID] = append(busy.byStaff[*h.StaffID], interval{h.StartsAt, h.EndsAt})
		}
	}

	if svc.IsExclusive() && len(staffIDs) > 0 {
		return busy, nil
	}

	// shared capacity, or a service booked against the business as a whole
	serviceID := svc.ID
	bookings, err := s.bookings.ListActive(ctx, model.BookingFilter{
		BusinessID: businessID,
		ServiceID:  &serviceID,
		From:       from,
		To:         to,
	})
	if err != nil {
		return nil, err
	}
	holds, err := s.holds.ListActive(ctx, model.HoldFilter{
		BusinessID: businessID,
		ServiceID:  &serviceID,
		From:       &from,
		To:         &to,
	}, now)
	if err != nil {
		return nil, err
	}

	for _, b := range bookings {
		busy.sharedCounts[b.StartsAt.UnixNano()]++
		if b.StaffID == nil {
			busy.unassigned = append(busy.unassigned, interval{b.StartsAt, b.EndsAt})
		}
	}
	for _, h := range holds {
		busy.sharedCounts[h.StartsAt.UnixNano()]++
		if h.StaffID == nil {
			busy.unassigned = append(busy.unassigned, interval{h.StartsAt, h.EndsAt})
		}
	}
	return busy, nil
}

// exclusiveSlots walks the window and rejects starts whose buffered interval
// touches a busy interval. After a rejection it jumps past the blocking
// interval plus buffer, since every start before that is blocked too.
func exclusiveSlots(w model.WorkingWindow, svc *model.Service, step time.Duration, busy []interval, inRange func(time.Time) bool) []model.Slot {
	var out []model.Slot
	dur, buf := svc.Duration(), svc.Buffer()

	for start := w.Start; !start.Add(dur).After(w.End); {
		end := start.Add(dur)
		next := start.Add(step)

		blockedUntil, blocked := blockingEnd(busy, start.Add(-buf), end.Add(buf))
		switch {
		case blocked:
			if resume := blockedUntil.Add(buf); resume.After(next) {
				next = resume
			}
		case inRange(start):
			out = append(out, model.Slot{Start: start, End: end})
		}
		start = next
	}
	return out
}

func blockingEnd(busy []interval, start, end time.Time) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, b := range busy {
		if b.overlaps(start, end) {
			if !found || b.end.After(latest) {
				latest = b.end
			}
			found = true
		}
	}
	return latest, found
}

func sharedSlots(w model.WorkingWindow, svc *model.Service, step time.Duration, counts map[int64]int, inRange func(time.Time) bool) []model.Slot {
	var out []model.Slot
	dur := svc.Duration()

	for start := w.Start; !start.Add(dur).After(w.End); start = start.Add(step) {
		taken := counts[start.UnixNano()]
		if taken >= svc.Capacity || !inRange(start) {
			continue
		}
		out = append(out, model.Slot{Start: start, End: start.Add(dur), Remaining: svc.Capacity - taken})
	}
	return out
}

func notFoundOrInternal(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, err)
	}
	return apperrors.NewInternal(err)
}
