// Package testutil seeds an in-memory store with a small business for
// service and handler tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository/memory"
	"github.com/jwalitptl/booking-api/pkg/clock"
)

// Now is Monday 2026-03-09 06:00 UTC.
var Now = time.Date(2026, 3, 9, 6, 0, 0, 0, time.UTC)

type Fixture struct {
	Store    *memory.Store
	Clock    *clock.Fixed
	Business model.Business

	templates map[string]model.AvailabilityTemplate
}

func NewFixture(t *testing.T) *Fixture {
	t.Helper()
	f := &Fixture{
		Store:     memory.NewStore(),
		Clock:     clock.NewFixed(Now),
		templates: map[string]model.AvailabilityTemplate{},
	}
	f.Business = model.Business{
		Base:                  model.Base{ID: uuid.New(), CreatedAt: Now, UpdatedAt: Now},
		Slug:                  "studio-" + uuid.NewString()[:8],
		Name:                  "Harbor Street Studio",
		Timezone:              "UTC",
		MaxAdvanceBookingDays: 60,
	}
	f.Store.AddBusiness(f.Business)
	return f
}

// SetPolicy updates the booking notice and horizon of the business.
func (f *Fixture) SetPolicy(noticeHours, horizonDays int) {
	f.Business.MinBookingNoticeHours = noticeHours
	f.Business.MaxAdvanceBookingDays = horizonDays
	f.Store.AddBusiness(f.Business)
}

func (f *Fixture) SetTimezone(tz string) {
	f.Business.Timezone = tz
	f.Store.AddBusiness(f.Business)
}

func (f *Fixture) AddService(name string, durationMinutes, bufferMinutes, capacity int) model.Service {
	svc := model.Service{
		Base:            model.Base{ID: uuid.New(), CreatedAt: Now, UpdatedAt: Now},
		BusinessID:      f.Business.ID,
		Name:            name,
		DurationMinutes: durationMinutes,
		BufferMinutes:   bufferMinutes,
		Capacity:        capacity,
		IsActive:        true,
	}
	f.Store.AddService(svc)
	return svc
}

func (f *Fixture) AddStaff(name string, priority int, services ...model.Service) model.StaffMember {
	m := model.StaffMember{
		Base:       model.Base{ID: uuid.New(), CreatedAt: Now, UpdatedAt: Now},
		BusinessID: f.Business.ID,
		Name:       name,
		IsActive:   true,
	}
	quals := make([]model.StaffQualification, 0, len(services))
	for _, svc := range services {
		quals = append(quals, model.StaffQualification{ServiceID: svc.ID, Priority: priority})
	}
	f.Store.AddStaff(m, quals...)
	return m
}

// AddWeeklyHours adds a rule to the default template of staffID, or of the
// business when staffID is nil.
func (f *Fixture) AddWeeklyHours(staffID *uuid.UUID, day time.Weekday, start, end string) {
	key := "business"
	if staffID != nil {
		key = staffID.String()
	}
	tmpl, ok := f.templates[key]
	if !ok {
		tmpl = model.AvailabilityTemplate{
			ID:         uuid.New(),
			BusinessID: f.Business.ID,
			StaffID:    staffID,
			Name:       fmt.Sprintf("%s default", key),
			IsDefault:  true,
		}
		f.templates[key] = tmpl
	}
	f.Store.AddTemplate(tmpl, model.AvailabilitySlotRule{
		DayOfWeek: int(day),
		StartTime: start,
		EndTime:   end,
	})
}

// AddBooking stores a confirmed booking for staffID without a customer check.
func (f *Fixture) AddBooking(svc model.Service, staffID *uuid.UUID, start time.Time) model.Booking {
	b := model.Booking{
		Base:              model.Base{ID: uuid.New(), CreatedAt: f.Clock.Now(), UpdatedAt: f.Clock.Now()},
		BusinessID:        f.Business.ID,
		ServiceID:         svc.ID,
		StaffID:           staffID,
		CustomerID:        uuid.New(),
		StartsAt:          start,
		EndsAt:            start.Add(svc.Duration()),
		Status:            model.BookingStatusConfirmed,
		Source:            model.ChannelAdmin,
		ConfirmationToken: uuid.NewString(),
		Exclusive:         svc.IsExclusive(),
	}
	f.Store.AddBooking(b)
	return b
}

// AddHold stores a hold expiring ttl from the fixture clock.
func (f *Fixture) AddHold(svc model.Service, staffID *uuid.UUID, start time.Time, ttl time.Duration) model.Hold {
	h := model.Hold{
		ID:         uuid.New(),
		BusinessID: f.Business.ID,
		ServiceID:  svc.ID,
		StaffID:    staffID,
		StartsAt:   start,
		EndsAt:     start.Add(svc.Duration()),
		ExpiresAt:  f.Clock.Now().Add(ttl),
		CreatedBy:  model.ChannelWeb,
		Metadata:   []byte(`{}`),
		CreatedAt:  f.Clock.Now(),
	}
	f.Store.AddHold(h)
	return h
}

// At returns the given wall-clock time in UTC.
func At(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func Ptr[T any](v T) *T {
	return &v
}
