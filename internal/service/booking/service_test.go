package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/service/event"
	fixture "github.com/jwalitptl/booking-api/internal/testutil"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type failingOutbox struct {
	repository.OutboxRepository
}

func (failingOutbox) Create(ctx context.Context, e *model.OutboxEvent) error {
	return errors.New("outbox unavailable")
}

type failingBookings struct {
	repository.BookingRepository
}

func (failingBookings) Create(ctx context.Context, b *model.Booking) error {
	return errors.New("connection reset")
}

// uncommittedKeyBookings hides bookings from the first misses key lookups,
// the way a read-committed transaction sees a concurrent winner before it
// commits.
type uncommittedKeyBookings struct {
	repository.BookingRepository
	misses int
}

func (b *uncommittedKeyBookings) GetByIdempotencyKey(ctx context.Context, key string) (*model.Booking, error) {
	if b.misses > 0 {
		b.misses--
		return nil, fmt.Errorf("failed to get booking by idempotency key: %w", repository.ErrNotFound)
	}
	return b.BookingRepository.GetByIdempotencyKey(ctx, key)
}

type confirmFixture struct {
	*fixture.Fixture
	svc     model.Service
	staff   model.StaffMember
	metrics *metrics.Metrics
}

func newConfirmFixture(t *testing.T) *confirmFixture {
	f := &confirmFixture{Fixture: fixture.NewFixture(t), metrics: metrics.New("test")}
	f.svc = f.AddService("Haircut", 30, 10, 1)
	f.staff = f.AddStaff("Dana", 1, f.svc)
	return f
}

func (f *confirmFixture) repos() Repositories {
	return Repositories{
		Catalog:   f.Store.Catalog(),
		Holds:     f.Store.Holds(),
		Bookings:  f.Store.Bookings(),
		Customers: f.Store.Customers(),
		Actions:   f.Store.BookingActions(),
	}
}

func (f *confirmFixture) service(repos Repositories, outbox repository.OutboxRepository) *Service {
	events := event.NewEventService(outbox, f.Clock, 0)
	return NewService(f.Store, repos, events, f.Clock, logger.Nop(), f.metrics)
}

func (f *confirmFixture) confirmer() *Service {
	return f.service(f.repos(), f.Store.Outbox())
}

func contact(email string) ConfirmRequest {
	return ConfirmRequest{Customer: model.CustomerContact{Name: "Ada Lovelace", Email: email, Phone: "+44 20 7946 0000"}}
}

func TestConfirmHold(t *testing.T) {
	f := newConfirmFixture(t)
	start := fixture.At(2026, 3, 10, 9, 0)
	h := f.AddHold(f.svc, &f.staff.ID, start, 5*time.Minute)

	res, err := f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, contact("Ada@Example.com"))
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, model.BookingStatusPending, res.Status)
	assert.NotEmpty(t, res.ConfirmationToken)

	bookings := f.Store.AllBookings()
	require.Len(t, bookings, 1)
	b := bookings[0]
	assert.Equal(t, res.BookingID, b.ID)
	assert.Equal(t, h.ID, *b.HoldID)
	assert.Equal(t, f.staff.ID, *b.StaffID)
	assert.Equal(t, start, b.StartsAt)
	assert.Equal(t, h.EndsAt, b.EndsAt)
	assert.Equal(t, model.ChannelWeb, b.Source)
	assert.True(t, b.Exclusive)

	assert.Empty(t, f.Store.AllHolds())

	customers := f.Store.AllCustomers()
	require.Len(t, customers, 1)
	assert.Equal(t, "ada@example.com", customers[0].Email)
	assert.Equal(t, customers[0].ID, b.CustomerID)

	actions := f.Store.AllBookingActions()
	require.Len(t, actions, 1)
	assert.Equal(t, model.BookingActionCreated, actions[0].Action)
	assert.Equal(t, model.ActorCustomer, actions[0].ActorType)
	assert.Equal(t, customers[0].ID, *actions[0].ActorID)

	events := f.Store.AllOutboxEvents()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventBookingCreated, events[0].EventType)
	assert.Zero(t, events[0].Attempts)
	var payload model.BookingCreatedPayload
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, b.ID, payload.BookingID)
	assert.Equal(t, b.ConfirmationToken, payload.ConfirmationToken)
	require.NotNil(t, payload.Staff)
	assert.Equal(t, "Dana", payload.Staff.Name)
	assert.Equal(t, "Haircut", payload.Service.Name)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingsConfirmed))
}

func TestConfirmHold_IdempotentReplay(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	s := f.confirmer()
	req := contact("ada@example.com")
	req.IdempotencyKey = "confirm-1"

	first, err := s.ConfirmHold(context.Background(), &f.Business, h.ID, req)
	require.NoError(t, err)
	second, err := s.ConfirmHold(context.Background(), &f.Business, h.ID, req)
	require.NoError(t, err)

	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, first.ConfirmationToken, second.ConfirmationToken)
	assert.True(t, second.Replayed)
	assert.Len(t, f.Store.AllBookings(), 1)
	assert.Len(t, f.Store.AllOutboxEvents(), 1)
	assert.Len(t, f.Store.AllBookingActions(), 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingsReplayed))
}

func TestConfirmHold_KeyFromAnotherBusinessConflicts(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	req := contact("ada@example.com")
	req.IdempotencyKey = "shared-key"
	_, err := f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, req)
	require.NoError(t, err)

	stranger := model.Business{Base: model.Base{ID: uuid.New()}}
	_, err = f.confirmer().ConfirmHold(context.Background(), &stranger, uuid.New(), req)
	assert.True(t, apperrors.IsConflict(err), "got %v", err)
}

func TestConfirmHold_Expired(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	f.Clock.Advance(5*time.Minute + time.Second)

	_, err := f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, contact("ada@example.com"))
	assert.True(t, apperrors.IsExpired(err), "got %v", err)

	assert.Empty(t, f.Store.AllHolds())
	assert.Empty(t, f.Store.AllBookings())
	assert.Empty(t, f.Store.AllOutboxEvents())

	// once the hold is gone the same call reports NotFound
	_, err = f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, contact("ada@example.com"))
	assert.True(t, apperrors.IsNotFound(err), "got %v", err)
}

func TestConfirmHold_AtExpiryIsStillLive(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	f.Clock.Advance(5 * time.Minute)

	_, err := f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, contact("ada@example.com"))
	assert.NoError(t, err)
}

func TestConfirmHold_NotFound(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)

	_, err := f.confirmer().ConfirmHold(context.Background(), &f.Business, uuid.New(), contact("ada@example.com"))
	assert.True(t, apperrors.IsNotFound(err))

	stranger := model.Business{Base: model.Base{ID: uuid.New()}}
	_, err = f.confirmer().ConfirmHold(context.Background(), &stranger, h.ID, contact("ada@example.com"))
	assert.True(t, apperrors.IsNotFound(err))
}

func TestConfirmHold_Validation(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)

	_, err := f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, contact("not-an-email"))
	assert.True(t, apperrors.IsValidation(err))
	_, err = f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, ConfirmRequest{})
	assert.True(t, apperrors.IsValidation(err))

	assert.Len(t, f.Store.AllHolds(), 1)
	assert.Empty(t, f.Store.AllCustomers())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.ConfirmationFailures.WithLabelValues("validation")))
}

func TestConfirmHold_RacingHoldsNeverOverlap(t *testing.T) {
	f := newConfirmFixture(t)
	// two optimistic holds on the same staff and overlapping times
	a := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	b := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 15), 5*time.Minute)
	s := f.confirmer()

	_, err := s.ConfirmHold(context.Background(), &f.Business, a.ID, contact("a@example.com"))
	require.NoError(t, err)
	_, err = s.ConfirmHold(context.Background(), &f.Business, b.ID, contact("b@example.com"))
	assert.True(t, apperrors.IsConflict(err), "got %v", err)

	bookings := f.Store.AllBookings()
	require.Len(t, bookings, 1)
	for i := range bookings {
		for j := i + 1; j < len(bookings); j++ {
			x, y := bookings[i], bookings[j]
			if *x.StaffID == *y.StaffID {
				assert.False(t, x.StartsAt.Before(y.EndsAt) && y.StartsAt.Before(x.EndsAt))
			}
		}
	}
	// the losing hold survives the rollback
	holds := f.Store.AllHolds()
	require.Len(t, holds, 1)
	assert.Equal(t, b.ID, holds[0].ID)
}

func TestConfirmHold_CancelledBookingDoesNotBlock(t *testing.T) {
	f := newConfirmFixture(t)
	start := fixture.At(2026, 3, 10, 9, 0)
	old := f.AddBooking(f.svc, &f.staff.ID, start)
	old.Status = model.BookingStatusCancelled
	f.Store.AddBooking(old)

	h := f.AddHold(f.svc, &f.staff.ID, start, 5*time.Minute)
	_, err := f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, contact("ada@example.com"))
	assert.NoError(t, err)
}

func TestConfirmHold_CapacityCeiling(t *testing.T) {
	f := newConfirmFixture(t)
	class := f.AddService("Yoga", 60, 0, 12)
	start := fixture.At(2026, 3, 10, 18, 0)
	s := f.confirmer()

	holds := make([]model.Hold, 13)
	for i := range holds {
		holds[i] = f.AddHold(class, nil, start, 5*time.Minute)
	}

	for i := 0; i < 12; i++ {
		_, err := s.ConfirmHold(context.Background(), &f.Business, holds[i].ID, contact(fmt.Sprintf("guest%d@example.com", i)))
		require.NoError(t, err, "booking %d", i+1)
	}

	_, err := s.ConfirmHold(context.Background(), &f.Business, holds[12].ID, contact("guest12@example.com"))
	assert.True(t, apperrors.IsConflict(err), "got %v", err)
	assert.Len(t, f.Store.AllBookings(), 12)
	for _, b := range f.Store.AllBookings() {
		assert.False(t, b.Exclusive)
	}
}

func TestConfirmHold_OutboxFailureRollsBackBooking(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	s := f.service(f.repos(), failingOutbox{f.Store.Outbox()})

	_, err := s.ConfirmHold(context.Background(), &f.Business, h.ID, contact("ada@example.com"))
	assert.True(t, apperrors.IsInternal(err), "got %v", err)

	assert.Empty(t, f.Store.AllBookings())
	assert.Empty(t, f.Store.AllOutboxEvents())
	assert.Empty(t, f.Store.AllBookingActions())
	assert.Empty(t, f.Store.AllCustomers())
	assert.Len(t, f.Store.AllHolds(), 1)
}

func TestConfirmHold_BookingFailureWritesNoEvent(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	repos := f.repos()
	repos.Bookings = failingBookings{f.Store.Bookings()}

	_, err := f.service(repos, f.Store.Outbox()).ConfirmHold(context.Background(), &f.Business, h.ID, contact("ada@example.com"))
	assert.True(t, apperrors.IsInternal(err), "got %v", err)

	assert.Empty(t, f.Store.AllBookings())
	assert.Empty(t, f.Store.AllOutboxEvents())
	assert.Len(t, f.Store.AllHolds(), 1)
}

func TestConfirmHold_AdminChannelIsStaffActor(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	h.CreatedBy = model.ChannelAdmin
	f.Store.AddHold(h)

	_, err := f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, contact("ada@example.com"))
	require.NoError(t, err)

	actions := f.Store.AllBookingActions()
	require.Len(t, actions, 1)
	assert.Equal(t, model.ActorStaff, actions[0].ActorType)
	assert.Nil(t, actions[0].ActorID)
	assert.Equal(t, model.ChannelAdmin, f.Store.AllBookings()[0].Source)
}

func TestConfirmHold_ReusesCustomerByEmail(t *testing.T) {
	f := newConfirmFixture(t)
	s := f.confirmer()
	first := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	second := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 11, 0), 5*time.Minute)

	_, err := s.ConfirmHold(context.Background(), &f.Business, first.ID, contact("ada@example.com"))
	require.NoError(t, err)

	req := contact("ADA@example.com")
	req.Customer.Name = "Ada King"
	_, err = s.ConfirmHold(context.Background(), &f.Business, second.ID, req)
	require.NoError(t, err)

	customers := f.Store.AllCustomers()
	require.Len(t, customers, 1)
	assert.Equal(t, "Ada King", customers[0].Name)
	for _, b := range f.Store.AllBookings() {
		assert.Equal(t, customers[0].ID, b.CustomerID)
	}
}

// concurrentWinner stores the booking a same-key confirmation committed
// while the hold is still visible to the retry.
func (f *confirmFixture) concurrentWinner(h model.Hold, key string) model.Booking {
	winner := f.AddBooking(f.svc, h.StaffID, h.StartsAt)
	winner.HoldID = &h.ID
	winner.IdempotencyKey = &key
	winner.Status = model.BookingStatusPending
	f.Store.AddBooking(winner)
	return winner
}

func TestConfirmHold_SameKeyRetryReplaysAfterLock(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	winner := f.concurrentWinner(h, "retry-key")

	repos := f.repos()
	repos.Bookings = &uncommittedKeyBookings{BookingRepository: f.Store.Bookings(), misses: 1}
	req := contact("ada@example.com")
	req.IdempotencyKey = "retry-key"

	res, err := f.service(repos, f.Store.Outbox()).ConfirmHold(context.Background(), &f.Business, h.ID, req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, winner.ID, res.BookingID)
	assert.Equal(t, winner.ConfirmationToken, res.ConfirmationToken)
	assert.Len(t, f.Store.AllBookings(), 1)
	assert.Empty(t, f.Store.AllOutboxEvents())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BookingsReplayed))
}

func TestConfirmHold_SameKeyConflictFallsBackToReplay(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	winner := f.concurrentWinner(h, "retry-key")

	repos := f.repos()
	repos.Bookings = &uncommittedKeyBookings{BookingRepository: f.Store.Bookings(), misses: 2}
	req := contact("ada@example.com")
	req.IdempotencyKey = "retry-key"

	res, err := f.service(repos, f.Store.Outbox()).ConfirmHold(context.Background(), &f.Business, h.ID, req)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, winner.ID, res.BookingID)
	assert.Len(t, f.Store.AllBookings(), 1)
}

func TestConfirmHold_ConflictWithoutKeyIsNotReplayed(t *testing.T) {
	f := newConfirmFixture(t)
	h := f.AddHold(f.svc, &f.staff.ID, fixture.At(2026, 3, 10, 9, 0), 5*time.Minute)
	f.concurrentWinner(h, "someone-else")

	_, err := f.confirmer().ConfirmHold(context.Background(), &f.Business, h.ID, contact("ada@example.com"))
	assert.True(t, apperrors.IsConflict(err), "got %v", err)
}
