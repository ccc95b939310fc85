package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness constraint.
	ErrDuplicate = errors.New("duplicate record")
	// ErrOverlap is returned when an insert violates the booking exclusion constraint.
	ErrOverlap = errors.New("overlapping record")
)

// All repository interfaces in one file
type (
	// TxManager runs fn inside one database transaction. Repositories called
	// with the ctx handed to fn take part in that transaction.
	TxManager interface {
		WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	BusinessRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Business, error)
		GetBySlug(ctx context.Context, slug string) (*model.Business, error)
	}

	CatalogRepository interface {
		GetService(ctx context.Context, businessID, serviceID uuid.UUID) (*model.Service, error)
		GetStaff(ctx context.Context, businessID, staffID uuid.UUID) (*model.StaffMember, error)
		// ListQualifiedStaff returns active staff qualified for the service,
		// ordered by priority then id.
		ListQualifiedStaff(ctx context.Context, businessID, serviceID uuid.UUID) ([]*model.QualifiedStaff, error)
		IsQualified(ctx context.Context, staffID, serviceID uuid.UUID) (bool, error)
		// LockService and LockStaff take a row lock for the rest of the transaction.
		LockService(ctx context.Context, businessID, serviceID uuid.UUID) error
		LockStaff(ctx context.Context, businessID, staffID uuid.UUID) error
	}

	ScheduleRepository interface {
		// GetOverride matches staffID exactly; a nil staffID selects the business-wide override.
		GetOverride(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, date time.Time) (*model.AvailabilityOverride, error)
		GetDefaultTemplate(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID) (*model.AvailabilityTemplate, error)
		ListRules(ctx context.Context, templateID uuid.UUID, weekday time.Weekday) ([]*model.AvailabilitySlotRule, error)
	}

	HoldRepository interface {
		Create(ctx context.Context, hold *model.Hold) error
		Get(ctx context.Context, businessID, id uuid.UUID) (*model.Hold, error)
		GetByIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string) (*model.Hold, error)
		Delete(ctx context.Context, businessID, id uuid.UUID) (bool, error)
		DeleteExpired(ctx context.Context, now time.Time) (int64, error)
		ListActive(ctx context.Context, filter model.HoldFilter, now time.Time) ([]*model.Hold, error)
	}

	BookingRepository interface {
		Create(ctx context.Context, booking *model.Booking) error
		GetByIdempotencyKey(ctx context.Context, key string) (*model.Booking, error)
		ListActive(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error)
		CountActiveAt(ctx context.Context, businessID, serviceID uuid.UUID, startsAt time.Time) (int, error)
		HasOverlap(ctx context.Context, businessID, staffID uuid.UUID, start, end time.Time) (bool, error)
	}

	CustomerRepository interface {
		// Upsert inserts or updates by (business, email) and fills in the stored row.
		Upsert(ctx context.Context, customer *model.Customer) error
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		// FetchDue locks up to limit deliverable events, oldest first.
		FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.OutboxEvent, error)
		// Claim hides ids from FetchDue until the given time.
		Claim(ctx context.Context, ids []uuid.UUID, until time.Time) error
		MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, lastError string, nextRetryAt time.Time) error
	}

	BookingActionRepository interface {
		Create(ctx context.Context, action *model.BookingAction) error
	}
)
