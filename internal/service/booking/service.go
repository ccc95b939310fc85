// Package booking promotes holds to durable bookings.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/service/event"
	"github.com/jwalitptl/booking-api/pkg/clock"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/validator"
)

type ConfirmRequest struct {
	Customer       model.CustomerContact `json:"customer"`
	IdempotencyKey string                `json:"idempotency_key,omitempty" validate:"max=255"`
}

// Repositories groups the stores the confirmation writes to.
type Repositories struct {
	Catalog   repository.CatalogRepository
	Holds     repository.HoldRepository
	Bookings  repository.BookingRepository
	Customers repository.CustomerRepository
	Actions   repository.BookingActionRepository
}

type Service struct {
	tx        repository.TxManager
	repos     Repositories
	events    *event.EventService
	validator validator.Validator
	clock     clock.Clock
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	tx repository.TxManager,
	repos Repositories,
	events *event.EventService,
	clk clock.Clock,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		tx:        tx,
		repos:     repos,
		events:    events,
		validator: validator.New(),
		clock:     clk,
		logger:    logger,
		metrics:   metrics,
	}
}

// ConfirmHold turns a live hold into a pending booking in one transaction,
// together with the customer upsert, the audit record and the
// booking.created outbox event. Either all of it commits or none of it does.
//
// A repeated call with the same idempotency key returns the original booking
// with Replayed set. An expired hold is deleted and reported as Expired.
func (s *Service) ConfirmHold(ctx context.Context, business *model.Business, holdID uuid.UUID, req ConfirmRequest) (*model.Confirmation, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, s.fail(apperrors.NewValidation(err.Error(), err))
	}

	var (
		result  *model.Confirmation
		expired bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// the key is checked first: a confirmed hold no longer exists
		if req.IdempotencyKey != "" {
			replay, err := s.replay(ctx, business, req.IdempotencyKey)
			if err != nil || replay != nil {
				result = replay
				return err
			}
		}

		hold, err := s.repos.Holds.Get(ctx, business.ID, holdID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.NewNotFound("hold", err)
			}
			return s.internal(err, "Failed to load hold", "hold_id", holdID.String())
		}

		now := s.clock.Now()
		if hold.IsExpired(now) {
			if _, err := s.repos.Holds.Delete(ctx, business.ID, hold.ID); err != nil {
				return s.internal(err, "Failed to delete expired hold", "hold_id", hold.ID.String())
			}
			// commit the delete, report Expired afterwards
			expired = true
			return nil
		}

		result, err = s.confirm(ctx, business, hold, req)
		return err
	})

	if err != nil && req.IdempotencyKey != "" && (errors.Is(err, repository.ErrDuplicate) || apperrors.IsConflict(err)) {
		// a concurrent confirmation with the same key won the slot
		if replay, replayErr := s.replay(ctx, business, req.IdempotencyKey); replayErr == nil && replay != nil {
			result, err = replay, nil
		}
	}
	if err == nil && expired {
		err = apperrors.NewExpired("hold")
	}
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = s.internal(err, "Failed to commit confirmation", "hold_id", holdID.String())
		}
		return nil, s.fail(err)
	}

	if result.Replayed {
		s.metrics.BookingsReplayed.Inc()
	} else {
		s.metrics.BookingsConfirmed.Inc()
	}
	return result, nil
}

func (s *Service) replay(ctx context.Context, business *model.Business, key string) (*model.Confirmation, error) {
	existing, err := s.repos.Bookings.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.internal(err, "Failed to look up booking by idempotency key")
	}
	if existing.BusinessID != business.ID {
		return nil, apperrors.NewConflict("idempotency key already used", nil)
	}
	return &model.Confirmation{
		BookingID:         existing.ID,
		ConfirmationToken: existing.ConfirmationToken,
		Status:            existing.Status,
		Replayed:          true,
	}, nil
}

func (s *Service) confirm(ctx context.Context, business *model.Business, hold *model.Hold, req ConfirmRequest) (*model.Confirmation, error) {
	svc, err := s.repos.Catalog.GetService(ctx, business.ID, hold.ServiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("service", err)
		}
		return nil, s.internal(err, "Failed to load service", "service_id", hold.ServiceID.String())
	}

	var staff *model.StaffMember
	if hold.StaffID != nil {
		staff, err = s.repos.Catalog.GetStaff(ctx, business.ID, *hold.StaffID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("staff member", err)
			}
			return nil, s.internal(err, "Failed to load staff member", "staff_id", hold.StaffID.String())
		}
	}

	if err := s.lockResource(ctx, business.ID, svc, hold); err != nil {
		return nil, err
	}
	// a confirmation with the same key may have committed while we waited
	if req.IdempotencyKey != "" {
		replay, err := s.replay(ctx, business, req.IdempotencyKey)
		if err != nil || replay != nil {
			return replay, err
		}
	}
	if err := s.checkCapacity(ctx, business.ID, svc, hold); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	customer := &model.Customer{
		Base:       model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		BusinessID: business.ID,
		Email:      strings.ToLower(strings.TrimSpace(req.Customer.Email)),
		Name:       strings.TrimSpace(req.Customer.Name),
	}
	if phone := strings.TrimSpace(req.Customer.Phone); phone != "" {
		customer.Phone = &phone
	}
	if err := s.repos.Customers.Upsert(ctx, customer); err != nil {
		return nil, s.internal(err, "Failed to upsert customer")
	}

	holdID := hold.ID
	b := &model.Booking{
		Base:              model.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		BusinessID:        business.ID,
		ServiceID:         svc.ID,
		StaffID:           hold.StaffID,
		CustomerID:        customer.ID,
		StartsAt:          hold.StartsAt,
		EndsAt:            hold.EndsAt,
		Status:            model.BookingStatusPending,
		Source:            hold.CreatedBy,
		HoldID:            &holdID,
		ConfirmationToken: uuid.NewString(),
		Exclusive:         svc.IsExclusive(),
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		b.IdempotencyKey = &key
	}

	if err := s.repos.Bookings.Create(ctx, b); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperrors.NewConflict("hold has already been confirmed", err)
		case errors.Is(err, repository.ErrOverlap):
			return nil, apperrors.NewConflict("slot is no longer available", err)
		}
		return nil, s.internal(err, "Failed to create booking", "hold_id", hold.ID.String())
	}

	deleted, err := s.repos.Holds.Delete(ctx, business.ID, hold.ID)
	if err != nil {
		return nil, s.internal(err, "Failed to consume hold", "hold_id", hold.ID.String())
	}
	if !deleted {
		return nil, apperrors.NewConflict("hold was consumed concurrently", nil)
	}

	metadata, err := json.Marshal(map[string]interface{}{
		"hold_id": hold.ID,
		"source":  hold.CreatedBy,
	})
	if err != nil {
		return nil, s.internal(err, "Failed to encode audit metadata")
	}
	action := &model.BookingAction{
		ID:         uuid.New(),
		BookingID:  b.ID,
		BusinessID: business.ID,
		Action:     model.BookingActionCreated,
		ActorType:  hold.CreatedBy.ActorType(),
		Metadata:   metadata,
		CreatedAt:  now,
	}
	if action.ActorType == model.ActorCustomer {
		action.ActorID = &customer.ID
	}
	if err := s.repos.Actions.Create(ctx, action); err != nil {
		return nil, s.internal(err, "Failed to record booking action", "booking_id", b.ID.String())
	}

	_, err = s.events.EmitBookingCreated(ctx, event.BookingCreated{
		Booking:  b,
		Business: business,
		Service:  svc,
		Staff:    staff,
		Customer: customer,
	})
	if err != nil {
		return nil, s.internal(err, "Failed to record booking event", "booking_id", b.ID.String())
	}

	return &model.Confirmation{
		BookingID:         b.ID,
		ConfirmationToken: b.ConfirmationToken,
		Status:            b.Status,
	}, nil
}

// lockResource serializes confirmations on the contended row. Staff-bound
// exclusive services lock the staff row; everything else locks the service row.
func (s *Service) lockResource(ctx context.Context, businessID uuid.UUID, svc *model.Service, hold *model.Hold) error {
	if svc.IsExclusive() && hold.StaffID != nil {
		if err := s.repos.Catalog.LockStaff(ctx, businessID, *hold.StaffID); err != nil {
			return s.internal(err, "Failed to lock staff member", "staff_id", hold.StaffID.String())
		}
		return nil
	}
	if err := s.repos.Catalog.LockService(ctx, businessID, svc.ID); err != nil {
		return s.internal(err, "Failed to lock service", "service_id", svc.ID.String())
	}
	return nil
}

// checkCapacity verifies the slot still fits. It expects lockResource to
// have run in the same transaction.
func (s *Service) checkCapacity(ctx context.Context, businessID uuid.UUID, svc *model.Service, hold *model.Hold) error {
	if svc.IsExclusive() && hold.StaffID != nil {
		overlap, err := s.repos.Bookings.HasOverlap(ctx, businessID, *hold.StaffID, hold.StartsAt, hold.EndsAt)
		if err != nil {
			return s.internal(err, "Failed to check staff overlap")
		}
		if overlap {
			return apperrors.NewConflict("slot is no longer available", nil)
		}
		return nil
	}

	if svc.IsExclusive() {
		serviceID := svc.ID
		existing, err := s.repos.Bookings.ListActive(ctx, model.BookingFilter{
			BusinessID: businessID,
			ServiceID:  &serviceID,
			From:       hold.StartsAt,
			To:         hold.EndsAt,
		})
		if err != nil {
			return s.internal(err, "Failed to check service overlap")
		}
		for _, b := range existing {
			if b.StaffID == nil {
				return apperrors.NewConflict("slot is no longer available", nil)
			}
		}
		return nil
	}

	taken, err := s.repos.Bookings.CountActiveAt(ctx, businessID, svc.ID, hold.StartsAt)
	if err != nil {
		return s.internal(err, "Failed to count bookings")
	}
	if taken >= svc.Capacity {
		return apperrors.NewConflict(fmt.Sprintf("slot is full (capacity %d)", svc.Capacity), nil)
	}
	return nil
}

func (s *Service) internal(err error, msg string, fields ...interface{}) error {
	s.logger.Error(err, msg, fields...)
	return apperrors.NewInternal(err)
}

func (s *Service) fail(err error) error {
	s.metrics.ConfirmationFailures.WithLabelValues(apperrors.CodeOf(err).String()).Inc()
	return err
}
