// Package hold manages short-lived soft reservations of slots.
//
// Creation is optimistic: a hold is inserted without re-checking the slot
// under a lock, so two holds may race for the same capacity-1 slot. The
// confirmation transaction is where such races are settled.
package hold

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/clock"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/validator"
)

const maxIdempotencyKeyLen = 255

type CreateHoldRequest struct {
	ServiceID      uuid.UUID       `json:"service_id" validate:"required"`
	StaffID        *uuid.UUID      `json:"staff_id,omitempty"`
	CustomerID     *uuid.UUID      `json:"customer_id,omitempty"`
	StartsAt       time.Time       `json:"starts_at" validate:"required"`
	Channel        model.Channel   `json:"channel" validate:"required,oneof=web chatbot voice admin"`
	IdempotencyKey string          `json:"idempotency_key,omitempty" validate:"max=255"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
}

// HoldResult is the created hold, or the earlier hold that owns the
// idempotency key when Replayed is set.
type HoldResult struct {
	Hold     *model.Hold `json:"hold"`
	Replayed bool        `json:"replayed"`
}

// ActiveHoldsQuery narrows GetActiveHolds. Nil fields do not constrain.
type ActiveHoldsQuery struct {
	ServiceID *uuid.UUID
	StaffID   *uuid.UUID
	From      *time.Time
	To        *time.Time
}

type Service struct {
	tx        repository.TxManager
	catalog   repository.CatalogRepository
	holds     repository.HoldRepository
	validator validator.Validator
	clock     clock.Clock
	ttl       time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	tx repository.TxManager,
	catalog repository.CatalogRepository,
	holds repository.HoldRepository,
	clk clock.Clock,
	ttl time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	if ttl <= 0 {
		ttl = model.DefaultHoldTTL
	}
	return &Service{
		tx:        tx,
		catalog:   catalog,
		holds:     holds,
		validator: validator.New(),
		clock:     clk,
		ttl:       ttl,
		logger:    logger,
		metrics:   metrics,
	}
}

// CreateHold soft-reserves a slot for the hold TTL. A live hold already
// carrying the idempotency key is returned unchanged without re-validation.
func (s *Service) CreateHold(ctx context.Context, business *model.Business, req CreateHoldRequest) (*HoldResult, error) {
	if len(req.IdempotencyKey) > maxIdempotencyKeyLen {
		return nil, apperrors.NewValidation(fmt.Sprintf("idempotency_key must be at most %d characters", maxIdempotencyKeyLen), nil)
	}

	var result *HoldResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()

		if req.IdempotencyKey != "" {
			existing, err := s.holds.GetByIdempotencyKey(ctx, business.ID, req.IdempotencyKey)
			switch {
			case err == nil && !existing.IsExpired(now):
				result = &HoldResult{Hold: existing, Replayed: true}
				return nil
			case err == nil:
				// the key is free again once its hold is dead
				if _, err := s.holds.Delete(ctx, business.ID, existing.ID); err != nil {
					return s.internal(err, "Failed to delete expired hold", "hold_id", existing.ID.String())
				}
			case !errors.Is(err, repository.ErrNotFound):
				return s.internal(err, "Failed to look up hold by idempotency key")
			}
		}

		if err := s.validator.Validate(req); err != nil {
			return apperrors.NewValidation(err.Error(), err)
		}

		svc, err := s.checkTarget(ctx, business.ID, req)
		if err != nil {
			return err
		}
		if !req.StartsAt.After(now) {
			return apperrors.NewValidation("starts_at must be in the future", nil)
		}

		h := &model.Hold{
			ID:         uuid.New(),
			BusinessID: business.ID,
			ServiceID:  svc.ID,
			StaffID:    req.StaffID,
			CustomerID: req.CustomerID,
			StartsAt:   req.StartsAt,
			EndsAt:     req.StartsAt.Add(svc.Duration()),
			ExpiresAt:  now.Add(s.ttl),
			CreatedBy:  req.Channel,
			Metadata:   req.Metadata,
			CreatedAt:  now,
		}
		if len(h.Metadata) == 0 {
			h.Metadata = json.RawMessage(`{}`)
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			h.IdempotencyKey = &key
		}

		if err := s.holds.Create(ctx, h); err != nil {
			if errors.Is(err, repository.ErrDuplicate) && h.IdempotencyKey != nil {
				return apperrors.NewConflict("hold with this idempotency key is being created", err)
			}
			return s.internal(err, "Failed to create hold")
		}
		result = &HoldResult{Hold: h}
		return nil
	})

	if apperrors.IsConflict(err) && req.IdempotencyKey != "" {
		// lost an insert race on the key; answer with the winner
		existing, lookupErr := s.holds.GetByIdempotencyKey(ctx, business.ID, req.IdempotencyKey)
		if lookupErr == nil && !existing.IsExpired(s.clock.Now()) {
			s.metrics.HoldsReplayed.Inc()
			return &HoldResult{Hold: existing, Replayed: true}, nil
		}
	}
	if err != nil {
		return nil, err
	}

	if result.Replayed {
		s.metrics.HoldsReplayed.Inc()
	} else {
		s.metrics.HoldsCreated.Inc()
	}
	return result, nil
}

func (s *Service) checkTarget(ctx context.Context, businessID uuid.UUID, req CreateHoldRequest) (*model.Service, error) {
	svc, err := s.catalog.GetService(ctx, businessID, req.ServiceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("service", err)
		}
		return nil, s.internal(err, "Failed to load service")
	}
	if !svc.IsActive {
		return nil, apperrors.NewValidation("service is not bookable", nil)
	}

	if req.StaffID != nil {
		staff, err := s.catalog.GetStaff(ctx, businessID, *req.StaffID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperrors.NewNotFound("staff member", err)
			}
			return nil, s.internal(err, "Failed to load staff member")
		}
		if !staff.IsActive {
			return nil, apperrors.NewNotFound("staff member", nil)
		}
		ok, err := s.catalog.IsQualified(ctx, staff.ID, svc.ID)
		if err != nil {
			return nil, s.internal(err, "Failed to check qualification")
		}
		if !ok {
			return nil, apperrors.NewValidation("staff member does not perform this service", nil)
		}
	}
	return svc, nil
}

// CancelHold deletes the hold. It reports whether a row was removed; a hold
// that is already gone is not an error.
func (s *Service) CancelHold(ctx context.Context, business *model.Business, holdID uuid.UUID) (bool, error) {
	deleted, err := s.holds.Delete(ctx, business.ID, holdID)
	if err != nil {
		return false, s.internal(err, "Failed to cancel hold", "hold_id", holdID.String())
	}
	if deleted {
		s.metrics.HoldsCancelled.Inc()
	}
	return deleted, nil
}

// CleanupExpiredHolds deletes every hold past its expiry and returns how
// many rows went away. Safe to run repeatedly and concurrently.
func (s *Service) CleanupExpiredHolds(ctx context.Context) (int64, error) {
	n, err := s.holds.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, s.internal(err, "Failed to delete expired holds")
	}
	s.metrics.HoldsExpiredDeleted.Add(float64(n))
	return n, nil
}

// GetActiveHolds lists unexpired holds of the business ordered by start.
func (s *Service) GetActiveHolds(ctx context.Context, business *model.Business, q ActiveHoldsQuery) ([]*model.Hold, error) {
	if q.From != nil && q.To != nil && !q.To.After(*q.From) {
		return nil, apperrors.NewValidation("to must be after from", nil)
	}

	filter := model.HoldFilter{
		BusinessID: business.ID,
		ServiceID:  q.ServiceID,
		From:       q.From,
		To:         q.To,
	}
	if q.StaffID != nil {
		filter.StaffIDs = []uuid.UUID{*q.StaffID}
	}

	holds, err := s.holds.ListActive(ctx, filter, s.clock.Now())
	if err != nil {
		return nil, s.internal(err, "Failed to list active holds")
	}
	if holds == nil {
		holds = []*model.Hold{}
	}
	return holds, nil
}

func (s *Service) internal(err error, msg string, fields ...interface{}) error {
	s.logger.Error(err, msg, fields...)
	return apperrors.NewInternal(err)
}
