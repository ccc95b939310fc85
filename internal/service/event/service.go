// Package event records outbox events next to the writes that trigger them.
// Delivery is done elsewhere by the outbox processor.
package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/clock"
)

type EventService struct {
	outboxRepo  repository.OutboxRepository
	clock       clock.Clock
	maxAttempts int
}

func NewEventService(outboxRepo repository.OutboxRepository, clk clock.Clock, maxAttempts int) *EventService {
	if maxAttempts <= 0 {
		maxAttempts = model.DefaultOutboxMaxAttempts
	}
	return &EventService{
		outboxRepo:  outboxRepo,
		clock:       clk,
		maxAttempts: maxAttempts,
	}
}

// Emit inserts an undelivered event. Call it with the ctx of the transaction
// that performs the triggering write.
func (s *EventService) Emit(ctx context.Context, businessID uuid.UUID, eventType string, payload interface{}) (*model.OutboxEvent, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &model.OutboxEvent{
		ID:          uuid.New(),
		BusinessID:  businessID,
		EventType:   eventType,
		Payload:     payloadJSON,
		CreatedAt:   s.clock.Now(),
		MaxAttempts: s.maxAttempts,
	}

	if err := s.outboxRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to create outbox event: %w", err)
	}
	return event, nil
}

// BookingCreated is the input for a booking.created event.
type BookingCreated struct {
	Booking  *model.Booking
	Business *model.Business
	Service  *model.Service
	Staff    *model.StaffMember
	Customer *model.Customer
}

func (s *EventService) EmitBookingCreated(ctx context.Context, in BookingCreated) (*model.OutboxEvent, error) {
	payload := model.BookingCreatedPayload{
		BookingID:         in.Booking.ID,
		Status:            in.Booking.Status,
		Source:            in.Booking.Source,
		StartsAt:          in.Booking.StartsAt,
		EndsAt:            in.Booking.EndsAt,
		ConfirmationToken: in.Booking.ConfirmationToken,
		Business: model.PayloadBusiness{
			ID:       in.Business.ID,
			Name:     in.Business.Name,
			Timezone: in.Business.Timezone,
		},
		Service: model.PayloadService{
			ID:              in.Service.ID,
			Name:            in.Service.Name,
			DurationMinutes: in.Service.DurationMinutes,
		},
		Customer: model.PayloadCustomer{
			ID:    in.Customer.ID,
			Name:  in.Customer.Name,
			Email: in.Customer.Email,
			Phone: in.Customer.Phone,
		},
	}
	if in.Staff != nil {
		payload.Staff = &model.PayloadStaff{ID: in.Staff.ID, Name: in.Staff.Name}
	}
	return s.Emit(ctx, in.Business.ID, model.EventBookingCreated, payload)
}
