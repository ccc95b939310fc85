package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventBookingCreated = "booking.created"

	DefaultOutboxMaxAttempts = 5
)

type OutboxEvent struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	BusinessID  uuid.UUID       `db:"business_id" json:"business_id"`
	EventType   string          `db:"event_type" json:"event_type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	Attempts    int             `db:"attempts" json:"attempts"`
	MaxAttempts int             `db:"max_attempts" json:"max_attempts"`
	LastError   *string         `db:"last_error" json:"last_error,omitempty"`
	NextRetryAt *time.Time      `db:"next_retry_at" json:"next_retry_at,omitempty"`
}

// IsDue reports whether the dispatcher should attempt delivery at now.
func (e *OutboxEvent) IsDue(now time.Time) bool {
	if e.ProcessedAt != nil || e.Attempts >= e.MaxAttempts {
		return false
	}
	return e.NextRetryAt == nil || !e.NextRetryAt.After(now)
}

// BookingCreatedPayload carries everything a confirmation notice needs.
type BookingCreatedPayload struct {
	BookingID         uuid.UUID       `json:"booking_id"`
	Status            BookingStatus   `json:"status"`
	Source            Channel         `json:"source"`
	StartsAt          time.Time       `json:"starts_at"`
	EndsAt            time.Time       `json:"ends_at"`
	ConfirmationToken string          `json:"confirmation_token"`
	Business          PayloadBusiness `json:"business"`
	Service           PayloadService  `json:"service"`
	Staff             *PayloadStaff   `json:"staff,omitempty"`
	Customer          PayloadCustomer `json:"customer"`
}

type PayloadBusiness struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Timezone string    `json:"timezone"`
}

type PayloadService struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DurationMinutes int       `json:"duration_minutes"`
}

type PayloadStaff struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type PayloadCustomer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
	Phone *string   `json:"phone,omitempty"`
}
