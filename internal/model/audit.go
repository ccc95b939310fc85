package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ActorType string

const (
	ActorCustomer ActorType = "customer"
	ActorStaff    ActorType = "staff"
	ActorSystem   ActorType = "system"
)

// BookingActionCreated is recorded when a hold is promoted to a booking.
const BookingActionCreated = "created"

// BookingAction is an append-only audit record for a booking.
type BookingAction struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	BookingID  uuid.UUID       `json:"booking_id" db:"booking_id"`
	BusinessID uuid.UUID       `json:"business_id" db:"business_id"`
	Action     string          `json:"action" db:"action"`
	ActorType  ActorType       `json:"actor_type" db:"actor_type"`
	ActorID    *uuid.UUID      `json:"actor_id,omitempty" db:"actor_id"`
	Metadata   json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
