package model

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// OccupiesSlot reports whether a booking in this status counts against
// availability and capacity.
func (s BookingStatus) OccupiesSlot() bool {
	return s != BookingStatusCancelled
}

// Booking is a durable appointment.
type Booking struct {
	Base
	BusinessID        uuid.UUID     `db:"business_id" json:"business_id"`
	ServiceID         uuid.UUID     `db:"service_id" json:"service_id"`
	StaffID           *uuid.UUID    `db:"staff_id" json:"staff_id,omitempty"`
	CustomerID        uuid.UUID     `db:"customer_id" json:"customer_id"`
	StartsAt          time.Time     `db:"starts_at" json:"starts_at"`
	EndsAt            time.Time     `db:"ends_at" json:"ends_at"`
	Status            BookingStatus `db:"status" json:"status"`
	Source            Channel       `db:"source" json:"source"`
	HoldID            *uuid.UUID    `db:"hold_id" json:"hold_id,omitempty"`
	IdempotencyKey    *string       `db:"idempotency_key" json:"idempotency_key,omitempty"`
	ConfirmationToken string        `db:"confirmation_token" json:"confirmation_token"`
	Exclusive         bool          `db:"exclusive" json:"-"`
	ConfirmedAt       *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CancelledAt       *time.Time    `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// BookingFilter selects slot-occupying bookings intersecting [From, To).
type BookingFilter struct {
	BusinessID uuid.UUID
	ServiceID  *uuid.UUID
	StaffIDs   []uuid.UUID
	From       time.Time
	To         time.Time
}

// Confirmation is the result of promoting a hold.
type Confirmation struct {
	BookingID         uuid.UUID     `json:"booking_id"`
	ConfirmationToken string        `json:"confirmation_token"`
	Status            BookingStatus `json:"status"`
	Replayed          bool          `json:"replayed"`
}
