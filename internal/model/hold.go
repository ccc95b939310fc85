package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Channel identifies who created a hold and, later, the booking source.
type Channel string

const (
	ChannelWeb     Channel = "web"
	ChannelChatbot Channel = "chatbot"
	ChannelVoice   Channel = "voice"
	ChannelAdmin   Channel = "admin"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelWeb, ChannelChatbot, ChannelVoice, ChannelAdmin:
		return true
	}
	return false
}

// ActorType maps a channel to the actor recorded in the audit trail.
func (c Channel) ActorType() ActorType {
	if c == ChannelAdmin {
		return ActorStaff
	}
	return ActorCustomer
}

// DefaultHoldTTL applies when no TTL is configured.
const DefaultHoldTTL = 5 * time.Minute

// Hold is a short-lived soft reservation of a slot.
type Hold struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	BusinessID     uuid.UUID       `db:"business_id" json:"business_id"`
	ServiceID      uuid.UUID       `db:"service_id" json:"service_id"`
	StaffID        *uuid.UUID      `db:"staff_id" json:"staff_id,omitempty"`
	CustomerID     *uuid.UUID      `db:"customer_id" json:"customer_id,omitempty"`
	StartsAt       time.Time       `db:"starts_at" json:"starts_at"`
	EndsAt         time.Time       `db:"ends_at" json:"ends_at"`
	ExpiresAt      time.Time       `db:"expires_at" json:"expires_at"`
	CreatedBy      Channel         `db:"created_by" json:"created_by"`
	IdempotencyKey *string         `db:"idempotency_key" json:"idempotency_key,omitempty"`
	Metadata       json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// IsExpired reports whether the hold is logically dead at now.
func (h *Hold) IsExpired(now time.Time) bool {
	return now.After(h.ExpiresAt)
}

// HoldFilter selects live holds. Nil fields do not constrain.
type HoldFilter struct {
	BusinessID uuid.UUID
	ServiceID  *uuid.UUID
	StaffIDs   []uuid.UUID
	From       *time.Time
	To         *time.Time
}
