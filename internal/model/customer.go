package model

import (
	"github.com/google/uuid"
)

// Customer is unique per (business, email).
type Customer struct {
	Base
	BusinessID uuid.UUID `db:"business_id" json:"business_id"`
	Email      string    `db:"email" json:"email"`
	Name       string    `db:"name" json:"name"`
	Phone      *string   `db:"phone" json:"phone,omitempty"`
}

// CustomerContact is what a caller supplies when confirming a hold.
type CustomerContact struct {
	Name  string `json:"name" validate:"max=200"`
	Email string `json:"email" validate:"required,email,max=320"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
}
