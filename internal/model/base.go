package model

import (
	"time"

	"github.com/google/uuid"
)

// Base contains common fields for tenant-owned records
type Base struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DateLayout is the civil date format accepted at the API boundary.
const DateLayout = "2006-01-02"

// ParseDate parses a civil date in the given location, returning local midnight.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, loc)
}
