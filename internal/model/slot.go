package model

import (
	"time"

	"github.com/google/uuid"
)

// Slot is a bookable start time returned by availability search.
type Slot struct {
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	StaffID   *uuid.UUID `json:"staff_id,omitempty"`
	StaffName string     `json:"staff_name,omitempty"`
	Remaining int        `json:"remaining,omitempty"`
}
