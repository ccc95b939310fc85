package model

import (
	"time"

	"github.com/google/uuid"
)

// Service is something a business sells time for.
type Service struct {
	Base
	BusinessID      uuid.UUID `db:"business_id" json:"business_id"`
	Name            string    `db:"name" json:"name"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	BufferMinutes   int       `db:"buffer_minutes" json:"buffer_minutes"`
	Capacity        int       `db:"capacity" json:"capacity"`
	IsActive        bool      `db:"is_active" json:"is_active"`
}

func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

func (s *Service) Buffer() time.Duration {
	return time.Duration(s.BufferMinutes) * time.Minute
}

// IsExclusive reports whether one booking occupies the whole slot.
func (s *Service) IsExclusive() bool {
	return s.Capacity <= 1
}

type StaffMember struct {
	Base
	BusinessID uuid.UUID `db:"business_id" json:"business_id"`
	Name       string    `db:"name" json:"name"`
	IsActive   bool      `db:"is_active" json:"is_active"`
}

// StaffQualification links a staff member to a service they may perform.
// Lower priority values are preferred.
type StaffQualification struct {
	StaffID   uuid.UUID `db:"staff_id" json:"staff_id"`
	ServiceID uuid.UUID `db:"service_id" json:"service_id"`
	Priority  int       `db:"priority" json:"priority"`
}

// QualifiedStaff is a staff member joined with their qualification priority.
type QualifiedStaff struct {
	StaffMember
	Priority int `db:"priority" json:"priority"`
}
