package model

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// Business is the tenant every other record is keyed under.
type Business struct {
	Base
	Slug                    string `json:"slug" db:"slug"`
	Name                    string `json:"name" db:"name"`
	Timezone                string `json:"timezone" db:"timezone"`
	MinBookingNoticeHours   int    `json:"min_booking_notice_hours" db:"min_booking_notice_hours"`
	MaxAdvanceBookingDays   int    `json:"max_advance_booking_days" db:"max_advance_booking_days"`
	CancellationPolicyHours int    `json:"cancellation_policy_hours" db:"cancellation_policy_hours"`
}

// Location resolves the business timezone.
func (b *Business) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q for business %s: %w", b.Timezone, b.ID, err)
	}
	return loc, nil
}

// MinNotice is the shortest lead time allowed between now and a slot start.
func (b *Business) MinNotice() time.Duration {
	return time.Duration(b.MinBookingNoticeHours) * time.Hour
}

// Horizon returns the latest start that may be offered relative to now.
// A zero MaxAdvanceBookingDays disables the horizon.
func (b *Business) Horizon(now time.Time) (time.Time, bool) {
	if b.MaxAdvanceBookingDays <= 0 {
		return time.Time{}, false
	}
	return now.AddDate(0, 0, b.MaxAdvanceBookingDays), true
}
