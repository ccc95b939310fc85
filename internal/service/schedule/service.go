// Package schedule resolves when a staff member, or the business as a
// whole, works on a given date.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

type Service struct {
	repo repository.ScheduleRepository
}

func NewService(repo repository.ScheduleRepository) *Service {
	return &Service{repo: repo}
}

// ResolveWorkingWindows returns the ordered working windows for staffID (or
// the business when staffID is nil) on the civil date of day, placed in the
// business timezone. An empty result means closed.
//
// Precedence: staff override, business override, staff default template,
// business default template.
func (s *Service) ResolveWorkingWindows(ctx context.Context, business *model.Business, staffID *uuid.UUID, day time.Time) ([]model.WorkingWindow, error) {
	loc, err := business.Location()
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	y, m, d := day.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, loc)

	override, err := s.findOverride(ctx, business.ID, staffID, date)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if override != nil {
		if !override.IsAvailable {
			return nil, nil
		}
		if override.HasCustomHours() {
			w, err := model.NewWorkingWindow(date, *override.StartTime, *override.EndTime)
			if err != nil {
				return nil, apperrors.NewInternal(fmt.Errorf("override %s: %w", override.ID, err))
			}
			return []model.WorkingWindow{w}, nil
		}
		// available without hours: the weekly rule still applies
	}

	tmpl, err := s.findDefaultTemplate(ctx, business.ID, staffID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	if tmpl == nil {
		return nil, nil
	}

	rules, err := s.repo.ListRules(ctx, tmpl.ID, date.Weekday())
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}

	windows := make([]model.WorkingWindow, 0, len(rules))
	for _, rule := range rules {
		w, err := model.NewWorkingWindow(date, rule.StartTime, rule.EndTime)
		if err != nil {
			return nil, apperrors.NewInternal(fmt.Errorf("slot rule %s: %w", rule.ID, err))
		}
		windows = append(windows, w)
	}
	sort.Slice(windows, func(i, j int) bool { return windows[i].Start.Before(windows[j].Start) })
	return windows, nil
}

func (s *Service) findOverride(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, date time.Time) (*model.AvailabilityOverride, error) {
	if staffID != nil {
		o, err := s.repo.GetOverride(ctx, businessID, staffID, date)
		if err == nil {
			return o, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	o, err := s.repo.GetOverride(ctx, businessID, nil, date)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return o, err
}

func (s *Service) findDefaultTemplate(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID) (*model.AvailabilityTemplate, error) {
	if staffID != nil {
		t, err := s.repo.GetDefaultTemplate(ctx, businessID, staffID)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}
	t, err := s.repo.GetDefaultTemplate(ctx, businessID, nil)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return t, err
}
