package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type scheduleRepository struct {
	BaseRepository
}

func NewScheduleRepository(base BaseRepository) repository.ScheduleRepository {
	return &scheduleRepository{base}
}

// staffEq matches a nullable staff_id column.
func staffEq(staffID *uuid.UUID) sq.Eq {
	if staffID == nil {
		return sq.Eq{"staff_id": nil}
	}
	return sq.Eq{"staff_id": *staffID}
}

func (r *scheduleRepository) GetOverride(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID, date time.Time) (*model.AvailabilityOverride, error) {
	query, args, err := psql.
		Select("id", "business_id", "staff_id", "override_date", "is_available",
			"to_char(start_time, 'HH24:MI') AS start_time",
			"to_char(end_time, 'HH24:MI') AS end_time",
			"reason").
		From("availability_overrides").
		Where(sq.Eq{"business_id": businessID}).
		Where(staffEq(staffID)).
		Where(sq.Eq{"override_date": date.Format(model.DateLayout)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build override query: %w", err)
	}

	var o model.AvailabilityOverride
	if err := sqlx.GetContext(ctx, r.ext(ctx), &o, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get availability override: %w", mapError(err))
	}
	return &o, nil
}

func (r *scheduleRepository) GetDefaultTemplate(ctx context.Context, businessID uuid.UUID, staffID *uuid.UUID) (*model.AvailabilityTemplate, error) {
	query, args, err := psql.
		Select("id", "business_id", "staff_id", "name", "is_default").
		From("availability_templates").
		Where(sq.Eq{"business_id": businessID, "is_default": true}).
		Where(staffEq(staffID)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build template query: %w", err)
	}

	var t model.AvailabilityTemplate
	if err := sqlx.GetContext(ctx, r.ext(ctx), &t, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get default template: %w", mapError(err))
	}
	return &t, nil
}

func (r *scheduleRepository) ListRules(ctx context.Context, templateID uuid.UUID, weekday time.Weekday) ([]*model.AvailabilitySlotRule, error) {
	query := `
		SELECT id, template_id, day_of_week,
			to_char(start_time, 'HH24:MI') AS start_time,
			to_char(end_time, 'HH24:MI') AS end_time
		FROM availability_slot_rules
		WHERE template_id = $1 AND day_of_week = $2
		ORDER BY start_time ASC
	`
	var rules []*model.AvailabilitySlotRule
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &rules, query, templateID, int(weekday)); err != nil {
		return nil, fmt.Errorf("failed to list slot rules: %w", mapError(err))
	}
	return rules, nil
}
