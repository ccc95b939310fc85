package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

const businessColumns = `id, slug, name, timezone, min_booking_notice_hours,
	max_advance_booking_days, cancellation_policy_hours, created_at, updated_at`

type businessRepository struct {
	BaseRepository
}

func NewBusinessRepository(base BaseRepository) repository.BusinessRepository {
	return &businessRepository{base}
}

func (r *businessRepository) Get(ctx context.Context, id uuid.UUID) (*model.Business, error) {
	var b model.Business
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`
	if err := r.db.GetContext(ctx, &b, query, id); err != nil {
		return nil, fmt.Errorf("failed to get business: %w", mapError(err))
	}
	return &b, nil
}

func (r *businessRepository) GetBySlug(ctx context.Context, slug string) (*model.Business, error) {
	var b model.Business
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE slug = $1`
	if err := r.db.GetContext(ctx, &b, query, slug); err != nil {
		return nil, fmt.Errorf("failed to get business by slug: %w", mapError(err))
	}
	return &b, nil
}
