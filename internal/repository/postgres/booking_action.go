package postgres

import (
	"context"
	"fmt"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type bookingActionRepository struct {
	BaseRepository
}

func NewBookingActionRepository(base BaseRepository) repository.BookingActionRepository {
	return &bookingActionRepository{base}
}

func (r *bookingActionRepository) Create(ctx context.Context, a *model.BookingAction) error {
	query := `
		INSERT INTO booking_actions (
			id, booking_id, business_id, action, actor_type, actor_id, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.ext(ctx).ExecContext(ctx, query,
		a.ID,
		a.BookingID,
		a.BusinessID,
		a.Action,
		a.ActorType,
		a.ActorID,
		jsonb(a.Metadata),
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking action: %w", mapError(err))
	}
	return nil
}
