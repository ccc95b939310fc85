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

var bookingColumns = []string{
	"id", "business_id", "service_id", "staff_id", "customer_id", "starts_at", "ends_at",
	"status", "source", "hold_id", "idempotency_key", "confirmation_token", "exclusive",
	"confirmed_at", "cancelled_at", "created_at", "updated_at",
}

type bookingRepository struct {
	BaseRepository
}

func NewBookingRepository(base BaseRepository) repository.BookingRepository {
	return &bookingRepository{base}
}

func (r *bookingRepository) Create(ctx context.Context, b *model.Booking) error {
	query := `
		INSERT INTO bookings (
			id, business_id, service_id, staff_id, customer_id, starts_at, ends_at,
			status, source, hold_id, idempotency_key, confirmation_token, exclusive,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.ext(ctx).ExecContext(ctx, query,
		b.ID,
		b.BusinessID,
		b.ServiceID,
		b.StaffID,
		b.CustomerID,
		b.StartsAt,
		b.EndsAt,
		b.Status,
		b.Source,
		b.HoldID,
		b.IdempotencyKey,
		b.ConfirmationToken,
		b.Exclusive,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", mapError(err))
	}
	return nil
}

func (r *bookingRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("bookings").
		Where(sq.Eq{"idempotency_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build booking query: %w", err)
	}

	var b model.Booking
	if err := sqlx.GetContext(ctx, r.ext(ctx), &b, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get booking by idempotency key: %w", mapError(err))
	}
	return &b, nil
}

func (r *bookingRepository) ListActive(ctx context.Context, filter model.BookingFilter) ([]*model.Booking, error) {
	q := psql.Select(bookingColumns...).
		From("bookings").
		Where(sq.Eq{"business_id": filter.BusinessID}).
		Where(sq.NotEq{"status": string(model.BookingStatusCancelled)}).
		Where(sq.Lt{"starts_at": filter.To}).
		Where(sq.Gt{"ends_at": filter.From}).
		OrderBy("starts_at ASC", "id ASC")

	if filter.ServiceID != nil {
		q = q.Where(sq.Eq{"service_id": *filter.ServiceID})
	}
	if len(filter.StaffIDs) > 0 {
		q = q.Where(sq.Eq{"staff_id": filter.StaffIDs})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build bookings query: %w", err)
	}

	var bookings []*model.Booking
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", mapError(err))
	}
	return bookings, nil
}

func (r *bookingRepository) CountActiveAt(ctx context.Context, businessID, serviceID uuid.UUID, startsAt time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE business_id = $1 AND service_id = $2 AND starts_at = $3 AND status <> 'cancelled'
	`
	var n int
	if err := sqlx.GetContext(ctx, r.ext(ctx), &n, query, businessID, serviceID, startsAt); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", mapError(err))
	}
	return n, nil
}

func (r *bookingRepository) HasOverlap(ctx context.Context, businessID, staffID uuid.UUID, start, end time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE business_id = $1 AND staff_id = $2 AND status <> 'cancelled'
			AND starts_at < $4 AND ends_at > $3
		)
	`
	var overlap bool
	if err := sqlx.GetContext(ctx, r.ext(ctx), &overlap, query, businessID, staffID, start, end); err != nil {
		return false, fmt.Errorf("failed to check booking overlap: %w", mapError(err))
	}
	return overlap, nil
}
