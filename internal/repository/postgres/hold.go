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

var holdColumns = []string{
	"id", "business_id", "service_id", "staff_id", "customer_id", "starts_at", "ends_at",
	"expires_at", "created_by", "idempotency_key", "metadata", "created_at",
}

type holdRepository struct {
	BaseRepository
}

func NewHoldRepository(base BaseRepository) repository.HoldRepository {
	return &holdRepository{base}
}

func (r *holdRepository) Create(ctx context.Context, hold *model.Hold) error {
	query := `
		INSERT INTO holds (
			id, business_id, service_id, staff_id, customer_id, starts_at, ends_at,
			expires_at, created_by, idempotency_key, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.ext(ctx).ExecContext(ctx, query,
		hold.ID,
		hold.BusinessID,
		hold.ServiceID,
		hold.StaffID,
		hold.CustomerID,
		hold.StartsAt,
		hold.EndsAt,
		hold.ExpiresAt,
		hold.CreatedBy,
		hold.IdempotencyKey,
		jsonb(hold.Metadata),
		hold.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create hold: %w", mapError(err))
	}
	return nil
}

func (r *holdRepository) Get(ctx context.Context, businessID, id uuid.UUID) (*model.Hold, error) {
	return r.getOne(ctx, sq.Eq{"business_id": businessID, "id": id})
}

func (r *holdRepository) GetByIdempotencyKey(ctx context.Context, businessID uuid.UUID, key string) (*model.Hold, error) {
	return r.getOne(ctx, sq.Eq{"business_id": businessID, "idempotency_key": key})
}

func (r *holdRepository) getOne(ctx context.Context, where sq.Eq) (*model.Hold, error) {
	query, args, err := psql.Select(holdColumns...).From("holds").Where(where).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build hold query: %w", err)
	}

	var h model.Hold
	if err := sqlx.GetContext(ctx, r.ext(ctx), &h, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get hold: %w", mapError(err))
	}
	return &h, nil
}

func (r *holdRepository) Delete(ctx context.Context, businessID, id uuid.UUID) (bool, error) {
	result, err := r.ext(ctx).ExecContext(ctx,
		`DELETE FROM holds WHERE business_id = $1 AND id = $2`, businessID, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete hold: %w", mapError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *holdRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.ext(ctx).ExecContext(ctx, `DELETE FROM holds WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired holds: %w", mapError(err))
	}
	return result.RowsAffected()
}

func (r *holdRepository) ListActive(ctx context.Context, filter model.HoldFilter, now time.Time) ([]*model.Hold, error) {
	q := psql.Select(holdColumns...).
		From("holds").
		Where(sq.Eq{"business_id": filter.BusinessID}).
		Where(sq.GtOrEq{"expires_at": now}).
		OrderBy("starts_at ASC", "id ASC")

	if filter.ServiceID != nil {
		q = q.Where(sq.Eq{"service_id": *filter.ServiceID})
	}
	if len(filter.StaffIDs) > 0 {
		q = q.Where(sq.Eq{"staff_id": filter.StaffIDs})
	}
	if filter.From != nil {
		q = q.Where(sq.Gt{"ends_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(sq.Lt{"starts_at": *filter.To})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build active holds query: %w", err)
	}

	var holds []*model.Hold
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &holds, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list active holds: %w", mapError(err))
	}
	return holds, nil
}
