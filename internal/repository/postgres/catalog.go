package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type catalogRepository struct {
	BaseRepository
}

func NewCatalogRepository(base BaseRepository) repository.CatalogRepository {
	return &catalogRepository{base}
}

func (r *catalogRepository) GetService(ctx context.Context, businessID, serviceID uuid.UUID) (*model.Service, error) {
	query := `
		SELECT id, business_id, name, duration_minutes, buffer_minutes, capacity,
			is_active, created_at, updated_at
		FROM services
		WHERE business_id = $1 AND id = $2
	`
	var s model.Service
	if err := sqlx.GetContext(ctx, r.ext(ctx), &s, query, businessID, serviceID); err != nil {
		return nil, fmt.Errorf("failed to get service: %w", mapError(err))
	}
	return &s, nil
}

func (r *catalogRepository) GetStaff(ctx context.Context, businessID, staffID uuid.UUID) (*model.StaffMember, error) {
	query := `
		SELECT id, business_id, name, is_active, created_at, updated_at
		FROM staff_members
		WHERE business_id = $1 AND id = $2
	`
	var s model.StaffMember
	if err := sqlx.GetContext(ctx, r.ext(ctx), &s, query, businessID, staffID); err != nil {
		return nil, fmt.Errorf("failed to get staff member: %w", mapError(err))
	}
	return &s, nil
}

func (r *catalogRepository) ListQualifiedStaff(ctx context.Context, businessID, serviceID uuid.UUID) ([]*model.QualifiedStaff, error) {
	query := `
		SELECT s.id, s.business_id, s.name, s.is_active, s.created_at, s.updated_at, q.priority
		FROM staff_members s
		JOIN staff_services q ON q.staff_id = s.id
		WHERE s.business_id = $1 AND q.service_id = $2 AND s.is_active
		ORDER BY q.priority ASC, s.id ASC
	`
	var staff []*model.QualifiedStaff
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &staff, query, businessID, serviceID); err != nil {
		return nil, fmt.Errorf("failed to list qualified staff: %w", mapError(err))
	}
	return staff, nil
}

func (r *catalogRepository) IsQualified(ctx context.Context, staffID, serviceID uuid.UUID) (bool, error) {
	var ok bool
	query := `SELECT EXISTS (SELECT 1 FROM staff_services WHERE staff_id = $1 AND service_id = $2)`
	if err := sqlx.GetContext(ctx, r.ext(ctx), &ok, query, staffID, serviceID); err != nil {
		return false, fmt.Errorf("failed to check qualification: %w", mapError(err))
	}
	return ok, nil
}

func (r *catalogRepository) LockService(ctx context.Context, businessID, serviceID uuid.UUID) error {
	return r.lockRow(ctx, `SELECT id FROM services WHERE business_id = $1 AND id = $2 FOR UPDATE`, businessID, serviceID)
}

func (r *catalogRepository) LockStaff(ctx context.Context, businessID, staffID uuid.UUID) error {
	return r.lockRow(ctx, `SELECT id FROM staff_members WHERE business_id = $1 AND id = $2 FOR UPDATE`, businessID, staffID)
}

func (r *catalogRepository) lockRow(ctx context.Context, query string, args ...interface{}) error {
	var id uuid.UUID
	if err := sqlx.GetContext(ctx, r.ext(ctx), &id, query, args...); err != nil {
		return fmt.Errorf("failed to lock row: %w", mapError(err))
	}
	return nil
}
