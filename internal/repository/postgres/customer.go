package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
)

type customerRepository struct {
	BaseRepository
}

func NewCustomerRepository(base BaseRepository) repository.CustomerRepository {
	return &customerRepository{base}
}

// Upsert keeps existing name/phone when the new values are empty.
func (r *customerRepository) Upsert(ctx context.Context, c *model.Customer) error {
	query := `
		INSERT INTO customers (id, business_id, email, name, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (business_id, email) DO UPDATE SET
			name = COALESCE(NULLIF(EXCLUDED.name, ''), customers.name),
			phone = COALESCE(EXCLUDED.phone, customers.phone),
			updated_at = EXCLUDED.updated_at
		RETURNING id, business_id, email, name, phone, created_at, updated_at
	`
	err := sqlx.GetContext(ctx, r.ext(ctx), c, query,
		c.ID,
		c.BusinessID,
		c.Email,
		c.Name,
		c.Phone,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert customer: %w", mapError(err))
	}
	return nil
}
