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

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	query := `
		INSERT INTO outbox_events (
			id, business_id, event_type, payload, created_at, attempts, max_attempts
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.ext(ctx).ExecContext(ctx, query,
		event.ID,
		event.BusinessID,
		event.EventType,
		jsonb(event.Payload),
		event.CreatedAt,
		event.Attempts,
		event.MaxAttempts,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox event: %w", mapError(err))
	}
	return nil
}

func (r *outboxRepository) FetchDue(ctx context.Context, now time.Time, limit int) ([]*model.OutboxEvent, error) {
	query := `
		SELECT id, business_id, event_type, payload, created_at, processed_at,
			attempts, max_attempts, last_error, next_retry_at
		FROM outbox_events
		WHERE processed_at IS NULL
		AND attempts < max_attempts
		AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	var events []*model.OutboxEvent
	if err := sqlx.SelectContext(ctx, r.ext(ctx), &events, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch due events: %w", mapError(err))
	}
	return events, nil
}

func (r *outboxRepository) Claim(ctx context.Context, ids []uuid.UUID, until time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := psql.Update("outbox_events").
		Set("next_retry_at", until).
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build claim query: %w", err)
	}
	if _, err := r.ext(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to claim events: %w", mapError(err))
	}
	return nil
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE outbox_events
		SET processed_at = $2, attempts = attempts + 1, last_error = NULL, next_retry_at = NULL
		WHERE id = $1
	`
	if _, err := r.ext(ctx).ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", mapError(err))
	}
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, lastError string, nextRetryAt time.Time) error {
	query := `
		UPDATE outbox_events
		SET attempts = attempts + 1, last_error = $2, next_retry_at = $3
		WHERE id = $1
	`
	if _, err := r.ext(ctx).ExecContext(ctx, query, id, lastError, nextRetryAt); err != nil {
		return fmt.Errorf("failed to mark event failed: %w", mapError(err))
	}
	return nil
}
