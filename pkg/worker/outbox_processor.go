package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/booking-api/internal/model"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/pkg/clock"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize      int
	PollInterval   time.Duration
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	PublishTimeout time.Duration
	// ClaimTimeout is how long a claimed batch stays hidden from other
	// processors. It must outlast publishing the whole batch.
	ClaimTimeout   time.Duration
}

// OutboxProcessor delivers due outbox rows to a publisher. A short
// transaction locks a batch and claims it by pushing next_retry_at past the
// publish window; publishing and marking then run without holding row locks.
// A processor that dies mid-batch leaves its rows due again once the claim
// runs out.
type OutboxProcessor struct {
	tx        repository.TxManager
	repo      repository.OutboxRepository
	publisher messaging.Publisher
	config    OutboxProcessorConfig
	clock     clock.Clock
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewOutboxProcessor(
	tx repository.TxManager,
	repo repository.OutboxRepository,
	publisher messaging.Publisher,
	config OutboxProcessorConfig,
	clk clock.Clock,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *OutboxProcessor {
	// Config validation instead of defaults
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.PollInterval <= 0 {
		panic("PollInterval must be greater than 0")
	}
	if config.BaseBackoff <= 0 {
		panic("BaseBackoff must be greater than 0")
	}
	if config.MaxBackoff < config.BaseBackoff {
		panic("MaxBackoff must not be lower than BaseBackoff")
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 10 * time.Second
	}
	if minClaim := config.PublishTimeout * time.Duration(config.BatchSize+1); config.ClaimTimeout < minClaim {
		config.ClaimTimeout = minClaim
	}

	return &OutboxProcessor{
		tx:        tx,
		repo:      repo,
		publisher: publisher,
		config:    config,
		clock:     clk,
		logger:    logger,
		metrics:   metrics,
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error(err, "Failed to process events")
			}
		}
	}
}

// ProcessBatch delivers one batch of due events and reports how many were
// published successfully.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.claim(ctx)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, event := range events {
		ok, err := p.processEvent(ctx, event)
		if err != nil {
			return published, err
		}
		if ok {
			published++
		}
	}
	return published, nil
}

func (p *OutboxProcessor) claim(ctx context.Context) ([]*model.OutboxEvent, error) {
	var events []*model.OutboxEvent
	err := p.tx.WithinTx(ctx, func(ctx context.Context) error {
		now := p.clock.Now()
		due, err := p.repo.FetchDue(ctx, now, p.config.BatchSize)
		if err != nil {
			p.metrics.DatabaseOperations.WithLabelValues("fetch_due_events", "error").Inc()
			return fmt.Errorf("failed to fetch due events: %w", err)
		}
		p.metrics.DatabaseOperations.WithLabelValues("fetch_due_events", "success").Inc()

		ids := make([]uuid.UUID, 0, len(due))
		for _, e := range due {
			ids = append(ids, e.ID)
		}
		if err := p.repo.Claim(ctx, ids, now.Add(p.config.ClaimTimeout)); err != nil {
			return fmt.Errorf("failed to claim due events: %w", err)
		}
		events = due
		return nil
	})
	return events, err
}

// processEvent reports whether the event was published. A returned error
// means the row state could not be recorded.
func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) (bool, error) {
	msg := messaging.Message{
		ID:         event.ID.String(),
		Type:       event.EventType,
		BusinessID: event.BusinessID.String(),
		OccurredAt: event.CreatedAt,
		Payload:    event.Payload,
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.config.PublishTimeout)
	pubErr := p.publisher.Publish(pubCtx, msg)
	cancel()

	now := p.clock.Now()
	if pubErr == nil {
		if err := p.repo.MarkProcessed(ctx, event.ID, now); err != nil {
			return false, fmt.Errorf("failed to mark event %s processed: %w", event.ID, err)
		}
		p.metrics.OutboxEventsProcessed.Inc()
		return true, nil
	}

	p.metrics.OutboxEventsFailed.Inc()
	nextRetry := now.Add(Backoff(event.Attempts, p.config.BaseBackoff, p.config.MaxBackoff))
	if err := p.repo.MarkFailed(ctx, event.ID, pubErr.Error(), nextRetry); err != nil {
		return false, fmt.Errorf("failed to mark event %s failed: %w", event.ID, err)
	}

	if event.Attempts+1 >= event.MaxAttempts {
		p.metrics.OutboxDeadLettered.Inc()
		p.logger.Error(pubErr, "Outbox event dead-lettered",
			"event_id", event.ID.String(),
			"event_type", event.EventType,
			"attempts", event.Attempts+1)
		return false, nil
	}

	p.logger.Warn("Failed to publish event, will retry",
		"event_id", event.ID.String(),
		"event_type", event.EventType,
		"next_retry_at", nextRetry,
		"error", pubErr.Error())
	return false, nil
}

// Backoff returns min(base*2^attempts, max).
func Backoff(attempts int, base, max time.Duration) time.Duration {
	d := base
	for i := 0; i < attempts; i++ {
		d *= 2
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
