package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/booking-api/pkg/logger"
)

// HoldCleaner deletes holds past their expiry.
type HoldCleaner interface {
	CleanupExpiredHolds(ctx context.Context) (int64, error)
}

// HoldCleanupWorker periodically removes expired holds. Expired holds are
// already invisible to availability, so a missed round only costs storage.
type HoldCleanupWorker struct {
	holds           HoldCleaner
	cleanupInterval time.Duration
	logger          *logger.Logger
}

func NewHoldCleanupWorker(holds HoldCleaner, cleanupInterval time.Duration, logger *logger.Logger) *HoldCleanupWorker {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	return &HoldCleanupWorker{
		holds:           holds,
		cleanupInterval: cleanupInterval,
		logger:          logger,
	}
}

func (w *HoldCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	w.logger.Info("Starting hold cleanup", "interval", w.cleanupInterval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down hold cleanup")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				// Log error but continue
				w.logger.Error(err, "Error cleaning up expired holds")
			}
		}
	}
}

// RunOnce performs a single cleanup round.
func (w *HoldCleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	rows, err := w.holds.CleanupExpiredHolds(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired holds: %w", err)
	}
	if rows > 0 {
		w.logger.Info("Cleaned up expired holds", "count", rows)
	}
	return rows, nil
}
