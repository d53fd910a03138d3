package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/repository"
	"github.com/bugtally/notify-engine/pkg/logger"
)

// QueueCleanupWorker deletes sent queue rows past the retention window.
// Only sent rows are touched; pending and batched rows are live state.
type QueueCleanupWorker struct {
	repo            repository.QueueRepository
	clock           clock.Clock
	retentionDays   int
	cleanupInterval time.Duration
	logger          *logger.Logger
}

func NewQueueCleanupWorker(repo repository.QueueRepository, clk clock.Clock, retentionDays int, cleanupInterval time.Duration, logger *logger.Logger) *QueueCleanupWorker {
	return &QueueCleanupWorker{
		repo:            repo,
		clock:           clk,
		retentionDays:   retentionDays,
		cleanupInterval: cleanupInterval,
		logger:          logger,
	}
}

func (w *QueueCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.cleanup(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up sent queue rows")
			}
		}
	}
}

func (w *QueueCleanupWorker) cleanup(ctx context.Context) error {
	cutoff := w.clock.Now().AddDate(0, 0, -w.retentionDays).Unix()

	rows, err := w.repo.DeleteSentBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete sent queue rows: %w", err)
	}

	if rows > 0 {
		w.logger.Info(fmt.Sprintf("Cleaned up %d sent queue rows", rows))
	}
	return nil
}
