package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
)

type queueRepository struct {
	BaseRepository
}

func NewQueueRepository(base BaseRepository) repository.QueueRepository {
	return &queueRepository{base}
}

func (r *queueRepository) Create(ctx context.Context, n *model.QueuedNotification) error {
	if n == nil {
		return fmt.Errorf("queued notification cannot be nil")
	}

	query := `
		INSERT INTO notification_queue (
			id, user_id, bug_id, event_type, severity, priority, category_id,
			subject, body, html_body, metadata, status, date_created, date_scheduled
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)
	`
	n.ID = uuid.New()
	n.Status = model.QueueStatusPending
	if n.DateCreated == 0 {
		n.DateCreated = time.Now().Unix()
	}

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.UserID,
		n.BugID,
		n.EventType,
		n.Severity,
		n.Priority,
		n.CategoryID,
		n.Subject,
		n.Body,
		n.HTMLBody,
		n.Metadata,
		n.Status,
		n.DateCreated,
		n.DateScheduled,
	)
	if err != nil {
		return fmt.Errorf("failed to create queued notification: %w", err)
	}
	return nil
}

func (r *queueRepository) CountPending(ctx context.Context, userID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM notification_queue WHERE user_id = $1 AND status = $2`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, userID, model.QueueStatusPending); err != nil {
		return 0, fmt.Errorf("failed to count pending notifications: %w", err)
	}
	return count, nil
}

func (r *queueRepository) CountAllPending(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM notification_queue WHERE status = $1`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, model.QueueStatusPending); err != nil {
		return 0, fmt.Errorf("failed to count pending notifications: %w", err)
	}
	return count, nil
}

// ClaimPending is the queue's concurrency discipline: only rows still in
// pending are tagged, so a second scheduler pass racing this one claims
// nothing and sends nothing.
func (r *queueRepository) ClaimPending(ctx context.Context, userID int64, batchID uuid.UUID, scheduledBefore int64) (int64, error) {
	query := `
		UPDATE notification_queue
		SET status = $1, batch_id = $2
		WHERE user_id = $3
		AND status = $4
		AND date_scheduled <= $5
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusBatched, batchID, userID, model.QueueStatusPending, scheduledBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending notifications: %w", err)
	}
	return result.RowsAffected()
}

func (r *queueRepository) ListBatch(ctx context.Context, batchID uuid.UUID) ([]*model.QueuedNotification, error) {
	query := `
		SELECT id, user_id, bug_id, event_type, severity, priority, category_id,
			subject, body, html_body, metadata, status, batch_id,
			date_created, date_scheduled, date_sent
		FROM notification_queue
		WHERE batch_id = $1
		ORDER BY date_created ASC
	`

	var items []*model.QueuedNotification
	err := r.db.SelectContext(ctx, &items, query, batchID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return items, err
}

func (r *queueRepository) MarkBatchSent(ctx context.Context, batchID uuid.UUID, sentAt int64) (int64, error) {
	query := `
		UPDATE notification_queue
		SET status = $1, date_sent = $2
		WHERE batch_id = $3
		AND status = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusSent, sentAt, batchID, model.QueueStatusBatched)
	if err != nil {
		return 0, fmt.Errorf("failed to mark batch sent: %w", err)
	}
	return result.RowsAffected()
}

func (r *queueRepository) ReleaseBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	query := `
		UPDATE notification_queue
		SET status = $1, batch_id = NULL
		WHERE batch_id = $2
		AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query,
		model.QueueStatusPending, batchID, model.QueueStatusBatched)
	if err != nil {
		return 0, fmt.Errorf("failed to release batch: %w", err)
	}
	return result.RowsAffected()
}

func (r *queueRepository) DeleteSentBefore(ctx context.Context, cutoff int64) (int64, error) {
	query := `
		DELETE FROM notification_queue
		WHERE status = $1
		AND date_sent < $2
	`
	result, err := r.db.ExecContext(ctx, query, model.QueueStatusSent, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sent notifications: %w", err)
	}
	return result.RowsAffected()
}
