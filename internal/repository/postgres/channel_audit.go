package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
)

type channelAuditRepository struct {
	BaseRepository
}

func NewChannelAuditRepository(base BaseRepository) repository.ChannelAuditRepository {
	return &channelAuditRepository{base}
}

func (r *channelAuditRepository) Create(ctx context.Context, e *model.ChannelAuditEntry) error {
	query := `
		INSERT INTO channel_audit (
			id, channel, user_id, bug_id, recipient, subject, status,
			delivery_path, delivery_metadata, error_message, date_sent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	e.ID = uuid.New()

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.Channel,
		e.UserID,
		e.BugID,
		e.Recipient,
		e.Subject,
		e.Status,
		e.DeliveryPath,
		e.DeliveryMetadata,
		e.ErrorMessage,
		e.DateSent,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

func (r *channelAuditRepository) CountByStatus(ctx context.Context, channel string, since int64) (int64, int64, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE status = $4)
		FROM channel_audit
		WHERE channel = $1
		AND date_sent >= $2
	`
	var successes, failures int64
	row := r.db.QueryRowContext(ctx, query, channel, since,
		model.AuditStatusSuccess, model.AuditStatusFailed)
	if err := row.Scan(&successes, &failures); err != nil {
		return 0, 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return successes, failures, nil
}

func (r *channelAuditRepository) RecentErrors(ctx context.Context, channel string, since int64, limit int) ([]string, error) {
	query := `
		SELECT error_message
		FROM channel_audit
		WHERE channel = $1
		AND date_sent >= $2
		AND status = $3
		AND error_message IS NOT NULL
		ORDER BY date_sent DESC
		LIMIT $4
	`

	var errors []string
	err := r.db.SelectContext(ctx, &errors, query, channel, since, model.AuditStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent errors: %w", err)
	}
	return errors, nil
}
