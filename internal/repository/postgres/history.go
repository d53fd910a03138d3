package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
)

type historyRepository struct {
	BaseRepository
}

func NewHistoryRepository(base BaseRepository) repository.HistoryRepository {
	return &historyRepository{base}
}

const historyInsert = `
	INSERT INTO notification_history (
		id, user_id, bug_id, event_type, subject, body,
		channels_sent, read_status, date_sent
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (r *historyRepository) Create(ctx context.Context, e *model.NotificationHistoryEntry) error {
	e.ID = uuid.New()

	_, err := r.db.ExecContext(ctx, historyInsert,
		e.ID,
		e.UserID,
		e.BugID,
		e.EventType,
		e.Subject,
		e.Body,
		e.ChannelsSent,
		e.ReadStatus,
		e.DateSent,
	)
	if err != nil {
		return fmt.Errorf("failed to create history entry: %w", err)
	}
	return nil
}

func (r *historyRepository) CreateBatch(ctx context.Context, entries []*model.NotificationHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, e := range entries {
			e.ID = uuid.New()
			if _, err := tx.ExecContext(ctx, historyInsert,
				e.ID, e.UserID, e.BugID, e.EventType, e.Subject, e.Body,
				e.ChannelsSent, e.ReadStatus, e.DateSent,
			); err != nil {
				return fmt.Errorf("failed to create history entry: %w", err)
			}
		}
		return nil
	})
}

func (r *historyRepository) List(ctx context.Context, userID int64, filters model.HistoryFilters, p model.Pagination) ([]*model.NotificationHistoryEntry, int64, error) {
	baseQuery := `FROM notification_history WHERE user_id = $1`
	args := []interface{}{userID}

	if filters.UnreadOnly {
		baseQuery += " AND read_status = FALSE"
	}
	if filters.EventType != nil {
		args = append(args, *filters.EventType)
		baseQuery += fmt.Sprintf(" AND event_type = $%d", len(args))
	}
	if filters.BugID != nil {
		args = append(args, *filters.BugID)
		baseQuery += fmt.Sprintf(" AND bug_id = $%d", len(args))
	}

	countQuery := "SELECT COUNT(*) " + baseQuery
	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to get total count: %w", err)
	}

	args = append(args, p.Limit(), p.Offset())
	query := "SELECT * " + baseQuery +
		fmt.Sprintf(" ORDER BY date_sent DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	var entries []*model.NotificationHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, total, nil
}

func (r *historyRepository) CountUnread(ctx context.Context, userID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM notification_history WHERE user_id = $1 AND read_status = FALSE`

	var count int64
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread: %w", err)
	}
	return count, nil
}

func (r *historyRepository) MarkRead(ctx context.Context, userID int64, ids []uuid.UUID, readAt int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		UPDATE notification_history
		SET read_status = TRUE, date_read = $1
		WHERE user_id = $2
		AND id = ANY($3)
		AND read_status = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, readAt, userID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("failed to mark read: %w", err)
	}
	return result.RowsAffected()
}

func (r *historyRepository) MarkAllRead(ctx context.Context, userID int64, readAt int64) (int64, error) {
	query := `
		UPDATE notification_history
		SET read_status = TRUE, date_read = $1
		WHERE user_id = $2
		AND read_status = FALSE
	`
	result, err := r.db.ExecContext(ctx, query, readAt, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark all read: %w", err)
	}
	return result.RowsAffected()
}

func (r *historyRepository) GetStats(ctx context.Context, userID int64, now int64) (*model.HistoryStats, error) {
	stats := &model.HistoryStats{
		ByEventType: make(map[string]int64),
		ByChannel:   make(map[string]int64),
	}

	totalsQuery := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE read_status = FALSE),
			COUNT(*) FILTER (WHERE date_sent >= $2),
			COUNT(*) FILTER (WHERE date_sent >= $3),
			COUNT(*) FILTER (WHERE date_sent >= $4)
		FROM notification_history
		WHERE user_id = $1
	`
	day := int64(24 * 60 * 60)
	row := r.db.QueryRowContext(ctx, totalsQuery, userID, now-day, now-7*day, now-30*day)
	if err := row.Scan(&stats.Total, &stats.Unread, &stats.Last24Hours, &stats.Last7Days, &stats.Last30Days); err != nil {
		return nil, fmt.Errorf("failed to get history totals: %w", err)
	}

	eventQuery := `
		SELECT event_type, COUNT(*) as count
		FROM notification_history
		WHERE user_id = $1
		GROUP BY event_type
	`
	rows, err := r.db.QueryContext(ctx, eventQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event type counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var eventType string
		var count int64
		if err := rows.Scan(&eventType, &count); err != nil {
			return nil, err
		}
		stats.ByEventType[eventType] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	channelQuery := `
		SELECT channel, COUNT(*) as count
		FROM notification_history, unnest(channels_sent) AS channel
		WHERE user_id = $1
		GROUP BY channel
	`
	rows, err = r.db.QueryContext(ctx, channelQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var channel string
		var count int64
		if err := rows.Scan(&channel, &count); err != nil {
			return nil, err
		}
		stats.ByChannel[channel] = count
	}
	return stats, rows.Err()
}
