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

type filterRepository struct {
	BaseRepository
}

func NewFilterRepository(base BaseRepository) repository.FilterRepository {
	return &filterRepository{base}
}

func (r *filterRepository) Create(ctx context.Context, f *model.NotificationFilter) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	query := `
		INSERT INTO notification_filters (
			id, user_id, project_id, enabled, filter_type, filter_value,
			action, channels, date_created, date_modified
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	f.ID = uuid.New()
	now := time.Now().Unix()
	f.DateCreated = now
	f.DateModified = now

	_, err := r.db.ExecContext(ctx, query,
		f.ID,
		f.UserID,
		f.ProjectID,
		f.Enabled,
		f.FilterType,
		f.FilterValue,
		f.Action,
		f.Channels,
		f.DateCreated,
		f.DateModified,
	)
	if err != nil {
		return fmt.Errorf("failed to create filter: %w", err)
	}
	return nil
}

func (r *filterRepository) Get(ctx context.Context, id uuid.UUID) (*model.NotificationFilter, error) {
	query := `SELECT * FROM notification_filters WHERE id = $1`

	var f model.NotificationFilter
	if err := r.db.GetContext(ctx, &f, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("filter %s not found", id)
		}
		return nil, fmt.Errorf("failed to get filter: %w", err)
	}
	return &f, nil
}

func (r *filterRepository) Update(ctx context.Context, f *model.NotificationFilter) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	query := `
		UPDATE notification_filters
		SET enabled = $1, filter_type = $2, filter_value = $3, action = $4,
			channels = $5, project_id = $6, date_modified = $7
		WHERE id = $8 AND user_id = $9
	`
	f.DateModified = time.Now().Unix()

	result, err := r.db.ExecContext(ctx, query,
		f.Enabled, f.FilterType, f.FilterValue, f.Action,
		f.Channels, f.ProjectID, f.DateModified, f.ID, f.UserID)
	if err != nil {
		return fmt.Errorf("failed to update filter: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("filter %s not found", f.ID)
	}
	return nil
}

func (r *filterRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM notification_filters WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete filter: %w", err)
	}
	return nil
}

func (r *filterRepository) ListForUser(ctx context.Context, userID int64) ([]*model.NotificationFilter, error) {
	query := `
		SELECT * FROM notification_filters
		WHERE user_id = $1
		ORDER BY date_created DESC
	`

	var filters []*model.NotificationFilter
	if err := r.db.SelectContext(ctx, &filters, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list filters: %w", err)
	}
	return filters, nil
}

// ListApplicable returns the filters the engine evaluates for one event:
// enabled, owned by the user, scoped to the target project or global.
// Newest first so recently created rules win within a pass.
func (r *filterRepository) ListApplicable(ctx context.Context, userID, projectID int64) ([]*model.NotificationFilter, error) {
	query := `
		SELECT * FROM notification_filters
		WHERE user_id = $1
		AND enabled = TRUE
		AND project_id IN (0, $2)
		ORDER BY date_created DESC
	`

	var filters []*model.NotificationFilter
	if err := r.db.SelectContext(ctx, &filters, query, userID, projectID); err != nil {
		return nil, fmt.Errorf("failed to list applicable filters: %w", err)
	}
	return filters, nil
}
