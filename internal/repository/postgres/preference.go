package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
)

type preferenceRepository struct {
	BaseRepository
}

func NewPreferenceRepository(base BaseRepository) repository.PreferenceRepository {
	return &preferenceRepository{base}
}

func (r *preferenceRepository) ListForUser(ctx context.Context, userID int64) ([]*model.EventPreference, error) {
	query := `
		SELECT user_id, event_type, enabled, min_severity
		FROM event_preferences
		WHERE user_id = $1
	`

	var prefs []*model.EventPreference
	if err := r.db.SelectContext(ctx, &prefs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list event preferences: %w", err)
	}
	return prefs, nil
}

func (r *preferenceRepository) Upsert(ctx context.Context, p *model.EventPreference) error {
	query := `
		INSERT INTO event_preferences (user_id, event_type, enabled, min_severity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, event_type)
		DO UPDATE SET enabled = $3, min_severity = $4
	`
	_, err := r.db.ExecContext(ctx, query, p.UserID, p.EventType, p.Enabled, p.MinSeverity)
	if err != nil {
		return fmt.Errorf("failed to upsert event preference: %w", err)
	}
	return nil
}

type digestPreferenceRepository struct {
	BaseRepository
}

func NewDigestPreferenceRepository(base BaseRepository) repository.DigestPreferenceRepository {
	return &digestPreferenceRepository{base}
}

func (r *digestPreferenceRepository) Get(ctx context.Context, userID int64) (*model.DigestPreference, error) {
	query := `SELECT * FROM digest_preferences WHERE user_id = $1`

	var p model.DigestPreference
	if err := r.db.GetContext(ctx, &p, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get digest preference: %w", err)
	}
	return &p, nil
}

func (r *digestPreferenceRepository) Upsert(ctx context.Context, p *model.DigestPreference) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid digest preference: %w", err)
	}

	query := `
		INSERT INTO digest_preferences (
			user_id, enabled, frequency, time_of_day, day_of_week,
			min_notifications, include_channels
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id)
		DO UPDATE SET enabled = $2, frequency = $3, time_of_day = $4,
			day_of_week = $5, min_notifications = $6, include_channels = $7
	`
	_, err := r.db.ExecContext(ctx, query,
		p.UserID, p.Enabled, p.Frequency, p.TimeOfDay, p.DayOfWeek,
		p.MinNotifications, p.IncludeChannels)
	if err != nil {
		return fmt.Errorf("failed to upsert digest preference: %w", err)
	}
	return nil
}

func (r *digestPreferenceRepository) ListDue(ctx context.Context, now int64) ([]*model.DigestPreference, error) {
	query := `
		SELECT * FROM digest_preferences
		WHERE enabled = TRUE
		AND (next_digest_scheduled IS NULL OR next_digest_scheduled <= $1)
	`

	var prefs []*model.DigestPreference
	if err := r.db.SelectContext(ctx, &prefs, query, now); err != nil {
		return nil, fmt.Errorf("failed to list due digest preferences: %w", err)
	}
	return prefs, nil
}

func (r *digestPreferenceRepository) UpdateSchedule(ctx context.Context, userID int64, lastSent, nextScheduled int64) error {
	query := `
		UPDATE digest_preferences
		SET last_digest_sent = CASE WHEN $2 > 0 THEN $2 ELSE last_digest_sent END,
			next_digest_scheduled = $3
		WHERE user_id = $1
	`
	_, err := r.db.ExecContext(ctx, query, userID, lastSent, nextScheduled)
	if err != nil {
		return fmt.Errorf("failed to update digest schedule: %w", err)
	}
	return nil
}
