package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
)

type pushSubscriptionRepository struct {
	BaseRepository
}

func NewPushSubscriptionRepository(base BaseRepository) repository.PushSubscriptionRepository {
	return &pushSubscriptionRepository{base}
}

func (r *pushSubscriptionRepository) Create(ctx context.Context, s *model.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (
			id, user_id, endpoint, p256dh_key, auth_key, device_name,
			enabled, date_created
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	s.ID = uuid.New()
	s.Enabled = true
	if s.DateCreated == 0 {
		s.DateCreated = time.Now().Unix()
	}

	_, err := r.db.ExecContext(ctx, query,
		s.ID, s.UserID, s.Endpoint, s.P256dhKey, s.AuthKey, s.DeviceName,
		s.Enabled, s.DateCreated)
	if err != nil {
		return fmt.Errorf("failed to create push subscription: %w", err)
	}
	return nil
}

func (r *pushSubscriptionRepository) ListActive(ctx context.Context, userID int64) ([]*model.PushSubscription, error) {
	query := `
		SELECT * FROM push_subscriptions
		WHERE user_id = $1
		AND enabled = TRUE
	`

	var subs []*model.PushSubscription
	if err := r.db.SelectContext(ctx, &subs, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	return subs, nil
}

// Disable keeps the row for audit purposes; the endpoint just stops
// receiving fan-outs.
func (r *pushSubscriptionRepository) Disable(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE push_subscriptions SET enabled = FALSE WHERE id = $1`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to disable push subscription: %w", err)
	}
	return nil
}
