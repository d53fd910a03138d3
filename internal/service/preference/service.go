package preference

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
)

// Service owns preference writes: per-event-type flags, digest settings and
// push subscriptions. Event preference writes invalidate the evaluator's
// cache so the next dispatch sees fresh rows.
type Service struct {
	prefs     repository.PreferenceRepository
	digests   repository.DigestPreferenceRepository
	subs      repository.PushSubscriptionRepository
	evaluator *Evaluator
	clock     clock.Clock
}

func NewService(
	prefs repository.PreferenceRepository,
	digests repository.DigestPreferenceRepository,
	subs repository.PushSubscriptionRepository,
	evaluator *Evaluator,
	clk clock.Clock,
) *Service {
	return &Service{
		prefs:     prefs,
		digests:   digests,
		subs:      subs,
		evaluator: evaluator,
		clock:     clk,
	}
}

func (s *Service) ListEventPreferences(ctx context.Context, userID int64) ([]*model.EventPreference, error) {
	rows, err := s.prefs.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return rows, nil
}

func (s *Service) UpsertEventPreference(ctx context.Context, p *model.EventPreference) error {
	if !validEventType(p.EventType) {
		return apperrors.NewBadRequest(fmt.Sprintf("unknown event type %q", p.EventType), nil)
	}
	if p.MinSeverity < 0 {
		return apperrors.NewBadRequest("min_severity must not be negative", nil)
	}

	if err := s.prefs.Upsert(ctx, p); err != nil {
		return apperrors.NewInternal(err)
	}
	s.evaluator.Invalidate(p.UserID)
	return nil
}

func (s *Service) GetDigestPreference(ctx context.Context, userID int64) (*model.DigestPreference, error) {
	pref, err := s.digests.Get(ctx, userID)
	if err != nil {
		return nil, apperrors.NewNotFound("digest preference", err)
	}
	return pref, nil
}

// UpsertDigestPreference saves the user's digest settings. The scheduler
// owns next_digest_scheduled, so a fresh row starts due immediately and the
// first pass computes the real slot.
func (s *Service) UpsertDigestPreference(ctx context.Context, p *model.DigestPreference) error {
	if err := p.Validate(); err != nil {
		return apperrors.NewBadRequest(err.Error(), err)
	}

	if err := s.digests.Upsert(ctx, p); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

func (s *Service) RegisterPushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if sub.Endpoint == "" {
		return apperrors.NewBadRequest("subscription endpoint is required", nil)
	}

	sub.ID = uuid.New()
	sub.Enabled = true
	sub.DateCreated = s.clock.Now().Unix()

	if err := s.subs.Create(ctx, sub); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

func (s *Service) DisablePushSubscription(ctx context.Context, id uuid.UUID) error {
	if err := s.subs.Disable(ctx, id); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

func validEventType(t model.EventType) bool {
	for _, known := range model.EventTypes {
		if known == t {
			return true
		}
	}
	return false
}
