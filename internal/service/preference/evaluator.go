package preference

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
	"github.com/bugtally/notify-engine/pkg/logger"
)

const (
	cacheTTL     = 5 * time.Minute
	cacheCleanup = 10 * time.Minute
)

// Evaluator decides whether a user wants to hear about an event at all.
// It runs before the filter engine; a negative answer short-circuits the
// rest of the pipeline for that user.
type Evaluator struct {
	repo   repository.PreferenceRepository
	cache  *gocache.Cache
	logger *logger.Logger
}

func NewEvaluator(repo repository.PreferenceRepository, logger *logger.Logger) *Evaluator {
	return &Evaluator{
		repo:   repo,
		cache:  gocache.New(cacheTTL, cacheCleanup),
		logger: logger,
	}
}

// RecipientSet is the outcome of a batch preference pass. Errored users
// carry their evaluation error; the dispatcher decides what to do with
// them (fail open).
type RecipientSet struct {
	Recipients []int64
	Reasons    map[int64]string
	Errored    map[int64]error
}

// ShouldNotify reports whether the user's preference for the event type is
// enabled and the issue severity meets their threshold. A user with no
// preference row for the event type is excluded, not an error.
func (e *Evaluator) ShouldNotify(ctx context.Context, userID int64, eventType model.EventType, severity int) (bool, error) {
	prefs, err := e.prefsFor(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load preferences for user %d: %w", userID, err)
	}

	p, ok := prefs[eventType]
	if !ok || !p.Enabled {
		return false, nil
	}
	return severity >= p.MinSeverity, nil
}

// FilterRecipients evaluates every candidate and partitions them into kept
// recipients, excluded users with a reason, and users whose evaluation
// failed.
func (e *Evaluator) FilterRecipients(ctx context.Context, userIDs []int64, eventType model.EventType, severity int) *RecipientSet {
	set := &RecipientSet{
		Reasons: make(map[int64]string),
		Errored: make(map[int64]error),
	}

	for _, userID := range userIDs {
		prefs, err := e.prefsFor(ctx, userID)
		if err != nil {
			set.Errored[userID] = err
			continue
		}

		p, ok := prefs[eventType]
		switch {
		case !ok:
			set.Reasons[userID] = fmt.Sprintf("no preference for %s", eventType)
		case !p.Enabled:
			set.Reasons[userID] = fmt.Sprintf("%s notifications disabled", eventType)
		case severity < p.MinSeverity:
			set.Reasons[userID] = fmt.Sprintf("severity %d below threshold %d", severity, p.MinSeverity)
		default:
			set.Recipients = append(set.Recipients, userID)
		}
	}

	return set
}

// Invalidate drops the cached preferences for a user. Called after a
// preference write so the next evaluation sees fresh rows.
func (e *Evaluator) Invalidate(userID int64) {
	e.cache.Delete(cacheKey(userID))
}

func (e *Evaluator) prefsFor(ctx context.Context, userID int64) (map[model.EventType]*model.EventPreference, error) {
	key := cacheKey(userID)
	if cached, ok := e.cache.Get(key); ok {
		return cached.(map[model.EventType]*model.EventPreference), nil
	}

	rows, err := e.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	prefs := make(map[model.EventType]*model.EventPreference, len(rows))
	for _, p := range rows {
		prefs[p.EventType] = p
	}

	e.cache.Set(key, prefs, gocache.DefaultExpiration)
	return prefs, nil
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("prefs:%d", userID)
}
