package filter

import (
	"context"
	"fmt"
	"strings"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
	"github.com/bugtally/notify-engine/pkg/logger"
)

// Decision is the outcome of one filter pass for one user and issue.
type Decision struct {
	Matched  bool
	Action   model.FilterAction
	Channels []string
	Reason   string
}

// defaultDecision is returned when nothing matches: notify through the
// user's normal channels.
func defaultDecision() Decision {
	return Decision{Matched: false, Action: model.ActionNotify, Reason: "no filter matched"}
}

// Engine evaluates a user's notification filters against an issue.
type Engine struct {
	repo   repository.FilterRepository
	logger *logger.Logger
}

func NewEngine(repo repository.FilterRepository, logger *logger.Logger) *Engine {
	return &Engine{repo: repo, logger: logger}
}

// Evaluate runs the user's enabled filters (project-scoped and global,
// newest first) against the issue. An ignore match terminates the pass
// immediately; otherwise the last match in the pass wins. The error return
// covers infrastructure failures only; the caller owns the fail-open
// policy for those.
func (e *Engine) Evaluate(ctx context.Context, userID, projectID int64, issue model.Issue) (Decision, error) {
	filters, err := e.repo.ListApplicable(ctx, userID, projectID)
	if err != nil {
		return defaultDecision(), fmt.Errorf("failed to load filters for user %d: %w", userID, err)
	}

	decision := defaultDecision()
	for _, f := range filters {
		matched, err := e.matches(f, issue)
		if err != nil {
			// A single broken filter must never suppress a notification.
			e.logger.Error(err, "skipping unevaluable filter",
				"filter_id", f.ID.String(), "user_id", userID)
			continue
		}
		if !matched {
			continue
		}

		if f.Action == model.ActionIgnore {
			return Decision{
				Matched: true,
				Action:  model.ActionIgnore,
				Reason:  fmt.Sprintf("%s filter %s", f.FilterType, f.ID),
			}, nil
		}

		decision = Decision{
			Matched:  true,
			Action:   f.Action,
			Channels: f.Channels,
			Reason:   fmt.Sprintf("%s filter %s", f.FilterType, f.ID),
		}
	}

	return decision, nil
}

func (e *Engine) matches(f *model.NotificationFilter, issue model.Issue) (bool, error) {
	switch f.FilterType {
	case model.FilterTypeCategory:
		return f.FilterValue == issue.CategoryID, nil

	case model.FilterTypePriority:
		r, err := model.ParseValueRange(f.FilterValue)
		if err != nil {
			return false, err
		}
		return r.Contains(issue.Priority), nil

	case model.FilterTypeSeverity:
		r, err := model.ParseValueRange(f.FilterValue)
		if err != nil {
			return false, err
		}
		return r.Contains(issue.Severity), nil

	case model.FilterTypeTag:
		for _, tag := range issue.Tags {
			if strings.EqualFold(tag, f.FilterValue) {
				return true, nil
			}
		}
		return false, nil

	case model.FilterTypeProject, model.FilterTypeCustom:
		// Reserved extension points; never match in the base engine.
		return false, nil

	default:
		return false, fmt.Errorf("unknown filter type %q", f.FilterType)
	}
}
