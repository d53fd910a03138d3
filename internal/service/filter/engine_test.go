package filter

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/pkg/logger"
)

type fakeFilterRepo struct {
	filters []*model.NotificationFilter
	err     error
}

func (f *fakeFilterRepo) Create(ctx context.Context, filter *model.NotificationFilter) error {
	f.filters = append(f.filters, filter)
	return nil
}

func (f *fakeFilterRepo) Get(ctx context.Context, id uuid.UUID) (*model.NotificationFilter, error) {
	for _, filter := range f.filters {
		if filter.ID == id {
			return filter, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeFilterRepo) Update(ctx context.Context, filter *model.NotificationFilter) error {
	return nil
}

func (f *fakeFilterRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeFilterRepo) ListForUser(ctx context.Context, userID int64) ([]*model.NotificationFilter, error) {
	return f.filters, f.err
}

func (f *fakeFilterRepo) ListApplicable(ctx context.Context, userID, projectID int64) ([]*model.NotificationFilter, error) {
	return f.filters, f.err
}

func newFilter(ftype model.FilterType, value string, action model.FilterAction) *model.NotificationFilter {
	return &model.NotificationFilter{
		ID:          uuid.New(),
		UserID:      7,
		Enabled:     true,
		FilterType:  ftype,
		FilterValue: value,
		Action:      action,
	}
}

func testIssue() model.Issue {
	return model.Issue{
		ID:         101,
		ProjectID:  3,
		CategoryID: "backend",
		Severity:   50,
		Priority:   30,
		Summary:    "crash on save",
		Tags:       []string{"regression", "UI"},
	}
}

func TestEvaluateNoFiltersDefaultsToNotify(t *testing.T) {
	engine := NewEngine(&fakeFilterRepo{}, logger.Nop())

	decision, err := engine.Evaluate(context.Background(), 7, 3, testIssue())
	require.NoError(t, err)
	assert.False(t, decision.Matched)
	assert.Equal(t, model.ActionNotify, decision.Action)
}

func TestEvaluateIgnoreWinsOverEverything(t *testing.T) {
	repo := &fakeFilterRepo{filters: []*model.NotificationFilter{
		newFilter(model.FilterTypeSeverity, "40-60", model.ActionIgnore),
		newFilter(model.FilterTypeCategory, "backend", model.ActionNotify),
		newFilter(model.FilterTypeTag, "regression", model.ActionDigestOnly),
	}}
	engine := NewEngine(repo, logger.Nop())

	decision, err := engine.Evaluate(context.Background(), 7, 3, testIssue())
	require.NoError(t, err)
	assert.True(t, decision.Matched)
	assert.Equal(t, model.ActionIgnore, decision.Action)
}

func TestEvaluateIgnoreWinsRegardlessOfOrder(t *testing.T) {
	repo := &fakeFilterRepo{filters: []*model.NotificationFilter{
		newFilter(model.FilterTypeCategory, "backend", model.ActionNotify),
		newFilter(model.FilterTypeTag, "regression", model.ActionDigestOnly),
		newFilter(model.FilterTypeSeverity, "40-60", model.ActionIgnore),
	}}
	engine := NewEngine(repo, logger.Nop())

	decision, err := engine.Evaluate(context.Background(), 7, 3, testIssue())
	require.NoError(t, err)
	assert.Equal(t, model.ActionIgnore, decision.Action)
}

func TestEvaluateLastMatchWins(t *testing.T) {
	digest := newFilter(model.FilterTypeTag, "regression", model.ActionDigestOnly)
	notify := newFilter(model.FilterTypeCategory, "backend", model.ActionNotify)
	notify.Channels = []string{"chat"}

	repo := &fakeFilterRepo{filters: []*model.NotificationFilter{notify, digest}}
	engine := NewEngine(repo, logger.Nop())

	decision, err := engine.Evaluate(context.Background(), 7, 3, testIssue())
	require.NoError(t, err)
	assert.True(t, decision.Matched)
	assert.Equal(t, model.ActionDigestOnly, decision.Action)
}

func TestEvaluateRangeBoundsAreInclusive(t *testing.T) {
	repo := &fakeFilterRepo{filters: []*model.NotificationFilter{
		newFilter(model.FilterTypeSeverity, "40-60", model.ActionDigestOnly),
	}}
	engine := NewEngine(repo, logger.Nop())

	for _, severity := range []int{40, 50, 60} {
		issue := testIssue()
		issue.Severity = severity
		decision, err := engine.Evaluate(context.Background(), 7, 3, issue)
		require.NoError(t, err)
		assert.Equal(t, model.ActionDigestOnly, decision.Action, "severity %d", severity)
	}

	for _, severity := range []int{39, 61} {
		issue := testIssue()
		issue.Severity = severity
		decision, err := engine.Evaluate(context.Background(), 7, 3, issue)
		require.NoError(t, err)
		assert.False(t, decision.Matched, "severity %d", severity)
	}
}

func TestEvaluateTagMatchIsCaseInsensitive(t *testing.T) {
	repo := &fakeFilterRepo{filters: []*model.NotificationFilter{
		newFilter(model.FilterTypeTag, "ui", model.ActionIgnore),
	}}
	engine := NewEngine(repo, logger.Nop())

	decision, err := engine.Evaluate(context.Background(), 7, 3, testIssue())
	require.NoError(t, err)
	assert.Equal(t, model.ActionIgnore, decision.Action)
}

func TestEvaluateBrokenFilterIsSkipped(t *testing.T) {
	broken := newFilter(model.FilterTypeSeverity, "not-a-range", model.ActionIgnore)
	working := newFilter(model.FilterTypeCategory, "backend", model.ActionDigestOnly)

	repo := &fakeFilterRepo{filters: []*model.NotificationFilter{broken, working}}
	engine := NewEngine(repo, logger.Nop())

	decision, err := engine.Evaluate(context.Background(), 7, 3, testIssue())
	require.NoError(t, err)
	assert.Equal(t, model.ActionDigestOnly, decision.Action)
}

func TestEvaluateChannelOverrideCarriedOnMatch(t *testing.T) {
	f := newFilter(model.FilterTypePriority, "30", model.ActionNotify)
	f.Channels = []string{"chat", "email"}

	repo := &fakeFilterRepo{filters: []*model.NotificationFilter{f}}
	engine := NewEngine(repo, logger.Nop())

	decision, err := engine.Evaluate(context.Background(), 7, 3, testIssue())
	require.NoError(t, err)
	assert.Equal(t, []string{"chat", "email"}, decision.Channels)
}

func TestEvaluateRepositoryErrorIsReturned(t *testing.T) {
	repo := &fakeFilterRepo{err: errors.New("connection refused")}
	engine := NewEngine(repo, logger.Nop())

	decision, err := engine.Evaluate(context.Background(), 7, 3, testIssue())
	assert.Error(t, err)
	// The returned default still says notify; the caller owns fail-open.
	assert.Equal(t, model.ActionNotify, decision.Action)
}
