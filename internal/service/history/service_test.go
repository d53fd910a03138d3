package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/model"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
	"github.com/bugtally/notify-engine/pkg/logger"
)

type fakeHistoryRepo struct {
	entries []*model.NotificationHistoryEntry
	err     error
}

func (f *fakeHistoryRepo) Create(ctx context.Context, e *model.NotificationHistoryEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistoryRepo) CreateBatch(ctx context.Context, entries []*model.NotificationHistoryEntry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeHistoryRepo) List(ctx context.Context, userID int64, filters model.HistoryFilters, p model.Pagination) ([]*model.NotificationHistoryEntry, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	return f.entries, int64(len(f.entries)), nil
}

func (f *fakeHistoryRepo) CountUnread(ctx context.Context, userID int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	for _, e := range f.entries {
		if e.UserID == userID && !e.ReadStatus {
			n++
		}
	}
	return n, nil
}

func (f *fakeHistoryRepo) MarkRead(ctx context.Context, userID int64, ids []uuid.UUID, readAt int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var affected int64
	for _, e := range f.entries {
		if e.UserID == userID && wanted[e.ID] && !e.ReadStatus {
			e.ReadStatus = true
			e.DateRead = &readAt
			affected++
		}
	}
	return affected, nil
}

func (f *fakeHistoryRepo) MarkAllRead(ctx context.Context, userID int64, readAt int64) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var affected int64
	for _, e := range f.entries {
		if e.UserID == userID && !e.ReadStatus {
			e.ReadStatus = true
			e.DateRead = &readAt
			affected++
		}
	}
	return affected, nil
}

func (f *fakeHistoryRepo) GetStats(ctx context.Context, userID int64, now int64) (*model.HistoryStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.HistoryStats{Total: int64(len(f.entries))}, nil
}

type fakeAuditRepo struct {
	successes int64
	failures  int64
	countErr  error
	samples   []string
}

func (f *fakeAuditRepo) Create(ctx context.Context, e *model.ChannelAuditEntry) error { return nil }

func (f *fakeAuditRepo) CountByStatus(ctx context.Context, channel string, since int64) (int64, int64, error) {
	return f.successes, f.failures, f.countErr
}

func (f *fakeAuditRepo) RecentErrors(ctx context.Context, channel string, since int64, limit int) ([]string, error) {
	if limit < len(f.samples) {
		return f.samples[:limit], nil
	}
	return f.samples, nil
}

func entry(userID int64, read bool) *model.NotificationHistoryEntry {
	return &model.NotificationHistoryEntry{
		ID:         uuid.New(),
		UserID:     userID,
		BugID:      42,
		EventType:  model.EventBugnote,
		ReadStatus: read,
	}
}

func newService(repo *fakeHistoryRepo, audit *fakeAuditRepo) *Service {
	return NewService(repo, audit, &clock.Fixed{T: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)}, logger.Nop())
}

func TestMarkReadIsIdempotent(t *testing.T) {
	first := entry(7, false)
	repo := &fakeHistoryRepo{entries: []*model.NotificationHistoryEntry{first, entry(7, false)}}
	svc := newService(repo, &fakeAuditRepo{})
	ctx := context.Background()

	affected, err := svc.MarkRead(ctx, 7, []uuid.UUID{first.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = svc.MarkRead(ctx, 7, []uuid.UUID{first.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestMarkReadRejectsEmptyIDList(t *testing.T) {
	svc := newService(&fakeHistoryRepo{}, &fakeAuditRepo{})

	_, err := svc.MarkRead(context.Background(), 7, nil)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)
}

func TestMarkAllReadSecondCallAffectsNothing(t *testing.T) {
	repo := &fakeHistoryRepo{entries: []*model.NotificationHistoryEntry{
		entry(7, false), entry(7, false), entry(7, true), entry(9, false),
	}}
	svc := newService(repo, &fakeAuditRepo{})
	ctx := context.Background()

	affected, err := svc.MarkAllRead(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	affected, err = svc.MarkAllRead(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestCountUnread(t *testing.T) {
	repo := &fakeHistoryRepo{entries: []*model.NotificationHistoryEntry{
		entry(7, false), entry(7, true),
	}}
	svc := newService(repo, &fakeAuditRepo{})

	count, err := svc.CountUnread(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListWrapsRepositoryErrors(t *testing.T) {
	repo := &fakeHistoryRepo{err: errors.New("connection refused")}
	svc := newService(repo, &fakeAuditRepo{})

	_, _, err := svc.List(context.Background(), 7, model.HistoryFilters{}, model.Pagination{Page: 1, PageSize: 20})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, apperrors.ErrInternal, appErr.Code)
}

func TestCheckChannelHealthAtBoundary(t *testing.T) {
	// 8 of 10 is exactly the 80% minimum.
	svc := newService(&fakeHistoryRepo{}, &fakeAuditRepo{successes: 8, failures: 2})

	report, err := svc.CheckChannelHealth(context.Background(), model.ChannelEmail)
	require.NoError(t, err)
	assert.True(t, report.Healthy)
	assert.False(t, report.NoTraffic)
	assert.InDelta(t, 0.8, report.SuccessRate, 1e-9)
	assert.Empty(t, report.Issues)
}

func TestCheckChannelHealthUnhealthy(t *testing.T) {
	audit := &fakeAuditRepo{
		successes: 7,
		failures:  3,
		samples:   []string{"dial tcp: timeout", "550 relay denied", "dial tcp: timeout", "connection reset"},
	}
	svc := newService(&fakeHistoryRepo{}, audit)

	report, err := svc.CheckChannelHealth(context.Background(), model.ChannelEmail)
	require.NoError(t, err)
	assert.False(t, report.Healthy)
	assert.Equal(t, int64(10), report.Attempts)

	// One rate summary plus at most three error samples.
	require.Len(t, report.Issues, 4)
	assert.Contains(t, report.Issues[0], "success rate 70%")
}

func TestCheckChannelHealthNoTraffic(t *testing.T) {
	svc := newService(&fakeHistoryRepo{}, &fakeAuditRepo{})

	report, err := svc.CheckChannelHealth(context.Background(), model.ChannelPush)
	require.NoError(t, err)
	assert.True(t, report.NoTraffic)
	assert.True(t, report.Healthy)
	assert.Zero(t, report.Attempts)
}

func TestCheckChannelHealthAuditFailure(t *testing.T) {
	svc := newService(&fakeHistoryRepo{}, &fakeAuditRepo{countErr: errors.New("db down")})

	_, err := svc.CheckChannelHealth(context.Background(), model.ChannelEmail)
	assert.Error(t, err)
}
