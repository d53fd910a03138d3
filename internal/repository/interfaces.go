package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/model"
)

// All repository interfaces in one file
type (
	// QueueRepository owns the digest notification queue. Mutations key off
	// the current status so overlapping scheduler passes cannot double-send.
	QueueRepository interface {
		Create(ctx context.Context, n *model.QueuedNotification) error
		CountPending(ctx context.Context, userID int64) (int64, error)
		CountAllPending(ctx context.Context) (int64, error)
		// ClaimPending transitions the user's pending rows to batched under
		// the given batch ID and returns how many rows were claimed.
		ClaimPending(ctx context.Context, userID int64, batchID uuid.UUID, scheduledBefore int64) (int64, error)
		ListBatch(ctx context.Context, batchID uuid.UUID) ([]*model.QueuedNotification, error)
		MarkBatchSent(ctx context.Context, batchID uuid.UUID, sentAt int64) (int64, error)
		// ReleaseBatch returns claimed rows to pending; used when a digest
		// cannot be rendered at all.
		ReleaseBatch(ctx context.Context, batchID uuid.UUID) (int64, error)
		DeleteSentBefore(ctx context.Context, cutoff int64) (int64, error)
	}

	FilterRepository interface {
		Create(ctx context.Context, f *model.NotificationFilter) error
		Get(ctx context.Context, id uuid.UUID) (*model.NotificationFilter, error)
		Update(ctx context.Context, f *model.NotificationFilter) error
		Delete(ctx context.Context, id uuid.UUID) error
		ListForUser(ctx context.Context, userID int64) ([]*model.NotificationFilter, error)
		// ListApplicable returns enabled filters scoped to the project or
		// global (project 0), newest first.
		ListApplicable(ctx context.Context, userID, projectID int64) ([]*model.NotificationFilter, error)
	}

	HistoryRepository interface {
		Create(ctx context.Context, e *model.NotificationHistoryEntry) error
		CreateBatch(ctx context.Context, entries []*model.NotificationHistoryEntry) error
		List(ctx context.Context, userID int64, filters model.HistoryFilters, p model.Pagination) ([]*model.NotificationHistoryEntry, int64, error)
		CountUnread(ctx context.Context, userID int64) (int64, error)
		MarkRead(ctx context.Context, userID int64, ids []uuid.UUID, readAt int64) (int64, error)
		MarkAllRead(ctx context.Context, userID int64, readAt int64) (int64, error)
		GetStats(ctx context.Context, userID int64, now int64) (*model.HistoryStats, error)
	}

	ChannelAuditRepository interface {
		Create(ctx context.Context, e *model.ChannelAuditEntry) error
		CountByStatus(ctx context.Context, channel string, since int64) (successes, failures int64, err error)
		RecentErrors(ctx context.Context, channel string, since int64, limit int) ([]string, error)
	}

	// PreferenceRepository stores per-event-type notification preferences.
	PreferenceRepository interface {
		ListForUser(ctx context.Context, userID int64) ([]*model.EventPreference, error)
		Upsert(ctx context.Context, p *model.EventPreference) error
	}

	DigestPreferenceRepository interface {
		Get(ctx context.Context, userID int64) (*model.DigestPreference, error)
		Upsert(ctx context.Context, p *model.DigestPreference) error
		ListDue(ctx context.Context, now int64) ([]*model.DigestPreference, error)
		UpdateSchedule(ctx context.Context, userID int64, lastSent, nextScheduled int64) error
	}

	// DirectoryRepository reads tracker-owned records (users, membership).
	// The engine never writes through it.
	DirectoryRepository interface {
		GetUser(ctx context.Context, id int64) (*model.User, error)
		ListProjectMembers(ctx context.Context, projectID int64) ([]*model.User, error)
	}

	PushSubscriptionRepository interface {
		Create(ctx context.Context, s *model.PushSubscription) error
		ListActive(ctx context.Context, userID int64) ([]*model.PushSubscription, error)
		Disable(ctx context.Context, id uuid.UUID) error
	}
)
