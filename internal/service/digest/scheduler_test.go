package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtally/notify-engine/internal/channel"
	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/pkg/logger"
	"github.com/bugtally/notify-engine/pkg/metrics"
)

type fakeQueue struct {
	pending []*model.QueuedNotification
	batched map[uuid.UUID][]*model.QueuedNotification
	sent    []*model.QueuedNotification

	claimOverride *int64
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{batched: map[uuid.UUID][]*model.QueuedNotification{}}
}

func (f *fakeQueue) Create(ctx context.Context, n *model.QueuedNotification) error {
	f.pending = append(f.pending, n)
	return nil
}

func (f *fakeQueue) CountPending(ctx context.Context, userID int64) (int64, error) {
	var n int64
	for _, item := range f.pending {
		if item.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeQueue) CountAllPending(ctx context.Context) (int64, error) {
	return int64(len(f.pending)), nil
}

func (f *fakeQueue) ClaimPending(ctx context.Context, userID int64, batchID uuid.UUID, scheduledBefore int64) (int64, error) {
	if f.claimOverride != nil {
		return *f.claimOverride, nil
	}
	var rest []*model.QueuedNotification
	for _, item := range f.pending {
		if item.UserID == userID && item.DateScheduled <= scheduledBefore {
			f.batched[batchID] = append(f.batched[batchID], item)
			continue
		}
		rest = append(rest, item)
	}
	f.pending = rest
	return int64(len(f.batched[batchID])), nil
}

func (f *fakeQueue) ListBatch(ctx context.Context, batchID uuid.UUID) ([]*model.QueuedNotification, error) {
	return f.batched[batchID], nil
}

func (f *fakeQueue) MarkBatchSent(ctx context.Context, batchID uuid.UUID, sentAt int64) (int64, error) {
	items := f.batched[batchID]
	delete(f.batched, batchID)
	f.sent = append(f.sent, items...)
	return int64(len(items)), nil
}

func (f *fakeQueue) ReleaseBatch(ctx context.Context, batchID uuid.UUID) (int64, error) {
	items := f.batched[batchID]
	delete(f.batched, batchID)
	f.pending = append(f.pending, items...)
	return int64(len(items)), nil
}

func (f *fakeQueue) DeleteSentBefore(ctx context.Context, cutoff int64) (int64, error) {
	var kept []*model.QueuedNotification
	var deleted int64
	for _, item := range f.sent {
		if item.DateCreated < cutoff {
			deleted++
			continue
		}
		kept = append(kept, item)
	}
	f.sent = kept
	return deleted, nil
}

type scheduleUpdate struct {
	userID   int64
	lastSent int64
	next     int64
}

type fakeDigestPrefs struct {
	due     []*model.DigestPreference
	listErr error
	updates []scheduleUpdate
}

func (f *fakeDigestPrefs) Get(ctx context.Context, userID int64) (*model.DigestPreference, error) {
	for _, p := range f.due {
		if p.UserID == userID {
			return p, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeDigestPrefs) Upsert(ctx context.Context, p *model.DigestPreference) error { return nil }

func (f *fakeDigestPrefs) ListDue(ctx context.Context, now int64) ([]*model.DigestPreference, error) {
	return f.due, f.listErr
}

func (f *fakeDigestPrefs) UpdateSchedule(ctx context.Context, userID int64, lastSent, nextScheduled int64) error {
	f.updates = append(f.updates, scheduleUpdate{userID: userID, lastSent: lastSent, next: nextScheduled})
	return nil
}

type fakeDirectory struct {
	users map[int64]*model.User
}

func (f *fakeDirectory) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

func (f *fakeDirectory) ListProjectMembers(ctx context.Context, projectID int64) ([]*model.User, error) {
	return nil, nil
}

type fakeHistory struct {
	entries []*model.NotificationHistoryEntry
}

func (f *fakeHistory) Create(ctx context.Context, e *model.NotificationHistoryEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeHistory) CreateBatch(ctx context.Context, entries []*model.NotificationHistoryEntry) error {
	f.entries = append(f.entries, entries...)
	return nil
}

func (f *fakeHistory) List(ctx context.Context, userID int64, filters model.HistoryFilters, p model.Pagination) ([]*model.NotificationHistoryEntry, int64, error) {
	return nil, 0, nil
}
func (f *fakeHistory) CountUnread(ctx context.Context, userID int64) (int64, error) { return 0, nil }
func (f *fakeHistory) MarkRead(ctx context.Context, userID int64, ids []uuid.UUID, readAt int64) (int64, error) {
	return 0, nil
}
func (f *fakeHistory) MarkAllRead(ctx context.Context, userID int64, readAt int64) (int64, error) {
	return 0, nil
}
func (f *fakeHistory) GetStats(ctx context.Context, userID int64, now int64) (*model.HistoryStats, error) {
	return nil, nil
}

type fakeSender struct {
	name string
	fail bool
	msgs []channel.Message
}

func (f *fakeSender) Name() string { return f.name }

func (f *fakeSender) Send(ctx context.Context, target channel.Target, msg channel.Message) channel.Result {
	f.msgs = append(f.msgs, msg)
	if f.fail {
		return channel.Result{Channel: f.name, Err: errors.New("smtp down")}
	}
	return channel.Result{Channel: f.name, Success: true}
}

type schedulerFixture struct {
	scheduler *Scheduler
	queue     *fakeQueue
	prefs     *fakeDigestPrefs
	history   *fakeHistory
	email     *fakeSender
	now       time.Time
}

func newSchedulerFixture(pref *model.DigestPreference) *schedulerFixture {
	f := &schedulerFixture{
		queue:   newFakeQueue(),
		prefs:   &fakeDigestPrefs{due: []*model.DigestPreference{pref}},
		history: &fakeHistory{},
		email:   &fakeSender{name: model.ChannelEmail},
		now:     time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC),
	}
	directory := &fakeDirectory{users: map[int64]*model.User{
		pref.UserID: {ID: pref.UserID, Email: "dev@example.com", Enabled: true},
	}}

	f.scheduler = NewScheduler(
		f.queue,
		f.prefs,
		directory,
		f.history,
		[]channel.Sender{f.email},
		&clock.Fixed{T: f.now},
		logger.Nop(),
		metrics.NewForTest(),
	)
	return f
}

func digestPref(userID int64, minNotifications int) *model.DigestPreference {
	return &model.DigestPreference{
		UserID:           userID,
		Enabled:          true,
		Frequency:        model.FrequencyHourly,
		MinNotifications: minNotifications,
		IncludeChannels:  []string{model.ChannelEmail},
	}
}

func queued(userID, bugID int64, subject string, createdAt int64) *model.QueuedNotification {
	return &model.QueuedNotification{
		ID:            uuid.New(),
		UserID:        userID,
		BugID:         bugID,
		EventType:     model.EventBugnote,
		Subject:       subject,
		Body:          "details",
		DateCreated:   createdAt,
		DateScheduled: createdAt,
	}
}

func TestProcessPendingDigestsSendsOneDigest(t *testing.T) {
	f := newSchedulerFixture(digestPref(7, 2))
	f.queue.pending = []*model.QueuedNotification{
		queued(7, 10, "note on 10", 100),
		queued(7, 20, "status on 20", 200),
		queued(7, 10, "second note on 10", 300),
	}

	require.NoError(t, f.scheduler.ProcessPendingDigests(context.Background()))

	require.Len(t, f.email.msgs, 1)
	msg := f.email.msgs[0]
	assert.Equal(t, model.EventDigest, msg.EventType)
	assert.Contains(t, msg.Subject, "3 update(s) across 2 issue(s)")
	assert.Contains(t, msg.Body, "Issue #10 (2 updates)")
	assert.Contains(t, msg.Body, "Issue #20 (1 update)")
	// Oldest first within a group.
	assert.Less(t, strings.Index(msg.Body, "note on 10"), strings.Index(msg.Body, "second note on 10"))

	assert.Empty(t, f.queue.pending)
	assert.Len(t, f.queue.sent, 3)

	require.Len(t, f.history.entries, 1)
	entry := f.history.entries[0]
	assert.Equal(t, model.EventDigest, entry.EventType)
	assert.Equal(t, int64(0), entry.BugID)
	assert.Equal(t, []string{model.ChannelEmail}, []string(entry.ChannelsSent))

	require.Len(t, f.prefs.updates, 1)
	assert.Equal(t, f.now.Unix(), f.prefs.updates[0].lastSent)
	assert.Greater(t, f.prefs.updates[0].next, f.now.Unix())
}

func TestProcessPendingDigestsBelowMinimumLeavesQueueAndSchedule(t *testing.T) {
	f := newSchedulerFixture(digestPref(7, 5))
	f.queue.pending = []*model.QueuedNotification{
		queued(7, 10, "a", 100),
		queued(7, 10, "b", 200),
		queued(7, 10, "c", 300),
		queued(7, 10, "d", 400),
	}

	require.NoError(t, f.scheduler.ProcessPendingDigests(context.Background()))

	assert.Empty(t, f.email.msgs)
	assert.Len(t, f.queue.pending, 4)
	// Schedule does not advance; the user stays due until the minimum is met.
	assert.Empty(t, f.prefs.updates)
}

func TestProcessPendingDigestsNoEligibleChannelsAdvancesSchedule(t *testing.T) {
	pref := digestPref(7, 1)
	pref.IncludeChannels = []string{"carrier-pigeon"}
	f := newSchedulerFixture(pref)
	f.queue.pending = []*model.QueuedNotification{queued(7, 10, "a", 100)}

	require.NoError(t, f.scheduler.ProcessPendingDigests(context.Background()))

	assert.Empty(t, f.email.msgs)
	assert.Len(t, f.queue.pending, 1)

	require.Len(t, f.prefs.updates, 1)
	assert.Equal(t, int64(0), f.prefs.updates[0].lastSent)
	assert.Greater(t, f.prefs.updates[0].next, f.now.Unix())
}

func TestProcessPendingDigestsTotalFailureReleasesBatch(t *testing.T) {
	f := newSchedulerFixture(digestPref(7, 1))
	f.email.fail = true
	f.queue.pending = []*model.QueuedNotification{
		queued(7, 10, "a", 100),
		queued(7, 10, "b", 200),
	}

	// Per-user failures are contained; the pass itself still succeeds.
	require.NoError(t, f.scheduler.ProcessPendingDigests(context.Background()))

	// Items are back in pending for the next run.
	assert.Len(t, f.queue.pending, 2)
	assert.Empty(t, f.queue.sent)
	assert.Empty(t, f.history.entries)

	// The schedule still advances so a dead channel cannot pin the user.
	require.Len(t, f.prefs.updates, 1)
	assert.Equal(t, int64(0), f.prefs.updates[0].lastSent)
}

func TestProcessPendingDigestsSkipsWhenAnotherPassClaimed(t *testing.T) {
	f := newSchedulerFixture(digestPref(7, 1))
	f.queue.pending = []*model.QueuedNotification{queued(7, 10, "a", 100)}
	zero := int64(0)
	f.queue.claimOverride = &zero

	require.NoError(t, f.scheduler.ProcessPendingDigests(context.Background()))

	assert.Empty(t, f.email.msgs)
	assert.Empty(t, f.prefs.updates)
}

func TestProcessPendingDigestsListDueFailure(t *testing.T) {
	f := newSchedulerFixture(digestPref(7, 1))
	f.prefs.listErr = errors.New("db down")

	assert.Error(t, f.scheduler.ProcessPendingDigests(context.Background()))
}

func TestRenderSingleItem(t *testing.T) {
	content := Render([]*model.QueuedNotification{queued(7, 42, "crash on save", 100)})

	assert.Equal(t, "Notification digest: 1 update(s) across 1 issue(s)", content.Subject)
	assert.Contains(t, content.Body, "Issue #42 (1 update)")
	assert.Contains(t, content.Body, "- [bugnote] crash on save")
	assert.Contains(t, content.Body, "details")
}

func TestRenderOnlyFirstBodyLine(t *testing.T) {
	item := queued(7, 42, "crash on save", 100)
	item.Body = "first line\nsecond line"

	content := Render([]*model.QueuedNotification{item})
	assert.Contains(t, content.Body, "first line")
	assert.NotContains(t, content.Body, "second line")
}
