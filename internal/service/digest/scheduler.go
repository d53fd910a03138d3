package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/channel"
	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
	"github.com/bugtally/notify-engine/pkg/logger"
	"github.com/bugtally/notify-engine/pkg/metrics"
)

// Scheduler batches queued notifications into per-user digests. All queue
// mutations key off the current row status, so a pass is safe to invoke
// repeatedly or concurrently by accident.
type Scheduler struct {
	queue     repository.QueueRepository
	prefs     repository.DigestPreferenceRepository
	directory repository.DirectoryRepository
	history   repository.HistoryRepository
	senders   map[string]channel.Sender
	clock     clock.Clock
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewScheduler(
	queue repository.QueueRepository,
	prefs repository.DigestPreferenceRepository,
	directory repository.DirectoryRepository,
	history repository.HistoryRepository,
	senders []channel.Sender,
	clk clock.Clock,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Scheduler {
	byName := make(map[string]channel.Sender, len(senders))
	for _, s := range senders {
		byName[s.Name()] = s
	}

	return &Scheduler{
		queue:     queue,
		prefs:     prefs,
		directory: directory,
		history:   history,
		senders:   byName,
		clock:     clk,
		logger:    logger,
		metrics:   m,
	}
}

// ProcessPendingDigests runs one scheduler pass: every user whose digest is
// due gets at most one digest. Per-user failures are logged and do not stop
// the pass; the returned error covers only the inability to list due users.
func (s *Scheduler) ProcessPendingDigests(ctx context.Context) error {
	start := time.Now()
	s.metrics.DigestCycles.Inc()
	defer func() {
		s.metrics.DigestCycleLatency.Observe(time.Since(start).Seconds())
	}()

	now := s.clock.Now()
	due, err := s.prefs.ListDue(ctx, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to list due digest preferences: %w", err)
	}

	for _, pref := range due {
		if err := s.processUser(ctx, pref, now); err != nil {
			s.logger.Error(err, "digest pass failed for user", "user_id", pref.UserID)
		}
	}

	if depth, err := s.queue.CountAllPending(ctx); err == nil {
		s.metrics.QueueDepth.Set(float64(depth))
	}
	return nil
}

func (s *Scheduler) processUser(ctx context.Context, pref *model.DigestPreference, now time.Time) error {
	count, err := s.queue.CountPending(ctx, pref.UserID)
	if err != nil {
		return fmt.Errorf("failed to count pending notifications: %w", err)
	}
	if count < int64(pref.MinNotifications) {
		// Below the batch minimum the user stays due; the items keep
		// accumulating until the threshold is met.
		s.metrics.DigestsSkipped.WithLabelValues("below_minimum").Inc()
		return nil
	}

	channels := s.eligibleChannels(pref)
	if len(channels) == 0 {
		// Nothing to send through, but the schedule must still advance or
		// every pass would retry this user forever.
		s.metrics.DigestsSkipped.WithLabelValues("no_channels").Inc()
		return s.advance(ctx, pref, now, false)
	}

	batchID := uuid.New()
	claimed, err := s.queue.ClaimPending(ctx, pref.UserID, batchID, now.Unix())
	if err != nil {
		return fmt.Errorf("failed to claim pending notifications: %w", err)
	}
	if claimed == 0 {
		// A concurrent pass got here first.
		s.metrics.DigestsSkipped.WithLabelValues("already_claimed").Inc()
		return nil
	}

	items, err := s.queue.ListBatch(ctx, batchID)
	if err != nil {
		return s.abort(ctx, batchID, fmt.Errorf("failed to load claimed batch: %w", err))
	}

	user, err := s.directory.GetUser(ctx, pref.UserID)
	if err != nil {
		return s.abort(ctx, batchID, fmt.Errorf("failed to load digest recipient: %w", err))
	}

	content := Render(items)
	msg := channel.Message{
		Subject:   content.Subject,
		Body:      content.Body,
		EventType: model.EventDigest,
	}
	target := channel.Target{UserID: user.ID, Email: user.Email}

	var sent []string
	for _, name := range channels {
		result := s.senders[name].Send(ctx, target, msg)
		if result.Success {
			sent = append(sent, name)
			continue
		}
		s.logger.Warn("digest channel delivery failed",
			"channel", name, "user_id", user.ID, "error", errString(result.Err))
	}

	if len(sent) == 0 {
		// Total delivery failure: return the items to pending so the next
		// run retries them, but advance the schedule so a dead channel
		// cannot pin the scheduler on one user.
		if _, err := s.queue.ReleaseBatch(ctx, batchID); err != nil {
			s.logger.Error(err, "failed to release undelivered batch", "batch_id", batchID.String())
		}
		if err := s.advance(ctx, pref, now, false); err != nil {
			return err
		}
		return fmt.Errorf("digest delivery failed on every channel for user %d", pref.UserID)
	}

	if _, err := s.queue.MarkBatchSent(ctx, batchID, now.Unix()); err != nil {
		return fmt.Errorf("failed to mark batch sent: %w", err)
	}
	s.metrics.DigestsSent.Inc()

	entry := &model.NotificationHistoryEntry{
		UserID:       user.ID,
		BugID:        0,
		EventType:    model.EventDigest,
		Subject:      content.Subject,
		Body:         content.Body,
		ChannelsSent: sent,
		DateSent:     now.Unix(),
	}
	if err := s.history.Create(ctx, entry); err != nil {
		s.logger.Error(err, "failed to record digest history", "user_id", user.ID)
	}

	return s.advance(ctx, pref, now, true)
}

// eligibleChannels intersects the user's opted-in digest channels with the
// senders actually wired in.
func (s *Scheduler) eligibleChannels(pref *model.DigestPreference) []string {
	var out []string
	for _, name := range pref.IncludeChannels {
		if _, ok := s.senders[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

func (s *Scheduler) advance(ctx context.Context, pref *model.DigestPreference, now time.Time, delivered bool) error {
	var lastSent int64
	if delivered {
		lastSent = now.Unix()
	}
	next := NextRun(now, pref).Unix()
	if err := s.prefs.UpdateSchedule(ctx, pref.UserID, lastSent, next); err != nil {
		return fmt.Errorf("failed to advance digest schedule: %w", err)
	}
	return nil
}

func (s *Scheduler) abort(ctx context.Context, batchID uuid.UUID, cause error) error {
	if _, err := s.queue.ReleaseBatch(ctx, batchID); err != nil {
		s.logger.Error(err, "failed to release batch after error", "batch_id", batchID.String())
	}
	return cause
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
