package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bugtally/notify-engine/internal/channel"
	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
	"github.com/bugtally/notify-engine/internal/service/filter"
	"github.com/bugtally/notify-engine/internal/service/preference"
	"github.com/bugtally/notify-engine/pkg/logger"
	"github.com/bugtally/notify-engine/pkg/metrics"
)

// Config is the immutable dispatcher configuration injected at startup.
type Config struct {
	// Channels enabled for immediate delivery when no filter overrides
	// the channel list.
	Channels []string
	// EventTimeout bounds one event's whole fan-out, including channel
	// retry sleeps.
	EventTimeout time.Duration
	// BaseURL builds the deep link back into the tracker.
	BaseURL string
}

// Dispatcher routes one issue event to its recipients: preference check,
// filter pass, immediate fan-out or digest enqueue, history record.
type Dispatcher struct {
	config    Config
	directory repository.DirectoryRepository
	queue     repository.QueueRepository
	history   repository.HistoryRepository
	audit     repository.ChannelAuditRepository
	prefs     *preference.Evaluator
	filters   *filter.Engine
	senders   map[string]channel.Sender
	clock     clock.Clock
	logger    *logger.Logger
	metrics   *metrics.Metrics

	wg sync.WaitGroup
}

func New(
	config Config,
	directory repository.DirectoryRepository,
	queue repository.QueueRepository,
	history repository.HistoryRepository,
	audit repository.ChannelAuditRepository,
	prefs *preference.Evaluator,
	filters *filter.Engine,
	senders []channel.Sender,
	clk clock.Clock,
	logger *logger.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if config.EventTimeout <= 0 {
		config.EventTimeout = 30 * time.Second
	}

	byName := make(map[string]channel.Sender, len(senders))
	for _, s := range senders {
		byName[s.Name()] = s
	}

	return &Dispatcher{
		config:    config,
		directory: directory,
		queue:     queue,
		history:   history,
		audit:     audit,
		prefs:     prefs,
		filters:   filters,
		senders:   byName,
		clock:     clk,
		logger:    logger,
		metrics:   m,
	}
}

// NotifyIssueAction hands an event to the engine and returns immediately.
// Delivery must never block or fail the tracker action that triggered it,
// so the fan-out runs detached from the caller's context with its own
// timeout.
func (d *Dispatcher) NotifyIssueAction(event *model.IssueEvent) {
	if event == nil || event.Issue.ID == 0 {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error(fmt.Errorf("panic: %v", r), "dispatch panicked",
					"bug_id", event.Issue.ID, "event_type", string(event.EventType))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.config.EventTimeout)
		defer cancel()
		d.Dispatch(ctx, event)
	}()
}

// Wait blocks until all in-flight dispatches finish; used on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch runs the full pipeline synchronously. Errors are contained per
// recipient and per channel; the only total failure is being unable to
// resolve recipients at all.
func (d *Dispatcher) Dispatch(ctx context.Context, event *model.IssueEvent) {
	timer := time.Now()
	d.metrics.EventsDispatched.Inc()
	defer func() {
		d.metrics.DispatchLatency.Observe(time.Since(timer).Seconds())
	}()

	members, err := d.directory.ListProjectMembers(ctx, event.Issue.ProjectID)
	if err != nil {
		d.logger.Error(err, "failed to resolve recipients",
			"project_id", event.Issue.ProjectID, "bug_id", event.Issue.ID)
		return
	}

	users := make(map[int64]*model.User, len(members))
	candidates := make([]int64, 0, len(members))
	for _, u := range members {
		if u.ID == event.ActorID {
			d.metrics.RecipientsSuppressed.WithLabelValues("self").Inc()
			continue
		}
		users[u.ID] = u
		candidates = append(candidates, u.ID)
	}
	d.metrics.RecipientsResolved.Observe(float64(len(candidates)))

	set := d.prefs.FilterRecipients(ctx, candidates, event.EventType, event.Issue.Severity)
	recipients := set.Recipients
	for userID, evalErr := range set.Errored {
		// Fail open: an evaluation bug must not silently drop a
		// notification. This is the single place that policy lives.
		d.logger.Error(evalErr, "preference evaluation failed, failing open", "user_id", userID)
		recipients = append(recipients, userID)
	}
	for range set.Reasons {
		d.metrics.RecipientsSuppressed.WithLabelValues("preference").Inc()
	}

	var deliveries sync.WaitGroup
	for _, userID := range recipients {
		decision, err := d.filters.Evaluate(ctx, userID, event.Issue.ProjectID, event.Issue)
		if err != nil {
			d.logger.Error(err, "filter evaluation failed, failing open", "user_id", userID)
			decision = filter.Decision{Action: model.ActionNotify}
		}

		switch decision.Action {
		case model.ActionIgnore:
			d.metrics.RecipientsSuppressed.WithLabelValues("filter").Inc()

		case model.ActionDigestOnly:
			d.enqueue(ctx, userID, event)

		default:
			user := users[userID]
			if user == nil {
				// Fail-open recipient whose record we still need.
				user, err = d.directory.GetUser(ctx, userID)
				if err != nil {
					d.logger.Error(err, "failed to load recipient", "user_id", userID)
					continue
				}
			}

			deliveries.Add(1)
			go func(user *model.User, decision filter.Decision) {
				defer deliveries.Done()
				d.deliver(ctx, user, decision, event)
			}(user, decision)
		}
	}
	deliveries.Wait()
}

// deliver fans one recipient's notification out to every enabled channel
// concurrently and records exactly one history entry listing the channels
// attempted.
func (d *Dispatcher) deliver(ctx context.Context, user *model.User, decision filter.Decision, event *model.IssueEvent) {
	channels := decision.Channels
	if len(channels) == 0 {
		channels = d.config.Channels
	}

	msg := d.buildMessage(event)
	target := channel.Target{UserID: user.ID, Email: user.Email}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		attempted []string
	)

	for _, name := range channels {
		sender, ok := d.senders[name]
		if !ok {
			continue
		}

		mu.Lock()
		attempted = append(attempted, name)
		mu.Unlock()

		wg.Add(1)
		go func(sender channel.Sender) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error(fmt.Errorf("panic: %v", r), "channel sender panicked",
						"channel", sender.Name(), "user_id", user.ID)
				}
			}()

			start := time.Now()
			result := sender.Send(ctx, target, msg)
			d.metrics.ChannelLatency.WithLabelValues(sender.Name()).Observe(time.Since(start).Seconds())

			status := "success"
			if !result.Success {
				status = "failed"
				d.logger.Error(result.Err, "channel delivery failed",
					"channel", sender.Name(), "user_id", user.ID, "bug_id", event.Issue.ID)
			}
			d.metrics.ChannelSends.WithLabelValues(sender.Name(), status).Inc()

			d.recordAudit(ctx, user, event, result)
		}(sender)
	}
	wg.Wait()

	if len(attempted) == 0 {
		return
	}

	entry := &model.NotificationHistoryEntry{
		UserID:       user.ID,
		BugID:        event.Issue.ID,
		EventType:    event.EventType,
		Subject:      msg.Subject,
		Body:         msg.Body,
		ChannelsSent: attempted,
		DateSent:     d.clock.Now().Unix(),
	}
	// History is decoupled from delivery: a failed write is logged, never
	// allowed to suppress or fail the sends that already happened.
	if err := d.history.Create(ctx, entry); err != nil {
		d.logger.Error(err, "failed to record notification history",
			"user_id", user.ID, "bug_id", event.Issue.ID)
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, userID int64, event *model.IssueEvent) {
	now := d.clock.Now().Unix()
	queued := &model.QueuedNotification{
		UserID:        userID,
		BugID:         event.Issue.ID,
		EventType:     event.EventType,
		Severity:      event.Issue.Severity,
		Priority:      event.Issue.Priority,
		CategoryID:    event.Issue.CategoryID,
		Subject:       d.subjectFor(event),
		Body:          event.Body,
		DateCreated:   now,
		DateScheduled: now,
	}
	if event.HTMLBody != "" {
		queued.HTMLBody = &event.HTMLBody
	}

	if err := d.queue.Create(ctx, queued); err != nil {
		d.logger.Error(err, "failed to enqueue digest notification",
			"user_id", userID, "bug_id", event.Issue.ID)
	}
}

func (d *Dispatcher) buildMessage(event *model.IssueEvent) channel.Message {
	return channel.Message{
		Subject:   d.subjectFor(event),
		Body:      event.Body,
		HTMLBody:  event.HTMLBody,
		EventType: event.EventType,
		Severity:  event.Issue.Severity,
		Priority:  event.Issue.Priority,
		BugID:     event.Issue.ID,
		ProjectID: event.Issue.ProjectID,
		Link:      fmt.Sprintf("%s/issues/%d", d.config.BaseURL, event.Issue.ID),
		Metadata:  event.Metadata,
	}
}

func (d *Dispatcher) subjectFor(event *model.IssueEvent) string {
	if event.Subject != "" {
		return event.Subject
	}
	return fmt.Sprintf("[#%d] %s (%s)", event.Issue.ID, event.Issue.Summary, event.EventType)
}

func (d *Dispatcher) recordAudit(ctx context.Context, user *model.User, event *model.IssueEvent, result channel.Result) {
	entry := &model.ChannelAuditEntry{
		Channel:      result.Channel,
		UserID:       user.ID,
		BugID:        event.Issue.ID,
		Recipient:    user.Email,
		Subject:      d.subjectFor(event),
		Status:       model.AuditStatusSuccess,
		DeliveryPath: result.DeliveryPath,
		DateSent:     d.clock.Now().Unix(),
	}

	if result.Success {
		if result.ProviderMessageID != "" {
			entry.DeliveryMetadata = []byte(fmt.Sprintf(`{"message_id":%q}`, result.ProviderMessageID))
		}
	} else {
		entry.Status = model.AuditStatusFailed
		if result.Err != nil {
			errMsg := result.Err.Error()
			entry.ErrorMessage = &errMsg
		}
	}

	if err := d.audit.Create(ctx, entry); err != nil {
		d.logger.Error(err, "failed to record channel audit entry",
			"channel", result.Channel, "user_id", user.ID)
	}
}
