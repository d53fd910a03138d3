package model

// EventType identifies the kind of issue activity that triggered a notification.
type EventType string

const (
	EventNew      EventType = "new"
	EventAssigned EventType = "assigned"
	EventFeedback EventType = "feedback"
	EventResolved EventType = "resolved"
	EventClosed   EventType = "closed"
	EventReopened EventType = "reopened"
	EventBugnote  EventType = "bugnote"
	EventStatus   EventType = "status"
	EventPriority EventType = "priority"
)

// EventDigest marks batched digest deliveries in the history store. It is
// not a preference-holding event type.
const EventDigest EventType = "digest"

// EventTypes lists every event type a user can hold a preference for.
var EventTypes = []EventType{
	EventNew,
	EventAssigned,
	EventFeedback,
	EventResolved,
	EventClosed,
	EventReopened,
	EventBugnote,
	EventStatus,
	EventPriority,
}

// Issue carries the subset of bug fields the engine needs to evaluate
// preferences and filters. The full bug record lives in the tracker's store.
type Issue struct {
	ID         int64    `json:"id" db:"id"`
	ProjectID  int64    `json:"project_id" db:"project_id"`
	CategoryID string   `json:"category_id" db:"category_id"`
	Severity   int      `json:"severity" db:"severity"`
	Priority   int      `json:"priority" db:"priority"`
	Summary    string   `json:"summary" db:"summary"`
	Tags       []string `json:"tags,omitempty"`
}

// IssueEvent is the unit of work handed to the dispatcher.
type IssueEvent struct {
	EventType EventType         `json:"event_type"`
	ActorID   int64             `json:"actor_id"`
	Issue     Issue             `json:"issue"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	HTMLBody  string            `json:"html_body,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// User is the slice of a tracker account relevant to delivery.
type User struct {
	ID      int64  `json:"id" db:"id"`
	Email   string `json:"email" db:"email"`
	Enabled bool   `json:"enabled" db:"enabled"`
}

// EventPreference is a per-user, per-event-type opt-in with a minimum
// severity threshold. A user is notified only when the flag is on and the
// issue severity meets the threshold.
type EventPreference struct {
	UserID      int64     `json:"user_id" db:"user_id"`
	EventType   EventType `json:"event_type" db:"event_type"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	MinSeverity int       `json:"min_severity" db:"min_severity"`
}
