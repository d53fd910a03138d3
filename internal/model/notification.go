package model

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Channel names. Each maps to one sender implementation.
const (
	ChannelEmail   = "email"
	ChannelPush    = "push"
	ChannelChat    = "chat"
	ChannelWebhook = "webhook"
	ChannelInApp   = "in_app"
)

// QueueStatus tracks a queued notification through the digest pipeline.
// Transitions are one-way: pending -> batched -> sent.
type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusBatched QueueStatus = "batched"
	QueueStatusSent    QueueStatus = "sent"
)

// QueuedNotification is a digest-eligible notification waiting for the next
// scheduled digest run. Owned exclusively by the digest pipeline; never
// mutated after reaching sent. All date columns are Unix seconds.
type QueuedNotification struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	UserID        int64           `json:"user_id" db:"user_id"`
	BugID         int64           `json:"bug_id" db:"bug_id"`
	EventType     EventType       `json:"event_type" db:"event_type"`
	Severity      int             `json:"severity" db:"severity"`
	Priority      int             `json:"priority" db:"priority"`
	CategoryID    string          `json:"category_id" db:"category_id"`
	Subject       string          `json:"subject" db:"subject"`
	Body          string          `json:"body" db:"body"`
	HTMLBody      *string         `json:"html_body,omitempty" db:"html_body"`
	Metadata      json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	Status        QueueStatus     `json:"status" db:"status"`
	BatchID       *uuid.UUID      `json:"batch_id,omitempty" db:"batch_id"`
	DateCreated   int64           `json:"date_created" db:"date_created"`
	DateScheduled int64           `json:"date_scheduled" db:"date_scheduled"`
	DateSent      *int64          `json:"date_sent,omitempty" db:"date_sent"`
}

// NotificationHistoryEntry is the append-only record of one notification
// reaching one user. ChannelsSent lists every channel attempted for the
// user, regardless of per-channel outcome; only ReadStatus and DateRead
// are mutated after creation.
type NotificationHistoryEntry struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	UserID       int64          `json:"user_id" db:"user_id"`
	BugID        int64          `json:"bug_id" db:"bug_id"`
	EventType    EventType      `json:"event_type" db:"event_type"`
	Subject      string         `json:"subject" db:"subject"`
	Body         string         `json:"body" db:"body"`
	ChannelsSent pq.StringArray `json:"channels_sent" db:"channels_sent"`
	ReadStatus   bool           `json:"read_status" db:"read_status"`
	DateSent     int64          `json:"date_sent" db:"date_sent"`
	DateRead     *int64         `json:"date_read,omitempty" db:"date_read"`
}

// AuditStatus is the terminal outcome of one delivery attempt.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailed  AuditStatus = "failed"
)

// DeliveryPath records which transport actually carried a message. It is
// stamped at send time rather than inferred later from stored metadata.
type DeliveryPath string

const (
	DeliveryPathWebhook DeliveryPath = "webhook"
	DeliveryPathREST    DeliveryPath = "rest"
	DeliveryPathSMTP    DeliveryPath = "smtp"
	DeliveryPathPush    DeliveryPath = "push"
	DeliveryPathBroker  DeliveryPath = "broker"
)

// ChannelAuditEntry is one delivery attempt's outcome on one channel.
// DeliveryMetadata and ErrorMessage are distinct columns: metadata is set
// on success, the error message on failure.
type ChannelAuditEntry struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Channel          string          `json:"channel" db:"channel"`
	UserID           int64           `json:"user_id" db:"user_id"`
	BugID            int64           `json:"bug_id" db:"bug_id"`
	Recipient        string          `json:"recipient" db:"recipient"`
	Subject          string          `json:"subject" db:"subject"`
	Status           AuditStatus     `json:"status" db:"status"`
	DeliveryPath     DeliveryPath    `json:"delivery_path" db:"delivery_path"`
	DeliveryMetadata json.RawMessage `json:"delivery_metadata,omitempty" db:"delivery_metadata"`
	ErrorMessage     *string         `json:"error_message,omitempty" db:"error_message"`
	DateSent         int64           `json:"date_sent" db:"date_sent"`
}

// PushSubscription is one registered web-push endpoint for a user.
// Permanently invalid endpoints are disabled rather than deleted so the
// audit trail keeps pointing at a real row.
type PushSubscription struct {
	ID          uuid.UUID `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	Endpoint    string    `json:"endpoint" db:"endpoint"`
	P256dhKey   string    `json:"p256dh_key" db:"p256dh_key"`
	AuthKey     string    `json:"auth_key" db:"auth_key"`
	DeviceName  string    `json:"device_name" db:"device_name"`
	Enabled     bool      `json:"enabled" db:"enabled"`
	DateCreated int64     `json:"date_created" db:"date_created"`
}
