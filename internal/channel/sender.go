package channel

import (
	"context"

	"github.com/bugtally/notify-engine/internal/model"
)

// Message is the transport-independent content of one notification.
type Message struct {
	Subject   string
	Body      string
	HTMLBody  string
	EventType model.EventType
	Severity  int
	Priority  int
	BugID     int64
	ProjectID int64
	Link      string
	Metadata  map[string]string
}

// Target identifies the user a message is addressed to. Email is the only
// address the engine needs directly; the other channels resolve their own
// destinations (subscriptions, rooms, broker streams).
type Target struct {
	UserID int64
	Email  string
}

// Result is the terminal outcome of one channel send, including which
// transport path actually carried the message.
type Result struct {
	Channel           string
	Success           bool
	ProviderMessageID string
	DeliveryPath      model.DeliveryPath
	Err               error
}

// Sender delivers a message over one channel. Implementations own their
// retry policy; a returned Result with Success=false means the channel is
// exhausted for this recipient.
type Sender interface {
	Name() string
	Send(ctx context.Context, target Target, msg Message) Result
}

func failure(channel string, path model.DeliveryPath, err error) Result {
	return Result{Channel: channel, DeliveryPath: path, Err: err}
}

func success(channel string, path model.DeliveryPath, messageID string) Result {
	return Result{Channel: channel, Success: true, DeliveryPath: path, ProviderMessageID: messageID}
}
