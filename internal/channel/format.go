package channel

import (
	"fmt"

	"github.com/bugtally/notify-engine/internal/model"
)

// ChatAttachment is the rich block attached to a chat message.
type ChatAttachment struct {
	Title     string      `json:"title"`
	TitleLink string      `json:"title_link,omitempty"`
	Text      string      `json:"text,omitempty"`
	Color     string      `json:"color"`
	Fields    []ChatField `json:"fields,omitempty"`
}

type ChatField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// ChatPayload is the wire body posted to the chat service.
type ChatPayload struct {
	Channel     string           `json:"channel,omitempty"`
	Text        string           `json:"text"`
	Attachments []ChatAttachment `json:"attachments,omitempty"`
}

const (
	defaultColor = "#a3a3a3"
	defaultEmoji = ":bell:"
)

// severityColors keys attachment color off issue severity buckets.
var severityColors = map[int]string{
	10: "#a0d468", // feature
	20: "#87ceeb", // trivial
	30: "#48cfad", // text
	40: "#ffce54", // tweak
	50: "#fc6e51", // minor
	60: "#ed5565", // major
	70: "#d8334a", // crash
	80: "#961a2b", // block
}

// eventEmojis keys the message icon off the event type.
var eventEmojis = map[model.EventType]string{
	model.EventNew:      ":new:",
	model.EventAssigned: ":bust_in_silhouette:",
	model.EventFeedback: ":speech_balloon:",
	model.EventResolved: ":white_check_mark:",
	model.EventClosed:   ":lock:",
	model.EventReopened: ":leftwards_arrow_with_hook:",
	model.EventBugnote:  ":memo:",
	model.EventStatus:   ":arrows_counterclockwise:",
	model.EventPriority: ":exclamation:",
}

// SeverityColor maps a severity to an attachment color, falling back to a
// neutral grey for unknown values.
func SeverityColor(severity int) string {
	if c, ok := severityColors[severity]; ok {
		return c
	}
	return defaultColor
}

// EventEmoji maps an event type to its icon, with a generic fallback.
func EventEmoji(eventType model.EventType) string {
	if e, ok := eventEmojis[eventType]; ok {
		return e
	}
	return defaultEmoji
}

// BuildChatPayload renders a message into the chat wire format. It is a
// pure function of the message content so it can be tested without any
// transport.
func BuildChatPayload(room string, msg Message) ChatPayload {
	attachment := ChatAttachment{
		Title:     msg.Subject,
		TitleLink: msg.Link,
		Text:      msg.Body,
		Color:     SeverityColor(msg.Severity),
		Fields: []ChatField{
			{Title: "Issue", Value: fmt.Sprintf("#%d", msg.BugID), Short: true},
			{Title: "Event", Value: string(msg.EventType), Short: true},
			{Title: "Severity", Value: fmt.Sprintf("%d", msg.Severity), Short: true},
			{Title: "Priority", Value: fmt.Sprintf("%d", msg.Priority), Short: true},
		},
	}

	return ChatPayload{
		Channel:     room,
		Text:        fmt.Sprintf("%s %s", EventEmoji(msg.EventType), msg.Subject),
		Attachments: []ChatAttachment{attachment},
	}
}
