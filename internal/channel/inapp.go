package channel

import (
	"context"
	"fmt"

	"github.com/bugtally/notify-engine/internal/model"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
	"github.com/bugtally/notify-engine/pkg/logger"
	"github.com/bugtally/notify-engine/pkg/messaging"
)

// InAppSender publishes to the per-user notification stream consumed by
// the tracker's web UI. Single attempt; the broker client retries at the
// connection level.
type InAppSender struct {
	broker messaging.Broker
	logger *logger.Logger
}

func NewInAppSender(broker messaging.Broker, logger *logger.Logger) *InAppSender {
	return &InAppSender{broker: broker, logger: logger}
}

func (s *InAppSender) Name() string { return model.ChannelInApp }

func (s *InAppSender) Send(ctx context.Context, target Target, msg Message) Result {
	if s.broker == nil {
		return failure(model.ChannelInApp, model.DeliveryPathBroker,
			apperrors.NewChannelUnavailable(model.ChannelInApp, fmt.Errorf("broker not configured")))
	}

	stream := fmt.Sprintf("notifications:user:%d", target.UserID)
	envelope := messaging.Message{
		Type: string(msg.EventType),
		Payload: map[string]interface{}{
			"bug_id":   msg.BugID,
			"subject":  msg.Subject,
			"body":     msg.Body,
			"severity": msg.Severity,
			"link":     msg.Link,
		},
	}

	if err := s.broker.Publish(ctx, stream, envelope); err != nil {
		return failure(model.ChannelInApp, model.DeliveryPathBroker,
			apperrors.NewTransport(model.ChannelInApp, err))
	}
	return success(model.ChannelInApp, model.DeliveryPathBroker, "")
}
