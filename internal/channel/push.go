package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
	"github.com/bugtally/notify-engine/pkg/logger"
)

// ErrEndpointGone marks a subscription endpoint that will never accept
// pushes again. Transports return it (wrapped or bare) for 404/410-class
// responses; the sender disables the subscription.
var ErrEndpointGone = errors.New("push endpoint gone")

// PushTransport is the outbound web-push call. The engine treats it as an
// external collaborator: attempt delivery, report success or failure.
type PushTransport interface {
	Push(ctx context.Context, sub model.PushSubscription, payload []byte) error
}

// PushSender fans a message out to every active subscription endpoint the
// user has registered. Endpoint failures are isolated from each other; the
// channel succeeds if any endpoint accepted the push.
type PushSender struct {
	transport PushTransport
	subs      repository.PushSubscriptionRepository
	logger    *logger.Logger
}

func NewPushSender(transport PushTransport, subs repository.PushSubscriptionRepository, logger *logger.Logger) *PushSender {
	return &PushSender{transport: transport, subs: subs, logger: logger}
}

func (s *PushSender) Name() string { return model.ChannelPush }

func (s *PushSender) Send(ctx context.Context, target Target, msg Message) Result {
	if s.transport == nil {
		return failure(model.ChannelPush, model.DeliveryPathPush,
			apperrors.NewChannelUnavailable(model.ChannelPush, fmt.Errorf("push transport not configured")))
	}

	subs, err := s.subs.ListActive(ctx, target.UserID)
	if err != nil {
		return failure(model.ChannelPush, model.DeliveryPathPush,
			fmt.Errorf("failed to list push subscriptions: %w", err))
	}
	if len(subs) == 0 {
		return failure(model.ChannelPush, model.DeliveryPathPush,
			apperrors.NewChannelUnavailable(model.ChannelPush, fmt.Errorf("user %d has no active subscriptions", target.UserID)))
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title":    msg.Subject,
		"body":     msg.Body,
		"bug_id":   msg.BugID,
		"event":    msg.EventType,
		"severity": msg.Severity,
		"link":     msg.Link,
	})
	if err != nil {
		return failure(model.ChannelPush, model.DeliveryPathPush, err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		delivered int
		lastErr   error
	)

	for _, sub := range subs {
		wg.Add(1)
		go func(sub *model.PushSubscription) {
			defer wg.Done()
			err := s.transport.Push(ctx, *sub, payload)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				delivered++
				return
			}
			lastErr = err

			if errors.Is(err, ErrEndpointGone) {
				if disableErr := s.subs.Disable(ctx, sub.ID); disableErr != nil {
					s.logger.Error(disableErr, "failed to disable dead push endpoint",
						"subscription_id", sub.ID.String())
				}
				return
			}
			s.logger.Warn("push endpoint delivery failed",
				"subscription_id", sub.ID.String(), "error", err.Error())
		}(sub)
	}
	wg.Wait()

	if delivered == 0 {
		return failure(model.ChannelPush, model.DeliveryPathPush,
			apperrors.NewTransport(model.ChannelPush, lastErr))
	}
	return success(model.ChannelPush, model.DeliveryPathPush, "")
}
