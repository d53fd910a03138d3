package channel

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtally/notify-engine/internal/model"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
	"github.com/bugtally/notify-engine/pkg/logger"
)

type fakePushTransport struct {
	failEndpoints map[string]error
	pushed        []string
}

func (f *fakePushTransport) Push(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	if err, ok := f.failEndpoints[sub.Endpoint]; ok {
		return err
	}
	f.pushed = append(f.pushed, sub.Endpoint)
	return nil
}

type fakeSubsRepo struct {
	subs     []*model.PushSubscription
	listErr  error
	disabled []uuid.UUID
}

func (f *fakeSubsRepo) Create(ctx context.Context, s *model.PushSubscription) error {
	f.subs = append(f.subs, s)
	return nil
}

func (f *fakeSubsRepo) ListActive(ctx context.Context, userID int64) ([]*model.PushSubscription, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*model.PushSubscription
	for _, s := range f.subs {
		if s.UserID == userID && s.Enabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSubsRepo) Disable(ctx context.Context, id uuid.UUID) error {
	f.disabled = append(f.disabled, id)
	return nil
}

func subscription(userID int64, endpoint string) *model.PushSubscription {
	return &model.PushSubscription{
		ID:       uuid.New(),
		UserID:   userID,
		Endpoint: endpoint,
		Enabled:  true,
	}
}

func pushMessage() Message {
	return Message{
		Subject:   "[#42] crash on save",
		Body:      "fixed in trunk",
		EventType: model.EventResolved,
		BugID:     42,
	}
}

func TestPushSendDeliversToAllEndpoints(t *testing.T) {
	transport := &fakePushTransport{}
	repo := &fakeSubsRepo{subs: []*model.PushSubscription{
		subscription(7, "https://push.example.com/a"),
		subscription(7, "https://push.example.com/b"),
		subscription(9, "https://push.example.com/other-user"),
	}}
	sender := NewPushSender(transport, repo, logger.Nop())

	result := sender.Send(context.Background(), Target{UserID: 7}, pushMessage())
	assert.True(t, result.Success)
	assert.Equal(t, model.DeliveryPathPush, result.DeliveryPath)
	assert.ElementsMatch(t, []string{"https://push.example.com/a", "https://push.example.com/b"}, transport.pushed)
}

func TestPushSendSucceedsWhenAnyEndpointAccepts(t *testing.T) {
	transport := &fakePushTransport{failEndpoints: map[string]error{
		"https://push.example.com/a": errors.New("503 service unavailable"),
	}}
	repo := &fakeSubsRepo{subs: []*model.PushSubscription{
		subscription(7, "https://push.example.com/a"),
		subscription(7, "https://push.example.com/b"),
	}}
	sender := NewPushSender(transport, repo, logger.Nop())

	result := sender.Send(context.Background(), Target{UserID: 7}, pushMessage())
	assert.True(t, result.Success)
	assert.Empty(t, repo.disabled)
}

func TestPushSendDisablesGoneEndpoints(t *testing.T) {
	gone := subscription(7, "https://push.example.com/gone")
	transport := &fakePushTransport{failEndpoints: map[string]error{
		gone.Endpoint: fmt.Errorf("push service said 410: %w", ErrEndpointGone),
	}}
	repo := &fakeSubsRepo{subs: []*model.PushSubscription{
		gone,
		subscription(7, "https://push.example.com/alive"),
	}}
	sender := NewPushSender(transport, repo, logger.Nop())

	result := sender.Send(context.Background(), Target{UserID: 7}, pushMessage())
	assert.True(t, result.Success)
	assert.Equal(t, []uuid.UUID{gone.ID}, repo.disabled)
}

func TestPushSendAllEndpointsFail(t *testing.T) {
	transport := &fakePushTransport{failEndpoints: map[string]error{
		"https://push.example.com/a": errors.New("timeout"),
	}}
	repo := &fakeSubsRepo{subs: []*model.PushSubscription{
		subscription(7, "https://push.example.com/a"),
	}}
	sender := NewPushSender(transport, repo, logger.Nop())

	result := sender.Send(context.Background(), Target{UserID: 7}, pushMessage())
	assert.False(t, result.Success)

	var appErr *apperrors.AppError
	require.ErrorAs(t, result.Err, &appErr)
	assert.Equal(t, apperrors.ErrTransport, appErr.Code)
}

func TestPushSendNoActiveSubscriptions(t *testing.T) {
	sender := NewPushSender(&fakePushTransport{}, &fakeSubsRepo{}, logger.Nop())

	result := sender.Send(context.Background(), Target{UserID: 7}, pushMessage())
	assert.False(t, result.Success)
	assert.True(t, apperrors.IsChannelUnavailable(result.Err))
}

func TestPushSendNoTransportConfigured(t *testing.T) {
	sender := NewPushSender(nil, &fakeSubsRepo{}, logger.Nop())

	result := sender.Send(context.Background(), Target{UserID: 7}, pushMessage())
	assert.False(t, result.Success)
	assert.True(t, apperrors.IsChannelUnavailable(result.Err))
}
