package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bugtally/notify-engine/internal/model"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
	"github.com/bugtally/notify-engine/pkg/logger"
	"github.com/bugtally/notify-engine/pkg/metrics"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

func chatMessage() Message {
	return Message{
		Subject:   "[#42] crash on save (resolved)",
		Body:      "fixed in trunk",
		EventType: model.EventResolved,
		Severity:  60,
		Priority:  30,
		BugID:     42,
		ProjectID: 3,
		Link:      "https://bugs.example.com/issues/42",
	}
}

func newChatSender(t *testing.T, config ChatConfig) (*ChatSender, *sleepRecorder) {
	t.Helper()
	config.Enabled = true
	sender := NewChatSender(config, nil, logger.Nop(), metrics.NewForTest())
	rec := &sleepRecorder{}
	sender.SetSleep(rec.sleep)
	return sender, rec
}

func TestChatSendSucceedsFirstAttempt(t *testing.T) {
	var got ChatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender, rec := newChatSender(t, ChatConfig{WebhookURL: srv.URL, DefaultRoom: "#bugs"})

	result := sender.Send(context.Background(), Target{UserID: 7}, chatMessage())
	assert.True(t, result.Success)
	assert.Equal(t, model.DeliveryPathWebhook, result.DeliveryPath)
	assert.Empty(t, result.ProviderMessageID)
	assert.Empty(t, rec.delays)

	assert.Equal(t, "#bugs", got.Channel)
	assert.Contains(t, got.Text, "crash on save")
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "https://bugs.example.com/issues/42", got.Attachments[0].TitleLink)
}

func TestChatSendRetriesWithBackoff(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	base := 10 * time.Millisecond
	sender, rec := newChatSender(t, ChatConfig{WebhookURL: srv.URL, RetryBaseDelay: base})

	result := sender.Send(context.Background(), Target{UserID: 7}, chatMessage())
	assert.True(t, result.Success)
	assert.Equal(t, 3, calls)
	// Exponential: base before the second attempt, doubled before the third.
	assert.Equal(t, []time.Duration{base, 2 * base}, rec.delays)
}

func TestChatSendExhaustedWithoutFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sender, rec := newChatSender(t, ChatConfig{WebhookURL: srv.URL, RetryBaseDelay: time.Millisecond})

	result := sender.Send(context.Background(), Target{UserID: 7}, chatMessage())
	assert.False(t, result.Success)
	assert.Equal(t, model.DeliveryPathWebhook, result.DeliveryPath)
	assert.Len(t, rec.delays, 2)

	var appErr *apperrors.AppError
	require.ErrorAs(t, result.Err, &appErr)
	assert.Equal(t, apperrors.ErrTransport, appErr.Code)
}

func TestChatSendFallsBackToREST(t *testing.T) {
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer webhook.Close()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":{"_id":"msg-123"}}`))
	}))
	defer api.Close()

	sender, _ := newChatSender(t, ChatConfig{
		WebhookURL:     webhook.URL,
		APIURL:         api.URL,
		APIToken:       "tok",
		DefaultRoom:    "#bugs",
		RetryBaseDelay: time.Millisecond,
	})

	result := sender.Send(context.Background(), Target{UserID: 7}, chatMessage())
	assert.True(t, result.Success)
	assert.Equal(t, model.DeliveryPathREST, result.DeliveryPath)
	assert.Equal(t, "msg-123", result.ProviderMessageID)
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestChatSendDisabledIsUnavailable(t *testing.T) {
	sender := NewChatSender(ChatConfig{Enabled: false}, nil, logger.Nop(), metrics.NewForTest())

	result := sender.Send(context.Background(), Target{UserID: 7}, chatMessage())
	assert.False(t, result.Success)
	assert.True(t, apperrors.IsChannelUnavailable(result.Err))
}

func TestChatRoomRouting(t *testing.T) {
	var got ChatPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender, _ := newChatSender(t, ChatConfig{
		WebhookURL:  srv.URL,
		DefaultRoom: "#bugs",
		Rooms:       map[int64]string{3: "#project-three"},
	})

	msg := chatMessage()
	sender.Send(context.Background(), Target{UserID: 7}, msg)
	assert.Equal(t, "#project-three", got.Channel)

	msg.ProjectID = 99
	sender.Send(context.Background(), Target{UserID: 7}, msg)
	assert.Equal(t, "#bugs", got.Channel)
}

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, "#fc6e51", SeverityColor(50))
	assert.Equal(t, "#961a2b", SeverityColor(80))
	assert.Equal(t, "#a3a3a3", SeverityColor(55))
	assert.Equal(t, "#a3a3a3", SeverityColor(0))
}

func TestEventEmoji(t *testing.T) {
	assert.Equal(t, ":new:", EventEmoji(model.EventNew))
	assert.Equal(t, ":white_check_mark:", EventEmoji(model.EventResolved))
	assert.Equal(t, ":bell:", EventEmoji(model.EventDigest))
}

func TestBuildChatPayload(t *testing.T) {
	payload := BuildChatPayload("#bugs", chatMessage())

	assert.Equal(t, "#bugs", payload.Channel)
	assert.Equal(t, ":white_check_mark: [#42] crash on save (resolved)", payload.Text)

	require.Len(t, payload.Attachments, 1)
	att := payload.Attachments[0]
	assert.Equal(t, "#ed5565", att.Color)
	require.Len(t, att.Fields, 4)
	assert.Equal(t, "#42", att.Fields[0].Value)
	assert.Equal(t, "resolved", att.Fields[1].Value)
}
