package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/bugtally/notify-engine/internal/model"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
	"github.com/bugtally/notify-engine/pkg/logger"
	"github.com/bugtally/notify-engine/pkg/metrics"
)

// ChatConfig configures the chat sender. WebhookURL is the primary path;
// APIURL plus APIToken enable the REST fallback. Rooms routes by project
// ID, with DefaultRoom as the global fallback.
type ChatConfig struct {
	Enabled        bool
	WebhookURL     string
	APIURL         string
	APIToken       string
	DefaultRoom    string
	Rooms          map[int64]string
	MaxRetries     int
	RetryBaseDelay time.Duration
	RequestsPerSec float64
	Burst          int
}

// ChatSender posts issue notifications to a chat service. The webhook path
// is retried with exponential backoff; when it is exhausted and a REST API
// is configured, one final attempt goes through it.
type ChatSender struct {
	config  ChatConfig
	client  *http.Client
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewChatSender(config ChatConfig, client *http.Client, logger *logger.Logger, m *metrics.Metrics) *ChatSender {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = 500 * time.Millisecond
	}
	if config.RequestsPerSec <= 0 {
		config.RequestsPerSec = 5
	}
	if config.Burst <= 0 {
		config.Burst = 10
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &ChatSender{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSec), config.Burst),
		sleep:   sleepContext,
		logger:  logger,
		metrics: m,
	}
}

// SetSleep replaces the backoff sleep; tests inject a zero-delay recorder.
func (s *ChatSender) SetSleep(fn func(ctx context.Context, d time.Duration) error) {
	s.sleep = fn
}

func (s *ChatSender) Name() string { return model.ChannelChat }

func (s *ChatSender) Send(ctx context.Context, target Target, msg Message) Result {
	if !s.config.Enabled || s.config.WebhookURL == "" {
		return failure(model.ChannelChat, model.DeliveryPathWebhook,
			apperrors.NewChannelUnavailable(model.ChannelChat, fmt.Errorf("webhook URL not configured")))
	}

	room := s.roomFor(msg.ProjectID)
	payload := BuildChatPayload(room, msg)
	body, err := json.Marshal(payload)
	if err != nil {
		return failure(model.ChannelChat, model.DeliveryPathWebhook,
			fmt.Errorf("failed to marshal chat payload: %w", err))
	}

	var lastErr error
	for attempt := 0; attempt < s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.ChannelRetries.WithLabelValues(model.ChannelChat).Inc()
			delay := s.config.RetryBaseDelay * (1 << (attempt - 1))
			if err := s.sleep(ctx, delay); err != nil {
				return failure(model.ChannelChat, model.DeliveryPathWebhook, err)
			}
		}

		if err := s.postWebhook(ctx, body); err != nil {
			lastErr = err
			s.logger.Warn("chat webhook attempt failed",
				"attempt", attempt+1, "bug_id", msg.BugID, "error", err.Error())
			continue
		}

		// Webhook responses carry no provider message ID.
		return success(model.ChannelChat, model.DeliveryPathWebhook, "")
	}

	if s.config.APIURL == "" || s.config.APIToken == "" {
		return failure(model.ChannelChat, model.DeliveryPathWebhook,
			apperrors.NewTransport(model.ChannelChat, lastErr))
	}

	messageID, err := s.postREST(ctx, room, payload)
	if err != nil {
		s.logger.Error(err, "chat REST fallback failed", "bug_id", msg.BugID)
		return failure(model.ChannelChat, model.DeliveryPathREST,
			apperrors.NewTransport(model.ChannelChat, err))
	}
	return success(model.ChannelChat, model.DeliveryPathREST, messageID)
}

func (s *ChatSender) roomFor(projectID int64) string {
	if room, ok := s.config.Rooms[projectID]; ok {
		return room
	}
	return s.config.DefaultRoom
}

func (s *ChatSender) postWebhook(ctx context.Context, body []byte) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *ChatSender) postREST(ctx context.Context, room string, payload ChatPayload) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(map[string]interface{}{
		"channel":     room,
		"text":        payload.Text,
		"attachments": payload.Attachments,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("REST API returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Message struct {
			ID string `json:"_id"`
		} `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode REST response: %w", err)
	}
	return parsed.Message.ID, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
