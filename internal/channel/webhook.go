package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bugtally/notify-engine/internal/model"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
	"github.com/bugtally/notify-engine/pkg/logger"
)

// WebhookConfig configures the generic outbound webhook.
type WebhookConfig struct {
	Enabled bool
	URL     string
	Secret  string
}

// WebhookSender posts the raw event content to a configured URL. One
// attempt, no retry; the receiver is expected to be an internal system
// with its own ingestion queue.
type WebhookSender struct {
	config WebhookConfig
	client *http.Client
	logger *logger.Logger
}

func NewWebhookSender(config WebhookConfig, client *http.Client, logger *logger.Logger) *WebhookSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebhookSender{config: config, client: client, logger: logger}
}

func (s *WebhookSender) Name() string { return model.ChannelWebhook }

func (s *WebhookSender) Send(ctx context.Context, target Target, msg Message) Result {
	if !s.config.Enabled || s.config.URL == "" {
		return failure(model.ChannelWebhook, model.DeliveryPathWebhook,
			apperrors.NewChannelUnavailable(model.ChannelWebhook, fmt.Errorf("webhook URL not configured")))
	}

	body, err := json.Marshal(map[string]interface{}{
		"user_id":    target.UserID,
		"bug_id":     msg.BugID,
		"project_id": msg.ProjectID,
		"event_type": msg.EventType,
		"severity":   msg.Severity,
		"priority":   msg.Priority,
		"subject":    msg.Subject,
		"body":       msg.Body,
		"link":       msg.Link,
		"metadata":   msg.Metadata,
	})
	if err != nil {
		return failure(model.ChannelWebhook, model.DeliveryPathWebhook, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return failure(model.ChannelWebhook, model.DeliveryPathWebhook, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.config.Secret != "" {
		req.Header.Set("X-Webhook-Secret", s.config.Secret)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return failure(model.ChannelWebhook, model.DeliveryPathWebhook,
			apperrors.NewTransport(model.ChannelWebhook, err))
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure(model.ChannelWebhook, model.DeliveryPathWebhook,
			apperrors.NewTransport(model.ChannelWebhook, fmt.Errorf("webhook returned status %d", resp.StatusCode)))
	}
	return success(model.ChannelWebhook, model.DeliveryPathWebhook, "")
}
