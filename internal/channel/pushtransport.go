package channel

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bugtally/notify-engine/internal/model"
)

// PushTransportConfig carries the web-push identification keys. The keys
// are passed through to the push service headers; payload encryption is
// the push service gateway's concern in this deployment.
type PushTransportConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subscriber      string
	TTL             int
}

// HTTPPushTransport posts payloads directly to subscription endpoints.
// A 404 or 410 response marks the endpoint as permanently gone.
type HTTPPushTransport struct {
	config PushTransportConfig
	client *http.Client
}

func NewHTTPPushTransport(config PushTransportConfig, client *http.Client) *HTTPPushTransport {
	if config.TTL <= 0 {
		config.TTL = 86400
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPPushTransport{config: config, client: client}
}

func (t *HTTPPushTransport) Push(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("TTL", fmt.Sprintf("%d", t.config.TTL))
	if t.config.VAPIDPublicKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("vapid t=%s, k=%s", t.config.Subscriber, t.config.VAPIDPublicKey))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return fmt.Errorf("endpoint returned %d: %w", resp.StatusCode, ErrEndpointGone)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
