package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 10 * time.Second

// Webhook posts a Discord-compatible JSON payload to a configured URL.
type Webhook struct {
	url    string
	client *http.Client
}

func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (w *Webhook) Name() string {
	return "webhook"
}

func (w *Webhook) Deliver(ctx context.Context, n Notification) error {
	payload := map[string]interface{}{
		"wait":    true,
		"content": formatContent(n),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned HTTP %d: %s", resp.StatusCode, respBody)
	}

	slog.Debug("Webhook delivered", "link", n.Link)
	return nil
}

func formatContent(n Notification) string {
	return fmt.Sprintf("--------------------\nTitle: %s\nLink: %s\nDate: %s",
		n.Title, n.Link, n.Date)
}
