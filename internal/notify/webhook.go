package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// WebhookNotifier POSTs each notification as JSON to a fixed endpoint.
type WebhookNotifier struct {
	endpoint string
	client   *http.Client
}

// NewWebhookNotifier validates the endpoint and builds a traced HTTP client.
func NewWebhookNotifier(endpoint string, client *http.Client) (*WebhookNotifier, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid webhook url %q", endpoint)
	}
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &WebhookNotifier{endpoint: endpoint, client: client}, nil
}

type webhookPayload struct {
	Notification
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	n.TTLHours = ttlHours(n.TTL)
	b, err := json.Marshal(webhookPayload{Notification: n, Subject: n.Subject(), Body: n.Body()})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded %d", resp.StatusCode)
	}
	return nil
}
