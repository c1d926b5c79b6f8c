package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookSender posts alerts to a chat webhook. The "text" field makes the
// payload render in Slack-compatible incoming webhooks; "alerts" carries the
// structured content for other consumers.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a webhook sender with a 10-second timeout.
func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookAlert struct {
	Ticker    string  `json:"ticker"`
	RSI       float64 `json:"rsi"`
	Signal    string  `json:"signal"`
	Threshold float64 `json:"threshold"`
	Price     float64 `json:"price,omitempty"`
}

type webhookPayload struct {
	Text   string         `json:"text"`
	Alerts []webhookAlert `json:"alerts"`
	TS     string         `json:"ts"`
}

func (w *WebhookSender) Send(ctx context.Context, msg Message) error {
	payload := webhookPayload{
		Text: fmt.Sprintf("*%s*\n%s", msg.Subject, msg.Short),
		TS:   time.Now().UTC().Format(time.RFC3339),
	}
	for _, a := range msg.Alerts {
		payload.Alerts = append(payload.Alerts, webhookAlert{
			Ticker:    a.Ticker,
			RSI:       a.RSI,
			Signal:    string(a.Signal),
			Threshold: a.Threshold,
			Price:     a.LastClose,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func (w *WebhookSender) Name() string { return "webhook" }
