package escalate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// NewWebhookNotifier posts escalations as JSON to an automation webhook
// (e.g. a Make.com scenario). The timeout is fixed and short; expiry counts
// as a delivery failure.
func NewWebhookNotifier(cfg Config) Notifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &webhookNotifier{
		url: cfg.WebhookURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type webhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	UserID    string `json:"user_id"`
	UserName  string `json:"user_name"`
	Question  string `json:"question"`
	Timestamp int64  `json:"timestamp"`
}

func (n *webhookNotifier) Notify(ctx context.Context, esc Escalation) error {
	payload := webhookPayload{
		UserID:    esc.UserID,
		UserName:  esc.UserName,
		Question:  esc.Question,
		Timestamp: esc.Timestamp.Unix(),
	}

	data, err := json.Marshal(&payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}

	return nil
}
