package escalate

import (
	"context"
	"time"
)

type Transport string

const (
	TransportTelegram Transport = "telegram"
	TransportWebhook  Transport = "webhook"
)

// Config carries the webhook notifier settings. Transport selection happens
// in the composition root, which picks the notifier constructor directly.
type Config struct {
	WebhookURL string        `yaml:"webhookURL"`
	Timeout    time.Duration `yaml:"-"`
}

// Escalation is one unanswered question forwarded to the operator channel.
type Escalation struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Question  string    `json:"question"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier delivers an escalation to the operator channel. Delivery failure
// is an error for the caller to log; there is no retry or queueing, a failed
// escalation is lost.
type Notifier interface {
	Notify(ctx context.Context, esc Escalation) error
}
