package history

import (
	"context"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one appended line of a per-user transcript. Turns are never
// mutated or deleted once written.
type Turn struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type Config struct {
	Path string `yaml:"path"`
}

type Store interface {
	// Append writes one turn for the user.
	Append(ctx context.Context, userID string, role Role, content string) error

	// Recent returns up to 2*maxTurns rows for the user, ordered
	// oldest-to-newest, ready to feed a chat-completion request.
	Recent(ctx context.Context, userID string, maxTurns int) ([]Turn, error)

	Close() error
}
