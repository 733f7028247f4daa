package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat-completion call: a system instruction, prior
// turns oldest-to-newest, and the final user message.
type Request struct {
	System   string    `json:"system"`
	Messages []Message `json:"messages"`
}

type Config struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"-"`
}

type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
