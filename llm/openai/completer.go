package openai

import (
	"context"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/flarexio/qarelay/llm"
)

const (
	DefaultModel = openai.GPT4oMini

	requestTimeout = 30 * time.Second
)

var ErrNoChoices = errors.New("no completion choices returned")

func NewCompleter(cfg llm.Config) llm.Completer {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &completer{
		client: openai.NewClient(cfg.APIKey),
		model:  model,
	}
}

type completer struct {
	client *openai.Client
	model  string
}

func (c *completer) Complete(ctx context.Context, req llm.Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, msg := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})

	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}
