// Package genai answers user questions with the OpenAI chat completions API.
//
// It is an alternate AI backend to Flowise with the same never-fails contract: errors become
// models.HighDemandApology and empty answers become models.RephraseApology.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultModel is used when no model is configured.
const DefaultModel = openai.ChatModelGPT4oMini

// DefaultSystemPrompt frames the assistant for the wellness chat.
const DefaultSystemPrompt = "You are a warm, concise mental health and wellness companion chatting over WhatsApp. Keep answers short and practical, and suggest professional help when appropriate."

// ErrNoChoicesReturned is returned when the API answers without any choice.
var ErrNoChoicesReturned = errors.New("no choices returned")

// chatService defines minimal interface for chat completions.
type chatService interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey       string
	Model        string
	SystemPrompt string
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model name.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithSystemPrompt replaces the default system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(o *Opts) { o.SystemPrompt = prompt }
}

// Client wraps the OpenAI ChatCompletion service.
type Client struct {
	chat         chatService
	model        openai.ChatModel
	systemPrompt string
}

// NewClient initializes a new GenAI client. The API key falls back to OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{Model: string(DefaultModel), SystemPrompt: DefaultSystemPrompt}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("GenAI client config loaded", "model", cfg.Model)
	return &Client{chat: &cli.Chat.Completions, model: openai.ChatModel(cfg.Model), systemPrompt: cfg.SystemPrompt}, nil
}

// Query answers question in the context of history. It never returns an error.
func (c *Client) Query(ctx context.Context, question, chatID string, history []models.Turn) string {
	answer, err := c.complete(ctx, question, history)
	if err != nil {
		slog.Error("GenAI.Query: completion failed", "chat_id", chatID, "error", err)
		return models.HighDemandApology
	}
	if strings.TrimSpace(answer) == "" {
		slog.Warn("GenAI.Query: empty completion", "chat_id", chatID)
		return models.RephraseApology
	}
	return answer
}

func (c *Client) complete(ctx context.Context, question string, history []models.Turn) (string, error) {
	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: buildMessages(c.systemPrompt, question, history),
	})
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return resp.Choices[0].Message.Content, nil
}

// buildMessages maps stored turns to chat roles: user turns stay user, bot turns become assistant.
func buildMessages(systemPrompt, question string, history []models.Turn) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+2)
	if systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(systemPrompt))
	}
	for _, turn := range history {
		switch turn.Role {
		case models.RoleUser:
			msgs = append(msgs, openai.UserMessage(turn.Content))
		case models.RoleBot:
			msgs = append(msgs, openai.AssistantMessage(turn.Content))
		}
	}
	return append(msgs, openai.UserMessage(question))
}
