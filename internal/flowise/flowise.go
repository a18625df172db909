// Package flowise queries a Flowise prediction endpoint for conversational answers.
//
// Query never returns an error: transport and decoding failures become HighDemandMessage,
// and a response without an answer becomes RephraseMessage.
package flowise

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/CopilotRelay/internal/models"
	"github.com/tidwall/gjson"
)

const (
	// HighDemandMessage is returned when the backend cannot be reached or answers with an error.
	HighDemandMessage = models.HighDemandApology
	// RephraseMessage is returned when the backend answers without usable text.
	RephraseMessage = models.RephraseApology
)

// answerPath locates the first content block of the first assistant message.
const answerPath = "assistant.messages.0.content.0.text"

// maxResponseBytes caps how much of a prediction response is read.
const maxResponseBytes = 4 << 20

// Opts holds configuration options for the Flowise client.
type Opts struct {
	Endpoint       string
	HTTPClient     *http.Client
	OverrideConfig map[string]any
}

// Option defines a configuration option for the Flowise client.
type Option func(*Opts)

// WithEndpoint sets the prediction URL, e.g. https://host/api/v1/prediction/<chatflow-id>.
func WithEndpoint(url string) Option {
	return func(o *Opts) { o.Endpoint = url }
}

// WithHTTPClient sets the HTTP client used for predictions.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// WithOverrideConfig sends a chatflow overrideConfig object with every prediction.
func WithOverrideConfig(cfg map[string]any) Option {
	return func(o *Opts) { o.OverrideConfig = cfg }
}

type predictionRequest struct {
	Question       string         `json:"question"`
	ChatID         string         `json:"chatId"`
	History        []models.Turn  `json:"history,omitempty"`
	OverrideConfig map[string]any `json:"overrideConfig,omitempty"`
}

// Client queries one Flowise chatflow.
type Client struct {
	endpoint       string
	http           *http.Client
	overrideConfig map[string]any
}

// NewClient creates a Flowise client. The endpoint is required.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("flowise endpoint must be provided")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	slog.Debug("Flowise client config loaded", "endpoint", cfg.Endpoint, "override_config_set", cfg.OverrideConfig != nil)
	return &Client{endpoint: cfg.Endpoint, http: cfg.HTTPClient, overrideConfig: cfg.OverrideConfig}, nil
}

// Query asks the chatflow a question on behalf of chatID, passing prior turns as history.
func (c *Client) Query(ctx context.Context, question, chatID string, history []models.Turn) string {
	body, err := c.predict(ctx, predictionRequest{
		Question:       question,
		ChatID:         chatID,
		History:        history,
		OverrideConfig: c.overrideConfig,
	})
	if err != nil {
		slog.Error("Flowise.Query: prediction failed", "chat_id", chatID, "error", err)
		return HighDemandMessage
	}

	answer := gjson.GetBytes(body, answerPath).String()
	if strings.TrimSpace(answer) == "" {
		slog.Warn("Flowise.Query: response carried no answer", "chat_id", chatID, "body_length", len(body))
		return RephraseMessage
	}
	slog.Debug("Flowise.Query: answer received", "chat_id", chatID, "answer_length", len(answer))
	return answer
}

func (c *Client) predict(ctx context.Context, payload predictionRequest) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode prediction request: %w", err)
	}
	slog.Debug("Flowise.predict: posting question", "chat_id", payload.ChatID, "history_turns", len(payload.History))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post prediction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("prediction returned HTTP status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read prediction response: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("prediction response is not valid JSON")
	}
	return body, nil
}
